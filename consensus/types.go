// Package consensus is the reference "consensus collaborator" referred to
// by the external interfaces in §6: an injectable component, outside the
// section core, that turns individual elders' BLS signature shares over a
// proposed value into a combined threshold Proof once enough of them
// agree. Grounded on the teacher's consensus/bft vote pool and reactor,
// with Validator/Weight generalised to a BLS share index and ECDSA votes
// generalised to signature shares over a shared payload hash.
package consensus

import "errors"

var (
	ErrInvalidShare       = errors.New("consensus: invalid signature share")
	ErrEquivocation       = errors.New("consensus: share index voted for two different payloads in the same round")
	ErrInsufficientShares = errors.New("consensus: not enough shares to combine")
)

// Topic names one decision in flight: a section's proposed EldersInfo
// update, a member state change, a relocation, etc. It is opaque to this
// package — callers pick their own stable encoding (e.g. "elders:<prefix>:
// <version>").
type Topic string
