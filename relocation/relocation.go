// Package relocation implements the signed identity-change payloads that
// let a member move to a new section without losing its admission
// history (§4.8, component C7). Grounded on
// original_source/src/relocation.rs and original_source/src/id.rs for the
// two-signature binding (source section over RelocateDetails, old
// identity over RelocatePayload) and on section/peer.go's canonical JSON
// + bls.HashPayload convention for what gets signed.
package relocation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tos-network/gsection/bls"
	"github.com/tos-network/gsection/section"
	"github.com/tos-network/gsection/xorname"
)

// ExtraSplitCount is added to the destination prefix's bit count when
// picking a relocating node's new name, so the identity stays valid even
// if the destination section splits once more before the node arrives
// (§4.7 step 1, §8 scenario S5).
const ExtraSplitCount = 3

var (
	ErrInvalidDetailsProof  = errors.New("relocation: details proof does not verify")
	ErrInvalidPayloadSig    = errors.New("relocation: payload signature does not verify under the claimed old identity")
	ErrNameOutsideRange     = errors.New("relocation: new public id does not fall within destination+EXTRA_SPLIT_COUNT prefix")
)

// RelocateDetails is signed by the source section's current key (§4.8):
// it names the member being relocated, its destination, and its age at
// the moment of relocation.
type RelocateDetails struct {
	Destination     xorname.XorName `json:"destination"`
	PubID           xorname.XorName `json:"pub_id"`
	AgeOnRelocation uint8           `json:"age_on_relocation"`
}

func canonicalJSON(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("relocation: canonical encode: %w", err)
	}
	return b, nil
}

// relocatePayloadSignable is the exact byte shape bound by the old
// identity's signature — Details' value only (not its proof, which the
// recipient verifies independently against the source chain).
type relocatePayloadSignable struct {
	Details     RelocateDetails `json:"details"`
	NewPublicID xorname.XorName `json:"new_public_id"`
}

// RelocatePayload binds a relocating node's new identity to its signed
// RelocateDetails with a second signature from the node's old identity
// key, so a recipient can verify both "the section agreed to relocate
// this peer" and "this specific new identity is the same peer continuing
// under a new name".
type RelocatePayload struct {
	Details      section.Proven[RelocateDetails]
	NewPublicID  xorname.XorName
	Signature    bls.Signature
	OldPublicKey bls.PublicKey
}

// NewRelocatePayload signs (details.Value, newPublicID) with oldIdentity,
// the relocating node's pre-relocation single-signer key (a threshold-0
// bls.SecretKeyShare, the same construction Section.FirstNode uses for a
// lone genesis signer).
func NewRelocatePayload(details section.Proven[RelocateDetails], newPublicID xorname.XorName, oldIdentity bls.SecretKeyShare) (RelocatePayload, error) {
	b, err := canonicalJSON(relocatePayloadSignable{Details: details.Value, NewPublicID: newPublicID})
	if err != nil {
		return RelocatePayload{}, err
	}
	sig := oldIdentity.Sign(bls.HashPayload(b))
	return RelocatePayload{
		Details:      details,
		NewPublicID:  newPublicID,
		Signature:    sig,
		OldPublicKey: oldIdentity.PublicKeyShare(),
	}, nil
}

// Verify checks both signatures and that NewPublicID falls within the
// destination prefix extended by ExtraSplitCount bits beyond
// currentPrefixBitCount, the destination section's prefix length at the
// time of relocation (§4.8).
func (p RelocatePayload) Verify(currentPrefixBitCount int) error {
	if !p.Details.SelfVerify() {
		return ErrInvalidDetailsProof
	}
	b, err := canonicalJSON(relocatePayloadSignable{Details: p.Details.Value, NewPublicID: p.NewPublicID})
	if err != nil {
		return err
	}
	if !p.OldPublicKey.Verify(p.Signature, bls.HashPayload(b)) {
		return ErrInvalidPayloadSig
	}

	requiredBits := currentPrefixBitCount + ExtraSplitCount
	if requiredBits > xorname.NameBits {
		requiredBits = xorname.NameBits
	}
	destPrefix := xorname.NewPrefix(requiredBits, p.Details.Value.Destination)
	if !destPrefix.Matches(p.NewPublicID) {
		return ErrNameOutsideRange
	}
	return nil
}

// NewNameWithinPrefix draws a name uniformly at random from prefix's
// range (§4.1 range_inclusive), by copying prefix's significant bits and
// filling the rest from rng — equivalent to, but faster than, rejecting
// uniform 256-bit draws outside the range, and exact for the same reason
// range_inclusive is: every bit past prefix.BitCount is unconstrained.
func NewNameWithinPrefix(prefix xorname.Prefix, rng io.Reader) (xorname.XorName, error) {
	random, err := xorname.RandomFrom(rng)
	if err != nil {
		return xorname.XorName{}, err
	}
	var out xorname.XorName
	fullBytes := prefix.BitCount / 8
	copy(out[:fullBytes], prefix.Name[:fullBytes])
	copy(out[fullBytes:], random[fullBytes:])
	if rem := prefix.BitCount % 8; rem != 0 && fullBytes < xorname.Len {
		mask := byte(0xFF << uint(8-rem))
		out[fullBytes] = (prefix.Name[fullBytes] & mask) | (random[fullBytes] &^ mask)
	}
	return out, nil
}
