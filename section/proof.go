package section

import (
	"github.com/tos-network/gsection/bls"
)

// Proof is a BLS threshold signature over a payload's canonical bytes
// (§3). Verification hashes the payload with bls.HashPayload before
// checking the signature, matching the accumulation path used when the
// consensus collaborator combines signature shares (see
// consensus/pool.go).
type Proof struct {
	PublicKey bls.PublicKey
	Signature bls.Signature
}

// Verify checks the proof against payload's canonical encoding.
func (p Proof) Verify(payload interface{}) bool {
	b, err := canonicalJSON(payload)
	if err != nil {
		return false
	}
	return p.PublicKey.Verify(p.Signature, bls.HashPayload(b))
}

// Proven pairs a value with a Proof certifying it (§3).
type Proven[T any] struct {
	Value T
	Proof Proof
}

// NewProven constructs a Proven[T] without checking the proof — callers
// that receive a value+proof off the wire should call SelfVerify before
// trusting it.
func NewProven[T any](value T, proof Proof) Proven[T] {
	return Proven[T]{Value: value, Proof: proof}
}

// SelfVerify reports whether proof verifies the serialisation of Value.
func (p Proven[T]) SelfVerify() bool {
	return p.Proof.Verify(p.Value)
}

// Verify reports whether this Proven's key is present in chain AND its
// proof self-verifies (§4.5 update_elders step 1).
func (p Proven[T]) Verify(chain *SectionProofChain) bool {
	return chain.HasKey(p.Proof.PublicKey) && p.SelfVerify()
}
