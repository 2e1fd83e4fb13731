// Package bls wraps supranational/blst to provide the §6 "BLS threshold
// signatures" external-interface contract: PublicKeySet.CombineSignatures,
// PublicKey.Verify, SecretKeyShare.Sign, and SecretKeySet.Random for
// genesis. accountsigner/crypto.go (teacher) already drives blst for
// single-signer BLS12-381 sign/verify/compress/aggregate; this package
// generalises that to (t, n) Shamir threshold secret sharing: a degree-t
// polynomial over the BLS12-381 scalar field, with shares at each
// participant's 1-based index and signatures/public keys reconstructed by
// Lagrange interpolation in the exponent — the same scheme the spec's
// bls_signature_aggregator/threshold_crypto (Rust) dependency implements.
package bls

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"

	blst "github.com/supranational/blst/bindings/go"
	"golang.org/x/crypto/blake2b"
)

// groupOrder is the BLS12-381 scalar field modulus r.
var groupOrder, _ = new(big.Int).SetString(
	"52435875175126190479447740508185965837690552500527637822603658699938581184513", 10)

var dst = []byte("GSECTION_BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_")

// Errors surfaced by this package, matching §7's InvalidSignatureShare /
// FailedSignature kinds.
var (
	ErrInvalidThreshold      = errors.New("bls: threshold must be >= 0")
	ErrNotEnoughShares       = errors.New("bls: not enough signature shares to combine")
	ErrDuplicateShareIndex   = errors.New("bls: duplicate share index")
	ErrInvalidSignatureShare = errors.New("bls: invalid signature share")
	ErrFailedSignature       = errors.New("bls: signature does not verify")
)

// Signature is a compressed G2 point.
type Signature struct{ raw []byte }

// PublicKey is a compressed G1 point.
type PublicKey struct{ raw []byte }

// Bytes returns the compressed encoding.
func (s Signature) Bytes() []byte { return append([]byte(nil), s.raw...) }
func (p PublicKey) Bytes() []byte { return append([]byte(nil), p.raw...) }

// MarshalJSON/UnmarshalJSON round-trip the compressed encoding so a
// Proof travels over comm intact (encoding/json base64s a []byte for
// free).
func (s Signature) MarshalJSON() ([]byte, error)  { return json.Marshal(s.raw) }
func (s *Signature) UnmarshalJSON(b []byte) error { return json.Unmarshal(b, &s.raw) }
func (p PublicKey) MarshalJSON() ([]byte, error)  { return json.Marshal(p.raw) }
func (p *PublicKey) UnmarshalJSON(b []byte) error { return json.Unmarshal(b, &p.raw) }

func (p PublicKey) String() string { return fmt.Sprintf("%x", p.raw) }

// Equal reports whether two public keys encode the same point.
func (p PublicKey) Equal(other PublicKey) bool {
	if len(p.raw) != len(other.raw) {
		return false
	}
	for i := range p.raw {
		if p.raw[i] != other.raw[i] {
			return false
		}
	}
	return true
}

// Verify checks sig against msg under p.
func (p PublicKey) Verify(sig Signature, msg []byte) bool {
	var s blst.P2Affine
	return s.VerifyCompressed(sig.raw, true, p.raw, true, msg, dst)
}

// SecretKeyShare is one participant's share of the group secret.
type SecretKeyShare struct {
	index int
	sk    *blst.SecretKey
}

// Index is the 1-based participant index this share was evaluated at.
func (s SecretKeyShare) Index() int { return s.index }

// Sign produces a signature share over msg.
func (s SecretKeyShare) Sign(msg []byte) Signature {
	sig := new(blst.P2Affine).Sign(s.sk, msg, dst)
	return Signature{raw: sig.Compress()}
}

// PublicKeyShare returns the public key corresponding to this share,
// usable to verify it in isolation (e.g. to pin blame for an invalid
// share before combine fails outright).
func (s SecretKeyShare) PublicKeyShare() PublicKey {
	pk := new(blst.P1Affine).From(s.sk)
	return PublicKey{raw: pk.Compress()}
}

// SecretKeySet is the dealer-side polynomial: coefficients[0] is the group
// secret, coefficients[1:] randomise it so that any `threshold+1` shares
// reconstruct it but `threshold` do not.
type SecretKeySet struct {
	threshold    int
	coefficients []*big.Int // len == threshold+1, each < groupOrder
}

// Random creates a fresh (threshold, n) secret key set: threshold+1 points
// are required to reconstruct the group secret. rng is injected per §9 —
// never read from a global source.
func Random(threshold int, rng io.Reader) (*SecretKeySet, error) {
	if threshold < 0 {
		return nil, ErrInvalidThreshold
	}
	coeffs := make([]*big.Int, threshold+1)
	for i := range coeffs {
		c, err := randScalar(rng)
		if err != nil {
			return nil, err
		}
		coeffs[i] = c
	}
	return &SecretKeySet{threshold: threshold, coefficients: coeffs}, nil
}

func randScalar(rng io.Reader) (*big.Int, error) {
	buf := make([]byte, 48) // oversample, then reduce mod r to avoid bias
	if _, err := io.ReadFull(rng, buf); err != nil {
		return nil, err
	}
	n := new(big.Int).SetBytes(buf)
	return n.Mod(n, groupOrder), nil
}

// Threshold returns the configured threshold.
func (s *SecretKeySet) Threshold() int { return s.threshold }

// SecretKeyShare evaluates the polynomial at participant index (1-based;
// index 0 is reserved for the group secret itself and must never be
// handed out as a share).
func (s *SecretKeySet) SecretKeyShare(index int) (SecretKeyShare, error) {
	if index < 1 {
		return SecretKeyShare{}, fmt.Errorf("bls: share index must be >= 1, got %d", index)
	}
	val := evalPoly(s.coefficients, big.NewInt(int64(index)))
	sk, err := scalarToSecretKey(val)
	if err != nil {
		return SecretKeyShare{}, err
	}
	return SecretKeyShare{index: index, sk: sk}, nil
}

// PublicKeySet derives the public commitments to each coefficient, which
// is all that's needed to verify shares and combine signatures without
// ever reconstructing the group secret.
func (s *SecretKeySet) PublicKeySet() (*PublicKeySet, error) {
	commitments := make([]*blst.P1, len(s.coefficients))
	for i, c := range s.coefficients {
		sk, err := scalarToSecretKey(c)
		if err != nil {
			return nil, err
		}
		pk := new(blst.P1Affine).From(sk)
		commitments[i] = new(blst.P1).FromAffine(pk)
	}
	return &PublicKeySet{threshold: s.threshold, commitments: commitments}, nil
}

func evalPoly(coeffs []*big.Int, x *big.Int) *big.Int {
	// Horner's method, mod groupOrder.
	acc := new(big.Int)
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc.Mul(acc, x)
		acc.Add(acc, coeffs[i])
		acc.Mod(acc, groupOrder)
	}
	return acc
}

func scalarToSecretKey(v *big.Int) (*blst.SecretKey, error) {
	var be [32]byte
	v.FillBytes(be[:])
	sk := new(blst.SecretKey).Deserialize(be[:])
	if sk == nil {
		return nil, fmt.Errorf("bls: invalid scalar")
	}
	return sk, nil
}

// PublicKeySet is the verifier-side view: commitments to each coefficient
// of the dealer's polynomial, in G1.
type PublicKeySet struct {
	threshold   int
	commitments []*blst.P1
}

// Threshold returns the configured threshold; Threshold()+1 shares are
// needed to combine.
func (p *PublicKeySet) Threshold() int { return p.threshold }

// PublicKey returns the group's overall public key (the constant term of
// the committed polynomial).
func (p *PublicKeySet) PublicKey() PublicKey {
	aff := p.commitments[0].ToAffine()
	return PublicKey{raw: aff.Compress()}
}

// PublicKeyShare returns the public key corresponding to participant
// index's share, by evaluating the committed polynomial in G1.
func (p *PublicKeySet) PublicKeyShare(index int) (PublicKey, error) {
	if index < 1 {
		return PublicKey{}, fmt.Errorf("bls: share index must be >= 1, got %d", index)
	}
	x := big.NewInt(int64(index))
	acc := new(blst.P1) // identity
	xPow := big.NewInt(1)
	for _, c := range p.commitments {
		term := mulP1(c, xPow)
		acc = acc.Add(term)
		xPow = new(big.Int).Mod(new(big.Int).Mul(xPow, x), groupOrder)
	}
	aff := acc.ToAffine()
	return PublicKey{raw: aff.Compress()}, nil
}

func mulP1(p *blst.P1, scalar *big.Int) *blst.P1 {
	var be [32]byte
	scalar.FillBytes(be[:])
	dup := new(blst.P1).Add(p)
	return dup.Mult(be[:], 256)
}

// IndexedSignature pairs a share's 1-based index with the signature it
// produced, the unit CombineSignatures consumes.
type IndexedSignature struct {
	Index     int
	Signature Signature
}

// CombineSignatures reconstructs the full threshold signature from
// threshold+1 or more shares via Lagrange interpolation at x=0, performed
// in the exponent (linear combination of the G2 signature points — never
// reconstructs the group secret key).
func (p *PublicKeySet) CombineSignatures(shares []IndexedSignature) (Signature, error) {
	if len(shares) < p.threshold+1 {
		return Signature{}, ErrNotEnoughShares
	}
	seen := make(map[int]bool, len(shares))
	xs := make([]*big.Int, 0, len(shares))
	for _, s := range shares {
		if seen[s.Index] {
			return Signature{}, ErrDuplicateShareIndex
		}
		seen[s.Index] = true
		xs = append(xs, big.NewInt(int64(s.Index)))
	}

	acc := new(blst.P2) // identity element
	for i, s := range shares {
		lambda := lagrangeCoefficientAtZero(xs, i)
		var sigAff blst.P2Affine
		if sigAff.Uncompress(s.Signature.raw) == nil {
			return Signature{}, ErrInvalidSignatureShare
		}
		point := new(blst.P2).FromAffine(&sigAff)
		acc = acc.Add(mulP2(point, lambda))
	}
	return Signature{raw: acc.ToAffine().Compress()}, nil
}

func mulP2(p *blst.P2, scalar *big.Int) *blst.P2 {
	scalar = new(big.Int).Mod(scalar, groupOrder)
	var be [32]byte
	scalar.FillBytes(be[:])
	dup := new(blst.P2).Add(p)
	return dup.Mult(be[:], 256)
}

// lagrangeCoefficientAtZero computes the i-th Lagrange basis polynomial
// evaluated at x=0, mod groupOrder: prod_{j != i} (0 - x_j) / (x_i - x_j).
func lagrangeCoefficientAtZero(xs []*big.Int, i int) *big.Int {
	num := big.NewInt(1)
	den := big.NewInt(1)
	for j, xj := range xs {
		if j == i {
			continue
		}
		num.Mul(num, new(big.Int).Neg(xj))
		num.Mod(num, groupOrder)

		diff := new(big.Int).Sub(xs[i], xj)
		diff.Mod(diff, groupOrder)
		den.Mul(den, diff)
		den.Mod(den, groupOrder)
	}
	denInv := new(big.Int).ModInverse(den, groupOrder)
	return num.Mul(num, denInv).Mod(num, groupOrder)
}

// HashPayload canonically digests a serialised payload before it is
// signed/verified (see section.canonicalJSON). Kept here because it is
// the one piece of "what exactly gets signed" that the BLS layer must
// agree with the rest of the core on.
func HashPayload(b []byte) []byte {
	h := blake2b.Sum256(b)
	return h[:]
}
