package section

import (
	"encoding/json"

	"github.com/tos-network/gsection/bls"
)

// SectionProofChain is a non-empty, append-only sequence of section
// public keys: link 0 is the bare genesis key; link i>0's signature is
// produced by key[i-1] over key[i] (§3/§4.2). Keys and Sigs are kept as
// parallel slices: len(Sigs) == len(Keys)-1.
type SectionProofChain struct {
	keys []bls.PublicKey
	sigs []bls.Signature
}

// NewSectionProofChain creates a single-link chain with firstKey as its
// only (unsigned) genesis key.
func NewSectionProofChain(firstKey bls.PublicKey) *SectionProofChain {
	return &SectionProofChain{keys: []bls.PublicKey{firstKey}}
}

// Len returns the number of keys in the chain (>= 1).
func (c *SectionProofChain) Len() int { return len(c.keys) }

// LastKey returns the most recently appended key.
func (c *SectionProofChain) LastKey() bls.PublicKey { return c.keys[len(c.keys)-1] }

// Keys returns a copy of the chain's keys, oldest first.
func (c *SectionProofChain) Keys() []bls.PublicKey {
	out := make([]bls.PublicKey, len(c.keys))
	copy(out, c.keys)
	return out
}

// HasKey reports whether key is present anywhere in the chain.
func (c *SectionProofChain) HasKey(key bls.PublicKey) bool {
	_, ok := c.IndexOf(key)
	return ok
}

// IndexOf returns the stable index of key in the chain, if present.
func (c *SectionProofChain) IndexOf(key bls.PublicKey) (int, bool) {
	for i, k := range c.keys {
		if k.Equal(key) {
			return i, true
		}
	}
	return 0, false
}

// Push appends key to the chain, signed by the chain's current last key.
// Returns false (without modifying the chain) if sig does not verify.
func (c *SectionProofChain) Push(key bls.PublicKey, sig bls.Signature) bool {
	last := c.LastKey()
	b, err := canonicalJSON(key.Bytes())
	if err != nil {
		return false
	}
	if !last.Verify(sig, bls.HashPayload(b)) {
		return false
	}
	c.keys = append(c.keys, key)
	c.sigs = append(c.sigs, sig)
	return true
}

// SelfVerify reports whether every link's signature verifies under its
// predecessor key.
func (c *SectionProofChain) SelfVerify() bool {
	for i, sig := range c.sigs {
		prev := c.keys[i]
		next := c.keys[i+1]
		b, err := canonicalJSON(next.Bytes())
		if err != nil {
			return false
		}
		if !prev.Verify(sig, bls.HashPayload(b)) {
			return false
		}
	}
	return true
}

// Slice returns the shortest suffix of the chain starting at key index
// from (clamped to [0, Len()-1]), used to attach a minimum-length proof to
// an outbound message (§4.5 create_proof_chain_for_our_info).
func (c *SectionProofChain) Slice(from int) *SectionProofChain {
	if from < 0 {
		from = 0
	}
	if from >= len(c.keys) {
		from = len(c.keys) - 1
	}
	out := &SectionProofChain{
		keys: append([]bls.PublicKey(nil), c.keys[from:]...),
	}
	if from < len(c.sigs) {
		out.sigs = append([]bls.Signature(nil), c.sigs[from:]...)
	}
	return out
}

// CheckTrust holds iff any key in the chain is also in trustedKeys (§4.2).
func (c *SectionProofChain) CheckTrust(trustedKeys []bls.PublicKey) bool {
	for _, tk := range trustedKeys {
		if c.HasKey(tk) {
			return true
		}
	}
	return false
}

// Merge splices other onto c if they share a key, extending c in place.
// Fails with ErrInvalidChainExtension on disjoint or forked histories, and
// ErrUntrustedChainExtension if the spliced region doesn't self-verify
// (§4.2). Idempotent: merging the same (or a fully-contained) chain twice
// is a no-op the second time (P4).
func (c *SectionProofChain) Merge(other *SectionProofChain) error {
	commonSelfIdx, commonOtherIdx, found := findCommonKey(c.keys, other.keys)
	if !found {
		return ErrInvalidChainExtension
	}

	overlap := minInt(len(c.keys)-commonSelfIdx, len(other.keys)-commonOtherIdx)
	for off := 0; off < overlap; off++ {
		if !c.keys[commonSelfIdx+off].Equal(other.keys[commonOtherIdx+off]) {
			return ErrInvalidChainExtension
		}
	}

	extraStart := commonOtherIdx + overlap
	if extraStart >= len(other.keys) {
		// other brings nothing new; c already covers it (or is ahead).
		return nil
	}

	newKeys := append([]bls.PublicKey(nil), c.keys...)
	newSigs := append([]bls.Signature(nil), c.sigs...)
	newKeys = append(newKeys, other.keys[extraStart:]...)
	newSigs = append(newSigs, other.sigs[extraStart-1:]...)

	merged := &SectionProofChain{keys: newKeys, sigs: newSigs}
	if !merged.SelfVerify() {
		return ErrUntrustedChainExtension
	}

	c.keys = merged.keys
	c.sigs = merged.sigs
	return nil
}

type sectionProofChainWire struct {
	Keys []bls.PublicKey `json:"keys"`
	Sigs []bls.Signature `json:"sigs"`
}

// MarshalJSON/UnmarshalJSON expose the parallel slices directly — keys
// and sigs have no meaning independent of each other, so there's no
// canonical-payload concern here the way there is for EldersInfo's map.
func (c *SectionProofChain) MarshalJSON() ([]byte, error) {
	return json.Marshal(sectionProofChainWire{Keys: c.keys, Sigs: c.sigs})
}

func (c *SectionProofChain) UnmarshalJSON(data []byte) error {
	var wire sectionProofChainWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c.keys = wire.Keys
	c.sigs = wire.Sigs
	return nil
}

func findCommonKey(a, b []bls.PublicKey) (aIdx, bIdx int, found bool) {
	for i, ak := range a {
		for j, bk := range b {
			if ak.Equal(bk) {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
