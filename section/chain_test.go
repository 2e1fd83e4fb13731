package section

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tos-network/gsection/bls"
)

type xorshiftReader struct{ state uint64 }

func newRNG(seed uint64) *xorshiftReader { return &xorshiftReader{state: seed} }

func (r *xorshiftReader) Read(p []byte) (int, error) {
	for i := range p {
		r.state ^= r.state << 13
		r.state ^= r.state >> 7
		r.state ^= r.state << 17
		p[i] = byte(r.state)
	}
	return len(p), nil
}

func genesisKey(t *testing.T, seed uint64) (bls.PublicKey, bls.SecretKeyShare) {
	t.Helper()
	set, err := bls.Random(0, newRNG(seed))
	require.NoError(t, err)
	share, err := set.SecretKeyShare(1)
	require.NoError(t, err)
	return share.PublicKeyShare(), share
}

func signKey(key bls.SecretKeyShare, next bls.PublicKey) bls.Signature {
	b, _ := canonicalJSON(next.Bytes())
	return key.Sign(bls.HashPayload(b))
}

func TestChainPushAndSelfVerify(t *testing.T) {
	k0pub, k0 := genesisKey(t, 1)
	k1pub, k1 := genesisKey(t, 2)

	chain := NewSectionProofChain(k0pub)
	assert.True(t, chain.SelfVerify())

	sig := signKey(k0, k1pub)
	assert.True(t, chain.Push(k1pub, sig))
	assert.True(t, chain.SelfVerify())
	assert.Equal(t, 2, chain.Len())
	assert.True(t, chain.HasKey(k0pub))
	assert.True(t, chain.HasKey(k1pub))

	_ = k1
}

func TestChainPushRejectsBadSignature(t *testing.T) {
	k0pub, k0 := genesisKey(t, 3)
	_, k1 := genesisKey(t, 4)
	k2pub, _ := genesisKey(t, 5)

	chain := NewSectionProofChain(k0pub)
	badSig := signKey(k1, k2pub) // signed by the wrong key
	assert.False(t, chain.Push(k2pub, badSig))
	assert.Equal(t, 1, chain.Len())
	_ = k0
}

func TestChainMergeExtendsWithNewLinks(t *testing.T) {
	k0pub, k0 := genesisKey(t, 10)
	k1pub, k1 := genesisKey(t, 11)
	k2pub, _ := genesisKey(t, 12)

	ours := NewSectionProofChain(k0pub)

	theirs := NewSectionProofChain(k0pub)
	require.True(t, theirs.Push(k1pub, signKey(k0, k1pub)))
	require.True(t, theirs.Push(k2pub, signKey(k1, k2pub)))

	require.NoError(t, ours.Merge(theirs))
	assert.Equal(t, 3, ours.Len())
	assert.True(t, ours.SelfVerify())
	assert.Equal(t, k2pub.Bytes(), ours.LastKey().Bytes())
}

func TestChainMergeIsIdempotent(t *testing.T) {
	k0pub, k0 := genesisKey(t, 20)
	k1pub, _ := genesisKey(t, 21)

	ours := NewSectionProofChain(k0pub)
	require.True(t, ours.Push(k1pub, signKey(k0, k1pub)))

	before := ours.Len()
	require.NoError(t, ours.Merge(ours.Slice(0)))
	assert.Equal(t, before, ours.Len())
}

func TestChainMergeRejectsDisjointHistory(t *testing.T) {
	k0pub, _ := genesisKey(t, 30)
	other0pub, _ := genesisKey(t, 31)

	ours := NewSectionProofChain(k0pub)
	theirs := NewSectionProofChain(other0pub)

	err := ours.Merge(theirs)
	assert.ErrorIs(t, err, ErrInvalidChainExtension)
}

func TestChainCheckTrust(t *testing.T) {
	k0pub, _ := genesisKey(t, 40)
	other0pub, _ := genesisKey(t, 41)

	chain := NewSectionProofChain(k0pub)
	assert.True(t, chain.CheckTrust([]bls.PublicKey{k0pub}))
	assert.False(t, chain.CheckTrust([]bls.PublicKey{other0pub}))
}

func TestChainJSONRoundTrip(t *testing.T) {
	k0pub, k0 := genesisKey(t, 50)
	k1pub, _ := genesisKey(t, 51)

	chain := NewSectionProofChain(k0pub)
	require.True(t, chain.Push(k1pub, signKey(k0, k1pub)))

	b, err := json.Marshal(chain)
	require.NoError(t, err)

	decoded := &SectionProofChain{}
	require.NoError(t, json.Unmarshal(b, decoded))
	assert.True(t, decoded.SelfVerify())
	assert.Equal(t, chain.Len(), decoded.Len())
	assert.True(t, decoded.HasKey(k1pub))
}
