package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tos-network/gsection/bls"
	"github.com/tos-network/gsection/section"
	"github.com/tos-network/gsection/xorname"
)

type xorshiftReader struct{ state uint64 }

func newRNG(seed uint64) *xorshiftReader { return &xorshiftReader{state: seed*2 + 1} }

func (r *xorshiftReader) Read(p []byte) (int, error) {
	for i := range p {
		r.state ^= r.state << 13
		r.state ^= r.state >> 7
		r.state ^= r.state << 17
		p[i] = byte(r.state)
	}
	return len(p), nil
}

func genesisShare(t *testing.T, seed uint64) bls.SecretKeyShare {
	t.Helper()
	set, err := bls.Random(0, newRNG(seed))
	require.NoError(t, err)
	share, err := set.SecretKeyShare(1)
	require.NoError(t, err)
	return share
}

func TestMemberKnowledgeUpdateIsMonotone(t *testing.T) {
	a := MemberKnowledge{EldersVersion: 3, ParsecVersion: 10}
	b := MemberKnowledge{EldersVersion: 1, ParsecVersion: 20}

	merged := a.Update(b)
	assert.Equal(t, uint64(3), merged.EldersVersion)
	assert.Equal(t, uint64(20), merged.ParsecVersion)
}

func TestEnvelopeIsTrustedWhenChainsShareAKey(t *testing.T) {
	share := genesisShare(t, 1)
	pub := share.PublicKeyShare()

	ourChain := section.NewSectionProofChain(pub)
	theirChain := section.NewSectionProofChain(pub)

	env := Envelope{Variant: BootstrapRequest{TargetName: xorname.XorName{}}, ProofChain: theirChain}
	assert.True(t, env.IsTrusted(ourChain))
}

func TestEnvelopeIsUntrustedWhenChainsAreDisjoint(t *testing.T) {
	ourShare := genesisShare(t, 2)
	theirShare := genesisShare(t, 3)

	ourChain := section.NewSectionProofChain(ourShare.PublicKeyShare())
	theirChain := section.NewSectionProofChain(theirShare.PublicKeyShare())

	env := Envelope{Variant: BootstrapRequest{TargetName: xorname.XorName{}}, ProofChain: theirChain}
	assert.False(t, env.IsTrusted(ourChain))
}

func TestEnvelopeEncodeDecodeRoundTrip(t *testing.T) {
	share := genesisShare(t, 42)
	chain := section.NewSectionProofChain(share.PublicKeyShare())

	env := Envelope{
		Variant:    JoinRequest{EldersVersion: 7},
		ProofChain: chain,
	}

	b, err := EncodeEnvelope(env)
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(b)
	require.NoError(t, err)
	assert.Equal(t, JoinRequest{EldersVersion: 7}, decoded.Variant)
	assert.Equal(t, chain.Keys(), decoded.ProofChain.Keys())
}

func TestDecodeEnvelopeRejectsUnknownTag(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"tag":"not_a_real_variant","payload":{}}`))
	assert.ErrorIs(t, err, ErrUnknownVariantTag)
}

func TestVariantsImplementInterface(t *testing.T) {
	var variants = []Variant{
		NeighbourInfo{},
		NodeApproval{},
		Sync{},
		GenesisUpdate{},
		Relocate{},
		RelocatePromise{},
		BootstrapRequest{},
		BootstrapResponseJoin{},
		BootstrapResponseRebootstrap{},
		JoinRequest{},
		MessageSignature{},
		MemberKnowledge{},
	}
	assert.Len(t, variants, 12)
}
