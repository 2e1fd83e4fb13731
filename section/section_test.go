package section

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstNodeProducesSelfVerifyingSection(t *testing.T) {
	_, share := genesisKey(t, 100)
	founder := NewPeer(nameWithByte0(0x01), "127.0.0.1:9000", MinAge)

	sec, err := FirstNode(founder, share)
	require.NoError(t, err)

	assert.True(t, sec.EldersInfo().SelfVerify())
	assert.True(t, sec.IsElder(founder.Name))
	assert.Equal(t, 1, sec.Chain().Len())

	members := sec.Members()
	assert.Len(t, members, 1)
	assert.Equal(t, founder.Name, members[0].Name)
}

func TestSectionUpdateMemberRejectsUntrustedKey(t *testing.T) {
	_, share := genesisKey(t, 101)
	founder := NewPeer(nameWithByte0(0x01), "127.0.0.1:9000", MinAge)
	sec, err := FirstNode(founder, share)
	require.NoError(t, err)

	_, otherShare := genesisKey(t, 102)
	newPeer := NewPeer(nameWithByte0(0x02), "127.0.0.1:9001", MinAge)
	info := MemberInfo{Peer: newPeer, State: PeerJoined, SignedAtKeyIndex: 0}
	proof, err := signProof(otherShare, info)
	require.NoError(t, err)

	accepted := sec.UpdateMember(NewProven(info, proof))
	assert.False(t, accepted)
}

func TestSectionUpdateMemberAcceptsTrustedKey(t *testing.T) {
	_, share := genesisKey(t, 103)
	founder := NewPeer(nameWithByte0(0x01), "127.0.0.1:9000", MinAge)
	sec, err := FirstNode(founder, share)
	require.NoError(t, err)

	newPeer := NewPeer(nameWithByte0(0x02), "127.0.0.1:9001", MinAge+1)
	info := MemberInfo{Peer: newPeer, State: PeerJoined, SignedAtKeyIndex: 0}
	proof, err := signProof(share, info)
	require.NoError(t, err)

	accepted := sec.UpdateMember(NewProven(info, proof))
	assert.True(t, accepted)
	assert.True(t, sec.IsAdultOrElder(newPeer.Name))
}

func TestTrySplitRequiresBothChildrenAboveRecommendedSize(t *testing.T) {
	_, share := genesisKey(t, 104)
	founder := NewPeer(nameWithByte0(0x00), "127.0.0.1:9000", MinAge)
	sec, err := FirstNode(founder, share)
	require.NoError(t, err)

	// Populate one side (bit0=0) with three extra peers, leave the other
	// side (bit0=1) empty: split should not trigger.
	for i := byte(1); i <= 3; i++ {
		p := NewPeer(nameWithByte0(i), "x", MinAge+1)
		info := MemberInfo{Peer: p, State: PeerJoined, SignedAtKeyIndex: 0}
		proof, _ := signProof(share, info)
		require.True(t, sec.UpdateMember(NewProven(info, proof)))
	}
	_, _, split := sec.TrySplit(2)
	assert.False(t, split)

	// Now add peers on the other side (bit0=1, i.e. byte with high bit set).
	for i := byte(0x81); i <= 0x83; i++ {
		p := NewPeer(nameWithByte0(i), "y", MinAge+1)
		info := MemberInfo{Peer: p, State: PeerJoined, SignedAtKeyIndex: 0}
		proof, _ := signProof(share, info)
		require.True(t, sec.UpdateMember(NewProven(info, proof)))
	}
	p0, p1, split := sec.TrySplit(2)
	assert.True(t, split)
	assert.True(t, p0.Matches(nameWithByte0(0x01)))
	assert.True(t, p1.Matches(nameWithByte0(0x81)))
}

func TestPromoteAndDemoteElders(t *testing.T) {
	_, share := genesisKey(t, 105)
	founder := NewPeer(nameWithByte0(0x00), "127.0.0.1:9000", MinAge)
	sec, err := FirstNode(founder, share)
	require.NoError(t, err)

	older := NewPeer(nameWithByte0(0x05), "127.0.0.1:9001", MinAge+10)
	info := MemberInfo{Peer: older, State: PeerJoined, SignedAtKeyIndex: 0}
	proof, _ := signProof(share, info)
	require.True(t, sec.UpdateMember(NewProven(info, proof)))

	candidates, changed := sec.PromoteAndDemoteElders(1)
	require.True(t, changed)
	require.Len(t, candidates, 1)
	assert.Equal(t, older.Name, candidates[0].Name)
}

func TestSectionMergeUnionsMembers(t *testing.T) {
	_, share := genesisKey(t, 106)
	founder := NewPeer(nameWithByte0(0x00), "127.0.0.1:9000", MinAge)
	ours, err := FirstNode(founder, share)
	require.NoError(t, err)

	theirs, err := FirstNode(founder, share)
	require.NoError(t, err)

	extra := NewPeer(nameWithByte0(0x07), "127.0.0.1:9002", MinAge+1)
	info := MemberInfo{Peer: extra, State: PeerJoined, SignedAtKeyIndex: 0}
	proof, _ := signProof(share, info)
	require.True(t, theirs.UpdateMember(NewProven(info, proof)))

	require.NoError(t, ours.Merge(theirs))
	assert.True(t, ours.IsAdultOrElder(extra.Name))
	assert.Len(t, ours.Members(), 2)
}

func TestSectionMergeRejectsMemberSignedByUntrustedKey(t *testing.T) {
	_, share := genesisKey(t, 108)
	founder := NewPeer(nameWithByte0(0x00), "127.0.0.1:9000", MinAge)
	ours, err := FirstNode(founder, share)
	require.NoError(t, err)

	theirs, err := FirstNode(founder, share)
	require.NoError(t, err)

	_, otherShare := genesisKey(t, 109)
	forged := NewPeer(nameWithByte0(0x09), "127.0.0.1:9003", MinAge+1)
	info := MemberInfo{Peer: forged, State: PeerJoined, SignedAtKeyIndex: 0}
	proof, err := signProof(otherShare, info)
	require.NoError(t, err)
	theirs.members.members[forged.Name] = NewProven(info, proof)

	require.NoError(t, ours.Merge(theirs))
	assert.False(t, ours.IsAdultOrElder(forged.Name))
	assert.Len(t, ours.Members(), 1)
}

