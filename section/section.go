package section

import (
	"github.com/tos-network/gsection/bls"
	"github.com/tos-network/gsection/xorname"
)

// Section is the local view of one network section: its current elder
// roster, the proof chain backing that roster, and the membership table
// of every peer known to belong to it (§3, §4.5).
type Section struct {
	members    *SectionPeers
	eldersInfo Proven[EldersInfo]
	chain      *SectionProofChain
}

// New assembles a Section from already-proven components, rejecting the
// combination if eldersInfo doesn't verify against chain.
func New(eldersInfo Proven[EldersInfo], chain *SectionProofChain, members *SectionPeers) (*Section, error) {
	if !eldersInfo.Verify(chain) {
		return nil, ErrUntrustedMessage
	}
	return &Section{members: members, eldersInfo: eldersInfo, chain: chain}, nil
}

// FirstNode builds the genesis section containing only founder, signed
// locally with sk (the genesis node's threshold-0 key share — see
// bls.SecretKeySet.Random with threshold 0).
func FirstNode(founder Peer, sk bls.SecretKeyShare) (*Section, error) {
	prefix := xorname.NewPrefix(0, xorname.XorName{})
	info, err := NewEldersInfo(map[xorname.XorName]Peer{founder.Name: founder}, prefix, 0)
	if err != nil {
		return nil, err
	}
	infoProof, err := signProof(sk, info)
	if err != nil {
		return nil, err
	}
	provenInfo := NewProven(info, infoProof)
	chain := NewSectionProofChain(infoProof.PublicKey)

	members := NewSectionPeers()
	memberInfo := MemberInfo{Peer: founder, State: PeerJoined, SignedAtKeyIndex: 0}
	memberProof, err := signProof(sk, memberInfo)
	if err != nil {
		return nil, err
	}
	members.Update(NewProven(memberInfo, memberProof), chain)

	return &Section{members: members, eldersInfo: provenInfo, chain: chain}, nil
}

func signProof(sk bls.SecretKeyShare, v interface{}) (Proof, error) {
	b, err := canonicalJSON(v)
	if err != nil {
		return Proof{}, err
	}
	msg := bls.HashPayload(b)
	return Proof{PublicKey: sk.PublicKeyShare(), Signature: sk.Sign(msg)}, nil
}

// Prefix returns the section's current name prefix.
func (s *Section) Prefix() xorname.Prefix { return s.eldersInfo.Value.Prefix }

// EldersInfo returns the current proven elder roster.
func (s *Section) EldersInfo() Proven[EldersInfo] { return s.eldersInfo }

// Chain returns the section's proof chain.
func (s *Section) Chain() *SectionProofChain { return s.chain }

// Members returns every active (non-Left) member, name-sorted.
func (s *Section) Members() []Peer { return s.members.ActiveMembers() }

// Adults returns members eligible for elder promotion, name-sorted.
func (s *Section) Adults() []Peer { return s.members.Adults() }

// IsElder reports whether name is in the current elder roster.
func (s *Section) IsElder(name xorname.XorName) bool { return s.eldersInfo.Value.Contains(name) }

// IsAdultOrElder reports whether name is a known, non-departed member.
func (s *Section) IsAdultOrElder(name xorname.XorName) bool {
	m, ok := s.members.Get(name)
	return ok && m.Value.State != PeerLeft
}

// FindMemberFromAddr looks up an active member by network address.
func (s *Section) FindMemberFromAddr(addr string) (Peer, bool) {
	for _, p := range s.members.ActiveMembers() {
		if p.Address == addr {
			return p, true
		}
	}
	return Peer{}, false
}

// MemberAge returns name's current age, if it is a known member.
func (s *Section) MemberAge(name xorname.XorName) (uint8, bool) {
	m, ok := s.members.Get(name)
	if !ok {
		return 0, false
	}
	return m.Value.Peer.Age, true
}

// UpdateMember accepts a proven membership change if its proof verifies
// against the section's chain, folding it in via SectionPeers' normal
// supersession rule (§4.4).
func (s *Section) UpdateMember(info Proven[MemberInfo]) bool {
	return s.members.Update(info, s.chain)
}

// UpdateChain merges an externally received proof chain into ours.
func (s *Section) UpdateChain(other *SectionProofChain) error {
	return s.chain.Merge(other)
}

// UpdateElders accepts a new proven elder roster once its backing chain
// has been merged in, replacing the current roster only if it is
// strictly newer by chain position (and, at equal chain position, by
// version; at equal chain position and version, by having more elders)
// — see DESIGN.md's Open Question resolution for why Version is the
// first tie-break rather than elder count.
func (s *Section) UpdateElders(newInfo Proven[EldersInfo], newChain *SectionProofChain) error {
	if err := s.chain.Merge(newChain); err != nil {
		return err
	}
	if !newInfo.Verify(s.chain) {
		return ErrUntrustedMessage
	}
	newPrefix := newInfo.Value.Prefix
	if newPrefix != s.Prefix() && !newPrefix.IsExtensionOf(s.Prefix()) {
		return ErrInvalidMessage
	}
	if s.eldersInfo.Verify(s.chain) {
		ourIdx, _ := s.chain.IndexOf(s.eldersInfo.Proof.PublicKey)
		theirIdx, _ := s.chain.IndexOf(newInfo.Proof.PublicKey)
		if theirIdx < ourIdx {
			return nil
		}
		if theirIdx == ourIdx {
			theirVer, ourVer := newInfo.Value.Version, s.eldersInfo.Value.Version
			if theirVer < ourVer {
				return nil
			}
			if theirVer == ourVer && len(newInfo.Value.Elders) <= len(s.eldersInfo.Value.Elders) {
				return nil
			}
		}
	}
	s.eldersInfo = newInfo
	s.members.RemoveNotMatchingOurPrefix(s.Prefix())
	return nil
}

// CreateProofChainForOurInfo returns the shortest chain suffix, starting
// no later than fromKeyIndex, that still proves the current EldersInfo
// (§4.5 create_proof_chain_for_our_info).
func (s *Section) CreateProofChainForOurInfo(fromKeyIndex int) *SectionProofChain {
	idx, ok := s.chain.IndexOf(s.eldersInfo.Proof.PublicKey)
	if !ok || fromKeyIndex < idx {
		idx = fromKeyIndex
	}
	return s.chain.Slice(idx)
}

// elderCandidates computes the up-to-size oldest eligible peers for the
// current prefix, preferring already-serving elders (§4.5).
func (s *Section) elderCandidates(size int) []Peer {
	return s.members.ElderCandidatesMatchingPrefix(size, s.Prefix(), s.eldersInfo.Value.Elders)
}

// PromoteAndDemoteElders recomputes the elder candidate set for this
// section and reports it alongside whether it differs from the current
// roster — callers propose the result through the consensus collaborator
// rather than applying it directly (§4.5).
func (s *Section) PromoteAndDemoteElders(elderSize int) ([]Peer, bool) {
	candidates := s.elderCandidates(elderSize)
	if peersEqual(candidates, s.eldersInfo.Value.Peers()) {
		return nil, false
	}
	return candidates, true
}

func peersEqual(a, b []Peer) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[xorname.XorName]bool, len(a))
	for _, p := range a {
		seen[p.Name] = true
	}
	for _, p := range b {
		if !seen[p.Name] {
			return false
		}
	}
	return true
}

// TrySplit reports whether this section's two candidate children (by
// pushing a 0 or 1 bit onto the current prefix) would each end up with at
// least recommendedSize active members (§4.6).
func (s *Section) TrySplit(recommendedSize int) (xorname.Prefix, xorname.Prefix, bool) {
	prefix := s.Prefix()
	p0 := prefix.Pushed(false)
	p1 := prefix.Pushed(true)
	var c0, c1 int
	for _, p := range s.members.ActiveMembers() {
		if p0.Matches(p.Name) {
			c0++
		} else {
			c1++
		}
	}
	if c0 >= recommendedSize && c1 >= recommendedSize {
		return p0, p1, true
	}
	return xorname.Prefix{}, xorname.Prefix{}, false
}

// MinimalSection is the reduced view of a Section gossiped over the wire
// (elder roster and chain, no full membership table) — see messages.Sync.
type MinimalSection struct {
	EldersInfo Proven[EldersInfo]
	Chain      *SectionProofChain
}

// ToMinimal extracts the gossip-sized view of this section.
func (s *Section) ToMinimal() MinimalSection {
	return MinimalSection{EldersInfo: s.eldersInfo, Chain: s.chain}
}

// Merge folds other into s: the chains are merged first (failing the
// whole merge if they conflict), then the newer EldersInfo is kept by
// chain position/version, then membership tables are unioned and pruned
// to the (possibly narrowed) resulting prefix (§4.4, P4).
func (s *Section) Merge(other *Section) error {
	if !other.chain.SelfVerify() {
		return ErrInvalidMessage
	}
	if err := s.chain.Merge(other.chain); err != nil {
		return err
	}
	if !other.eldersInfo.Verify(s.chain) {
		return ErrUntrustedMessage
	}
	if err := s.UpdateElders(other.eldersInfo, other.chain); err != nil {
		return err
	}
	s.members.Merge(other.members, s.chain)
	s.members.RemoveNotMatchingOurPrefix(s.Prefix())
	return nil
}
