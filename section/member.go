package section

import (
	"sort"

	"github.com/tos-network/gsection/xorname"
)

// PeerState is a member's lifecycle state (§3). States form a one-way
// precedence order used to resolve concurrent updates at the same chain
// index: Joined < Left < Relocated.
type PeerState int

const (
	PeerJoined PeerState = iota
	PeerLeft
	PeerRelocated
)

func (s PeerState) String() string {
	switch s {
	case PeerJoined:
		return "Joined"
	case PeerLeft:
		return "Left"
	case PeerRelocated:
		return "Relocated"
	default:
		return "Unknown"
	}
}

// rank returns the tie-break precedence of s: higher ranks win when two
// updates for the same peer land at the same SignedAtKeyIndex (§4.4).
func (s PeerState) rank() int { return int(s) }

// MemberInfo is a Peer plus its lifecycle state and the proof-chain index
// at which that state was signed (§3).
type MemberInfo struct {
	Peer             Peer      `json:"peer"`
	State            PeerState `json:"state"`
	SignedAtKeyIndex uint64    `json:"signed_at_key_index"`
}

// supersedes reports whether m should replace existing at the same name,
// per §4.4's merge rule: higher SignedAtKeyIndex always wins; ties are
// broken by state precedence (Joined < Left < Relocated).
func (m MemberInfo) supersedes(existing MemberInfo) bool {
	if m.SignedAtKeyIndex != existing.SignedAtKeyIndex {
		return m.SignedAtKeyIndex > existing.SignedAtKeyIndex
	}
	return m.State.rank() > existing.State.rank()
}

// SectionPeers holds one Proven[MemberInfo] per known member, keyed by
// name. It is the mutable membership half of Section (§3, §4.4).
type SectionPeers struct {
	members map[xorname.XorName]Proven[MemberInfo]
}

// NewSectionPeers returns an empty member set.
func NewSectionPeers() *SectionPeers {
	return &SectionPeers{members: make(map[xorname.XorName]Proven[MemberInfo])}
}

// Update inserts info if it verifies against chain and supersedes any
// existing entry for its name (or if there is none). Returns whether the
// set changed. A proof that does not verify under any key in chain is
// rejected outright (§4.4 update, acceptance policy item 1).
func (s *SectionPeers) Update(info Proven[MemberInfo], chain *SectionProofChain) bool {
	if !info.Verify(chain) {
		return false
	}
	name := info.Value.Peer.Name
	existing, ok := s.members[name]
	if ok && !info.Value.supersedes(existing.Value) {
		return false
	}
	s.members[name] = info
	return true
}

// Merge folds other's entries into s using the same supersession rule as
// Update, for each name independently, rejecting any entry whose proof
// does not verify under chain (§4.4 merge).
func (s *SectionPeers) Merge(other *SectionPeers, chain *SectionProofChain) {
	for _, info := range other.members {
		s.Update(info, chain)
	}
}

// Get returns the member entry for name, if present.
func (s *SectionPeers) Get(name xorname.XorName) (Proven[MemberInfo], bool) {
	info, ok := s.members[name]
	return info, ok
}

// All returns every member, sorted by name for determinism.
func (s *SectionPeers) All() []Proven[MemberInfo] {
	out := make([]Proven[MemberInfo], 0, len(s.members))
	for _, info := range s.members {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Value.Peer.Name.Cmp(out[j].Value.Peer.Name) < 0
	})
	return out
}

// Adults returns members in the Joined state with age > MinAge, sorted by
// name — candidates for elder promotion (§4.5).
func (s *SectionPeers) Adults() []Peer {
	var out []Peer
	for _, info := range s.All() {
		m := info.Value
		if m.State == PeerJoined && m.Peer.Age > MinAge {
			out = append(out, m.Peer)
		}
	}
	return out
}

// ActiveMembers returns every member not in the Left state, sorted by
// name.
func (s *SectionPeers) ActiveMembers() []Peer {
	var out []Peer
	for _, info := range s.All() {
		if info.Value.State != PeerLeft {
			out = append(out, info.Value.Peer)
		}
	}
	return out
}

// ElderCandidatesMatchingPrefix returns up to size of the oldest active
// peers matching prefix (§4.5 elder_candidates), ordered by age
// descending; at equal age, peers already in current come first, then
// lower names for determinism.
func (s *SectionPeers) ElderCandidatesMatchingPrefix(size int, prefix xorname.Prefix, current map[xorname.XorName]Peer) []Peer {
	var pool []Peer
	for _, info := range s.All() {
		m := info.Value
		if m.State == PeerLeft {
			continue
		}
		if !prefix.Matches(m.Peer.Name) {
			continue
		}
		pool = append(pool, m.Peer)
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Age != pool[j].Age {
			return pool[i].Age > pool[j].Age
		}
		_, iCurrent := current[pool[i].Name]
		_, jCurrent := current[pool[j].Name]
		if iCurrent != jCurrent {
			return iCurrent
		}
		return pool[i].Name.Cmp(pool[j].Name) < 0
	})
	if len(pool) > size {
		pool = pool[:size]
	}
	return pool
}

// RemoveNotMatchingOurPrefix drops every member not matching prefix,
// returning the count removed (§4.5, run after a successful split).
func (s *SectionPeers) RemoveNotMatchingOurPrefix(prefix xorname.Prefix) int {
	removed := 0
	for name := range s.members {
		if !prefix.Matches(name) {
			delete(s.members, name)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked members.
func (s *SectionPeers) Len() int { return len(s.members) }
