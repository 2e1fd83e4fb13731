package section

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/tos-network/gsection/xorname"
)

// ErrEmptyElderSet is returned by NewEldersInfo when no candidate matches
// the target prefix (§4.3).
var ErrEmptyElderSet = errors.New("section: elder set would be empty after filtering to prefix")

// EldersInfo is an immutable snapshot of a section's elder roster (§3).
// Elders is conceptually an ordered map XorName -> Peer; Go maps don't
// serialise deterministically, so canonical encoding goes through
// sortedPeers(), matching the Rust BTreeMap's natural sort order.
type EldersInfo struct {
	Elders  map[xorname.XorName]Peer `json:"-"`
	Prefix  xorname.Prefix           `json:"prefix"`
	Version uint64                   `json:"version"`
}

// NewEldersInfo filters candidates down to those matching prefix and
// fails with ErrEmptyElderSet if none remain (§4.3). version is assigned
// by the caller (+1 over the highest version seen in the causal parent).
func NewEldersInfo(candidates map[xorname.XorName]Peer, prefix xorname.Prefix, version uint64) (EldersInfo, error) {
	elders := make(map[xorname.XorName]Peer, len(candidates))
	for name, peer := range candidates {
		if prefix.Matches(name) {
			elders[name] = peer
		}
	}
	if len(elders) == 0 {
		return EldersInfo{}, ErrEmptyElderSet
	}
	return EldersInfo{Elders: elders, Prefix: prefix, Version: version}, nil
}

// sortedPeers returns the elders sorted by name, the canonical order used
// both for serialisation and for any deterministic iteration.
func (e EldersInfo) sortedPeers() []Peer {
	out := make([]Peer, 0, len(e.Elders))
	for _, p := range e.Elders {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name.Cmp(out[j].Name) < 0 })
	return out
}

// Peers returns the section's elders, name-sorted.
func (e EldersInfo) Peers() []Peer { return e.sortedPeers() }

// Contains reports whether name is one of this snapshot's elders.
func (e EldersInfo) Contains(name xorname.XorName) bool {
	_, ok := e.Elders[name]
	return ok
}

// Equal compares two EldersInfo values structurally — used by
// Section.merge/update_elders where Rust relies on #[derive(PartialEq)].
func (e EldersInfo) Equal(other EldersInfo) bool {
	if e.Prefix != other.Prefix || e.Version != other.Version {
		return false
	}
	if len(e.Elders) != len(other.Elders) {
		return false
	}
	for name, peer := range e.Elders {
		op, ok := other.Elders[name]
		if !ok || op != peer {
			return false
		}
	}
	return true
}

type eldersInfoWire struct {
	Elders  []Peer         `json:"elders"`
	Prefix  xorname.Prefix `json:"prefix"`
	Version uint64         `json:"version"`
}

// MarshalJSON produces the canonical (name-sorted) encoding signed over by
// Proven[EldersInfo].
func (e EldersInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(eldersInfoWire{Elders: e.sortedPeers(), Prefix: e.Prefix, Version: e.Version})
}

// UnmarshalJSON restores the map representation from the wire form.
func (e *EldersInfo) UnmarshalJSON(data []byte) error {
	var wire eldersInfoWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	elders := make(map[xorname.XorName]Peer, len(wire.Elders))
	for _, p := range wire.Elders {
		elders[p.Name] = p
	}
	e.Elders = elders
	e.Prefix = wire.Prefix
	e.Version = wire.Version
	return nil
}
