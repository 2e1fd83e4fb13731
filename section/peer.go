// Package section implements the section state machine: EldersInfo,
// SectionProofChain, MemberInfo/SectionPeers, and Section itself, per
// spec.md §3-§4 (components C2-C5). Grounded on
// original_source/src/section/section.rs, restructured around Go
// value types and the bls package's threshold signature wrapper.
package section

import (
	"encoding/json"
	"fmt"

	"github.com/tos-network/gsection/xorname"
)

// MinAge is the lowest age a Peer can have (NewPeer clamps to it). A
// member whose age is still MinAge is an infant; SectionPeers.Adults
// only counts members older than MinAge (§4.1).
const MinAge = 4

// Peer identifies one network participant.
type Peer struct {
	Name    xorname.XorName `json:"name"`
	Address string          `json:"address"`
	Age     uint8           `json:"age"`
}

// NewPeer constructs a Peer, clamping age to at least MinAge.
func NewPeer(name xorname.XorName, address string, age uint8) Peer {
	if age < MinAge {
		age = MinAge
	}
	return Peer{Name: name, Address: address, Age: age}
}

func (p Peer) String() string {
	return fmt.Sprintf("Peer{%s @ %s, age %d}", p.Name, p.Address, p.Age)
}

// canonicalJSON is the deterministic encoding used before every BLS
// signature (struct field order is fixed by the `json` tags above, and map
// keys below are always emitted pre-sorted by name). See §6: "Wire
// messages are serialised canonically ... so that signatures over
// serialised payloads are deterministic".
func canonicalJSON(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("section: canonical encode: %w", err)
	}
	return b, nil
}
