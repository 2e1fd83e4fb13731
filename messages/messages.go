// Package messages implements the C8 variant taxonomy and trust check:
// the routing-message envelope exchanged between nodes, and the rule for
// deciding whether an incoming one is trustworthy before it reaches the
// stage machine or the section core. Grounded on
// original_source/src/messages.rs (variant shape) and
// original_source/src/chain/section_proof_chain.rs's trust predicate.
package messages

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tos-network/gsection/bls"
	"github.com/tos-network/gsection/consensus"
	"github.com/tos-network/gsection/relocation"
	"github.com/tos-network/gsection/section"
	"github.com/tos-network/gsection/xorname"
)

var (
	// ErrMalformedMessage is a protocol error (reported, not fatal) for a
	// message whose signature doesn't match its own claimed payload.
	ErrMalformedMessage = errors.New("messages: signature does not match payload")
	// ErrUntrustedMessage means the attached proof chain shares no key
	// with the recipient's chain (§4.6): the message is silently dropped.
	ErrUntrustedMessage = errors.New("messages: proof chain shares no key with ours")
)

func canonicalJSON(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("messages: canonical encode: %w", err)
	}
	return b, nil
}

// GenesisPfxInfo is the full section snapshot a joining node receives
// once approved: enough chain and elder-roster state to seed its own
// Section (§4.7 Joining, NodeApproval).
type GenesisPfxInfo struct {
	EldersInfo section.Proven[section.EldersInfo]
	Chain      *section.SectionProofChain
}

// Variant is implemented by every message payload the core understands
// (§4.6). The marker method keeps the set closed to this package.
type Variant interface {
	isVariant()
}

// NeighbourInfo reports a (possibly new) EldersInfo for a neighbouring
// section; the recipient votes on it if it hasn't seen that version.
type NeighbourInfo struct {
	Info section.EldersInfo
}

// NodeApproval is the terminal message of the joining handshake.
type NodeApproval struct {
	Genesis GenesisPfxInfo
}

// Sync propagates the sender's latest chain and EldersInfo to adults.
type Sync struct {
	Section section.MinimalSection
}

// GenesisUpdate is Sync's genesis-time counterpart, sent right after
// NodeApproval so the new adult's view matches the section's exactly.
type GenesisUpdate struct {
	Section section.MinimalSection
}

// Relocate asks the recipient to change identity per the attached
// proven details.
type Relocate struct {
	Details section.Proven[relocation.RelocateDetails]
}

// RelocatePromise is sent by a relocating node's destination-to-be,
// promising to admit the new identity once it arrives.
type RelocatePromise struct {
	Details section.Proven[relocation.RelocateDetails]
}

// BootstrapRequest carries the name a fresh or relocating node wants to
// join under.
type BootstrapRequest struct {
	TargetName xorname.XorName
}

// BootstrapResponseJoin is the lightweight half of BootstrapResponse:
// enough to start a JoinRequest handshake.
type BootstrapResponseJoin struct {
	EldersInfo section.EldersInfo
	SectionKey bls.PublicKey
}

// BootstrapResponseRebootstrap asks the node to retry against a new set
// of addresses (e.g. the contacted node is not in the right section).
type BootstrapResponseRebootstrap struct {
	Addresses []string
}

// JoinRequest is sent to each elder of the section a node wants to join.
type JoinRequest struct {
	EldersVersion   uint64
	RelocatePayload *relocation.RelocatePayload
}

// MessageSignature carries one elder's signature share toward a
// consensus decision (§6 consensus collaborator contract).
type MessageSignature struct {
	Topic       consensus.Topic
	PayloadHash []byte
	Share       bls.IndexedSignature
}

// MemberKnowledge is the monotone (elders_version, parsec_version) pair
// adults report to elders, letting elders compute the minimal proof
// chain a given adult already trusts.
type MemberKnowledge struct {
	EldersVersion uint64
	ParsecVersion uint64
}

// Update returns the element-wise maximum of k and other — MemberKnowledge
// only ever moves forward.
func (k MemberKnowledge) Update(other MemberKnowledge) MemberKnowledge {
	return MemberKnowledge{
		EldersVersion: maxUint64(k.EldersVersion, other.EldersVersion),
		ParsecVersion: maxUint64(k.ParsecVersion, other.ParsecVersion),
	}
}

func maxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func (NeighbourInfo) isVariant()                {}
func (NodeApproval) isVariant()                 {}
func (Sync) isVariant()                         {}
func (GenesisUpdate) isVariant()                {}
func (Relocate) isVariant()                     {}
func (RelocatePromise) isVariant()               {}
func (BootstrapRequest) isVariant()             {}
func (BootstrapResponseJoin) isVariant()        {}
func (BootstrapResponseRebootstrap) isVariant() {}
func (JoinRequest) isVariant()                  {}
func (MessageSignature) isVariant()             {}
func (MemberKnowledge) isVariant()              {}

// Envelope is a Variant plus the proof chain backing it, the unit
// actually exchanged over comm (§4.6).
type Envelope struct {
	Variant    Variant
	ProofChain *section.SectionProofChain
}

// IsTrusted reports whether e's proof chain shares at least one key with
// ourChain (§4.6 check_trust). Untrusted envelopes must be dropped by the
// caller, not routed to the stage machine.
func (e Envelope) IsTrusted(ourChain *section.SectionProofChain) bool {
	for _, k := range e.ProofChain.Keys() {
		if ourChain.HasKey(k) {
			return true
		}
	}
	return false
}

// wireEnvelope is Envelope's tagged-union wire shape: Variant has no
// natural JSON encoding of its own (it's a closed interface, not a
// struct), so the tag names which concrete type Payload decodes as.
type wireEnvelope struct {
	Tag        string                 `json:"tag"`
	Payload    json.RawMessage        `json:"payload"`
	ProofChain *section.SectionProofChain `json:"proof_chain"`
}

var ErrUnknownVariantTag = errors.New("messages: unrecognised envelope tag")

func variantTag(v Variant) (string, error) {
	switch v.(type) {
	case NeighbourInfo:
		return "neighbour_info", nil
	case NodeApproval:
		return "node_approval", nil
	case Sync:
		return "sync", nil
	case GenesisUpdate:
		return "genesis_update", nil
	case Relocate:
		return "relocate", nil
	case RelocatePromise:
		return "relocate_promise", nil
	case BootstrapRequest:
		return "bootstrap_request", nil
	case BootstrapResponseJoin:
		return "bootstrap_response_join", nil
	case BootstrapResponseRebootstrap:
		return "bootstrap_response_rebootstrap", nil
	case JoinRequest:
		return "join_request", nil
	case MessageSignature:
		return "message_signature", nil
	case MemberKnowledge:
		return "member_knowledge", nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownVariantTag, v)
	}
}

// EncodeEnvelope produces the bytes sent over a comm.Conn frame.
func EncodeEnvelope(e Envelope) ([]byte, error) {
	tag, err := variantTag(e.Variant)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(e.Variant)
	if err != nil {
		return nil, fmt.Errorf("messages: encode payload: %w", err)
	}
	return json.Marshal(wireEnvelope{Tag: tag, Payload: payload, ProofChain: e.ProofChain})
}

// DecodeEnvelope reverses EncodeEnvelope, dispatching on the wire tag to
// reconstruct the concrete Variant.
func DecodeEnvelope(b []byte) (Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(b, &wire); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	var variant Variant
	switch wire.Tag {
	case "neighbour_info":
		var v NeighbourInfo
		if err := json.Unmarshal(wire.Payload, &v); err != nil {
			return Envelope{}, err
		}
		variant = v
	case "node_approval":
		var v NodeApproval
		if err := json.Unmarshal(wire.Payload, &v); err != nil {
			return Envelope{}, err
		}
		variant = v
	case "sync":
		var v Sync
		if err := json.Unmarshal(wire.Payload, &v); err != nil {
			return Envelope{}, err
		}
		variant = v
	case "genesis_update":
		var v GenesisUpdate
		if err := json.Unmarshal(wire.Payload, &v); err != nil {
			return Envelope{}, err
		}
		variant = v
	case "relocate":
		var v Relocate
		if err := json.Unmarshal(wire.Payload, &v); err != nil {
			return Envelope{}, err
		}
		variant = v
	case "relocate_promise":
		var v RelocatePromise
		if err := json.Unmarshal(wire.Payload, &v); err != nil {
			return Envelope{}, err
		}
		variant = v
	case "bootstrap_request":
		var v BootstrapRequest
		if err := json.Unmarshal(wire.Payload, &v); err != nil {
			return Envelope{}, err
		}
		variant = v
	case "bootstrap_response_join":
		var v BootstrapResponseJoin
		if err := json.Unmarshal(wire.Payload, &v); err != nil {
			return Envelope{}, err
		}
		variant = v
	case "bootstrap_response_rebootstrap":
		var v BootstrapResponseRebootstrap
		if err := json.Unmarshal(wire.Payload, &v); err != nil {
			return Envelope{}, err
		}
		variant = v
	case "join_request":
		var v JoinRequest
		if err := json.Unmarshal(wire.Payload, &v); err != nil {
			return Envelope{}, err
		}
		variant = v
	case "message_signature":
		var v MessageSignature
		if err := json.Unmarshal(wire.Payload, &v); err != nil {
			return Envelope{}, err
		}
		variant = v
	case "member_knowledge":
		var v MemberKnowledge
		if err := json.Unmarshal(wire.Payload, &v); err != nil {
			return Envelope{}, err
		}
		variant = v
	default:
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownVariantTag, wire.Tag)
	}

	return Envelope{Variant: variant, ProofChain: wire.ProofChain}, nil
}
