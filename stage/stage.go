// Package stage implements the per-node bootstrap/join state machine
// (§4.7, component C6): Bootstrapping -> Joining -> Adult -> Elder, with
// a Terminated sink for fatal errors. Grounded on
// original_source/src/stage.rs (the same four-state shape) and
// original_source/src/bootstrap.rs for idempotent bootstrap-response
// handling. Transitions are pure, synchronous methods on Node — §5's
// single-threaded cooperative event loop lives in cmd/gsectiond, which
// feeds this state machine one message or timer tick at a time and never
// calls into it concurrently.
package stage

import (
	"errors"
	"io"
	"time"

	"github.com/tos-network/gsection/bls"
	"github.com/tos-network/gsection/config"
	"github.com/tos-network/gsection/messages"
	"github.com/tos-network/gsection/msgfilter"
	"github.com/tos-network/gsection/relocation"
	"github.com/tos-network/gsection/section"
	"github.com/tos-network/gsection/xorname"
)

// Stage is the node's current role in the network.
type Stage int

const (
	Bootstrapping Stage = iota
	Joining
	Adult
	Elder
	Terminated
)

func (s Stage) String() string {
	switch s {
	case Bootstrapping:
		return "Bootstrapping"
	case Joining:
		return "Joining"
	case Adult:
		return "Adult"
	case Elder:
		return "Elder"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

var (
	ErrUnsolicitedResponse = errors.New("stage: response from a destination we have no pending request for")
	ErrUnexpectedMessage   = errors.New("stage: message does not apply to the current stage")
	ErrNotReady            = errors.New("stage: section not yet initialised")
	// ErrElderSetAdvanced signals that the approving section's elders_version
	// moved on since our JoinRequest; the caller should restart the join
	// against Node.JoiningEldersInfo rather than treat this as fatal.
	ErrElderSetAdvanced = errors.New("stage: advertised elders_version advanced past our request, restart join")
)

const pendingBootstrapKey = "bootstrap"

// Node is one participant's view of its own place in the network. It
// owns no goroutines and no network sockets — those belong to
// cmd/gsectiond, which drives Node by calling its methods as messages and
// timer ticks arrive.
type Node struct {
	Stage Stage

	Name     xorname.XorName
	Address  string
	Identity bls.SecretKeyShare // single-signer key used before becoming a BLS share-holding elder
	Contacts []string

	// RelocateDetails is non-nil when this bootstrap is a relocation
	// rather than a fresh join (§4.7 Bootstrapping(relocate?)).
	RelocateDetails *section.Proven[relocation.RelocateDetails]

	rng     io.Reader
	pending *msgfilter.PendingBootstraps

	// Populated once a BootstrapResponseJoin is accepted.
	JoiningEldersInfo      section.EldersInfo
	JoiningSectionKey      bls.PublicKey
	joiningRelocatePayload *relocation.RelocatePayload

	// Populated once NodeApproval seeds our Section (Adult onward).
	Section *section.Section
}

// NewNode constructs a fresh Bootstrapping-stage node. rng is injected
// per §9 and used for every relocation name draw this node performs.
func NewNode(name xorname.XorName, address string, identity bls.SecretKeyShare, contacts []string, relocateDetails *section.Proven[relocation.RelocateDetails], rng io.Reader) (*Node, error) {
	pending, err := msgfilter.NewPendingBootstraps(4, config.DefaultBootstrapTimeout)
	if err != nil {
		return nil, err
	}
	return &Node{
		Stage:           Bootstrapping,
		Name:            name,
		Address:         address,
		Identity:        identity,
		Contacts:        contacts,
		RelocateDetails: relocateDetails,
		rng:             rng,
		pending:         pending,
	}, nil
}

// SendBootstrapRequest builds the request to transmit to addr, and marks
// addr as the pending destination — a later response from any other
// address is dropped as unsolicited (§4.7).
func (n *Node) SendBootstrapRequest(addr string) messages.BootstrapRequest {
	target := n.Name
	if n.RelocateDetails != nil {
		target = n.RelocateDetails.Value.Destination
	}
	n.pending.Add(pendingBootstrapKey, addr)
	return messages.BootstrapRequest{TargetName: target}
}

// BootstrapTimedOut reports whether the node is Bootstrapping with no
// live pending request: either none has been sent yet, or the last one
// has exceeded config.DefaultBootstrapTimeout (§4.7's 20s cap). Callers
// poll this from their timer tick and call SendBootstrapRequest again if
// it returns true.
func (n *Node) BootstrapTimedOut() bool {
	_, ok := n.pending.Get(pendingBootstrapKey)
	return n.Stage == Bootstrapping && !ok
}

// HandleRebootstrap records a fresh contact address set and returns the
// node to Bootstrapping, from either Bootstrapping (still waiting) or
// Joining (elder told us to start over). It sends nothing itself; the
// caller issues the new bootstrap request.
func (n *Node) HandleRebootstrap(from string, resp messages.BootstrapResponseRebootstrap) error {
	if n.Stage == Bootstrapping {
		if dest, ok := n.pending.Get(pendingBootstrapKey); !ok || dest != from {
			return ErrUnsolicitedResponse
		}
		n.pending.Remove(pendingBootstrapKey)
	}
	n.Contacts = resp.Addresses
	n.Stage = Bootstrapping
	return nil
}

// HandleBootstrapJoin accepts a BootstrapResponseJoin, builds a
// relocation identity if relocating, and returns the JoinRequest to send
// to every elder in the advertised section (§4.7 Bootstrapping step 1-3).
// A duplicate response for an already-advanced node is silently ignored
// (nil, nil) rather than erroring, per the idempotence requirement.
func (n *Node) HandleBootstrapJoin(from string, resp messages.BootstrapResponseJoin) (*messages.JoinRequest, error) {
	if n.Stage != Bootstrapping {
		return nil, nil
	}
	if dest, ok := n.pending.Get(pendingBootstrapKey); !ok || dest != from {
		return nil, ErrUnsolicitedResponse
	}
	n.pending.Remove(pendingBootstrapKey)

	if n.RelocateDetails != nil {
		bitCount := resp.EldersInfo.Prefix.BitCount + relocation.ExtraSplitCount
		if bitCount > xorname.NameBits {
			bitCount = xorname.NameBits
		}
		newPrefix := xorname.NewPrefix(bitCount, n.RelocateDetails.Value.Destination)
		newName, err := relocation.NewNameWithinPrefix(newPrefix, n.rng)
		if err != nil {
			return nil, err
		}
		payload, err := relocation.NewRelocatePayload(*n.RelocateDetails, newName, n.Identity)
		if err != nil {
			return nil, err
		}
		n.joiningRelocatePayload = &payload
		n.Name = newName
	}

	n.JoiningEldersInfo = resp.EldersInfo
	n.JoiningSectionKey = resp.SectionKey
	n.Stage = Joining

	return &messages.JoinRequest{
		EldersVersion:   resp.EldersInfo.Version,
		RelocatePayload: n.joiningRelocatePayload,
	}, nil
}

// HandleNodeApproval completes the joining handshake, seeding Section
// from the genesis snapshot and advancing to Adult. If the approving
// elders advanced past what we joined against, it records the newer
// roster and returns ErrElderSetAdvanced so the caller can resend a
// JoinRequest (§4.7 Joining).
func (n *Node) HandleNodeApproval(approval messages.NodeApproval) error {
	if n.Stage != Joining {
		return ErrUnexpectedMessage
	}
	if approval.Genesis.EldersInfo.Value.Version > n.JoiningEldersInfo.Version {
		n.JoiningEldersInfo = approval.Genesis.EldersInfo.Value
		return ErrElderSetAdvanced
	}

	sec, err := section.New(approval.Genesis.EldersInfo, approval.Genesis.Chain, section.NewSectionPeers())
	if err != nil {
		return err
	}
	n.Section = sec
	n.Stage = Adult
	return nil
}

// HandleSync folds a gossiped section snapshot into ours (Adult/Elder).
func (n *Node) HandleSync(sync messages.Sync) error {
	if n.Section == nil {
		return ErrNotReady
	}
	return n.Section.UpdateElders(sync.Section.EldersInfo, sync.Section.Chain)
}

// MaybePromote advances Adult to Elder once the current EldersInfo
// contains our own name (§4.7 Adult). Returns whether promotion occurred.
func (n *Node) MaybePromote() bool {
	if n.Stage != Adult || n.Section == nil {
		return false
	}
	if !n.Section.IsElder(n.Name) {
		return false
	}
	n.Stage = Elder
	return true
}

// Terminate moves the node to the sink state; no further transitions are
// valid afterward.
func (n *Node) Terminate() { n.Stage = Terminated }

// NextGossipTick and NextRTSummaryTick are the cadences an Elder-stage
// node's event loop schedules its periodic ticks at (§4.7 Timeouts):
// gossip every 2s, a routing-table summary every 15s. Exposed as
// durations (not timers) so the caller owns all actual scheduling.
func NextGossipTick() time.Duration    { return config.DefaultGossipInterval }
func NextRTSummaryTick() time.Duration { return config.DefaultRTSummaryInterval }
