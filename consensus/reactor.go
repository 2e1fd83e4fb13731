package consensus

import "github.com/tos-network/gsection/bls"

// ShareBroadcaster is implemented by the networking layer adapter that
// gossips shares and the resulting combined proofs to the rest of the
// section (§6: "the core calls out to an injected consensus collaborator
// rather than gossiping signature shares itself").
type ShareBroadcaster interface {
	BroadcastShare(topic Topic, payloadHash []byte, share bls.IndexedSignature) error
	BroadcastProof(topic Topic, payloadHash []byte, sig bls.Signature) error
}

// Reactor glues share ingestion to proof assembly, transport-agnostic the
// same way the teacher's bft.Reactor is.
type Reactor struct {
	pool        *Pool
	broadcaster ShareBroadcaster
	onProof     func(topic Topic, payloadHash []byte, sig bls.Signature)
}

// NewReactor wires pool to broadcaster; onProof (optional) fires, and the
// combined proof is broadcast, on every HandleIncomingShare call that
// finds enough shares recorded for its topic/payloadHash. Calls after the
// first successful combine (including duplicate shares) fire again;
// nothing records that a proof was already delivered until PruneTopic
// drops the topic's shares.
func NewReactor(pool *Pool, broadcaster ShareBroadcaster, onProof func(Topic, []byte, bls.Signature)) *Reactor {
	return &Reactor{pool: pool, broadcaster: broadcaster, onProof: onProof}
}

// HandleIncomingShare records a share received from a peer, and completes
// + broadcasts the combined proof once enough shares have accumulated.
func (r *Reactor) HandleIncomingShare(topic Topic, payloadHash []byte, share bls.IndexedSignature) (bls.Signature, bool, error) {
	if _, err := r.pool.AddShare(topic, payloadHash, share); err != nil {
		return bls.Signature{}, false, err
	}
	sig, ok, err := r.pool.Combine(topic, payloadHash)
	if err != nil || !ok {
		return bls.Signature{}, false, err
	}
	if r.onProof != nil {
		r.onProof(topic, payloadHash, sig)
	}
	if r.broadcaster != nil {
		_ = r.broadcaster.BroadcastProof(topic, payloadHash, sig)
	}
	return sig, true, nil
}

// ProposeShare records our own share and gossips it onward.
func (r *Reactor) ProposeShare(topic Topic, payloadHash []byte, share bls.IndexedSignature) error {
	if _, err := r.pool.AddShare(topic, payloadHash, share); err != nil {
		return err
	}
	if r.broadcaster != nil {
		return r.broadcaster.BroadcastShare(topic, payloadHash, share)
	}
	return nil
}
