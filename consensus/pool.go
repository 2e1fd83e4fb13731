package consensus

import (
	"encoding/hex"
	"sync"

	"github.com/tos-network/gsection/bls"
)

type targetKey struct {
	topic Topic
	hash  string // hex(payloadHash), the value being voted on at topic
}

type instanceKey struct {
	topic Topic
}

// Pool accumulates BLS signature shares for proposed values and combines
// them into a single threshold signature once enough distinct shares for
// the same (topic, payloadHash) have arrived, mirroring the teacher's
// VotePool shape (vote-per-target, equivocation tracked per-instance).
type Pool struct {
	mu sync.RWMutex

	pubKeySet *bls.PublicKeySet

	sharesByTarget map[targetKey]map[int]bls.Signature
	votedPayload   map[instanceKey]map[int]string
}

// NewPool creates a share pool that verifies and combines against
// pubKeySet.
func NewPool(pubKeySet *bls.PublicKeySet) *Pool {
	return &Pool{
		pubKeySet:      pubKeySet,
		sharesByTarget: make(map[targetKey]map[int]bls.Signature),
		votedPayload:   make(map[instanceKey]map[int]string),
	}
}

// RequiredShares returns the number of distinct shares needed to combine.
func (p *Pool) RequiredShares() int {
	return p.pubKeySet.Threshold() + 1
}

// AddShare validates share against the share-index's public key and
// records it. Returns false (no error) for a duplicate of a vote already
// recorded; returns ErrEquivocation if index previously signed a
// different payloadHash under the same topic; returns ErrInvalidShare if
// the share doesn't verify.
func (p *Pool) AddShare(topic Topic, payloadHash []byte, share bls.IndexedSignature) (bool, error) {
	shareKey, err := p.pubKeySet.PublicKeyShare(share.Index)
	if err != nil || !shareKey.Verify(share.Signature, payloadHash) {
		return false, ErrInvalidShare
	}

	target := targetKey{topic: topic, hash: hex.EncodeToString(payloadHash)}
	instance := instanceKey{topic: topic}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.votedPayload[instance] == nil {
		p.votedPayload[instance] = make(map[int]string)
	}
	if prev, ok := p.votedPayload[instance][share.Index]; ok {
		if prev != target.hash {
			return false, ErrEquivocation
		}
		if existing, ok := p.sharesByTarget[target]; ok {
			if _, exists := existing[share.Index]; exists {
				return false, nil
			}
		}
	}
	p.votedPayload[instance][share.Index] = target.hash

	if p.sharesByTarget[target] == nil {
		p.sharesByTarget[target] = make(map[int]bls.Signature)
	}
	p.sharesByTarget[target][share.Index] = share.Signature
	return true, nil
}

// Count returns the number of distinct shares recorded for (topic, payloadHash).
func (p *Pool) Count(topic Topic, payloadHash []byte) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	target := targetKey{topic: topic, hash: hex.EncodeToString(payloadHash)}
	return len(p.sharesByTarget[target])
}

// Combine reconstructs the threshold signature for (topic, payloadHash) if
// enough shares have been collected.
func (p *Pool) Combine(topic Topic, payloadHash []byte) (bls.Signature, bool, error) {
	p.mu.RLock()
	target := targetKey{topic: topic, hash: hex.EncodeToString(payloadHash)}
	shares := p.sharesByTarget[target]
	if len(shares) < p.RequiredShares() {
		p.mu.RUnlock()
		return bls.Signature{}, false, nil
	}
	indexed := make([]bls.IndexedSignature, 0, len(shares))
	for idx, sig := range shares {
		indexed = append(indexed, bls.IndexedSignature{Index: idx, Signature: sig})
	}
	p.mu.RUnlock()

	sig, err := p.pubKeySet.CombineSignatures(indexed)
	if err != nil {
		return bls.Signature{}, false, err
	}
	return sig, true, nil
}

// PruneTopic drops all share data for topic, once its decision has
// resolved (combined, or superseded by a newer round).
func (p *Pool) PruneTopic(topic Topic) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for target := range p.sharesByTarget {
		if target.topic == topic {
			delete(p.sharesByTarget, target)
		}
	}
	delete(p.votedPayload, instanceKey{topic: topic})
}
