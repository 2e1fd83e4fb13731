package msgfilter

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// PendingBootstraps tracks the destination address a bootstrap request
// was last sent to, keyed by a caller-chosen string (stage.Node uses one
// fixed key, as it has a single outstanding bootstrap at a time), so a
// rebootstrap retry (after BOOTSTRAP_TIMEOUT — see config.
// DefaultBootstrapTimeout) can tell whether it is still waiting on the
// same destination or has moved on to a new one. Entries expire after ttl
// even if never explicitly removed, bounding memory from peers that
// vanish mid-handshake.
type PendingBootstraps struct {
	mu    sync.Mutex
	cache *lru.Cache
	ttl   time.Duration
	now   func() time.Time
}

type pendingEntry struct {
	destination string
	expiresAt   time.Time
}

// NewPendingBootstraps creates a size-bounded, ttl-expiring pending-set.
func NewPendingBootstraps(size int, ttl time.Duration) (*PendingBootstraps, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &PendingBootstraps{cache: cache, ttl: ttl, now: time.Now}, nil
}

// Add records that key is waiting on a bootstrap response from
// destination, resetting its expiry.
func (p *PendingBootstraps) Add(key, destination string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.Add(key, pendingEntry{destination: destination, expiresAt: p.now().Add(p.ttl)})
}

// Get returns the destination key is pending against, if any and not
// expired. An expired entry is evicted as a side effect.
func (p *PendingBootstraps) Get(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.cache.Get(key)
	if !ok {
		return "", false
	}
	entry := v.(pendingEntry)
	if p.now().After(entry.expiresAt) {
		p.cache.Remove(key)
		return "", false
	}
	return entry.destination, true
}

// Remove drops key's pending entry, e.g. once its bootstrap completes.
func (p *PendingBootstraps) Remove(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.Remove(key)
}

// Len returns the number of entries currently tracked (including any not
// yet lazily expired).
func (p *PendingBootstraps) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache.Len()
}
