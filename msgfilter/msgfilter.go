// Package msgfilter implements the two caches the node's gossip path
// needs but the section core shouldn't own directly: a dedup Filter that
// drops messages already seen (so re-gossiped traffic isn't reprocessed),
// and PendingBootstraps, which re-tracks an in-flight bootstrap
// destination across a rebootstrap retry (§9 Open Question: "should
// pending_requests be reinstated" — decided yes, see DESIGN.md). New
// package: the teacher has no direct precedent for either cache, but uses
// both of their backing libraries elsewhere in the pack
// (consensus/dpos/snapshot.go's hashicorp/golang-lru ARCCache; fastcache
// and cespare/xxhash/v2 are carried in the teacher's go.mod from its trie
// package, which this module drops — see DESIGN.md).
package msgfilter

import (
	"encoding/binary"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/cespare/xxhash/v2"
)

// Filter deduplicates message payloads using their 64-bit xxhash digest
// as a compact fastcache key, so the cache never has to retain the
// message bytes themselves.
type Filter struct {
	cache *fastcache.Cache
}

// NewFilter creates a dedup filter backed by a fastcache.Cache sized to
// roughly maxBytes of memory.
func NewFilter(maxBytes int) *Filter {
	return &Filter{cache: fastcache.New(maxBytes)}
}

// Seen reports whether payload has been observed before, and — if it
// hasn't — records it so the next call returns true.
func (f *Filter) Seen(payload []byte) bool {
	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], xxhash.Sum64(payload))
	if f.cache.Has(key[:]) {
		return true
	}
	f.cache.Set(key[:], nil)
	return false
}

// Reset clears every recorded digest.
func (f *Filter) Reset() { f.cache.Reset() }
