package gossip

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// dedupCapacity bounds memory use. The TTL is checked only when an id is
// looked up; expired ids stay in the cache until the LRU evicts them.
const dedupCapacity = 200_000

// envelopeTTL is how long an envelope id is remembered. A re-receipt
// within this window is silently dropped.
const envelopeTTL = 10 * time.Minute

// DedupCache is the envelope-id dedup contract a Transport needs: report
// whether an id has been seen before, recording it if not. Dedup
// satisfies this with an in-process LRU; RedisDedup satisfies it with a
// cache shared across every node in a cluster, for deployments where
// nodes are restarted often enough that a cold local cache would let
// through envelopes the cluster has already processed.
type DedupCache interface {
	SeenOrRecord(id string) bool
}

// Dedup is the bounded, TTL-based envelope-id cache described by the
// transport's dedup contract: first receipt delivers (and relays if
// broadcast), re-receipt within the TTL is dropped.
type Dedup struct {
	mu    sync.Mutex
	cache *lru.Cache
}

type dedupEntry struct {
	expiresAt time.Time
}

// NewDedup builds an empty dedup cache.
func NewDedup() *Dedup {
	c, _ := lru.New(dedupCapacity)
	return &Dedup{cache: c}
}

// SeenOrRecord reports whether id has already been recorded within its
// TTL window. If not, it records id and returns false (i.e. "not seen
// before, go ahead and deliver it").
func (d *Dedup) SeenOrRecord(id string) bool {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()

	if v, ok := d.cache.Get(id); ok {
		entry := v.(dedupEntry)
		if now.Before(entry.expiresAt) {
			return true
		}
	}
	d.cache.Add(id, dedupEntry{expiresAt: now.Add(envelopeTTL)})
	return false
}
