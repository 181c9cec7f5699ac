package engine

import (
	"container/list"
	"time"
)

const (
	// DefaultDedupCapacity bounds the number of fingerprints the dedup
	// cache holds before evicting the least recently used.
	DefaultDedupCapacity = 1000

	// DefaultDedupTTL is how long a cached verdict answers for repeats of
	// the same fingerprint.
	DefaultDedupTTL = 100 * time.Millisecond
)

// DedupCache short-circuits repeat classification of hot statements within
// a TTL. It is not goroutine-safe: the owner scopes one cache to one call
// path (a session, a worker) or guards it externally.
type DedupCache struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time

	lru   *list.List
	index map[string]*list.Element
}

type dedupEntry struct {
	fingerprint string
	verdict     *Verdict
	storedAt    time.Time
}

// NewDedupCache builds a cache with the given capacity and TTL.
// Non-positive values fall back to the defaults.
func NewDedupCache(capacity int, ttl time.Duration) *DedupCache {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &DedupCache{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		lru:      list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

// GetOrCompute returns the cached verdict for the fingerprint while the
// entry is fresh. A miss or an expired entry runs compute, stores the
// result with a fresh timestamp, and returns it.
func (d *DedupCache) GetOrCompute(fingerprint string, compute func() *Verdict) *Verdict {
	if el, ok := d.index[fingerprint]; ok {
		entry := el.Value.(*dedupEntry)
		if d.now().Sub(entry.storedAt) < d.ttl {
			d.lru.MoveToFront(el)
			return entry.verdict
		}
		entry.verdict = compute()
		entry.storedAt = d.now()
		d.lru.MoveToFront(el)
		return entry.verdict
	}

	verdict := compute()
	el := d.lru.PushFront(&dedupEntry{fingerprint: fingerprint, verdict: verdict, storedAt: d.now()})
	d.index[fingerprint] = el
	if d.lru.Len() > d.capacity {
		oldest := d.lru.Back()
		d.lru.Remove(oldest)
		delete(d.index, oldest.Value.(*dedupEntry).fingerprint)
	}
	return verdict
}

// Len returns the number of cached fingerprints.
func (d *DedupCache) Len() int { return d.lru.Len() }
