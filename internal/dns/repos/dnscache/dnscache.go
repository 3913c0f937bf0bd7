// Package dnscache is a TTL-aware in-memory store for upstream DNS answers,
// backed by an LRU so memory stays bounded even without expiry pressure.
package dnscache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"fwdns/internal/dns/common/clock"
	"fwdns/internal/dns/domain"
	"fwdns/internal/dns/services/resolver"
)

// entry is a timestamped snapshot of the answers for one question. The
// snapshot is the baseline: reads hand out decayed copies and never touch it.
type entry struct {
	records    []domain.ResourceRecord
	insertedAt time.Time
	expiresAt  time.Time
}

// Cache stores answer records keyed by question, decaying TTLs on read and
// treating entries past their capped lifetime as misses.
type Cache struct {
	lru    *lru.Cache[string, entry]
	clock  clock.Clock
	maxTTL uint32
}

// New returns a Cache holding at most size entries. maxTTL caps how long any
// answer is trusted, regardless of the TTL the upstream claimed.
func New(size int, maxTTL uint32, clk clock.Clock) (*Cache, error) {
	backing, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{
		lru:    backing,
		clock:  clk,
		maxTTL: maxTTL,
	}, nil
}

// Set stores a snapshot of records for the question, replacing any prior
// entry. An empty record set is a no-op: there is nothing worth caching.
// The entry lives for the minimum record TTL, capped at maxTTL; record TTLs
// above the cap are clamped so a served TTL never exceeds it either.
func (c *Cache) Set(q domain.Question, records []domain.ResourceRecord) {
	if len(records) == 0 {
		return
	}

	ttl := c.maxTTL
	snapshot := make([]domain.ResourceRecord, len(records))
	for i, rr := range records {
		cp := rr.Clone()
		if cp.TTL > c.maxTTL {
			cp.TTL = c.maxTTL
		}
		if cp.TTL < ttl {
			ttl = cp.TTL
		}
		snapshot[i] = cp
	}

	now := c.clock.Now()
	c.lru.Add(q.CacheKey(), entry{
		records:    snapshot,
		insertedAt: now,
		expiresAt:  now.Add(time.Duration(ttl) * time.Second),
	})
}

// Get returns a copy of the stored records with TTLs reduced by the whole
// seconds elapsed since insertion, floored at zero. Entries at or past their
// lifetime are removed and reported as a miss.
func (c *Cache) Get(q domain.Question) ([]domain.ResourceRecord, bool) {
	key := q.CacheKey()
	e, found := c.lru.Get(key)
	if !found {
		return nil, false
	}

	now := c.clock.Now()
	if !now.Before(e.expiresAt) {
		c.lru.Remove(key)
		return nil, false
	}

	elapsed := uint32(now.Sub(e.insertedAt) / time.Second)
	out := make([]domain.ResourceRecord, len(e.records))
	for i, rr := range e.records {
		cp := rr.Clone()
		if cp.TTL > elapsed {
			cp.TTL -= elapsed
		} else {
			cp.TTL = 0
		}
		out[i] = cp
	}
	return out, true
}

// Delete removes the entry for the given question.
func (c *Cache) Delete(q domain.Question) {
	c.lru.Remove(q.CacheKey())
}

// Len returns the number of entries currently stored.
func (c *Cache) Len() int {
	return c.lru.Len()
}

var _ resolver.Cache = (*Cache)(nil)
