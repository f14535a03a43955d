package llm

import (
	"sync"
	"time"

	"github.com/Veraticus/cardwise/internal/merchant"
)

const defaultProposalTTL = 15 * time.Minute

// proposalCache remembers oracle proposals by normalized merchant name.
// Expired entries are dropped on read and swept whenever the cache has grown
// past its high-water mark, so it needs no background goroutine.
type proposalCache struct {
	entries   map[string]proposal
	now       func() time.Time
	ttl       time.Duration
	highWater int
	mu        sync.Mutex
}

type proposal struct {
	result  merchant.OracleResult
	expires time.Time
}

func newProposalCache(ttl time.Duration) *proposalCache {
	if ttl <= 0 {
		ttl = defaultProposalTTL
	}
	return &proposalCache{
		entries:   make(map[string]proposal),
		now:       time.Now,
		ttl:       ttl,
		highWater: 256,
	}
}

func (c *proposalCache) get(key string) (merchant.OracleResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.entries[key]
	if !ok {
		return merchant.OracleResult{}, false
	}
	if !c.now().Before(p.expires) {
		delete(c.entries, key)
		return merchant.OracleResult{}, false
	}
	return p.result, true
}

func (c *proposalCache) set(key string, result merchant.OracleResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = proposal{result: result, expires: now.Add(c.ttl)}

	if len(c.entries) > c.highWater {
		for k, p := range c.entries {
			if !now.Before(p.expires) {
				delete(c.entries, k)
			}
		}
		// Live entries set the next sweep point.
		if n := 2 * len(c.entries); n > c.highWater {
			c.highWater = n
		}
	}
}

func (c *proposalCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
