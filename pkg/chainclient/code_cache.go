package chainclient

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// CodeCache remembers addresses known to hold contract code. Only positive results are
// stored since a contract may be deployed after a negative check.
type CodeCache struct {
	mu       sync.RWMutex
	cache    map[common.Address]time.Time
	cacheTTL time.Duration
}

// NewCodeCache creates a new code cache
func NewCodeCache(cacheTTL time.Duration) *CodeCache {
	return &CodeCache{
		cache:    make(map[common.Address]time.Time),
		cacheTTL: cacheTTL,
	}
}

// Get reports whether the address was seen with code within the TTL
func (c *CodeCache) Get(address common.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen, exists := c.cache[address]
	if !exists {
		return false
	}

	return time.Since(seen) <= c.cacheTTL
}

// Set records that the address holds code
func (c *CodeCache) Set(address common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[address] = time.Now()
}

// Clear removes all cached entries
func (c *CodeCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[common.Address]time.Time)
}

// Len returns the number of cached entries, expired ones included
func (c *CodeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
