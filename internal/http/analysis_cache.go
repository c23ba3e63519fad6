package http

import (
	"sync"
	"time"

	"blockbudget/internal/budget"
	"blockbudget/internal/cache"
	"blockbudget/internal/core"
)

// analysisCache memoises month analyses per user. Every invalidation bumps
// the user's generation, and an analysis computed under an older generation
// is never stored.
type analysisCache struct {
	lru *cache.LRUCache[budget.Analysis]

	mu          sync.Mutex
	generations map[string]uint64
}

func newAnalysisCache(size int, ttl time.Duration) *analysisCache {
	return &analysisCache{
		lru:         cache.NewLRUCache[budget.Analysis](size, ttl),
		generations: make(map[string]uint64),
	}
}

func (c *analysisCache) get(userID string, month core.Month) (budget.Analysis, bool) {
	return c.lru.Get(analysisKey(userID, month))
}

// generation must be read before the analysis is computed.
func (c *analysisCache) generation(userID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[userID]
}

// set stores a unless the user was invalidated since gen was read.
func (c *analysisCache) set(userID string, month core.Month, gen uint64, a budget.Analysis) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[userID] != gen {
		return false
	}
	c.lru.Set(analysisKey(userID, month), a)
	return true
}

// invalidate drops every cached month of the user and returns how many
// entries were removed.
func (c *analysisCache) invalidate(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[userID]++
	return c.lru.DeletePrefix(analysisKeyPrefix(userID))
}

func (c *analysisCache) size() int {
	return c.lru.Size()
}

func analysisKeyPrefix(userID string) string {
	return userID + "|"
}

func analysisKey(userID string, month core.Month) string {
	return analysisKeyPrefix(userID) + month.String()
}
