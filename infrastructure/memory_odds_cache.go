package infrastructure

import (
	"context"
	"sync"
	"time"

	"gambler/settlement/domain/entities"
)

// MemoryOddsCache is the single-process odds cache used without Redis
type MemoryOddsCache struct {
	mu      sync.RWMutex
	entries map[string]memoryOddsEntry
	now     func() time.Time
}

type memoryOddsEntry struct {
	quotes    []entities.OddsQuote
	expiresAt time.Time
}

// NewMemoryOddsCache creates an in-process odds cache
func NewMemoryOddsCache() *MemoryOddsCache {
	return &MemoryOddsCache{
		entries: make(map[string]memoryOddsEntry),
		now:     time.Now,
	}
}

// Get returns unexpired quotes for eventID
func (c *MemoryOddsCache) Get(_ context.Context, eventID string) ([]entities.OddsQuote, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[eventID]
	c.mu.RUnlock()

	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false, nil
	}
	return append([]entities.OddsQuote(nil), entry.quotes...), true, nil
}

// Set stores quotes for ttl, dropping expired entries on the way
func (c *MemoryOddsCache) Set(_ context.Context, eventID string, quotes []entities.OddsQuote, ttl time.Duration) error {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, id)
		}
	}
	c.entries[eventID] = memoryOddsEntry{
		quotes:    append([]entities.OddsQuote(nil), quotes...),
		expiresAt: now.Add(ttl),
	}
	return nil
}
