package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gambler/settlement/domain/entities"

	"github.com/redis/go-redis/v9"
)

func oddsKey(eventID string) string { return "settlement:odds:event:" + eventID }

// RedisOddsCache stores normalized quotes as JSON with a TTL
type RedisOddsCache struct {
	client *redis.Client
}

// NewRedisOddsCache creates a Redis-backed odds cache
func NewRedisOddsCache(client *redis.Client) *RedisOddsCache {
	return &RedisOddsCache{client: client}
}

// Get returns the cached quotes for eventID
func (c *RedisOddsCache) Get(ctx context.Context, eventID string) ([]entities.OddsQuote, bool, error) {
	data, err := c.client.Get(ctx, oddsKey(eventID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached odds: %w", err)
	}

	var quotes []entities.OddsQuote
	if err := json.Unmarshal(data, &quotes); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached odds: %w", err)
	}
	return quotes, true, nil
}

// Set stores quotes for ttl
func (c *RedisOddsCache) Set(ctx context.Context, eventID string, quotes []entities.OddsQuote, ttl time.Duration) error {
	data, err := json.Marshal(quotes)
	if err != nil {
		return fmt.Errorf("failed to encode odds: %w", err)
	}
	if err := c.client.Set(ctx, oddsKey(eventID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache odds: %w", err)
	}
	return nil
}
