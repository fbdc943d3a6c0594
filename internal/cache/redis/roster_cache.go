package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentfight/arena/internal/domain"
)

// rosterKey holds the cached eligible-agent id set as a JSON array.
const rosterKey = "roster:eligible"

// RosterCache implements domain.RosterCache on a single TTL'd Redis key. The
// selector refreshes it whenever it re-lists eligibility from the store.
type RosterCache struct {
	rdb *redis.Client
}

// NewRosterCache creates a RosterCache backed by the given Client.
func NewRosterCache(c *Client) *RosterCache {
	return &RosterCache{rdb: c.Underlying()}
}

var _ domain.RosterCache = (*RosterCache)(nil)

// GetEligible returns the cached id set. A missing or expired key is a miss,
// not an error.
func (rc *RosterCache) GetEligible(ctx context.Context) ([]string, bool, error) {
	data, err := rc.rdb.Get(ctx, rosterKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis: get roster: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		// A corrupt entry behaves like a miss; the next refresh overwrites it.
		return nil, false, nil
	}
	return ids, true, nil
}

// SetEligible replaces the cached id set with the given TTL.
func (rc *RosterCache) SetEligible(ctx context.Context, ids []string, ttl time.Duration) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("redis: marshal roster: %w", err)
	}
	if err := rc.rdb.Set(ctx, rosterKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set roster: %w", err)
	}
	return nil
}

// Invalidate drops the cached id set.
func (rc *RosterCache) Invalidate(ctx context.Context) error {
	if err := rc.rdb.Del(ctx, rosterKey).Err(); err != nil {
		return fmt.Errorf("redis: invalidate roster: %w", err)
	}
	return nil
}
