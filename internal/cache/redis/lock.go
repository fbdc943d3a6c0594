package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/agentfight/arena/internal/domain"
)

// unlockLua deletes a lock key only if its value matches the caller's token,
// so one holder can never release another holder's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// refreshLua extends the TTL only while the caller still holds the lock.
const refreshLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// LockManager implements domain.LockManager using Redis SETNX with a TTL and
// token-checked Lua release/refresh. One arena process acquires the leader
// lock before driving the match cycle against the shared operator signer.
type LockManager struct {
	rdb       *redis.Client
	unlockSc  *redis.Script
	refreshSc *redis.Script

	mu     sync.Mutex
	tokens map[string]string
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:       c.Underlying(),
		unlockSc:  redis.NewScript(unlockLua),
		refreshSc: redis.NewScript(refreshLua),
		tokens:    make(map[string]string),
	}
}

var _ domain.LockManager = (*LockManager)(nil)

func lockKey(key string) string {
	return "lock:" + key
}

// Acquire attempts to take the lock for key with the given TTL. It reports
// false when another holder has it.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()

	ok, err := lm.rdb.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	lm.mu.Lock()
	lm.tokens[key] = token
	lm.mu.Unlock()
	return true, nil
}

// Release frees a lock this manager holds. Releasing a lock that was lost or
// never held is a no-op.
func (lm *LockManager) Release(ctx context.Context, key string) error {
	lm.mu.Lock()
	token, ok := lm.tokens[key]
	delete(lm.tokens, key)
	lm.mu.Unlock()
	if !ok {
		return nil
	}

	if err := lm.unlockSc.Run(ctx, lm.rdb, []string{lockKey(key)}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis: release lock %s: %w", key, err)
	}
	return nil
}

// Refresh extends the TTL of a held lock. It reports false when the lock was
// lost, in which case the holder must stop acting as leader.
func (lm *LockManager) Refresh(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	lm.mu.Lock()
	token, ok := lm.tokens[key]
	lm.mu.Unlock()
	if !ok {
		return false, nil
	}

	res, err := lm.refreshSc.Run(ctx, lm.rdb, []string{lockKey(key)}, token, ttl.Milliseconds()).Int64()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("redis: refresh lock %s: %w", key, err)
	}
	return res == 1, nil
}
