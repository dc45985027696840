package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockTTL bounds how long a crashed holder can block the slot.
const DefaultLockTTL = 2 * time.Minute

// releaseScript deletes the lock only if we still own it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// TurnLock keeps one primary request in flight per save slot across
// processes.
type TurnLock struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
}

// NewTurnLock creates a lock for a slot, owned by a fresh token.
func NewTurnLock(client *redis.Client, slot string, ttl time.Duration) *TurnLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &TurnLock{
		client: client,
		key:    LockKey(slot),
		owner:  uuid.NewString(),
		ttl:    ttl,
	}
}

// LockKey returns the redis key guarding a slot.
func LockKey(slot string) string {
	return "narration:lock:" + slot
}

// Acquire returns true if the lock was taken, false if someone else holds it.
func (l *TurnLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire turn lock: %w", err)
	}
	return ok, nil
}

// Release drops the lock if this holder still owns it.
func (l *TurnLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err(); err != nil {
		return fmt.Errorf("failed to release turn lock: %w", err)
	}
	return nil
}
