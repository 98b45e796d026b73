package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles short-lived locks around call submission.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

func submitLockKey(workspace, driverID string) string {
	return fmt.Sprintf("lock:submit:%s:%s", workspace, driverID)
}

// AcquireSubmitLock attempts to take the submission lock for a driver.
// Returns true if the lock was acquired, false if already held.
func (s *LockStore) AcquireSubmitLock(ctx context.Context, workspace, driverID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, submitLockKey(workspace, driverID), "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ReleaseSubmitLock releases the submission lock for a driver.
func (s *LockStore) ReleaseSubmitLock(ctx context.Context, workspace, driverID string) error {
	return s.client.Del(ctx, submitLockKey(workspace, driverID)).Err()
}
