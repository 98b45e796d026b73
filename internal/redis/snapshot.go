package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// driverCacheKey holds the whole driver cache snapshot as one JSON document.
const driverCacheKey = "driverCache"

// SnapshotStore persists the driver cache snapshot under a single key.
type SnapshotStore struct {
	client *redis.Client
	key    string
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(client *redis.Client) *SnapshotStore {
	return &SnapshotStore{client: client, key: driverCacheKey}
}

// Load returns the stored snapshot, or nil when none exists.
func (s *SnapshotStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save replaces the stored snapshot. Snapshots do not expire; entry
// freshness is judged by the timestamps inside.
func (s *SnapshotStore) Save(ctx context.Context, data []byte) error {
	return s.client.Set(ctx, s.key, data, 0).Err()
}

// Delete removes the stored snapshot.
func (s *SnapshotStore) Delete(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
