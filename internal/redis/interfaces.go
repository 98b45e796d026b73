package redis

import (
	"context"
	"time"

	"crm/internal/domain"
)

// SnapshotStoreInterface defines the driver cache snapshot operations.
type SnapshotStoreInterface interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Delete(ctx context.Context) error
}

// CounterStoreInterface defines the daily call tally operations.
type CounterStoreInterface interface {
	Load(ctx context.Context, workspace string, day time.Time) (domain.Tally, error)
	Add(ctx context.Context, workspace string, day time.Time, calls int, active time.Duration) (domain.Tally, error)
}

// LockStoreInterface defines the submission lock operations.
type LockStoreInterface interface {
	AcquireSubmitLock(ctx context.Context, workspace, driverID string, ttl time.Duration) (bool, error)
	ReleaseSubmitLock(ctx context.Context, workspace, driverID string) error
}

// IdempotencyStoreInterface defines the replayable response operations.
type IdempotencyStoreInterface interface {
	GetResponse(ctx context.Context, key string) ([]byte, error)
	SaveResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// Ensure concrete types implement interfaces.
var (
	_ SnapshotStoreInterface    = (*SnapshotStore)(nil)
	_ CounterStoreInterface     = (*CounterStore)(nil)
	_ LockStoreInterface        = (*LockStore)(nil)
	_ IdempotencyStoreInterface = (*IdempotencyStore)(nil)
)
