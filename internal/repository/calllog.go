package repository

import (
	"context"

	"crm/internal/domain"
)

// CallLogRepository defines the persistence operations for call logs.
type CallLogRepository interface {
	// Create inserts a call log and returns the stored row.
	Create(ctx context.Context, entry *domain.CallLogEntry) (*domain.CallLogEntry, error)

	// ListByDriver returns a driver's call logs, newest first.
	ListByDriver(ctx context.Context, workspaceID, driverID string) ([]*domain.CallLogEntry, error)
}
