package repository

import (
	"context"
	"time"

	"crm/internal/domain"
)

// OrderRepository reads booked orders for statistics.
type OrderRepository interface {
	// ListBetween returns the workspace's orders booked in [from, to).
	ListBetween(ctx context.Context, workspaceID string, from, to time.Time) ([]domain.Order, error)
}
