package postgres

import (
	"context"
	"database/sql"
	"time"

	"crm/internal/domain"
)

// OrderRepository is a PostgreSQL implementation of repository.OrderRepository.
type OrderRepository struct {
	q Querier
}

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{q: db}
}

// ListBetween returns the workspace's orders booked in [from, to).
func (r *OrderRepository) ListBetween(ctx context.Context, workspaceID string, from, to time.Time) ([]domain.Order, error) {
	query := `
		SELECT id, driver_origin_id, booked_at, price
		FROM orders
		WHERE workspace_id = $1 AND booked_at >= $2 AND booked_at < $3
		ORDER BY booked_at`

	rows, err := r.q.QueryContext(ctx, query, workspaceID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var (
			order domain.Order
			price sql.NullFloat64
		)
		if err := rows.Scan(&order.ID, &order.DriverID, &order.BookedAt, &price); err != nil {
			return nil, err
		}
		if price.Valid {
			p := price.Float64
			order.Price = &p
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
