package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"crm/internal/domain"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// ListPresence returns every driver's live status and whether a car is assigned.
func (r *DriverRepository) ListPresence(ctx context.Context, workspaceID string) ([]domain.DriverPresence, error) {
	query := `
		SELECT d.driver_origin_id,
		       COALESCE(d.current_status, ''),
		       EXISTS (
		           SELECT 1 FROM car_drivers cd
		           WHERE cd.workspace_id = d.workspace_id
		             AND cd.driver_origin_id = d.driver_origin_id
		       )
		FROM drivers d
		WHERE d.workspace_id = $1
		ORDER BY d.driver_origin_id`

	rows, err := r.q.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []domain.DriverPresence
	for rows.Next() {
		var p domain.DriverPresence
		if err := rows.Scan(&p.DriverOriginID, &p.CurrentStatus, &p.HasCar); err != nil {
			return nil, err
		}
		drivers = append(drivers, p)
	}
	return drivers, rows.Err()
}

// ListRoster returns the driver directory with cars, orders per week over
// the four weeks ending at asOf, the last order and total revenue.
func (r *DriverRepository) ListRoster(ctx context.Context, workspaceID, search string, asOf time.Time) ([]domain.RosterEntry, error) {
	query := `
		SELECT d.driver_origin_id,
		       COALESCE(d.first_name, ''),
		       COALESCE(d.last_name, ''),
		       COALESCE(d.current_status, ''),
		       d.phones,
		       COALESCE((
		           SELECT json_agg(json_build_object(
		                      'car_origin_id', c.car_origin_id,
		                      'brand', COALESCE(c.brand, ''),
		                      'model', COALESCE(c.model, ''),
		                      'color', COALESCE(c.color, ''),
		                      'year', COALESCE(c.year, 0),
		                      'number', COALESCE(c.number, ''),
		                      'callsign', COALESCE(c.callsign, '')
		                  ) ORDER BY c.car_origin_id)
		           FROM car_drivers cd
		           JOIN cars c ON c.workspace_id = cd.workspace_id AND c.car_origin_id = cd.car_origin_id
		           WHERE cd.workspace_id = d.workspace_id
		             AND cd.driver_origin_id = d.driver_origin_id
		       ), '[]'::json),
		       COUNT(o.id) FILTER (WHERE o.booked_at >  $2::timestamptz - INTERVAL '7 days'  AND o.booked_at <= $2::timestamptz),
		       COUNT(o.id) FILTER (WHERE o.booked_at >  $2::timestamptz - INTERVAL '14 days' AND o.booked_at <= $2::timestamptz - INTERVAL '7 days'),
		       COUNT(o.id) FILTER (WHERE o.booked_at >  $2::timestamptz - INTERVAL '21 days' AND o.booked_at <= $2::timestamptz - INTERVAL '14 days'),
		       COUNT(o.id) FILTER (WHERE o.booked_at >  $2::timestamptz - INTERVAL '28 days' AND o.booked_at <= $2::timestamptz - INTERVAL '21 days'),
		       MAX(o.booked_at),
		       COALESCE(SUM(o.price), 0)
		FROM drivers d
		LEFT JOIN orders o ON o.workspace_id = d.workspace_id AND o.driver_origin_id = d.driver_origin_id
		WHERE d.workspace_id = $1
		  AND ($3::text = ''
		       OR d.first_name ILIKE $3
		       OR d.last_name ILIKE $3
		       OR d.driver_origin_id ILIKE $3
		       OR EXISTS (SELECT 1 FROM unnest(d.phones) AS p(phone) WHERE p.phone ILIKE $3)
		       OR EXISTS (
		           SELECT 1
		           FROM car_drivers cd
		           JOIN cars c ON c.workspace_id = cd.workspace_id AND c.car_origin_id = cd.car_origin_id
		           WHERE cd.workspace_id = d.workspace_id
		             AND cd.driver_origin_id = d.driver_origin_id
		             AND c.callsign ILIKE $3
		       ))
		GROUP BY d.workspace_id, d.driver_origin_id
		ORDER BY COALESCE(d.last_name, ''), COALESCE(d.first_name, ''), d.driver_origin_id`

	rows, err := r.q.QueryContext(ctx, query, workspaceID, asOf, likePattern(search))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roster []domain.RosterEntry
	for rows.Next() {
		var (
			e         domain.RosterEntry
			cars      []byte
			lastOrder sql.NullTime
		)
		if err := rows.Scan(
			&e.DriverOriginID, &e.FirstName, &e.LastName, &e.CurrentStatus,
			pq.Array(&e.Phones), &cars,
			&e.WeeksOrders.S1, &e.WeeksOrders.S2, &e.WeeksOrders.S3, &e.WeeksOrders.S4,
			&lastOrder, &e.TotalRevenue,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(cars, &e.Cars); err != nil {
			return nil, fmt.Errorf("decode cars of driver %s: %w", e.DriverOriginID, err)
		}
		if lastOrder.Valid {
			t := lastOrder.Time
			e.LastOrderAt = &t
		}
		roster = append(roster, e)
	}
	return roster, rows.Err()
}

// likePattern turns a search term into an ILIKE substring pattern. An empty
// term stays empty.
func likePattern(term string) string {
	term = strings.TrimSpace(term)
	if term == "" {
		return ""
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
	return "%" + escaped + "%"
}
