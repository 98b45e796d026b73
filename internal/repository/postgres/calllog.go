package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"crm/internal/domain"
	"crm/internal/repository"
)

const uniqueViolation = "23505"

// CallLogRepository is a PostgreSQL implementation of repository.CallLogRepository.
type CallLogRepository struct {
	q Querier
}

// NewCallLogRepository creates a new PostgreSQL call log repository.
func NewCallLogRepository(db *sql.DB) *CallLogRepository {
	return &CallLogRepository{q: db}
}

// Create inserts a call log and returns the stored row.
func (r *CallLogRepository) Create(ctx context.Context, entry *domain.CallLogEntry) (*domain.CallLogEntry, error) {
	query := `
		INSERT INTO call_logs (id, workspace_id, driver_id, date, status, note, callback_date, duration_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, workspace_id, driver_id, date, status, note, callback_date, duration_seconds, created_at`

	row := r.q.QueryRowContext(ctx, query,
		entry.ID,
		entry.WorkspaceID,
		entry.DriverID,
		entry.Date,
		string(entry.Status),
		entry.Note,
		nullTime(entry.CallbackDate),
		int64(entry.Duration/time.Second),
	)

	stored, err := scanCallLog(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, repository.ErrDuplicate
		}
		return nil, err
	}
	return stored, nil
}

// ListByDriver returns a driver's call logs, newest first.
func (r *CallLogRepository) ListByDriver(ctx context.Context, workspaceID, driverID string) ([]*domain.CallLogEntry, error) {
	query := `
		SELECT id, workspace_id, driver_id, date, status, note, callback_date, duration_seconds, created_at
		FROM call_logs
		WHERE workspace_id = $1 AND driver_id = $2
		ORDER BY date DESC, created_at DESC`

	rows, err := r.q.QueryContext(ctx, query, workspaceID, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*domain.CallLogEntry, 0)
	for rows.Next() {
		entry, err := scanCallLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCallLog(s scanner) (*domain.CallLogEntry, error) {
	var (
		entry    domain.CallLogEntry
		status   string
		callback sql.NullTime
		seconds  int64
	)
	err := s.Scan(
		&entry.ID,
		&entry.WorkspaceID,
		&entry.DriverID,
		&entry.Date,
		&status,
		&entry.Note,
		&callback,
		&seconds,
		&entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	entry.Status = domain.CallStatus(status)
	entry.Duration = time.Duration(seconds) * time.Second
	if callback.Valid {
		t := callback.Time
		entry.CallbackDate = &t
	}
	return &entry, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
