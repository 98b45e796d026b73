package repository

import (
	"context"
	"time"

	"crm/internal/domain"
)

// DriverRepository reads the workspace driver roster.
type DriverRepository interface {
	// ListPresence returns every driver's live status and whether a car is assigned.
	ListPresence(ctx context.Context, workspaceID string) ([]domain.DriverPresence, error)

	// ListRoster returns the driver directory with cars and order activity
	// counted up to asOf. A non-empty search keeps drivers whose name, id,
	// phone or car callsign contains it, ignoring case.
	ListRoster(ctx context.Context, workspaceID, search string, asOf time.Time) ([]domain.RosterEntry, error)
}
