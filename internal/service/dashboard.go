package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"crm/internal/domain"
	"crm/internal/export"
	"crm/internal/repository"
	"crm/internal/stats"
)

// RevenueAPI is the part of the driver API that serves revenue reports.
type RevenueAPI interface {
	TotalRevenue(ctx context.Context, workspace string, start, end time.Time) (json.RawMessage, error)
	DailyRevenue(ctx context.Context, workspace string, start, end time.Time) (json.RawMessage, error)
	CoreElectron(ctx context.Context, workspace string, start, end time.Time) (json.RawMessage, error)
}

// RevenueKind names a revenue report.
type RevenueKind string

const (
	RevenueGeneral      RevenueKind = "general"
	RevenueDaily        RevenueKind = "daily"
	RevenueCoreElectron RevenueKind = "core-electron"
)

// DashboardService computes the administrator dashboard.
type DashboardService struct {
	orders   repository.OrderRepository
	drivers  repository.DriverRepository
	revenue  RevenueAPI
	exporter *export.Generator
	loc      *time.Location
	log      zerolog.Logger
}

// NewDashboardService creates a new DashboardService. Days are taken in loc.
func NewDashboardService(
	orders repository.OrderRepository,
	drivers repository.DriverRepository,
	revenue RevenueAPI,
	loc *time.Location,
	log zerolog.Logger,
) *DashboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{
		orders:   orders,
		drivers:  drivers,
		revenue:  revenue,
		exporter: export.NewGenerator(),
		loc:      loc,
		log:      log.With().Str("component", "dashboard").Logger(),
	}
}

// Location returns the timezone days are taken in.
func (s *DashboardService) Location() *time.Location {
	return s.loc
}

// DailyStats returns one row per day of r, newest first.
func (s *DashboardService) DailyStats(ctx context.Context, workspaceID string, r DateRange) ([]domain.DailyStat, error) {
	orders, err := s.listOrders(ctx, workspaceID, r)
	if err != nil {
		return nil, err
	}
	return stats.ComputeDailyStats(orders, r.Start, r.End, s.loc), nil
}

// Summary aggregates the whole of r.
func (s *DashboardService) Summary(ctx context.Context, workspaceID string, r DateRange) (domain.Summary, error) {
	orders, err := s.listOrders(ctx, workspaceID, r)
	if err != nil {
		return domain.Summary{}, err
	}
	return stats.ComputeSummary(orders), nil
}

// StatusDistribution counts the workspace's drivers per status bucket.
func (s *DashboardService) StatusDistribution(ctx context.Context, workspaceID string) ([]domain.StatusSlice, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, ErrInvalidWorkspaceID
	}
	drivers, err := s.drivers.ListPresence(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	return stats.StatusDistribution(drivers), nil
}

// Roster lists the workspace driver directory as of now, filtered by search.
func (s *DashboardService) Roster(ctx context.Context, workspaceID, search string, now time.Time) ([]domain.RosterEntry, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, ErrInvalidWorkspaceID
	}
	roster, err := s.drivers.ListRoster(ctx, workspaceID, strings.TrimSpace(search), now)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	if roster == nil {
		roster = []domain.RosterEntry{}
	}
	return roster, nil
}

// ExportDailyStats renders the daily rows and the period summary of r as xlsx.
func (s *DashboardService) ExportDailyStats(ctx context.Context, workspaceID string, r DateRange) ([]byte, error) {
	orders, err := s.listOrders(ctx, workspaceID, r)
	if err != nil {
		return nil, err
	}

	data, err := s.exporter.DailyStats(export.DailyReport{
		WorkspaceID: workspaceID,
		Start:       r.StartLabel(),
		End:         r.EndLabel(),
		Summary:     stats.ComputeSummary(orders),
		Days:        stats.ComputeDailyStats(orders, r.Start, r.End, s.loc),
	})
	if err != nil {
		return nil, fmt.Errorf("export daily stats: %w", err)
	}

	s.log.Info().
		Str("workspace_id", workspaceID).
		Str("start", r.StartLabel()).
		Str("end", r.EndLabel()).
		Int("bytes", len(data)).
		Msg("daily stats exported")
	return data, nil
}

// Revenue proxies one of the driver API revenue reports.
func (s *DashboardService) Revenue(ctx context.Context, workspaceID string, kind RevenueKind, r DateRange) (json.RawMessage, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, ErrInvalidWorkspaceID
	}

	var fetch func(context.Context, string, time.Time, time.Time) (json.RawMessage, error)
	switch kind {
	case RevenueGeneral:
		fetch = s.revenue.TotalRevenue
	case RevenueDaily:
		fetch = s.revenue.DailyRevenue
	case RevenueCoreElectron:
		fetch = s.revenue.CoreElectron
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRevenueKind, kind)
	}

	body, err := fetch(ctx, workspaceID, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("revenue %s: %w", kind, err)
	}
	return body, nil
}

func (s *DashboardService) listOrders(ctx context.Context, workspaceID string, r DateRange) ([]domain.Order, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, ErrInvalidWorkspaceID
	}
	from, to := stats.DayBounds(r.Start, r.End, s.loc)
	orders, err := s.orders.ListBetween(ctx, workspaceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}
