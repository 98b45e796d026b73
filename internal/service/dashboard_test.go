package service_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"crm/internal/domain"
	"crm/internal/service"
	"crm/internal/tests"
)

func day(d int, hour int) time.Time {
	return time.Date(2024, time.March, d, hour, 0, 0, 0, time.UTC)
}

func price(v float64) *float64 { return &v }

func orders(driver string, n int, at time.Time, p float64) []domain.Order {
	out := make([]domain.Order, n)
	for i := range out {
		out[i] = domain.Order{DriverID: driver, BookedAt: at, Price: price(p)}
	}
	return out
}

func newDashboard(t *testing.T) (*service.DashboardService, *tests.MockOrderRepository, *tests.MockDriverRepository, *tests.MockRevenueAPI) {
	t.Helper()
	orderRepo := tests.NewMockOrderRepository()
	driverRepo := tests.NewMockDriverRepository()
	revenue := tests.NewMockRevenueAPI()
	svc := service.NewDashboardService(orderRepo, driverRepo, revenue, time.UTC, zerolog.Nop())
	return svc, orderRepo, driverRepo, revenue
}

func TestDashboard_DailyStats(t *testing.T) {
	t.Parallel()

	svc, orderRepo, _, _ := newDashboard(t)
	orderRepo.AddOrders("ws-1", orders("a", 50, day(2, 9), 100)...)
	orderRepo.AddOrders("ws-1", orders("b", 30, day(2, 23), 100)...)
	// Outside the range on both sides.
	orderRepo.AddOrders("ws-1", orders("a", 5, day(4, 0), 100)...)
	orderRepo.AddOrders("ws-1", orders("a", 5, day(1, 23), 100)...)
	orderRepo.AddOrders("ws-2", orders("z", 80, day(2, 9), 100)...)

	r := service.DateRange{Start: day(2, 0), End: day(3, 0)}
	days, err := svc.DailyStats(context.Background(), "ws-1", r)
	require.NoError(t, err)
	require.Len(t, days, 2)

	assert.Equal(t, "2024-03-03", days[0].Date)
	assert.Equal(t, 0, days[0].TotalOrders)

	assert.Equal(t, "2024-03-02", days[1].Date)
	assert.Equal(t, 80, days[1].TotalOrders)
	assert.Equal(t, 8000.0, days[1].TotalRevenue)
	assert.Equal(t, 1, days[1].CoreDrivers)
	assert.Equal(t, 1, days[1].CoreChange)
	assert.Equal(t, 2, days[1].Electrons)
	assert.Equal(t, 40.0, days[1].AverageOrders)
}

func TestDashboard_RejectsEmptyWorkspace(t *testing.T) {
	t.Parallel()

	svc, orderRepo, _, revenue := newDashboard(t)
	r := service.DateRange{Start: day(1, 0), End: day(2, 0)}

	_, err := svc.DailyStats(context.Background(), " ", r)
	assert.ErrorIs(t, err, service.ErrInvalidWorkspaceID)
	_, err = svc.Summary(context.Background(), "", r)
	assert.ErrorIs(t, err, service.ErrInvalidWorkspaceID)
	_, err = svc.StatusDistribution(context.Background(), "")
	assert.ErrorIs(t, err, service.ErrInvalidWorkspaceID)
	_, err = svc.Revenue(context.Background(), "", service.RevenueDaily, r)
	assert.ErrorIs(t, err, service.ErrInvalidWorkspaceID)
	_, err = svc.Roster(context.Background(), "", "", day(1, 0))
	assert.ErrorIs(t, err, service.ErrInvalidWorkspaceID)

	assert.Equal(t, int32(0), orderRepo.ListCallCount)
	assert.Empty(t, revenue.Calls())
}

func TestDashboard_RepositoryErrorIsWrapped(t *testing.T) {
	t.Parallel()

	svc, orderRepo, driverRepo, _ := newDashboard(t)
	boom := errors.New("connection refused")
	orderRepo.ListError = boom
	driverRepo.ListError = boom

	_, err := svc.Summary(context.Background(), "ws-1", service.DateRange{Start: day(1, 0), End: day(1, 0)})
	assert.ErrorIs(t, err, boom)
	_, err = svc.StatusDistribution(context.Background(), "ws-1")
	assert.ErrorIs(t, err, boom)
	_, err = svc.Roster(context.Background(), "ws-1", "", day(1, 0))
	assert.ErrorIs(t, err, boom)
}

func TestDashboard_Summary(t *testing.T) {
	t.Parallel()

	svc, orderRepo, _, _ := newDashboard(t)
	orderRepo.AddOrders("ws-1", orders("a", 40, day(1, 10), 50)...)
	orderRepo.AddOrders("ws-1", orders("a", 40, day(2, 10), 50)...)
	orderRepo.AddOrders("ws-1", orders("b", 10, day(2, 11), 50)...)

	summary, err := svc.Summary(context.Background(), "ws-1", service.DateRange{Start: day(1, 0), End: day(2, 0)})
	require.NoError(t, err)
	assert.Equal(t, domain.Summary{TotalOrders: 90, TotalRevenue: 4500, CoreDrivers: 1, Electrons: 1}, summary)
}

func TestDashboard_StatusDistribution(t *testing.T) {
	t.Parallel()

	svc, _, driverRepo, _ := newDashboard(t)
	driverRepo.AddDrivers("ws-1",
		domain.DriverPresence{DriverOriginID: "a", CurrentStatus: "offline", HasCar: true},
		domain.DriverPresence{DriverOriginID: "b", CurrentStatus: "busy", HasCar: false},
	)

	slices, err := svc.StatusDistribution(context.Background(), "ws-1")
	require.NoError(t, err)
	require.Len(t, slices, 12)

	total := 0
	for _, s := range slices {
		total += s.Value
	}
	assert.Equal(t, 2, total)
}

func TestDashboard_Roster(t *testing.T) {
	t.Parallel()

	svc, _, driverRepo, _ := newDashboard(t)
	last := day(9, 18)
	driverRepo.AddRoster("ws-1",
		domain.RosterEntry{
			DriverOriginID: "a1", FirstName: "Awa", LastName: "Kone",
			Phones:       []string{"+2250707070707"},
			Cars:         []domain.RosterCar{{CarOriginID: "c1", Callsign: "TX-12"}},
			WeeksOrders:  domain.WeeklyOrders{S1: 12, S2: 9},
			LastOrderAt:  &last,
			TotalRevenue: 84000,
		},
		domain.RosterEntry{DriverOriginID: "b2", FirstName: "Yao", LastName: "Kouassi", Phones: []string{"+2250101010101"}},
	)

	all, err := svc.Roster(context.Background(), "ws-1", "", day(10, 12))
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, day(10, 12), driverRepo.LastAsOf)

	testCases := []struct {
		name   string
		search string
		want   []string
	}{
		{name: "by last name", search: "KONE", want: []string{"a1"}},
		{name: "by id", search: "b2", want: []string{"b2"}},
		{name: "by phone", search: "0101", want: []string{"b2"}},
		{name: "by callsign", search: "tx-1", want: []string{"a1"}},
		{name: "trimmed", search: "  yao ", want: []string{"b2"}},
		{name: "no match", search: "zzz", want: nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			roster, err := svc.Roster(context.Background(), "ws-1", tc.search, day(10, 12))
			require.NoError(t, err)
			require.NotNil(t, roster, "an empty directory is a list, not null")

			var ids []string
			for _, e := range roster {
				ids = append(ids, e.DriverOriginID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}
}

func TestDashboard_Revenue(t *testing.T) {
	t.Parallel()

	svc, _, _, revenue := newDashboard(t)
	r := service.DateRange{Start: day(1, 0), End: day(7, 0)}

	for kind, resource := range map[service.RevenueKind]string{
		service.RevenueGeneral:      "revenu-general",
		service.RevenueDaily:        "revenu-journalier",
		service.RevenueCoreElectron: "core-electron",
	} {
		body, err := svc.Revenue(context.Background(), "ws-1", kind, r)
		require.NoError(t, err)
		assert.Contains(t, string(body), resource)
	}

	calls := revenue.Calls()
	require.Len(t, calls, 3)
	for _, c := range calls {
		assert.Equal(t, "ws-1", c.Workspace)
		assert.Equal(t, r.Start, c.Start)
		assert.Equal(t, r.End, c.End)
	}

	_, err := svc.Revenue(context.Background(), "ws-1", "weekly", r)
	assert.ErrorIs(t, err, service.ErrInvalidRevenueKind)
	assert.Len(t, revenue.Calls(), 3)
}

func TestDashboard_RevenueUpstreamError(t *testing.T) {
	t.Parallel()

	svc, _, _, revenue := newDashboard(t)
	revenue.Error = errors.New("bad gateway")

	_, err := svc.Revenue(context.Background(), "ws-1", service.RevenueGeneral, service.DateRange{Start: day(1, 0), End: day(1, 0)})
	assert.ErrorIs(t, err, revenue.Error)
}

func TestDashboard_ExportDailyStats(t *testing.T) {
	t.Parallel()

	svc, orderRepo, _, _ := newDashboard(t)
	orderRepo.AddOrders("ws-1", orders("a", 70, day(5, 8), 10)...)

	data, err := svc.ExportDailyStats(context.Background(), "ws-1", service.DateRange{Start: day(4, 0), End: day(5, 0)})
	require.NoError(t, err)

	file, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer file.Close()

	sheets := file.GetSheetList()
	require.Len(t, sheets, 2)
	rows, err := file.GetRows(sheets[1])
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2024-03-05", rows[1][0])
	assert.Equal(t, "70", rows[1][1])
	assert.Equal(t, "2024-03-04", rows[2][0])
}
