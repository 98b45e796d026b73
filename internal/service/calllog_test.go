package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm/internal/domain"
	"crm/internal/service"
	"crm/internal/tests"
)

func TestCallLogService_ListByDriver(t *testing.T) {
	t.Parallel()

	repo := tests.NewMockCallLogRepository()
	base := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	repo.AddEntry(&domain.CallLogEntry{ID: "1", WorkspaceID: "ws-1", DriverID: "d1", Date: base, Status: domain.CallStatusSick})
	repo.AddEntry(&domain.CallLogEntry{ID: "2", WorkspaceID: "ws-1", DriverID: "d1", Date: base.Add(time.Hour), Status: domain.CallStatusAvailable})
	repo.AddEntry(&domain.CallLogEntry{ID: "3", WorkspaceID: "ws-2", DriverID: "d1", Date: base, Status: domain.CallStatusOther})

	svc := service.NewCallLogService(repo)
	entries, err := svc.ListByDriver(context.Background(), "ws-1", "d1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2", entries[0].ID)
	assert.Equal(t, "1", entries[1].ID)
}

func TestCallLogService_EmptyHistoryIsNotNil(t *testing.T) {
	t.Parallel()

	svc := service.NewCallLogService(tests.NewMockCallLogRepository())
	entries, err := svc.ListByDriver(context.Background(), "ws-1", "nobody")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestCallLogService_Validation(t *testing.T) {
	t.Parallel()

	repo := tests.NewMockCallLogRepository()
	svc := service.NewCallLogService(repo)

	_, err := svc.ListByDriver(context.Background(), "", "d1")
	assert.ErrorIs(t, err, service.ErrInvalidWorkspaceID)
	_, err = svc.ListByDriver(context.Background(), "ws-1", "  ")
	assert.ErrorIs(t, err, service.ErrInvalidDriverID)
	assert.Equal(t, int32(0), repo.ListCallCount)
}
