package service

import (
	"context"
	"fmt"
	"strings"

	"crm/internal/domain"
	"crm/internal/repository"
)

// CallLogService reads the call history of drivers.
type CallLogService struct {
	repo repository.CallLogRepository
}

// NewCallLogService creates a new CallLogService.
func NewCallLogService(repo repository.CallLogRepository) *CallLogService {
	return &CallLogService{repo: repo}
}

// ListByDriver returns the driver's calls in the workspace, newest first.
func (s *CallLogService) ListByDriver(ctx context.Context, workspaceID, driverID string) ([]*domain.CallLogEntry, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, ErrInvalidWorkspaceID
	}
	if strings.TrimSpace(driverID) == "" {
		return nil, ErrInvalidDriverID
	}

	entries, err := s.repo.ListByDriver(ctx, workspaceID, driverID)
	if err != nil {
		return nil, fmt.Errorf("list call logs: %w", err)
	}
	if entries == nil {
		entries = []*domain.CallLogEntry{}
	}
	return entries, nil
}
