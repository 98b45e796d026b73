package workflow

import (
	"time"

	"crm/internal/domain"
	"crm/internal/prefetch"
)

// State is the call screen state.
type State string

const (
	StateInitialLoading State = "initial_loading"
	StateReady          State = "ready"
	StateCallInProgress State = "call_in_progress"
	StateSubmitting     State = "submitting"
	StateNoWorkspace    State = "no_workspace"
	StateNoDriver       State = "no_driver"
)

// revenueShare is the part of a driver's revenue credited to the operator.
const revenueShare = 0.03

// Form is the call report being filled for the displayed driver.
type Form struct {
	Note          string
	Status        domain.CallStatus
	CallbackDate  *time.Time
	ActiveTime    time.Duration
	CallStartedAt *time.Time
}

// FormInput replaces the editable fields of the form.
type FormInput struct {
	Note         string            `json:"note"`
	Status       domain.CallStatus `json:"status"`
	CallbackDate *time.Time        `json:"callback_date"`
}

// FormView is the rendered form.
type FormView struct {
	Note          string            `json:"note"`
	Status        domain.CallStatus `json:"status"`
	CallbackDate  *time.Time        `json:"callback_date"`
	ActiveTime    string            `json:"active_time"`
	CallStartedAt *time.Time        `json:"call_started_at"`
}

// OperatorStats summarises the operator's day in the open workspace.
type OperatorStats struct {
	CallsToday       int     `json:"calls_today"`
	AverageCallTime  string  `json:"average_call_time"`
	TotalCallTime    string  `json:"total_call_time"`
	RevenueGenerated float64 `json:"revenue_generated"`
}

// View is a consistent snapshot of a session for rendering.
type View struct {
	OperatorID  string                 `json:"operator_id"`
	WorkspaceID string                 `json:"workspace_id"`
	State       State                  `json:"state"`
	LoadingNext bool                   `json:"loading_next"`
	Driver      *domain.DriverRecord   `json:"driver"`
	DriverName  string                 `json:"driver_name,omitempty"`
	WeeklyRides float64                `json:"average_weekly_rides"`
	Form        FormView               `json:"form"`
	History     []*domain.CallLogEntry `json:"history"`
	Stats       OperatorStats          `json:"stats"`
	Prefetch    *prefetch.Stats        `json:"prefetch,omitempty"`
	LastError   string                 `json:"last_error,omitempty"`
}
