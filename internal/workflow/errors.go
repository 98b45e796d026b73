package workflow

import "errors"

var (
	// ErrStatusRequired is returned when a call is submitted without a status.
	ErrStatusRequired = errors.New("call status is required")

	// ErrInvalidStatus is returned when the status is not in the call status vocabulary.
	ErrInvalidStatus = errors.New("invalid call status")

	// ErrCallbackDateRequired is returned when a call is submitted without a callback date.
	ErrCallbackDateRequired = errors.New("callback date is required")

	// ErrNoWorkspace is returned when an action needs a workspace and none is open.
	ErrNoWorkspace = errors.New("no workspace selected")

	// ErrNoDriver is returned when an action needs a displayed driver and there is none.
	ErrNoDriver = errors.New("no driver displayed")

	// ErrNavigationInProgress is returned when a next/previous load is already running.
	ErrNavigationInProgress = errors.New("navigation already in progress")

	// ErrSubmitInProgress is returned when the driver's call is already being submitted.
	ErrSubmitInProgress = errors.New("call submission already in progress")

	// ErrCallInProgress is returned when an action is not allowed during a call.
	ErrCallInProgress = errors.New("call in progress")

	// ErrCallNotStarted is returned when ending a call that was never started.
	ErrCallNotStarted = errors.New("call not started")

	// ErrSessionChanged is returned when the workspace was switched while the action ran.
	ErrSessionChanged = errors.New("workspace changed during the operation")

	// ErrSessionNotFound is returned when the operator has no open session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidOperatorID is returned when operator ID is empty.
	ErrInvalidOperatorID = errors.New("invalid operator id")
)
