package service

import "errors"

var (
	// ErrInvalidWorkspaceID is returned when the workspace id is empty.
	ErrInvalidWorkspaceID = errors.New("invalid workspace id")

	// ErrInvalidDriverID is returned when the driver id is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidDate is returned when a date is not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

	// ErrInvalidDateRange is returned when the start date is after the end date.
	ErrInvalidDateRange = errors.New("start date is after end date")

	// ErrDateRangeTooLong is returned when a range spans more days than allowed.
	ErrDateRangeTooLong = errors.New("date range too long")

	// ErrInvalidRevenueKind is returned for an unknown revenue report.
	ErrInvalidRevenueKind = errors.New("invalid revenue report")
)
