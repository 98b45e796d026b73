package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"crm/internal/driverapi"
	"crm/internal/repository"
	"crm/internal/service"
	"crm/internal/workflow"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Server-side failures are attached to the context for the error reporter.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps workflow/service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	var upstream *driverapi.StatusError

	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, driverapi.ErrNotFound),
		errors.Is(err, workflow.ErrSessionNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, workflow.ErrStatusRequired),
		errors.Is(err, workflow.ErrInvalidStatus),
		errors.Is(err, workflow.ErrCallbackDateRequired),
		errors.Is(err, workflow.ErrInvalidOperatorID),
		errors.Is(err, service.ErrInvalidWorkspaceID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, service.ErrInvalidDateRange),
		errors.Is(err, service.ErrDateRangeTooLong),
		errors.Is(err, service.ErrInvalidRevenueKind),
		errors.Is(err, driverapi.ErrInvalidWorkspace):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, workflow.ErrNoWorkspace),
		errors.Is(err, workflow.ErrNoDriver),
		errors.Is(err, workflow.ErrNavigationInProgress),
		errors.Is(err, workflow.ErrSubmitInProgress),
		errors.Is(err, workflow.ErrCallInProgress),
		errors.Is(err, workflow.ErrCallNotStarted),
		errors.Is(err, workflow.ErrSessionChanged),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict

	// Driver API answered with an error
	case errors.As(err, &upstream):
		return http.StatusBadGateway

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
