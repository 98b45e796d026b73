package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crm/internal/service"
)

// CallLogHandler handles HTTP requests for driver call history.
type CallLogHandler struct {
	callLogService *service.CallLogService
}

// NewCallLogHandler creates a new CallLogHandler.
func NewCallLogHandler(callLogService *service.CallLogService) *CallLogHandler {
	return &CallLogHandler{callLogService: callLogService}
}

// ListByDriver handles GET /v1/workspaces/:workspace/drivers/:driver/calls
func (h *CallLogHandler) ListByDriver(c *gin.Context) {
	entries, err := h.callLogService.ListByDriver(c.Request.Context(), c.Param("workspace"), c.Param("driver"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"data": entries, "count": len(entries)})
}
