package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crm/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DashboardHandler handles HTTP requests for the administrator dashboard.
type DashboardHandler struct {
	dashboardService *service.DashboardService
	now              func() time.Time
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService, now: time.Now}
}

// DailyStats handles GET /v1/workspaces/:workspace/stats/daily
func (h *DashboardHandler) DailyStats(c *gin.Context) {
	r, ok := h.dateRange(c)
	if !ok {
		return
	}
	days, err := h.dashboardService.DailyStats(c.Request.Context(), c.Param("workspace"), r)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{
		"start": r.StartLabel(),
		"end":   r.EndLabel(),
		"data":  days,
	})
}

// ExportDailyStats handles GET /v1/workspaces/:workspace/stats/daily/export
func (h *DashboardHandler) ExportDailyStats(c *gin.Context) {
	r, ok := h.dateRange(c)
	if !ok {
		return
	}
	workspace := c.Param("workspace")
	data, err := h.dashboardService.ExportDailyStats(c.Request.Context(), workspace, r)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("segments_%s_%s_%s.xlsx", workspace, r.StartLabel(), r.EndLabel())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// Summary handles GET /v1/workspaces/:workspace/stats/summary
func (h *DashboardHandler) Summary(c *gin.Context) {
	r, ok := h.dateRange(c)
	if !ok {
		return
	}
	summary, err := h.dashboardService.Summary(c.Request.Context(), c.Param("workspace"), r)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, summary)
}

// StatusDistribution handles GET /v1/workspaces/:workspace/stats/status-distribution
func (h *DashboardHandler) StatusDistribution(c *gin.Context) {
	slices, err := h.dashboardService.StatusDistribution(c.Request.Context(), c.Param("workspace"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"data": slices})
}

// Revenue handles GET /v1/workspaces/:workspace/revenue/:kind
func (h *DashboardHandler) Revenue(c *gin.Context) {
	r, ok := h.dateRange(c)
	if !ok {
		return
	}
	body, err := h.dashboardService.Revenue(c.Request.Context(), c.Param("workspace"), service.RevenueKind(c.Param("kind")), r)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// Roster handles GET /v1/workspaces/:workspace/drivers
func (h *DashboardHandler) Roster(c *gin.Context) {
	roster, err := h.dashboardService.Roster(c.Request.Context(), c.Param("workspace"), c.Query("q"), h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{
		"data":  roster,
		"count": len(roster),
	})
}

func (h *DashboardHandler) dateRange(c *gin.Context) (service.DateRange, bool) {
	r, err := service.ParseDateRange(c.Query("start"), c.Query("end"), h.now(), h.dashboardService.Location())
	if err != nil {
		respondError(c, err)
		return service.DateRange{}, false
	}
	return r, true
}
