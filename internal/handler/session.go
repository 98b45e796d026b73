package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"crm/internal/workflow"
)

// SessionHandler handles HTTP requests for operator call sessions.
type SessionHandler struct {
	registry *workflow.Registry
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(registry *workflow.Registry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

// OpenSessionRequest is the HTTP request body for opening a workspace.
type OpenSessionRequest struct {
	WorkspaceID string `json:"workspace_id"`
}

// Open handles POST /v1/operators/:operator/session
func (h *SessionHandler) Open(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	session, err := h.registry.GetOrCreate(c.Param("operator"))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := session.Open(c.Request.Context(), strings.TrimSpace(req.WorkspaceID)); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, session.View())
}

// Get handles GET /v1/operators/:operator/session
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.registry.Get(c.Param("operator"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, session.View())
}

// Next handles POST /v1/operators/:operator/session/next
func (h *SessionHandler) Next(c *gin.Context) {
	h.act(c, func(ctx context.Context, s *workflow.Session) error { return s.Next(ctx) })
}

// Previous handles POST /v1/operators/:operator/session/previous
func (h *SessionHandler) Previous(c *gin.Context) {
	h.act(c, func(ctx context.Context, s *workflow.Session) error { return s.Previous(ctx) })
}

// StartCall handles POST /v1/operators/:operator/session/call/start
func (h *SessionHandler) StartCall(c *gin.Context) {
	h.act(c, func(_ context.Context, s *workflow.Session) error { return s.StartCall() })
}

// EndCall handles POST /v1/operators/:operator/session/call/end
func (h *SessionHandler) EndCall(c *gin.Context) {
	h.act(c, func(_ context.Context, s *workflow.Session) error { return s.EndCall() })
}

// UpdateForm handles PUT /v1/operators/:operator/session/form
func (h *SessionHandler) UpdateForm(c *gin.Context) {
	var req workflow.FormInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	h.act(c, func(_ context.Context, s *workflow.Session) error { return s.UpdateForm(req) })
}

// Submit handles POST /v1/operators/:operator/session/submit
func (h *SessionHandler) Submit(c *gin.Context) {
	h.act(c, func(ctx context.Context, s *workflow.Session) error { return s.Submit(ctx) })
}

// Close handles DELETE /v1/operators/:operator/session
func (h *SessionHandler) Close(c *gin.Context) {
	if err := h.registry.Remove(c.Param("operator")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// act runs fn against the operator's session and answers with the new view.
func (h *SessionHandler) act(c *gin.Context, fn func(context.Context, *workflow.Session) error) {
	session, err := h.registry.Get(c.Param("operator"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := fn(c.Request.Context(), session); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, session.View())
}
