package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/THEROER/DoubleLife/internal/core/domain"
	"github.com/THEROER/DoubleLife/internal/infra/clock"
	"github.com/THEROER/DoubleLife/internal/usecase"
)

// SessionLifecycle is the part of the lifecycle manager the HTTP layer drives.
type SessionLifecycle interface {
	Start(ctx context.Context, req usecase.StartRequest) (*usecase.StartResult, error)
	End(ctx context.Context, principalID uuid.UUID) (bool, error)
	Session(principalID uuid.UUID) (domain.Session, bool)
	Sessions() []domain.Session
	HandleJoin(ctx context.Context, principalID uuid.UUID, displayName string) error
	HandleQuit(ctx context.Context, principalID uuid.UUID) error
	LogAction(ctx context.Context, event domain.ActionEvent) bool
}

// SessionHandler exposes operator endpoints for starting, ending and inspecting sessions.
type SessionHandler struct {
	lifecycle SessionLifecycle
	clock     clock.Clock
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(lifecycle SessionLifecycle, clk clock.Clock) *SessionHandler {
	if clk == nil {
		clk = clock.Real()
	}
	return &SessionHandler{lifecycle: lifecycle, clock: clk}
}

// RegisterRoutes binds session routes to the provided router group.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.GET("", h.ListSessions)
	r.POST("", h.StartSession)
	r.GET("/:principal_id", h.GetSession)
	r.DELETE("/:principal_id", h.EndSession)
	r.POST("/:principal_id/toggle", h.ToggleSession)
}

// StartSession serves POST /api/v1/sessions.
// It elevates the principal with every profile their groups make them eligible for.
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "principal_id and display_name are required"))
		return
	}
	id, err := uuid.Parse(req.PrincipalID)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid principal_id"))
		return
	}

	res, err := h.lifecycle.Start(c.Request.Context(), usecase.StartRequest{
		PrincipalID:      id,
		DisplayName:      req.DisplayName,
		DurationOverride: req.Duration,
	})
	if err != nil {
		RespondWithMappedError(c, err, lifecycleErrorCases, http.StatusInternalServerError, "failed to start session")
		return
	}
	c.JSON(http.StatusCreated, newStartSessionResponse(res, h.clock.Now()))
}

// EndSession serves DELETE /api/v1/sessions/{principal_id}.
// It restores the principal's saved state and revokes the temporary grant.
func (h *SessionHandler) EndSession(c *gin.Context) {
	id, ok := principalParam(c)
	if !ok {
		return
	}
	if _, err := h.lifecycle.End(c.Request.Context(), id); err != nil {
		RespondWithMappedError(c, err, lifecycleErrorCases, http.StatusInternalServerError, "failed to end session")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "doublelife session ended"})
}

// ToggleSession serves POST /api/v1/sessions/{principal_id}/toggle.
// It ends the live session if there is one, otherwise starts a new one.
func (h *SessionHandler) ToggleSession(c *gin.Context) {
	id, ok := principalParam(c)
	if !ok {
		return
	}

	if _, live := h.lifecycle.Session(id); live {
		_, err := h.lifecycle.End(c.Request.Context(), id)
		if err == nil {
			c.JSON(http.StatusOK, ToggleSessionResponse{Action: "ended"})
			return
		}
		if !errors.Is(err, domain.ErrNoActiveSession) {
			RespondWithMappedError(c, err, lifecycleErrorCases, http.StatusInternalServerError, "failed to end session")
			return
		}
	}

	var req ToggleSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "display_name is required to start a session"))
		return
	}
	res, err := h.lifecycle.Start(c.Request.Context(), usecase.StartRequest{
		PrincipalID:      id,
		DisplayName:      req.DisplayName,
		DurationOverride: req.Duration,
	})
	if err != nil {
		RespondWithMappedError(c, err, lifecycleErrorCases, http.StatusInternalServerError, "failed to start session")
		return
	}
	payload := newSessionPayload(res.Session, h.clock.Now())
	c.JSON(http.StatusOK, ToggleSessionResponse{Action: "started", Session: &payload})
}

// GetSession serves GET /api/v1/sessions/{principal_id}.
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, ok := principalParam(c)
	if !ok {
		return
	}
	session, live := h.lifecycle.Session(id)
	if !live {
		RespondWithMappedError(c, domain.ErrNoActiveSession, lifecycleErrorCases, http.StatusNotFound, "session not found")
		return
	}
	c.JSON(http.StatusOK, newSessionPayload(session, h.clock.Now()))
}

// ListSessions serves GET /api/v1/sessions.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	now := h.clock.Now()
	sessions := h.lifecycle.Sessions()
	resp := SessionListResponse{Sessions: make([]SessionPayload, 0, len(sessions)), Count: len(sessions)}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, newSessionPayload(s, now))
	}
	c.JSON(http.StatusOK, resp)
}

func principalParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("principal_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid principal_id"))
		return uuid.Nil, false
	}
	return id, true
}
