package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/THEROER/DoubleLife/internal/core/domain"
	"github.com/THEROER/DoubleLife/internal/infra/clock"
)

// PrincipalHandler receives presence and action events from the game server bridge.
type PrincipalHandler struct {
	lifecycle SessionLifecycle
	clock     clock.Clock
}

// NewPrincipalHandler constructs a principal handler.
func NewPrincipalHandler(lifecycle SessionLifecycle, clk clock.Clock) *PrincipalHandler {
	if clk == nil {
		clk = clock.Real()
	}
	return &PrincipalHandler{lifecycle: lifecycle, clock: clk}
}

// RegisterRoutes binds bridge routes to the provided router group.
func (h *PrincipalHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.POST("/:principal_id/join", h.Join)
	r.POST("/:principal_id/quit", h.Quit)
	r.POST("/:principal_id/actions", h.LogAction)
}

// Join serves POST /api/v1/principals/{principal_id}/join.
// It resumes a stored session or settles one that expired while the principal was away.
func (h *PrincipalHandler) Join(c *gin.Context) {
	id, ok := principalParam(c)
	if !ok {
		return
	}
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "display_name is required"))
		return
	}
	if err := h.lifecycle.HandleJoin(c.Request.Context(), id, req.DisplayName); err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to handle join")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "join handled"})
}

// Quit serves POST /api/v1/principals/{principal_id}/quit.
func (h *PrincipalHandler) Quit(c *gin.Context) {
	id, ok := principalParam(c)
	if !ok {
		return
	}
	if err := h.lifecycle.HandleQuit(c.Request.Context(), id); err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to handle quit")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "quit handled"})
}

// LogAction serves POST /api/v1/principals/{principal_id}/actions.
// Actions of principals without a live session are ignored.
func (h *PrincipalHandler) LogAction(c *gin.Context) {
	id, ok := principalParam(c)
	if !ok {
		return
	}
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "kind is required"))
		return
	}
	detail, err := req.Detail()
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
		return
	}

	event := domain.ActionEvent{
		PrincipalID: id,
		DisplayName: req.DisplayName,
		At:          h.clock.Now(),
		Detail:      detail,
	}
	if req.OccurredAt != nil {
		event.At = req.OccurredAt.UTC()
	}

	if h.lifecycle.LogAction(c.Request.Context(), event) {
		c.JSON(http.StatusAccepted, ActionAcceptedResponse{Accepted: true})
		return
	}
	c.JSON(http.StatusOK, ActionAcceptedResponse{Accepted: false})
}
