package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/THEROER/DoubleLife/internal/core/domain"
	"github.com/THEROER/DoubleLife/internal/usecase"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// StartSessionRequest asks for a new elevated session.
type StartSessionRequest struct {
	PrincipalID string `json:"principal_id" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	// Duration overrides the profile duration in seconds when positive.
	Duration int `json:"duration"`
}

// ToggleSessionRequest carries the display name needed when the toggle starts a session.
type ToggleSessionRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
	Duration    int    `json:"duration"`
}

// SessionPayload is the API view of a live session.
type SessionPayload struct {
	PrincipalID      string     `json:"principal_id"`
	DisplayName      string     `json:"display_name"`
	Profiles         []string   `json:"profiles"`
	Duration         int        `json:"duration"`
	Unlimited        bool       `json:"unlimited"`
	StartedAt        time.Time  `json:"started_at"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	RemainingSeconds int        `json:"remaining_seconds"`
	Remaining        string     `json:"remaining"`
	TemporaryGroup   string     `json:"temporary_group"`
	Active           bool       `json:"active"`
}

func newSessionPayload(s domain.Session, now time.Time) SessionPayload {
	payload := SessionPayload{
		PrincipalID:      s.PrincipalID.String(),
		DisplayName:      s.DisplayName,
		Profiles:         s.ActiveProfiles,
		Duration:         s.Duration,
		Unlimited:        s.Unbounded(),
		StartedAt:        s.StartTime.UTC(),
		RemainingSeconds: s.RemainingSeconds(now),
		Remaining:        s.FormattedRemaining(now),
		TemporaryGroup:   s.TemporaryGroup,
		Active:           s.Active,
	}
	if !s.Unbounded() {
		exp := s.ExpiresAt().UTC()
		payload.ExpiresAt = &exp
	}
	return payload
}

// ProfilePayload summarises a profile granted to a session.
type ProfilePayload struct {
	Name            string   `json:"name"`
	Duration        int      `json:"duration"`
	Permissions     []string `json:"permissions"`
	AllowedCommands []string `json:"allowed_commands,omitempty"`
}

// StartSessionResponse is returned when a session starts.
type StartSessionResponse struct {
	Session  SessionPayload   `json:"session"`
	Profiles []ProfilePayload `json:"profiles"`
}

func newStartSessionResponse(res *usecase.StartResult, now time.Time) StartSessionResponse {
	out := StartSessionResponse{Session: newSessionPayload(res.Session, now)}
	for _, p := range res.Profiles {
		out.Profiles = append(out.Profiles, ProfilePayload{
			Name:            p.Name,
			Duration:        p.Duration,
			Permissions:     p.Permissions,
			AllowedCommands: p.AllowedCommands,
		})
	}
	return out
}

// ToggleSessionResponse reports which way a toggle went.
type ToggleSessionResponse struct {
	Action  string          `json:"action"`
	Session *SessionPayload `json:"session,omitempty"`
}

// SessionListResponse lists live sessions.
type SessionListResponse struct {
	Sessions []SessionPayload `json:"sessions"`
	Count    int              `json:"count"`
}

// JoinRequest is posted by the bridge when a principal connects.
type JoinRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

// ActionAcceptedResponse reports whether an action was queued for the audit log.
type ActionAcceptedResponse struct {
	Accepted bool `json:"accepted"`
}

// BlockPositionPayload is a block coordinate on the wire.
type BlockPositionPayload struct {
	World string `json:"world"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
}

func (p *BlockPositionPayload) toDomain() domain.BlockPosition {
	if p == nil {
		return domain.BlockPosition{}
	}
	return domain.BlockPosition{World: p.World, X: p.X, Y: p.Y, Z: p.Z}
}

// ActionRequest is the flattened wire form of an action event, discriminated by Kind.
type ActionRequest struct {
	Kind        string                `json:"kind" binding:"required"`
	DisplayName string                `json:"display_name"`
	OccurredAt  *time.Time            `json:"occurred_at"`
	Command     string                `json:"command"`
	From        *BlockPositionPayload `json:"from"`
	To          *BlockPositionPayload `json:"to"`
	Mode        string                `json:"mode"`
	Block       string                `json:"block"`
	At          *BlockPositionPayload `json:"at"`
	Action      string                `json:"action"`
	Entity      string                `json:"entity"`
	Damage      float64               `json:"damage"`
}

var errUnknownActionKind = errors.New("unknown action kind")

// Detail decodes the request into its action variant.
func (r ActionRequest) Detail() (domain.ActionDetail, error) {
	switch domain.ActionKind(strings.ToLower(r.Kind)) {
	case domain.ActionCommand:
		if r.Command == "" {
			return nil, errors.New("command is required")
		}
		return domain.CommandAction{Command: r.Command}, nil
	case domain.ActionTeleport:
		if r.From == nil || r.To == nil {
			return nil, errors.New("from and to are required")
		}
		return domain.TeleportAction{From: r.From.toDomain(), To: r.To.toDomain()}, nil
	case domain.ActionGameMode:
		if r.Mode == "" {
			return nil, errors.New("mode is required")
		}
		return domain.GameModeAction{Mode: r.Mode}, nil
	case domain.ActionBlockBreak, domain.ActionBlockPlace:
		if r.Block == "" {
			return nil, errors.New("block is required")
		}
		return domain.BlockChangeAction{
			Block:  r.Block,
			At:     r.At.toDomain(),
			Placed: domain.ActionKind(strings.ToLower(r.Kind)) == domain.ActionBlockPlace,
		}, nil
	case domain.ActionInteract:
		if r.Action == "" || r.Block == "" {
			return nil, errors.New("action and block are required")
		}
		return domain.InteractAction{Action: r.Action, Block: r.Block, At: r.At.toDomain()}, nil
	case domain.ActionAttack:
		if r.Entity == "" {
			return nil, errors.New("entity is required")
		}
		return domain.AttackAction{Entity: r.Entity, Damage: r.Damage}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownActionKind, r.Kind)
	}
}

// HealthResponse describes the liveness endpoint payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse lists the outcome of each dependency check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
