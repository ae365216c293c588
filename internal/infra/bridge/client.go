// Package bridge reaches live principals through the game server bridge's HTTP API.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/THEROER/DoubleLife/internal/core/domain"
	"github.com/THEROER/DoubleLife/internal/core/port"
	"github.com/THEROER/DoubleLife/internal/infra/config"
)

// ErrBridge wraps every failed bridge call.
var ErrBridge = errors.New("bridge request failed")

// StatusError carries a non-2xx bridge response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bridge: HTTP %d: %s", e.StatusCode, e.Body)
}

type onlineResponse struct {
	Online bool `json:"online"`
}

type maxHealthResponse struct {
	MaxHealth float64 `json:"max_health"`
}

type messageRequest struct {
	Message string `json:"message"`
}

type commandRequest struct {
	Command string `json:"command"`
}

// Gateway implements port.PrincipalGateway over HTTP.
type Gateway struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGateway builds the bridge client.
func NewGateway(cfg config.BridgeSettings, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Gateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (g *Gateway) IsOnline(ctx context.Context, principalID uuid.UUID) (bool, error) {
	var out onlineResponse
	if err := g.do(ctx, http.MethodGet, principalPath(principalID, "online"), nil, &out); err != nil {
		return false, err
	}
	return out.Online, nil
}

func (g *Gateway) Capture(ctx context.Context, principalID uuid.UUID) (domain.Snapshot, error) {
	var out domain.Snapshot
	if err := g.do(ctx, http.MethodGet, principalPath(principalID, "snapshot"), nil, &out); err != nil {
		return domain.Snapshot{}, err
	}
	return out, nil
}

func (g *Gateway) Reset(ctx context.Context, principalID uuid.UUID, baseline domain.Baseline) error {
	return g.do(ctx, http.MethodPost, principalPath(principalID, "reset"), baseline, nil)
}

func (g *Gateway) Restore(ctx context.Context, principalID uuid.UUID, target domain.RestoreTarget) error {
	return g.do(ctx, http.MethodPost, principalPath(principalID, "restore"), target, nil)
}

func (g *Gateway) MaxHealth(ctx context.Context, principalID uuid.UUID) (float64, error) {
	var out maxHealthResponse
	if err := g.do(ctx, http.MethodGet, principalPath(principalID, "max-health"), nil, &out); err != nil {
		return 0, err
	}
	return out.MaxHealth, nil
}

// WorldExists treats a 404 as a missing world.
func (g *Gateway) WorldExists(ctx context.Context, world string) (bool, error) {
	err := g.do(ctx, http.MethodGet, "/worlds/"+url.PathEscape(world), nil, nil)
	if err == nil {
		return true, nil
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

func (g *Gateway) Tell(ctx context.Context, principalID uuid.UUID, message string) error {
	return g.do(ctx, http.MethodPost, principalPath(principalID, "messages"), messageRequest{Message: message}, nil)
}

func (g *Gateway) DispatchCommand(ctx context.Context, command string) error {
	return g.do(ctx, http.MethodPost, "/commands", commandRequest{Command: command}, nil)
}

func (g *Gateway) ShowStatus(ctx context.Context, principalID uuid.UUID, status domain.Status) error {
	return g.do(ctx, http.MethodPut, principalPath(principalID, "status"), status, nil)
}

func (g *Gateway) RemoveStatus(ctx context.Context, principalID uuid.UUID) error {
	return g.do(ctx, http.MethodDelete, principalPath(principalID, "status"), nil, nil)
}

func (g *Gateway) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: marshal: %v", ErrBridge, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrBridge, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("bridge request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s %s: %w", ErrBridge, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrBridge, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %w", ErrBridge, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))})
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrBridge, err)
		}
	}
	return nil
}

func principalPath(id uuid.UUID, tail string) string {
	return "/principals/" + id.String() + "/" + tail
}

var _ port.PrincipalGateway = (*Gateway)(nil)
