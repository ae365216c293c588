// Package luckperms implements the grant client against the LuckPerms REST API extension.
package luckperms

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

const groupNodePrefix = "group."

// APIError is a non-2xx response from the permission service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("luckperms: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the permission service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsConflict reports whether err is a 409 from the permission service.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// Node is a permission node as exchanged with the REST API. Expiry is epoch seconds, 0 for none.
type Node struct {
	Key    string `json:"key"`
	Value  bool   `json:"value"`
	Expiry int64  `json:"expiry,omitempty"`
}

type userResponse struct {
	UniqueID     string   `json:"uniqueId"`
	Username     string   `json:"username"`
	ParentGroups []string `json:"parentGroups"`
	Nodes        []Node   `json:"nodes"`
}

// Client talks to the LuckPerms REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient builds a client from settings. A nil logger is replaced with a no-op logger.
func NewClient(cfg config.LuckPermsSettings, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (c *Client) WithClock(clock func() time.Time) *Client {
	if clock != nil {
		c.now = clock
	}
	return c
}

// CreateGroup creates the group. An existing group is accepted.
func (c *Client) CreateGroup(ctx context.Context, name string) error {
	err := c.do(ctx, http.MethodPost, "/group", map[string]string{"name": name}, nil)
	if err != nil && !IsConflict(err) {
		return unavailable("create group", err)
	}
	return nil
}

// DeleteGroup deletes the group. A missing group is accepted.
func (c *Client) DeleteGroup(ctx context.Context, name string) error {
	err := c.do(ctx, http.MethodDelete, "/group/"+url.PathEscape(name), nil, nil)
	if err != nil && !IsNotFound(err) {
		return unavailable("delete group", err)
	}
	return nil
}

// AddPermissions adds permission nodes to the group, each expiring after expiry.
func (c *Client) AddPermissions(ctx context.Context, group string, permissions []string, expiry time.Duration) error {
	if len(permissions) == 0 {
		return nil
	}
	exp := c.expiry(expiry)
	nodes := make([]Node, 0, len(permissions))
	for _, perm := range permissions {
		nodes = append(nodes, Node{Key: perm, Value: true, Expiry: exp})
	}
	if err := c.do(ctx, http.MethodPost, "/group/"+url.PathEscape(group)+"/nodes", nodes, nil); err != nil {
		return unavailable("add group permissions", err)
	}
	return nil
}

// AddMembership adds an inheritance node for group to the principal.
func (c *Client) AddMembership(ctx context.Context, principalID uuid.UUID, group string, expiry time.Duration) error {
	node := Node{Key: groupNodePrefix + group, Value: true, Expiry: c.expiry(expiry)}
	if err := c.do(ctx, http.MethodPost, userPath(principalID)+"/nodes", []Node{node}, nil); err != nil {
		return unavailable("add membership", err)
	}
	return nil
}

// RemoveMembership removes the inheritance node for group. Missing nodes are accepted.
func (c *Client) RemoveMembership(ctx context.Context, principalID uuid.UUID, group string) error {
	node := Node{Key: groupNodePrefix + group}
	err := c.do(ctx, http.MethodDelete, userPath(principalID)+"/nodes", []Node{node}, nil)
	if err != nil && !IsNotFound(err) {
		return unavailable("remove membership", err)
	}
	return nil
}

// ClearExpiringGrants removes every temporary node held directly by the principal.
func (c *Client) ClearExpiringGrants(ctx context.Context, principalID uuid.UUID) error {
	user, err := c.user(ctx, principalID)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return unavailable("load user", err)
	}

	var expiring []Node
	for _, n := range user.Nodes {
		if n.Expiry > 0 {
			expiring = append(expiring, Node{Key: n.Key})
		}
	}
	if len(expiring) == 0 {
		return nil
	}
	if err := c.do(ctx, http.MethodDelete, userPath(principalID)+"/nodes", expiring, nil); err != nil {
		return unavailable("clear expiring nodes", err)
	}
	return nil
}

// CurrentGroups lists the principal's inherited group names.
func (c *Client) CurrentGroups(ctx context.Context, principalID uuid.UUID) ([]string, error) {
	user, err := c.user(ctx, principalID)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, unavailable("load user", err)
	}
	if len(user.ParentGroups) > 0 {
		return user.ParentGroups, nil
	}

	var groups []string
	for _, n := range user.Nodes {
		if n.Value && strings.HasPrefix(n.Key, groupNodePrefix) {
			groups = append(groups, strings.TrimPrefix(n.Key, groupNodePrefix))
		}
	}
	return groups, nil
}

func (c *Client) user(ctx context.Context, principalID uuid.UUID) (*userResponse, error) {
	var out userResponse
	if err := c.do(ctx, http.MethodGet, userPath(principalID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) expiry(ttl time.Duration) int64 {
	if at := domain.ExpiryFrom(c.now(), ttl); at != nil {
		return at.Unix()
	}
	return 0
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	c.logger.Debug("luckperms request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}

func userPath(id uuid.UUID) string {
	return "/user/" + id.String()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrGrantServiceUnavailable, err)
}

var _ port.GrantClient = (*Client)(nil)
