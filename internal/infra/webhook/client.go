// Package webhook sends embeds to a Discord-compatible webhook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/THEROER/DoubleLife/internal/core/domain"
	"github.com/THEROER/DoubleLife/internal/core/port"
	"github.com/THEROER/DoubleLife/internal/infra/config"
	"github.com/THEROER/DoubleLife/internal/infra/logger"
)

const (
	username      = "DoubleLife System"
	footerText    = "DoubleLife Plugin"
	userAgent     = "DoubleLife/1.0"
	avatarBaseURL = "https://mc-heads.net/avatar/"
	defaultAvatar = "https://www.minecraft.net/content/dam/games/minecraft/key-art/CC-Update-Part-II_1024x576.jpg"
)

// StatusError is a non-2xx, non-429 webhook response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook: HTTP %d: %s", e.StatusCode, e.Body)
}

type payload struct {
	Content   *string `json:"content"`
	Username  string  `json:"username"`
	AvatarURL string  `json:"avatar_url"`
	Embeds    []embed `json:"embeds"`
}

type embed struct {
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
	Footer      footer `json:"footer"`
}

type footer struct {
	Text string `json:"text"`
}

type messageResponse struct {
	ID string `json:"id"`
}

type rateLimitBody struct {
	RetryAfter float64 `json:"retry_after"`
}

// Client implements port.WebhookSender.
type Client struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    uint
	newBackOff func() backoff.BackOff
	logger     *zap.Logger
}

// NewClient builds a webhook client from settings.
func NewClient(cfg config.WebhookSettings, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	retries := cfg.TransientRetries
	if retries == 0 {
		retries = 1
	}
	return &Client{
		url:        strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		retries:    retries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
		logger: log.With(zap.String("webhook", logger.MaskURL(cfg.URL))),
	}
}

// Send posts a new message. With wait the webhook returns the created message and its id.
func (c *Client) Send(ctx context.Context, msg domain.Notification, wait bool) (string, error) {
	target := c.url
	if wait {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + "wait=true"
	}

	body, err := c.request(ctx, http.MethodPost, target, msg)
	if err != nil {
		return "", err
	}
	if !wait {
		return "", nil
	}

	var out messageResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: decode message id: %v", domain.ErrNotificationFailed, err)
	}
	return out.ID, nil
}

// Edit replaces the content of a previously sent message.
func (c *Client) Edit(ctx context.Context, messageID string, msg domain.Notification) error {
	base, query, _ := strings.Cut(c.url, "?")
	target := base + "/messages/" + messageID
	if query != "" {
		target += "?" + query
	}
	_, err := c.request(ctx, http.MethodPatch, target, msg)
	return err
}

func (c *Client) request(ctx context.Context, method, target string, msg domain.Notification) ([]byte, error) {
	data, err := json.Marshal(buildPayload(msg))
	if err != nil {
		return nil, fmt.Errorf("%w: marshal payload: %v", domain.ErrNotificationFailed, err)
	}

	op := func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		return c.attempt(ctx, method, target, data)
	}

	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.retries),
	)
	if err != nil {
		if errors.Is(err, domain.ErrNotificationRateLimited) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err)
	}
	return body, nil
}

// attempt performs one HTTP round trip. Client errors and rate limits are permanent for the retry loop.
func (c *Client) attempt(ctx context.Context, method, target string, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(data))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("webhook request failed", zap.String("method", method), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		rl := &domain.RateLimitError{RetryAfter: retryAfter(resp.Header, body)}
		c.logger.Warn("webhook rate limited", zap.Duration("retry_after", rl.RetryAfter))
		return nil, backoff.Permanent(rl)
	case resp.StatusCode >= 500:
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, backoff.Permanent(&StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))})
	}
	return body, nil
}

// retryAfter reads the delay from the Retry-After header (seconds) or the JSON retry_after field.
func retryAfter(h http.Header, body []byte) time.Duration {
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	var rl rateLimitBody
	if err := json.Unmarshal(body, &rl); err == nil && rl.RetryAfter > 0 {
		return time.Duration(rl.RetryAfter * float64(time.Second))
	}
	return 0
}

func buildPayload(msg domain.Notification) payload {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return payload{
		Username:  username,
		AvatarURL: avatarURL(msg.PrincipalID),
		Embeds: []embed{{
			Description: msg.Content,
			Color:       msg.Color,
			Timestamp:   ts.UTC().Format(time.RFC3339),
			Footer:      footer{Text: footerText},
		}},
	}
}

func avatarURL(id uuid.UUID) string {
	if id == uuid.Nil {
		return defaultAvatar
	}
	return avatarBaseURL + id.String() + "?size=128&overlay"
}

var _ port.WebhookSender = (*Client)(nil)
