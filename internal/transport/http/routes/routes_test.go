package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/THEROER/DoubleLife/internal/core/domain"
	"github.com/THEROER/DoubleLife/internal/infra/clock"
	"github.com/THEROER/DoubleLife/internal/infra/config"
	"github.com/THEROER/DoubleLife/internal/transport/http/middleware"
	httproutes "github.com/THEROER/DoubleLife/internal/transport/http/routes"
	"github.com/THEROER/DoubleLife/internal/usecase"
)

var routesEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeLifecycle struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]domain.Session
	startErr error
	joinErr  error
	starts   []usecase.StartRequest
	joins    []string
	quits    []uuid.UUID
	actions  []domain.ActionEvent
}

func newFakeLifecycle() *fakeLifecycle {
	return &fakeLifecycle{sessions: make(map[uuid.UUID]domain.Session)}
}

func (f *fakeLifecycle) Start(_ context.Context, req usecase.StartRequest) (*usecase.StartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, req)
	if f.startErr != nil {
		return nil, f.startErr
	}
	if _, ok := f.sessions[req.PrincipalID]; ok {
		return nil, domain.ErrAlreadyActive
	}
	duration := 3600
	if req.DurationOverride > 0 {
		duration = req.DurationOverride
	}
	session := domain.NewSession(req.PrincipalID, req.DisplayName, routesEpoch, duration, []string{"moderator"})
	session.TemporaryGroup = domain.TemporaryGroupName("doublelife", req.DisplayName)
	f.sessions[req.PrincipalID] = session
	return &usecase.StartResult{
		Session:  session,
		Profiles: []domain.Profile{{Name: "moderator", Duration: 3600, Permissions: []string{"minecraft.command.kick"}}},
	}, nil
}

func (f *fakeLifecycle) End(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return false, domain.ErrNoActiveSession
	}
	delete(f.sessions, id)
	return true, nil
}

func (f *fakeLifecycle) Session(id uuid.UUID) (domain.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	return s, ok
}

func (f *fakeLifecycle) Sessions() []domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out
}

func (f *fakeLifecycle) HandleJoin(_ context.Context, _ uuid.UUID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, name)
	return f.joinErr
}

func (f *fakeLifecycle) HandleQuit(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quits = append(f.quits, id)
	return nil
}

func (f *fakeLifecycle) LogAction(_ context.Context, event domain.ActionEvent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[event.PrincipalID]; !ok {
		return false
	}
	f.actions = append(f.actions, event)
	return true
}

type fakeChecker struct {
	err error
}

func (c fakeChecker) Ping(context.Context) error        { return c.err }
func (c fakeChecker) HealthCheck(context.Context) error { return c.err }

func newRouter(t *testing.T, lifecycle *fakeLifecycle, auth config.AuthSettings) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("http metrics: %v", err)
	}

	return httproutes.Register(httproutes.Dependencies{
		Config:      &config.AppConfig{App: config.AppSettings{Env: "test"}, Auth: auth},
		Logger:      zaptest.NewLogger(t),
		Lifecycle:   lifecycle,
		Clock:       clock.Fake(routesEpoch.Add(10 * time.Minute)),
		HTTPMetrics: metrics,
		Gatherer:    registry,
		Database:    fakeChecker{},
	})
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	r := newRouter(t, newFakeLifecycle(), config.AuthSettings{})

	rr := doJSON(t, r, http.MethodGet, "/healthz", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestReadinessReportsFailingDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := httproutes.Register(httproutes.Dependencies{
		Config:   &config.AppConfig{},
		Logger:   zaptest.NewLogger(t),
		Database: fakeChecker{},
		Cache:    fakeChecker{err: errors.New("connection refused")},
	})

	rr := doJSON(t, r, http.MethodGet, "/readyz", nil, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	body := decode[map[string]any](t, rr)
	checks, _ := body["checks"].(map[string]any)
	if checks["database"] != "ok" || checks["redis"] != "connection refused" {
		t.Fatalf("unexpected checks: %v", checks)
	}
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	r := newRouter(t, newFakeLifecycle(), config.AuthSettings{})
	doJSON(t, r, http.MethodGet, "/healthz", nil, nil)

	rr := doJSON(t, r, http.MethodGet, "/metrics", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "doublelife_http_requests_total") {
		t.Fatalf("expected http metrics in exposition, got %s", rr.Body.String())
	}
}

func TestStartSessionLifecycle(t *testing.T) {
	lifecycle := newFakeLifecycle()
	r := newRouter(t, lifecycle, config.AuthSettings{})
	id := uuid.New()

	rr := doJSON(t, r, http.MethodPost, "/api/v1/sessions", map[string]any{
		"principal_id": id.String(),
		"display_name": "Alex",
	}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	started := decode[struct {
		Session struct {
			DisplayName      string `json:"display_name"`
			RemainingSeconds int    `json:"remaining_seconds"`
			Remaining        string `json:"remaining"`
			TemporaryGroup   string `json:"temporary_group"`
		} `json:"session"`
		Profiles []struct {
			Name string `json:"name"`
		} `json:"profiles"`
	}](t, rr)
	if started.Session.DisplayName != "Alex" || started.Session.TemporaryGroup != "doublelife-Alex" {
		t.Fatalf("unexpected session payload: %+v", started.Session)
	}
	if started.Session.RemainingSeconds != 3000 || started.Session.Remaining != "50:00" {
		t.Fatalf("expected 50 minutes remaining, got %+v", started.Session)
	}
	if len(started.Profiles) != 1 || started.Profiles[0].Name != "moderator" {
		t.Fatalf("unexpected profiles: %+v", started.Profiles)
	}

	rr = doJSON(t, r, http.MethodPost, "/api/v1/sessions", map[string]any{
		"principal_id": id.String(),
		"display_name": "Alex",
	}, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a second start, got %d", rr.Code)
	}

	rr = doJSON(t, r, http.MethodGet, "/api/v1/sessions/"+id.String(), nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for live session, got %d", rr.Code)
	}

	rr = doJSON(t, r, http.MethodDelete, "/api/v1/sessions/"+id.String(), nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on end, got %d", rr.Code)
	}
	rr = doJSON(t, r, http.MethodDelete, "/api/v1/sessions/"+id.String(), nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when nothing is live, got %d", rr.Code)
	}
}

func TestStartSessionErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "disabled", err: domain.ErrSystemDisabled, status: http.StatusServiceUnavailable},
		{name: "not eligible", err: domain.ErrNoEligibleProfile, status: http.StatusForbidden},
		{name: "grant service", err: errors.Join(domain.ErrGrantServiceUnavailable, errors.New("dial tcp")), status: http.StatusServiceUnavailable},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lifecycle := newFakeLifecycle()
			lifecycle.startErr = tc.err
			r := newRouter(t, lifecycle, config.AuthSettings{})

			rr := doJSON(t, r, http.MethodPost, "/api/v1/sessions", map[string]any{
				"principal_id": uuid.NewString(),
				"display_name": "Alex",
			}, nil)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if body := decode[map[string]string](t, rr); body["trace_id"] == "" {
				t.Fatal("expected trace id in error body")
			}
		})
	}
}

func TestStartSessionValidation(t *testing.T) {
	lifecycle := newFakeLifecycle()
	r := newRouter(t, lifecycle, config.AuthSettings{})

	rr := doJSON(t, r, http.MethodPost, "/api/v1/sessions", map[string]any{"principal_id": "not-a-uuid", "display_name": "Alex"}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad uuid, got %d", rr.Code)
	}
	rr = doJSON(t, r, http.MethodPost, "/api/v1/sessions", map[string]any{"principal_id": uuid.NewString()}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without display name, got %d", rr.Code)
	}
	if len(lifecycle.starts) != 0 {
		t.Fatalf("expected no start attempts, got %d", len(lifecycle.starts))
	}
}

func TestToggleSession(t *testing.T) {
	lifecycle := newFakeLifecycle()
	r := newRouter(t, lifecycle, config.AuthSettings{})
	path := "/api/v1/sessions/" + uuid.NewString() + "/toggle"

	rr := doJSON(t, r, http.MethodPost, path, map[string]any{"display_name": "Alex", "duration": 600}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	first := decode[struct {
		Action  string `json:"action"`
		Session *struct {
			Duration int `json:"duration"`
		} `json:"session"`
	}](t, rr)
	if first.Action != "started" || first.Session == nil || first.Session.Duration != 600 {
		t.Fatalf("unexpected toggle response: %+v", first)
	}

	rr = doJSON(t, r, http.MethodPost, path, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if second := decode[map[string]any](t, rr); second["action"] != "ended" {
		t.Fatalf("expected ended, got %v", second)
	}
	if len(lifecycle.Sessions()) != 0 {
		t.Fatal("expected no live sessions after toggling off")
	}
}

func TestPrincipalEvents(t *testing.T) {
	lifecycle := newFakeLifecycle()
	r := newRouter(t, lifecycle, config.AuthSettings{})
	id := uuid.New()
	base := "/api/v1/principals/" + id.String()

	rr := doJSON(t, r, http.MethodPost, base+"/actions", map[string]any{"kind": "command", "command": "/gamemode creative"}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for an action without a session, got %d", rr.Code)
	}
	if body := decode[map[string]bool](t, rr); body["accepted"] {
		t.Fatal("expected action to be ignored without a session")
	}

	if _, err := lifecycle.Start(context.Background(), usecase.StartRequest{PrincipalID: id, DisplayName: "Alex"}); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	rr = doJSON(t, r, http.MethodPost, base+"/actions", map[string]any{
		"kind": "teleport",
		"from": map[string]any{"world": "world", "x": 1, "y": 64, "z": 1},
		"to":   map[string]any{"world": "world_nether", "x": 8, "y": 70, "z": -3},
	}, nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(lifecycle.actions) != 1 {
		t.Fatalf("expected one action, got %d", len(lifecycle.actions))
	}
	if got := lifecycle.actions[0].Line(); got != "Teleport: world:1,64,1 -> world_nether:8,70,-3" {
		t.Fatalf("unexpected action line %q", got)
	}

	for _, body := range []map[string]any{
		{"kind": "dance"},
		{"kind": "teleport", "from": map[string]any{"world": "world"}},
		{},
	} {
		if rr := doJSON(t, r, http.MethodPost, base+"/actions", body, nil); rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d", body, rr.Code)
		}
	}

	if rr := doJSON(t, r, http.MethodPost, base+"/join", map[string]any{"display_name": "Alex"}, nil); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on join, got %d", rr.Code)
	}
	if rr := doJSON(t, r, http.MethodPost, base+"/quit", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on quit, got %d", rr.Code)
	}
	if len(lifecycle.joins) != 1 || lifecycle.joins[0] != "Alex" || len(lifecycle.quits) != 1 {
		t.Fatalf("unexpected presence calls: joins=%v quits=%v", lifecycle.joins, lifecycle.quits)
	}

	lifecycle.joinErr = errors.New("store down")
	if rr := doJSON(t, r, http.MethodPost, base+"/join", map[string]any{"display_name": "Alex"}, nil); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when join fails, got %d", rr.Code)
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	auth := config.AuthSettings{JWTSecret: "routes-secret", Issuer: "doublelife"}
	r := newRouter(t, newFakeLifecycle(), auth)

	rr := doJSON(t, r, http.MethodGet, "/api/v1/sessions", nil, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "bridge",
		Issuer:    "doublelife",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte(auth.JWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	rr = doJSON(t, r, http.MethodGet, "/api/v1/sessions", nil, http.Header{"Authorization": {"Bearer " + token}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
	if body := decode[map[string]any](t, rr); body["count"] != float64(0) {
		t.Fatalf("expected empty session list, got %v", body)
	}

	if rr := doJSON(t, r, http.MethodGet, "/healthz", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("expected health to stay public, got %d", rr.Code)
	}
}
