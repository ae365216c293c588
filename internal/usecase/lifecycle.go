package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/THEROER/DoubleLife/internal/core/domain"
	"github.com/THEROER/DoubleLife/internal/core/port"
	"github.com/THEROER/DoubleLife/internal/infra/clock"
	"github.com/THEROER/DoubleLife/internal/infra/config"
	"github.com/THEROER/DoubleLife/internal/infra/logger"
	"github.com/THEROER/DoubleLife/internal/repository"
)

const (
	msgActivated      = "DoubleLife activated! Duration: "
	msgEnded          = "DoubleLife ended."
	msgRestored       = "Your DoubleLife session has been restored. Time remaining: "
	msgExpiredOffline = "Your DoubleLife session expired while you were offline. Your inventory has been restored."

	defaultSweepInterval = time.Second
)

// StartRequest asks for a new session for a principal.
type StartRequest struct {
	PrincipalID uuid.UUID
	DisplayName string
	// DurationOverride in seconds; values <= 0 defer to the eligible profiles.
	DurationOverride int
}

// StartResult describes a freshly started session.
type StartResult struct {
	Session  domain.Session
	Profiles []domain.Profile
}

// LifecycleDeps carries the collaborators of a LifecycleManager. Events, Notifier, Metrics, Clock,
// Tracer and Logger are optional.
type LifecycleDeps struct {
	Grants   port.GrantClient
	Store    port.SessionStore
	Gateway  port.PrincipalGateway
	Events   port.EventPublisher
	Notifier port.Notifier
	Metrics  port.MetricsRecorder
	Clock    clock.Clock
	Tracer   trace.Tracer
	Logger   *zap.Logger
}

// liveEntry is one slot of the live table. The session value is never mutated after the entry is
// stored; replacing a session means storing a new entry.
type liveEntry struct {
	session domain.Session
	pending bool
	timer   atomic.Pointer[clock.Timer]
}

func (e *liveEntry) stopTimer() {
	if t := e.timer.Swap(nil); t != nil {
		t.Stop()
	}
}

// LifecycleManager owns the table of live sessions and every transition in and out of it.
type LifecycleManager struct {
	cfg      config.DoubleLifeSettings
	look     domain.StatusStyle
	profiles *ProfileCatalog
	hooks    *HookRunner

	grants   port.GrantClient
	store    port.SessionStore
	gateway  port.PrincipalGateway
	events   port.EventPublisher
	notifier port.Notifier
	metrics  port.MetricsRecorder
	clock    clock.Clock
	tracer   trace.Tracer
	logger   *zap.Logger

	live *xsync.MapOf[uuid.UUID, *liveEntry]
	away *xsync.MapOf[uuid.UUID, struct{}]

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLifecycleManager constructs a LifecycleManager from configuration and collaborators.
func NewLifecycleManager(cfg config.DoubleLifeSettings, deps LifecycleDeps) *LifecycleManager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("")
	}

	profiles := NewProfileCatalog(cfg.ProfileList())
	return &LifecycleManager{
		cfg:      cfg,
		look:     domain.StatusStyle{Color: cfg.BossBarColor, Style: cfg.BossBarStyle},
		profiles: profiles,
		hooks:    NewHookRunner(deps.Gateway, cfg.Commands, profiles, deps.Logger),
		grants:   deps.Grants,
		store:    deps.Store,
		gateway:  deps.Gateway,
		events:   deps.Events,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		clock:    deps.Clock,
		tracer:   deps.Tracer,
		logger:   deps.Logger,
		live:     xsync.NewMapOf[uuid.UUID, *liveEntry](),
		away:     xsync.NewMapOf[uuid.UUID, struct{}](),
		stop:     make(chan struct{}),
	}
}

// Start elevates a principal. Nothing about the principal is changed unless the permission grant
// succeeds and the session is persisted.
func (m *LifecycleManager) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	ctx, span := m.tracer.Start(ctx, "lifecycle.Start",
		trace.WithAttributes(attribute.String("principal.id", req.PrincipalID.String())))
	defer span.End()

	result, err := m.start(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.recordStartFailure(err)
		return nil, err
	}
	return result, nil
}

func (m *LifecycleManager) start(ctx context.Context, req StartRequest) (*StartResult, error) {
	if !m.cfg.Enabled {
		return nil, domain.ErrSystemDisabled
	}
	id := req.PrincipalID
	if _, ok := m.live.Load(id); ok {
		return nil, domain.ErrAlreadyActive
	}

	groups, err := m.grants.CurrentGroups(ctx, id)
	if err != nil {
		return nil, grantError("current groups", err)
	}
	eligible := m.profiles.Eligible(groups)
	if len(eligible) == 0 {
		return nil, domain.ErrNoEligibleProfile
	}

	now := m.clock.Now()
	duration := ResolveDuration(eligible, req.DurationOverride, m.cfg.DefaultDuration)
	session := domain.NewSession(id, req.DisplayName, now.Truncate(time.Millisecond), duration, profileNames(eligible))
	session.TemporaryGroup = domain.TemporaryGroupName(m.cfg.TemporaryGroup, req.DisplayName)

	reservation := &liveEntry{session: session, pending: true}
	if _, loaded := m.live.LoadOrStore(id, reservation); loaded {
		return nil, domain.ErrAlreadyActive
	}

	m.hooks.Run(ctx, BeforeStart, session, now)

	snapshot, err := m.gateway.Capture(ctx, id)
	if err != nil {
		m.remove(id, reservation)
		return nil, fmt.Errorf("capture principal state: %w", err)
	}
	snapshot.OriginalGroups = slices.Clone(groups)
	session.Snapshot = snapshot

	if err := m.grant(ctx, session, time.Duration(session.Duration)*time.Second); err != nil {
		m.rollbackGrant(ctx, session)
		m.remove(id, reservation)
		return nil, err
	}

	// The snapshot must be durable before the principal is wiped.
	if err := m.store.Save(ctx, session); err != nil {
		m.rollbackGrant(ctx, session)
		m.remove(id, reservation)
		return nil, fmt.Errorf("persist session: %w", err)
	}

	if err := m.gateway.Reset(ctx, id, domain.DefaultBaseline()); err != nil {
		m.logger.Warn("reset principal state failed", append(logger.Principal(id, session.DisplayName), zap.Error(err))...)
	}

	entry := &liveEntry{session: session}
	m.live.Store(id, entry)
	m.away.Delete(id)

	m.armTimer(entry, now)
	m.showStatus(ctx, session, now)
	m.tell(ctx, id, msgActivated+session.FormattedRemaining(now))
	m.publishStarted(ctx, session)
	if m.notifier != nil {
		if err := m.notifier.SessionStarted(session); err != nil {
			m.logger.Debug("start notification not queued", zap.Error(err))
		}
	}
	m.hooks.Run(ctx, AfterStart, session, now)

	if m.metrics != nil {
		m.metrics.SessionStarted(port.ResultOK)
		m.metrics.ActiveSessions(m.activeCount())
	}
	m.logger.Info("doublelife session started", append(logger.Principal(id, session.DisplayName),
		zap.Strings("profiles", session.ActiveProfiles),
		zap.Int("duration", session.Duration),
		zap.String("group", session.TemporaryGroup),
	)...)

	return &StartResult{Session: session.Clone(), Profiles: eligible}, nil
}

// End terminates the principal's session, restoring the captured state and revoking the grant.
func (m *LifecycleManager) End(ctx context.Context, principalID uuid.UUID) (bool, error) {
	ctx, span := m.tracer.Start(ctx, "lifecycle.End",
		trace.WithAttributes(attribute.String("principal.id", principalID.String())))
	defer span.End()

	entry, ok := m.live.Load(principalID)
	if !ok || entry.pending || !m.remove(principalID, entry) {
		return false, domain.ErrNoActiveSession
	}
	m.finish(ctx, entry, domain.EndReasonManual)
	return true, nil
}

// Sweep expires every committed session whose time is up. Returns how many were expired.
func (m *LifecycleManager) Sweep(ctx context.Context) int {
	now := m.clock.Now()
	var expired []*liveEntry
	m.live.Range(func(_ uuid.UUID, e *liveEntry) bool {
		if !e.pending && e.session.IsExpired(now) {
			expired = append(expired, e)
		}
		return true
	})
	for _, e := range expired {
		m.expireEntry(ctx, e)
	}
	return len(expired)
}

// RefreshStatus pushes the current countdown to every connected principal with a live session.
func (m *LifecycleManager) RefreshStatus(ctx context.Context) {
	if !m.cfg.ShowBossBar {
		return
	}
	now := m.clock.Now()
	for _, s := range m.committed() {
		if _, away := m.away.Load(s.PrincipalID); away {
			continue
		}
		m.showStatus(ctx, s, now)
	}
}

// Run drives the sweep and status refresh until ctx is cancelled or Shutdown is called.
func (m *LifecycleManager) Run(ctx context.Context) error {
	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.stop:
			return nil
		case <-ticker.C:
			m.Sweep(ctx)
			m.RefreshStatus(ctx)
		}
	}
}

// HandleJoin reattaches a reconnecting principal to their session, or settles a session that ran
// out while they were away.
func (m *LifecycleManager) HandleJoin(ctx context.Context, principalID uuid.UUID, displayName string) error {
	ctx, span := m.tracer.Start(ctx, "lifecycle.HandleJoin",
		trace.WithAttributes(attribute.String("principal.id", principalID.String())))
	defer span.End()

	m.away.Delete(principalID)
	now := m.clock.Now()

	if entry, ok := m.live.Load(principalID); ok {
		if entry.pending {
			return nil
		}
		if entry.session.IsExpired(now) {
			if m.remove(principalID, entry) {
				m.finish(ctx, entry, domain.EndReasonExpired)
			}
			return nil
		}
		m.showStatus(ctx, entry.session, now)
		m.tell(ctx, principalID, msgRestored+entry.session.FormattedRemaining(now))
		return nil
	}

	stored, err := m.store.Load(ctx, principalID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case errors.Is(err, repository.ErrCorruptSession):
		m.logger.Warn("ignoring unreadable stored session", append(logger.Principal(principalID, displayName), zap.Error(err))...)
		return nil
	case err != nil:
		span.RecordError(err)
		return fmt.Errorf("load session: %w", err)
	}

	if stored.Active && !stored.IsExpired(now) {
		m.resume(ctx, *stored, now)
		return nil
	}
	m.settleOffline(ctx, *stored, now)
	return nil
}

// HandleQuit persists the session of a disconnecting principal. The session keeps running.
func (m *LifecycleManager) HandleQuit(ctx context.Context, principalID uuid.UUID) error {
	ctx, span := m.tracer.Start(ctx, "lifecycle.HandleQuit",
		trace.WithAttributes(attribute.String("principal.id", principalID.String())))
	defer span.End()

	entry, ok := m.live.Load(principalID)
	if !ok || entry.pending {
		return nil
	}
	m.away.Store(principalID, struct{}{})

	if err := m.store.Save(ctx, entry.session); err != nil {
		span.RecordError(err)
		return fmt.Errorf("persist session: %w", err)
	}
	if err := m.gateway.RemoveStatus(ctx, principalID); err != nil {
		m.logger.Debug("remove status display failed", zap.String("principal_id", principalID.String()), zap.Error(err))
	}
	return nil
}

// LogAction forwards an action to the notifier when the principal is elevated. Returns whether the
// event was accepted.
func (m *LifecycleManager) LogAction(ctx context.Context, event domain.ActionEvent) bool {
	entry, ok := m.live.Load(event.PrincipalID)
	if !ok || entry.pending || m.notifier == nil {
		return false
	}
	if event.DisplayName == "" {
		event.DisplayName = entry.session.DisplayName
	}
	if event.At.IsZero() {
		event.At = m.clock.Now()
	}
	if err := m.notifier.Action(event); err != nil {
		logger.WithContext(ctx, m.logger).Debug("action not queued", zap.Error(err))
		return false
	}
	return true
}

// Session returns a copy of the principal's live session.
func (m *LifecycleManager) Session(principalID uuid.UUID) (domain.Session, bool) {
	entry, ok := m.live.Load(principalID)
	if !ok || entry.pending {
		return domain.Session{}, false
	}
	return entry.session.Clone(), true
}

// Sessions returns copies of all live sessions ordered by display name.
func (m *LifecycleManager) Sessions() []domain.Session {
	out := m.committed()
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].PrincipalID.String() < out[j].PrincipalID.String()
	})
	return out
}

// Shutdown stops the scheduler and all expiry timers, persists every live session and closes the
// notifier. Sessions resume from the store on the next join.
func (m *LifecycleManager) Shutdown(ctx context.Context) {
	m.stopOnce.Do(func() { close(m.stop) })

	var entries []*liveEntry
	m.live.Range(func(_ uuid.UUID, e *liveEntry) bool {
		if !e.pending {
			entries = append(entries, e)
		}
		return true
	})
	for _, e := range entries {
		e.stopTimer()
		id := e.session.PrincipalID
		if err := m.store.Save(ctx, e.session); err != nil {
			m.logger.Error("persist session on shutdown failed", append(logger.Principal(id, e.session.DisplayName), zap.Error(err))...)
		}
		if err := m.gateway.RemoveStatus(ctx, id); err != nil {
			m.logger.Debug("remove status display failed", zap.String("principal_id", id.String()), zap.Error(err))
		}
	}
	if m.notifier != nil {
		m.notifier.Close()
	}
	m.logger.Info("doublelife lifecycle stopped", zap.Int("persisted", len(entries)))
}

func (m *LifecycleManager) expire(entry *liveEntry) {
	if cur, ok := m.live.Load(entry.session.PrincipalID); !ok || cur != entry {
		return
	}
	m.expireEntry(context.Background(), entry)
}

// expireEntry ends the session at once when the principal is connected. Otherwise the session is
// stored inactive and the restore waits for the next join.
func (m *LifecycleManager) expireEntry(ctx context.Context, entry *liveEntry) {
	id := entry.session.PrincipalID
	online, err := m.gateway.IsOnline(ctx, id)
	if err != nil {
		m.logger.Warn("presence check failed, treating principal as offline", zap.String("principal_id", id.String()), zap.Error(err))
		online = false
	}
	if !m.remove(id, entry) {
		return
	}
	if online {
		m.finish(ctx, entry, domain.EndReasonExpired)
		return
	}

	entry.stopTimer()
	session := entry.session.Clone()
	now := m.clock.Now()
	session.End(now)
	if err := m.store.Save(ctx, session); err != nil {
		m.logger.Error("persist expired session failed", append(logger.Principal(id, session.DisplayName), zap.Error(err))...)
	}
	if m.events != nil {
		event := domain.SessionExpiredOfflineEvent{
			EventID:     uuid.NewString(),
			PrincipalID: id.String(),
			DisplayName: session.DisplayName,
			Profiles:    session.ActiveProfiles,
			ExpiredAt:   now,
		}
		if err := m.events.PublishSessionExpiredOffline(ctx, event); err != nil {
			m.logger.Warn("publish session expired offline failed", zap.Error(err))
		}
	}
	if m.metrics != nil {
		m.metrics.SessionEnded(domain.EndReasonExpiredOffline)
		m.metrics.ActiveSessions(m.activeCount())
	}
	m.logger.Info("doublelife session expired while offline", logger.Principal(id, session.DisplayName)...)
}

// finish runs the end sequence for an entry already removed from the live table.
func (m *LifecycleManager) finish(ctx context.Context, entry *liveEntry, reason string) {
	entry.stopTimer()
	session := entry.session.Clone()
	id := session.PrincipalID
	now := m.clock.Now()

	m.hooks.Run(ctx, BeforeEnd, session, now)
	session.End(now)
	m.away.Delete(id)

	if err := m.gateway.RemoveStatus(ctx, id); err != nil {
		m.logger.Debug("remove status display failed", zap.String("principal_id", id.String()), zap.Error(err))
	}
	m.restore(ctx, session)
	m.revoke(ctx, session)
	if err := m.store.Delete(ctx, id); err != nil {
		m.logger.Error("delete stored session failed", append(logger.Principal(id, session.DisplayName), zap.Error(err))...)
	}
	m.tell(ctx, id, msgEnded)
	m.publishEnded(ctx, session, reason)
	if m.notifier != nil {
		if err := m.notifier.SessionEnded(session, reason); err != nil {
			m.logger.Debug("end notification not queued", zap.Error(err))
		}
	}
	m.hooks.Run(ctx, AfterEnd, session, now)

	if m.metrics != nil {
		m.metrics.SessionEnded(reason)
		m.metrics.ActiveSessions(m.activeCount())
	}
	m.logger.Info("doublelife session ended", append(logger.Principal(id, session.DisplayName), zap.String("reason", reason))...)
}

func (m *LifecycleManager) resume(ctx context.Context, session domain.Session, now time.Time) {
	id := session.PrincipalID
	entry := &liveEntry{session: session}
	if _, loaded := m.live.LoadOrStore(id, entry); loaded {
		return
	}

	var expiry time.Duration
	if !session.Unbounded() {
		expiry = max(session.Remaining(now), time.Second)
	}
	if err := m.grant(ctx, session, expiry); err != nil {
		m.logger.Warn("reapply grant failed", append(logger.Principal(id, session.DisplayName), zap.Error(err))...)
	}

	m.showStatus(ctx, session, now)
	m.tell(ctx, id, msgRestored+session.FormattedRemaining(now))
	if m.events != nil {
		event := domain.SessionRestoredEvent{
			EventID:          uuid.NewString(),
			PrincipalID:      id.String(),
			DisplayName:      session.DisplayName,
			RemainingSeconds: session.RemainingSeconds(now),
			RestoredAt:       now,
		}
		if err := m.events.PublishSessionRestored(ctx, event); err != nil {
			m.logger.Warn("publish session restored failed", zap.Error(err))
		}
	}
	if m.metrics != nil {
		m.metrics.ActiveSessions(m.activeCount())
	}
	m.logger.Info("doublelife session restored", append(logger.Principal(id, session.DisplayName),
		zap.Int("remaining", session.RemainingSeconds(now)))...)

	m.armTimer(entry, now)
}

// settleOffline completes a session that ended while its principal was away.
func (m *LifecycleManager) settleOffline(ctx context.Context, session domain.Session, now time.Time) {
	id := session.PrincipalID
	if session.End(now) && m.metrics != nil {
		m.metrics.SessionEnded(domain.EndReasonExpiredOffline)
	}

	m.restore(ctx, session)
	m.revoke(ctx, session)
	if err := m.store.Delete(ctx, id); err != nil {
		m.logger.Error("delete stored session failed", append(logger.Principal(id, session.DisplayName), zap.Error(err))...)
	}
	m.tell(ctx, id, msgExpiredOffline)
	if m.notifier != nil {
		if err := m.notifier.SessionEnded(session, domain.EndReasonExpiredOffline); err != nil {
			m.logger.Debug("end notification not queued", zap.Error(err))
		}
	}
	m.publishEnded(ctx, session, domain.EndReasonExpiredOffline)
	m.logger.Info("settled session that expired offline", logger.Principal(id, session.DisplayName)...)
}

// grant creates the temporary group and attaches the principal. expiry 0 means permanent.
func (m *LifecycleManager) grant(ctx context.Context, session domain.Session, expiry time.Duration) error {
	group := session.TemporaryGroup
	if err := m.grants.CreateGroup(ctx, group); err != nil {
		return grantError("create group", err)
	}
	if err := m.grants.AddPermissions(ctx, group, m.profiles.Permissions(session.ActiveProfiles), expiry); err != nil {
		return grantError("add permissions", err)
	}
	if err := m.grants.AddMembership(ctx, session.PrincipalID, group, expiry); err != nil {
		return grantError("add membership", err)
	}
	return nil
}

func (m *LifecycleManager) rollbackGrant(ctx context.Context, session domain.Session) {
	ctx = context.WithoutCancel(ctx)
	if err := m.grants.RemoveMembership(ctx, session.PrincipalID, session.TemporaryGroup); err != nil {
		m.logger.Warn("rollback membership failed", zap.String("group", session.TemporaryGroup), zap.Error(err))
	}
	if err := m.grants.DeleteGroup(ctx, session.TemporaryGroup); err != nil {
		m.logger.Warn("rollback group failed", zap.String("group", session.TemporaryGroup), zap.Error(err))
	}
}

// revoke reverses the grant. Every step is attempted regardless of earlier failures.
func (m *LifecycleManager) revoke(ctx context.Context, session domain.Session) {
	id := session.PrincipalID
	if group := session.TemporaryGroup; group != "" {
		if err := m.grants.RemoveMembership(ctx, id, group); err != nil {
			m.logger.Warn("remove membership failed", zap.String("principal_id", id.String()), zap.String("group", group), zap.Error(err))
		}
		if err := m.grants.DeleteGroup(ctx, group); err != nil {
			m.logger.Warn("delete group failed", zap.String("group", group), zap.Error(err))
		}
	}
	if err := m.grants.ClearExpiringGrants(ctx, id); err != nil {
		m.logger.Warn("clear expiring grants failed", zap.String("principal_id", id.String()), zap.Error(err))
	}
}

// restore pushes the captured state back. The location is skipped when its world is gone and
// health is clamped to the principal's current maximum.
func (m *LifecycleManager) restore(ctx context.Context, session domain.Session) {
	id := session.PrincipalID
	target := domain.RestoreTarget{Snapshot: session.Snapshot.Clone()}

	if loc := target.Snapshot.Location; loc != nil {
		exists, err := m.gateway.WorldExists(ctx, loc.World)
		if err != nil {
			m.logger.Warn("world lookup failed", zap.String("world", loc.World), zap.Error(err))
		}
		target.SkipLocation = err != nil || !exists
	}
	if maxHealth, err := m.gateway.MaxHealth(ctx, id); err == nil {
		target.Snapshot.Health = domain.ClampHealth(target.Snapshot.Health, maxHealth)
	} else {
		m.logger.Debug("max health lookup failed", zap.String("principal_id", id.String()), zap.Error(err))
	}

	if err := m.gateway.Restore(ctx, id, target); err != nil {
		m.logger.Error("restore principal state failed", append(logger.Principal(id, session.DisplayName), zap.Error(err))...)
	}
}

func (m *LifecycleManager) armTimer(entry *liveEntry, now time.Time) {
	if entry.session.Unbounded() {
		return
	}
	t := m.clock.AfterFunc(entry.session.ExpiresAt().Sub(now), func() { m.expire(entry) })
	entry.timer.Store(t)
}

// remove deletes id from the live table only if it still maps to entry.
func (m *LifecycleManager) remove(id uuid.UUID, entry *liveEntry) bool {
	removed := false
	m.live.Compute(id, func(cur *liveEntry, loaded bool) (*liveEntry, bool) {
		if !loaded {
			return nil, true
		}
		if cur != entry {
			return cur, false
		}
		removed = true
		return nil, true
	})
	return removed
}

func (m *LifecycleManager) committed() []domain.Session {
	var out []domain.Session
	m.live.Range(func(_ uuid.UUID, e *liveEntry) bool {
		if !e.pending {
			out = append(out, e.session.Clone())
		}
		return true
	})
	return out
}

func (m *LifecycleManager) activeCount() int {
	n := 0
	m.live.Range(func(_ uuid.UUID, e *liveEntry) bool {
		if !e.pending {
			n++
		}
		return true
	})
	return n
}

func (m *LifecycleManager) showStatus(ctx context.Context, session domain.Session, now time.Time) {
	if !m.cfg.ShowBossBar {
		return
	}
	if err := m.gateway.ShowStatus(ctx, session.PrincipalID, domain.StatusOf(session, now, m.look)); err != nil {
		m.logger.Debug("show status display failed", zap.String("principal_id", session.PrincipalID.String()), zap.Error(err))
	}
}

func (m *LifecycleManager) tell(ctx context.Context, id uuid.UUID, message string) {
	if err := m.gateway.Tell(ctx, id, message); err != nil {
		m.logger.Debug("tell principal failed", zap.String("principal_id", id.String()), zap.Error(err))
	}
}

func (m *LifecycleManager) publishStarted(ctx context.Context, session domain.Session) {
	if m.events == nil {
		return
	}
	event := domain.SessionStartedEvent{
		EventID:        uuid.NewString(),
		PrincipalID:    session.PrincipalID.String(),
		DisplayName:    session.DisplayName,
		Profiles:       session.ActiveProfiles,
		Duration:       session.Duration,
		TemporaryGroup: session.TemporaryGroup,
		StartedAt:      session.StartTime,
	}
	if err := m.events.PublishSessionStarted(ctx, event); err != nil {
		m.logger.Warn("publish session started failed", zap.Error(err))
	}
}

func (m *LifecycleManager) publishEnded(ctx context.Context, session domain.Session, reason string) {
	if m.events == nil {
		return
	}
	endedAt := m.clock.Now()
	if session.EndTime != nil {
		endedAt = *session.EndTime
	}
	event := domain.SessionEndedEvent{
		EventID:     uuid.NewString(),
		PrincipalID: session.PrincipalID.String(),
		DisplayName: session.DisplayName,
		Profiles:    session.ActiveProfiles,
		Reason:      reason,
		StartedAt:   session.StartTime,
		EndedAt:     endedAt,
	}
	if err := m.events.PublishSessionEnded(ctx, event); err != nil {
		m.logger.Warn("publish session ended failed", zap.Error(err))
	}
}

func (m *LifecycleManager) recordStartFailure(err error) {
	if m.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, domain.ErrAlreadyActive),
		errors.Is(err, domain.ErrNoEligibleProfile),
		errors.Is(err, domain.ErrSystemDisabled):
		m.metrics.SessionStarted(port.ResultRejected)
	default:
		m.metrics.SessionStarted(port.ResultError)
	}
}

func grantError(op string, err error) error {
	if errors.Is(err, domain.ErrGrantServiceUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrGrantServiceUnavailable, err)
}
