package usecase

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/THEROER/DoubleLife/internal/core/domain"
	"github.com/THEROER/DoubleLife/internal/core/port"
	"github.com/THEROER/DoubleLife/internal/infra/clock"
	"github.com/THEROER/DoubleLife/internal/infra/config"
)

const (
	notifyStart  = "start"
	notifyEnd    = "end"
	notifyAction = "action"
	notifySystem = "system"

	timeLayout         = "2006-01-02 15:04:05"
	offlineEndProfiles = "Session expired (offline)"

	defaultBatchWindow = 2 * time.Second
	defaultMaxEntries  = 25
	defaultRetryFloor  = 3 * time.Second
	defaultQueueSize   = 256
)

type actionBatch struct {
	name     string
	lines    []string
	timer    *clock.Timer
	seq      uint64
	retrying bool
}

// job is either an immediate notice (msg) or a detached action batch (batch != nil).
type job struct {
	kind      string
	msg       domain.Notification
	principal uuid.UUID
	batch     *actionBatch
}

// Dispatcher delivers session notifications on a single background worker. Start, end and system
// notices go out immediately; action lines are batched per principal.
type Dispatcher struct {
	sender  port.WebhookSender
	cfg     config.WebhookSettings
	clock   clock.Clock
	metrics port.MetricsRecorder
	logger  *zap.Logger

	window     time.Duration
	maxEntries int
	retryFloor time.Duration

	batches     *xsync.MapOf[uuid.UUID, actionBatch]
	lastMessage *xsync.MapOf[uuid.UUID, string]
	backoffs    *xsync.MapOf[uuid.UUID, *backoff.ExponentialBackOff]

	seq       atomic.Uint64
	jobs      chan job
	quit      chan struct{}
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the worker goroutine. When cfg is not active every call is a no-op.
func NewDispatcher(sender port.WebhookSender, cfg config.WebhookSettings, clk clock.Clock, metrics port.MetricsRecorder, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real()
	}
	d := &Dispatcher{
		sender:      sender,
		cfg:         cfg,
		clock:       clk,
		metrics:     metrics,
		logger:      logger,
		window:      cfg.BatchWindow,
		maxEntries:  cfg.BatchMaxEntries,
		retryFloor:  cfg.RetryFloor,
		batches:     xsync.NewMapOf[uuid.UUID, actionBatch](),
		lastMessage: xsync.NewMapOf[uuid.UUID, string](),
		backoffs:    xsync.NewMapOf[uuid.UUID, *backoff.ExponentialBackOff](),
		jobs:        make(chan job, defaultQueueSize),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	if d.window <= 0 {
		d.window = defaultBatchWindow
	}
	if d.maxEntries <= 0 {
		d.maxEntries = defaultMaxEntries
	}
	if d.retryFloor <= 0 {
		d.retryFloor = defaultRetryFloor
	}

	go d.run()
	return d
}

// SessionStarted queues the start notification.
func (d *Dispatcher) SessionStarted(session domain.Session) error {
	if !d.active() {
		return nil
	}
	content := render(d.cfg.StartMessage, strings.NewReplacer(
		"{player}", session.DisplayName,
		"{profile}", strings.Join(session.ActiveProfiles, ", "),
		"{duration}", session.FormattedRemaining(session.StartTime),
		"{time}", d.clock.Now().Format(timeLayout),
	))
	return d.enqueue(job{kind: notifyStart, msg: d.message(session.PrincipalID, content, domain.ColorStart)})
}

// SessionEnded queues the end notification. Sessions that ran out while the principal was away are
// labelled as such in place of the profile list.
func (d *Dispatcher) SessionEnded(session domain.Session, reason string) error {
	if !d.active() {
		return nil
	}
	profiles := strings.Join(session.ActiveProfiles, ", ")
	if reason == domain.EndReasonExpiredOffline {
		profiles = offlineEndProfiles
	}
	content := render(d.cfg.EndMessage, strings.NewReplacer(
		"{player}", session.DisplayName,
		"{profile}", profiles,
		"{time}", d.clock.Now().Format(timeLayout),
	))
	return d.enqueue(job{kind: notifyEnd, msg: d.message(session.PrincipalID, content, domain.ColorEnd)})
}

// SystemEnabled announces that elevation is available on the server.
func (d *Dispatcher) SystemEnabled(serverName string) error {
	if !d.active() {
		return nil
	}
	content := "**DoubleLife enabled** on server `" + serverName + "`"
	return d.enqueue(job{kind: notifySystem, msg: d.message(uuid.Nil, content, domain.ColorStart)})
}

// SystemDisabled announces that the server is shutting elevation down.
func (d *Dispatcher) SystemDisabled(serverName string) error {
	if !d.active() {
		return nil
	}
	content := "**DoubleLife disabled** on server `" + serverName + "`"
	return d.enqueue(job{kind: notifySystem, msg: d.message(uuid.Nil, content, domain.ColorEnd)})
}

// Action appends one line to the principal's pending batch. The batch is flushed when it reaches the
// configured size or when the batch window elapses, whichever comes first. A flushed batch is
// detached from the table at once, so lines arriving while it waits in the queue start a new batch.
func (d *Dispatcher) Action(event domain.ActionEvent) error {
	if !d.active() || !d.cfg.ActionLog {
		return nil
	}
	if d.closed.Load() {
		return ErrDispatcherClosed
	}

	id := event.PrincipalID
	line := event.Line()
	var detached *actionBatch

	d.batches.Compute(id, func(b actionBatch, _ bool) (actionBatch, bool) {
		b.name = event.DisplayName
		b.lines = append(b.lines, line)
		if b.retrying {
			return b, false
		}
		if len(b.lines) >= d.maxEntries {
			if b.timer != nil {
				b.timer.Stop()
			}
			detached = &actionBatch{name: b.name, lines: b.lines}
			return actionBatch{}, true
		}
		if b.timer == nil {
			b.timer, b.seq = d.armFlush(id, d.window)
		}
		return b, false
	})

	if detached != nil {
		return d.enqueue(job{kind: notifyAction, principal: id, batch: detached})
	}
	return nil
}

// Close stops batch timers and rejects new work. Jobs already queued are still attempted by the
// worker; Close does not wait for them.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.quit)
		d.batches.Range(func(_ uuid.UUID, b actionBatch) bool {
			if b.timer != nil {
				b.timer.Stop()
			}
			return true
		})
	})
}

// Done is closed once the worker has drained its queue after Close.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) active() bool {
	return d.sender != nil && d.cfg.Active()
}

func (d *Dispatcher) message(id uuid.UUID, content string, color int) domain.Notification {
	return domain.Notification{PrincipalID: id, Content: content, Color: color, Timestamp: d.clock.Now()}
}

func (d *Dispatcher) enqueue(j job) error {
	if d.closed.Load() {
		return ErrDispatcherClosed
	}
	select {
	case d.jobs <- j:
		return nil
	case <-d.quit:
		return ErrDispatcherClosed
	}
}

// armFlush starts a batch timer. The returned sequence number ties the timer to the batch that owns
// it; a timer that fires after its batch was detached finds a different number and does nothing.
func (d *Dispatcher) armFlush(id uuid.UUID, delay time.Duration) (*clock.Timer, uint64) {
	seq := d.seq.Add(1)
	return d.clock.AfterFunc(delay, func() { d.flushDue(id, seq) }), seq
}

func (d *Dispatcher) flushDue(id uuid.UUID, seq uint64) {
	var due *actionBatch
	d.batches.Compute(id, func(b actionBatch, loaded bool) (actionBatch, bool) {
		if !loaded {
			return b, true
		}
		if b.seq != seq {
			return b, false
		}
		due = &actionBatch{name: b.name, lines: b.lines}
		return actionBatch{}, true
	})
	if due == nil {
		return
	}
	if err := d.enqueue(job{kind: notifyAction, principal: id, batch: due}); err != nil {
		d.logger.Debug("action flush dropped",
			zap.String("principal_id", id.String()),
			zap.Int("lines", len(due.lines)),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case j := <-d.jobs:
			d.handle(j)
		case <-d.quit:
			for {
				select {
				case j := <-d.jobs:
					d.handle(j)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) handle(j job) {
	ctx := context.Background()
	if j.batch != nil {
		d.flush(ctx, j.principal, *j.batch)
		return
	}

	_, err := d.sender.Send(ctx, j.msg, false)
	d.record(j.kind, err)
	if err != nil {
		d.logger.Warn("notification failed", zap.String("kind", j.kind), zap.Error(err))
	}
}

// flush sends a detached batch in messages of at most maxEntries lines. A rate-limited chunk goes back
// to the table together with every chunk after it.
func (d *Dispatcher) flush(ctx context.Context, id uuid.UUID, b actionBatch) {
	name := b.name
	if name == "" {
		name = "Unknown"
	}

	for start := 0; start < len(b.lines); start += d.maxEntries {
		chunk := b.lines[start:min(start+d.maxEntries, len(b.lines))]
		content := render(d.cfg.ActionMessage, strings.NewReplacer(
			"{player}", name,
			"{action}", "Actions",
			"{details}", strings.Join(chunk, "\n"),
			"{time}", d.clock.Now().Format(timeLayout),
		))

		err := d.deliverAction(ctx, id, d.message(id, content, domain.ColorAction))
		d.record(notifyAction, err)
		switch {
		case err == nil:
			if bo, ok := d.backoffs.Load(id); ok {
				bo.Reset()
			}
		case errors.Is(err, domain.ErrNotificationRateLimited):
			d.requeue(id, actionBatch{name: b.name, lines: b.lines[start:]}, d.retryDelay(id, err))
			return
		default:
			d.logger.Warn("action log dropped",
				zap.String("principal_id", id.String()),
				zap.Int("lines", len(chunk)),
				zap.Error(err),
			)
		}
	}
}

func (d *Dispatcher) deliverAction(ctx context.Context, id uuid.UUID, msg domain.Notification) error {
	if !d.cfg.BatchEdit {
		_, err := d.sender.Send(ctx, msg, false)
		return err
	}

	if messageID, ok := d.lastMessage.Load(id); ok {
		err := d.sender.Edit(ctx, messageID, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrNotificationRateLimited) {
			return err
		}
		d.logger.Debug("action log edit failed, sending new message",
			zap.String("principal_id", id.String()),
			zap.Error(err),
		)
		d.lastMessage.Delete(id)
	}

	messageID, err := d.sender.Send(ctx, msg, true)
	if err != nil {
		return err
	}
	if messageID != "" {
		d.lastMessage.Store(id, messageID)
	}
	return nil
}

// retryDelay is the largest of the configured floor, the server's Retry-After and the principal's
// exponential backoff.
func (d *Dispatcher) retryDelay(id uuid.UUID, err error) time.Duration {
	delay := d.retryFloor
	if after, ok := domain.RetryAfterOf(err); ok && after > delay {
		delay = after
	}
	bo, _ := d.backoffs.LoadOrCompute(id, func() *backoff.ExponentialBackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = d.retryFloor
		b.RandomizationFactor = 0.2
		b.MaxInterval = time.Minute
		return b
	})
	if next := bo.NextBackOff(); next > delay {
		delay = next
	}
	return delay
}

// requeue puts failed lines back in front of anything queued since and arms the retry timer.
func (d *Dispatcher) requeue(id uuid.UUID, failed actionBatch, delay time.Duration) {
	if d.closed.Load() {
		d.logger.Warn("action log dropped after close", zap.String("principal_id", id.String()), zap.Int("lines", len(failed.lines)))
		return
	}

	d.batches.Compute(id, func(b actionBatch, loaded bool) (actionBatch, bool) {
		if b.timer != nil {
			b.timer.Stop()
		}
		merged := slices.Clone(failed.lines)
		if loaded {
			merged = append(merged, b.lines...)
		}
		if b.name == "" {
			b.name = failed.name
		}
		b.lines = merged
		b.retrying = true
		b.timer, b.seq = d.armFlush(id, delay)
		return b, false
	})

	d.logger.Info("action log rate limited, retry scheduled",
		zap.String("principal_id", id.String()),
		zap.Duration("retry_in", delay),
	)
}

func (d *Dispatcher) record(kind string, err error) {
	if d.metrics == nil {
		return
	}
	switch {
	case err == nil:
		d.metrics.Notification(kind, port.ResultOK)
	case errors.Is(err, domain.ErrNotificationRateLimited):
		d.metrics.Notification(kind, port.ResultRateLimited)
	default:
		d.metrics.Notification(kind, port.ResultError)
	}
}

// render expands literal \n sequences in a configured template before filling placeholders.
func render(template string, r *strings.Replacer) string {
	return r.Replace(strings.ReplaceAll(template, `\n`, "\n"))
}

var _ port.Notifier = (*Dispatcher)(nil)
