package usecase

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/THEROER/DoubleLife/internal/core/domain"
	"github.com/THEROER/DoubleLife/internal/core/port"
)

// HookStage selects which configured command list runs.
type HookStage int

const (
	BeforeStart HookStage = iota
	AfterStart
	BeforeEnd
	AfterEnd
)

func (s HookStage) String() string {
	switch s {
	case BeforeStart:
		return "before_start"
	case AfterStart:
		return "after_start"
	case BeforeEnd:
		return "before_end"
	case AfterEnd:
		return "after_end"
	default:
		return "unknown"
	}
}

// HookRunner dispatches console command templates around session start and end.
type HookRunner struct {
	gateway  port.PrincipalGateway
	global   domain.LifecycleCommands
	profiles *ProfileCatalog
	logger   *zap.Logger
}

// NewHookRunner constructs a HookRunner.
func NewHookRunner(gateway port.PrincipalGateway, global domain.LifecycleCommands, profiles *ProfileCatalog, logger *zap.Logger) *HookRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HookRunner{gateway: gateway, global: global, profiles: profiles, logger: logger}
}

// Commands renders the global commands for stage followed by each active profile's, in profile order.
func (h *HookRunner) Commands(stage HookStage, session domain.Session, now time.Time) []string {
	templates := pick(h.global, stage)
	for _, name := range session.ActiveProfiles {
		if p, ok := h.profiles.Lookup(name); ok {
			templates = append(templates, pick(p.Commands, stage)...)
		}
	}
	if len(templates) == 0 {
		return nil
	}

	r := strings.NewReplacer(
		"{player}", session.DisplayName,
		"{uuid}", session.PrincipalID.String(),
		"{profiles}", strings.Join(session.ActiveProfiles, ","),
		"{duration}", strconv.Itoa(session.Duration),
		"{remaining}", strconv.Itoa(session.RemainingSeconds(now)),
	)
	out := make([]string, 0, len(templates))
	for _, t := range templates {
		out = append(out, r.Replace(t))
	}
	return out
}

// Run dispatches the stage's commands in order. Failures are logged and do not stop later commands.
func (h *HookRunner) Run(ctx context.Context, stage HookStage, session domain.Session, now time.Time) {
	for _, cmd := range h.Commands(stage, session, now) {
		if err := h.gateway.DispatchCommand(ctx, cmd); err != nil {
			h.logger.Warn("hook command failed",
				zap.String("stage", stage.String()),
				zap.String("command", cmd),
				zap.String("principal_id", session.PrincipalID.String()),
				zap.Error(err),
			)
		}
	}
}

func pick(c domain.LifecycleCommands, stage HookStage) []string {
	var list []string
	switch stage {
	case BeforeStart:
		list = c.BeforeStart
	case AfterStart:
		list = c.AfterStart
	case BeforeEnd:
		list = c.BeforeEnd
	case AfterEnd:
		list = c.AfterEnd
	}
	return append([]string(nil), list...)
}
