package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/THEROER/DoubleLife/internal/core/domain"
)

// PrincipalGateway reaches the live principal on the game server.
type PrincipalGateway interface {
	IsOnline(ctx context.Context, principalID uuid.UUID) (bool, error)
	Capture(ctx context.Context, principalID uuid.UUID) (domain.Snapshot, error)
	Reset(ctx context.Context, principalID uuid.UUID, baseline domain.Baseline) error
	Restore(ctx context.Context, principalID uuid.UUID, target domain.RestoreTarget) error
	MaxHealth(ctx context.Context, principalID uuid.UUID) (float64, error)
	WorldExists(ctx context.Context, world string) (bool, error)
	Tell(ctx context.Context, principalID uuid.UUID, message string) error
	DispatchCommand(ctx context.Context, command string) error
	ShowStatus(ctx context.Context, principalID uuid.UUID, status domain.Status) error
	RemoveStatus(ctx context.Context, principalID uuid.UUID) error
}
