package port

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// GrantClient manages temporary groups in the external permission service.
// A zero expiry means the grant is permanent. Failures wrap domain.ErrGrantServiceUnavailable.
type GrantClient interface {
	CreateGroup(ctx context.Context, name string) error
	DeleteGroup(ctx context.Context, name string) error
	AddPermissions(ctx context.Context, group string, permissions []string, expiry time.Duration) error
	AddMembership(ctx context.Context, principalID uuid.UUID, group string, expiry time.Duration) error
	RemoveMembership(ctx context.Context, principalID uuid.UUID, group string) error
	ClearExpiringGrants(ctx context.Context, principalID uuid.UUID) error
	CurrentGroups(ctx context.Context, principalID uuid.UUID) ([]string, error)
}
