package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/THEROER/DoubleLife/internal/core/domain"
)

// SessionStore persists sessions so they survive process restarts and principal disconnects.
type SessionStore interface {
	Save(ctx context.Context, session domain.Session) error
	// Load returns repository.ErrNotFound when absent and repository.ErrCorruptSession when undecodable.
	Load(ctx context.Context, principalID uuid.UUID) (*domain.Session, error)
	Delete(ctx context.Context, principalID uuid.UUID) error
}
