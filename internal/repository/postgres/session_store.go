package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/THEROER/DoubleLife/internal/core/domain"
	"github.com/THEROER/DoubleLife/internal/core/port"
	"github.com/THEROER/DoubleLife/internal/repository"
)

// SessionStore implements port.SessionStore backed by PostgreSQL. The record is stored as JSONB.
type SessionStore struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewSessionStore constructs a store backed by any executor that satisfies pgExecutor.
func NewSessionStore(exec pgExecutor) *SessionStore {
	return &SessionStore{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Save upserts the session record.
func (s *SessionStore) Save(ctx context.Context, session domain.Session) error {
	if session.PrincipalID == uuid.Nil {
		return fmt.Errorf("principal id is required")
	}
	payload, err := repository.MarshalSession(session)
	if err != nil {
		return err
	}

	stmt, args, err := s.builder.Insert("doublelife.sessions").
		Columns("principal_id", "player_name", "payload", "active", "updated_at").
		Values(session.PrincipalID.String(), session.DisplayName, payload, session.Active, s.now()).
		Suffix("ON CONFLICT (principal_id) DO UPDATE SET " +
			"player_name = EXCLUDED.player_name, payload = EXCLUDED.payload, " +
			"active = EXCLUDED.active, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert session sql: %w", err)
	}

	if _, err := s.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Load fetches the session record for the principal.
func (s *SessionStore) Load(ctx context.Context, principalID uuid.UUID) (*domain.Session, error) {
	stmt, args, err := s.builder.Select("payload").
		From("doublelife.sessions").
		Where(squirrel.Eq{"principal_id": principalID.String()}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	var payload []byte
	if err := s.exec.QueryRow(ctx, stmt, args...).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}
	return repository.UnmarshalSession(payload)
}

// Delete removes the session record; deleting a missing record is not an error.
func (s *SessionStore) Delete(ctx context.Context, principalID uuid.UUID) error {
	stmt, args, err := s.builder.Delete("doublelife.sessions").
		Where(squirrel.Eq{"principal_id": principalID.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete session sql: %w", err)
	}
	if _, err := s.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

var _ port.SessionStore = (*SessionStore)(nil)
