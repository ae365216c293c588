package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	red "github.com/redis/go-redis/v9"

	"github.com/THEROER/DoubleLife/internal/core/domain"
	"github.com/THEROER/DoubleLife/internal/core/port"
	"github.com/THEROER/DoubleLife/internal/repository"
)

const defaultSessionPrefix = "doublelife:session"

// SessionStore persists sessions as JSON records under <prefix>:<uuid>.
// Keys carry no TTL: an ended snapshot must survive until the principal reconnects.
type SessionStore struct {
	client *red.Client
	prefix string
}

// NewSessionStore constructs a Redis-backed session store.
func NewSessionStore(client *red.Client, keyPrefix string) *SessionStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultSessionPrefix
	}
	return &SessionStore{client: client, prefix: prefix}
}

// Save overwrites the stored record for the session's principal.
func (s *SessionStore) Save(ctx context.Context, session domain.Session) error {
	if session.PrincipalID == uuid.Nil {
		return fmt.Errorf("principal id is required")
	}
	data, err := repository.MarshalSession(session)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(session.PrincipalID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Load fetches and decodes the stored record.
func (s *SessionStore) Load(ctx context.Context, principalID uuid.UUID) (*domain.Session, error) {
	data, err := s.client.Get(ctx, s.key(principalID)).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	return repository.UnmarshalSession(data)
}

// Delete removes the record; deleting a missing record is not an error.
func (s *SessionStore) Delete(ctx context.Context, principalID uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(principalID)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) key(principalID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", s.prefix, principalID.String())
}

var _ port.SessionStore = (*SessionStore)(nil)
