package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/THEROER/DoubleLife/internal/core/domain"
	"github.com/THEROER/DoubleLife/internal/repository"
)

func TestSessionStore_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	store := NewSessionStore(mock)

	session := domain.NewSession(uuid.New(), "Steve", time.Now().UTC().Truncate(time.Millisecond), 1800, []string{"helper"})

	mock.ExpectExec(`INSERT INTO doublelife\.sessions .* ON CONFLICT \(principal_id\) DO UPDATE`).
		WithArgs(session.PrincipalID.String(), "Steve", pgxmock.AnyArg(), true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := store.Save(context.Background(), session); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionStore_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	store := NewSessionStore(mock)

	session := domain.NewSession(uuid.New(), "Steve", time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC), 0, []string{"developer"})
	session.TemporaryGroup = "doublelife-Steve"
	payload, err := repository.MarshalSession(session)
	if err != nil {
		t.Fatalf("MarshalSession: %v", err)
	}

	rows := pgxmock.NewRows([]string{"payload"}).AddRow(payload)
	mock.ExpectQuery(`SELECT payload FROM doublelife\.sessions`).
		WithArgs(session.PrincipalID.String()).
		WillReturnRows(rows)

	loaded, err := store.Load(context.Background(), session.PrincipalID)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.PrincipalID != session.PrincipalID || !loaded.Unbounded() || loaded.TemporaryGroup != "doublelife-Steve" {
		t.Fatalf("unexpected session: %+v", loaded)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionStore_LoadNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	store := NewSessionStore(mock)
	id := uuid.New()

	mock.ExpectQuery(`SELECT payload FROM doublelife\.sessions`).
		WithArgs(id.String()).
		WillReturnError(pgx.ErrNoRows)

	if _, err := store.Load(context.Background(), id); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionStore_LoadCorrupt(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	store := NewSessionStore(mock)
	id := uuid.New()

	rows := pgxmock.NewRows([]string{"payload"}).AddRow([]byte(`{"playerUuid":"nope"}`))
	mock.ExpectQuery(`SELECT payload FROM doublelife\.sessions`).
		WithArgs(id.String()).
		WillReturnRows(rows)

	if _, err := store.Load(context.Background(), id); !errors.Is(err, repository.ErrCorruptSession) {
		t.Fatalf("expected ErrCorruptSession, got %v", err)
	}
}

func TestSessionStore_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	store := NewSessionStore(mock)
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM doublelife\.sessions`).
		WithArgs(id.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := store.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
