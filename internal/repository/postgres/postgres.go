package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS doublelife`,
	`CREATE TABLE IF NOT EXISTS doublelife.sessions (
		principal_id UUID PRIMARY KEY,
		player_name  TEXT NOT NULL,
		payload      JSONB NOT NULL,
		active       BOOLEAN NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS doublelife.groups (
		name       TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS doublelife.group_permissions (
		group_name TEXT NOT NULL REFERENCES doublelife.groups(name) ON DELETE CASCADE,
		permission TEXT NOT NULL,
		expires_at TIMESTAMPTZ,
		PRIMARY KEY (group_name, permission)
	)`,
	`CREATE TABLE IF NOT EXISTS doublelife.memberships (
		principal_id UUID NOT NULL,
		group_name   TEXT NOT NULL,
		expires_at   TIMESTAMPTZ,
		PRIMARY KEY (principal_id, group_name)
	)`,
}

// EnsureSchema creates the tables used by the session store and the grant repository.
func EnsureSchema(ctx context.Context, exec pgExecutor) error {
	for _, stmt := range schemaStatements {
		if _, err := exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
