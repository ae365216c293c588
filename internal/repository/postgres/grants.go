package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/THEROER/DoubleLife/internal/core/domain"
	"github.com/THEROER/DoubleLife/internal/core/port"
)

// GrantRepository implements port.GrantClient over a self-hosted RBAC schema:
// groups, their permission nodes and principal memberships, each optionally expiring.
type GrantRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewGrantRepository constructs a PostgreSQL-backed grant client.
func NewGrantRepository(exec pgExecutor) *GrantRepository {
	return &GrantRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (r *GrantRepository) WithClock(clock func() time.Time) *GrantRepository {
	if clock != nil {
		r.now = clock
	}
	return r
}

// CreateGroup inserts the group if it does not exist yet.
func (r *GrantRepository) CreateGroup(ctx context.Context, name string) error {
	stmt, args, err := r.builder.Insert("doublelife.groups").
		Columns("name", "created_at").
		Values(name, r.now()).
		Suffix("ON CONFLICT (name) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert group sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return unavailable("insert group", err)
	}
	return nil
}

// DeleteGroup drops every membership of the group, then the group and its permission nodes.
func (r *GrantRepository) DeleteGroup(ctx context.Context, name string) error {
	stmt, args, err := r.builder.Delete("doublelife.memberships").
		Where(squirrel.Eq{"group_name": name}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete group memberships sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return unavailable("delete group memberships", err)
	}

	stmt, args, err = r.builder.Delete("doublelife.groups").
		Where(squirrel.Eq{"name": name}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete group sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return unavailable("delete group", err)
	}
	return nil
}

// AddPermissions attaches permission nodes to the group, refreshing the expiry of existing ones.
func (r *GrantRepository) AddPermissions(ctx context.Context, group string, permissions []string, expiry time.Duration) error {
	if len(permissions) == 0 {
		return nil
	}
	expiresAt := domain.ExpiryFrom(r.now(), expiry)

	insert := r.builder.Insert("doublelife.group_permissions").
		Columns("group_name", "permission", "expires_at")
	for _, perm := range permissions {
		insert = insert.Values(group, perm, expiresAt)
	}
	stmt, args, err := insert.
		Suffix("ON CONFLICT (group_name, permission) DO UPDATE SET expires_at = EXCLUDED.expires_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert group permissions sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return unavailable("insert group permissions", err)
	}
	return nil
}

// AddMembership puts the principal in the group until the expiry elapses.
func (r *GrantRepository) AddMembership(ctx context.Context, principalID uuid.UUID, group string, expiry time.Duration) error {
	stmt, args, err := r.builder.Insert("doublelife.memberships").
		Columns("principal_id", "group_name", "expires_at").
		Values(principalID.String(), group, domain.ExpiryFrom(r.now(), expiry)).
		Suffix("ON CONFLICT (principal_id, group_name) DO UPDATE SET expires_at = EXCLUDED.expires_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert membership sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return unavailable("insert membership", err)
	}
	return nil
}

// RemoveMembership takes the principal out of the group. Missing memberships are ignored.
func (r *GrantRepository) RemoveMembership(ctx context.Context, principalID uuid.UUID, group string) error {
	stmt, args, err := r.builder.Delete("doublelife.memberships").
		Where(squirrel.Eq{"principal_id": principalID.String(), "group_name": group}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete membership sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return unavailable("delete membership", err)
	}
	return nil
}

// ClearExpiringGrants removes every time-limited membership of the principal.
func (r *GrantRepository) ClearExpiringGrants(ctx context.Context, principalID uuid.UUID) error {
	stmt, args, err := r.builder.Delete("doublelife.memberships").
		Where(squirrel.Eq{"principal_id": principalID.String()}).
		Where(squirrel.NotEq{"expires_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build clear expiring memberships sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return unavailable("clear expiring memberships", err)
	}
	return nil
}

// CurrentGroups lists the groups the principal belongs to right now, sorted by name.
func (r *GrantRepository) CurrentGroups(ctx context.Context, principalID uuid.UUID) ([]string, error) {
	stmt, args, err := r.builder.Select("group_name").
		From("doublelife.memberships").
		Where(squirrel.Eq{"principal_id": principalID.String()}).
		Where(squirrel.Or{
			squirrel.Eq{"expires_at": nil},
			squirrel.Gt{"expires_at": r.now()},
		}).
		OrderBy("group_name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select memberships sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, unavailable("query memberships", err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, unavailable("scan membership", err)
		}
		groups = append(groups, name)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate memberships", err)
	}
	return groups, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrGrantServiceUnavailable, err)
}

var _ port.GrantClient = (*GrantRepository)(nil)
