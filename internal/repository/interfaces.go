package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tenantgate/platform/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PolicyRepository provides access to session_policies and policy_scopes.
type PolicyRepository interface {
	// FindActiveForTenant returns active policies carrying a non-excluded
	// TENANT include scope for the tenant, ordered by priority desc with
	// id desc as the tiebreak, scopes populated.
	FindActiveForTenant(ctx context.Context, db DBTX, tenantID string) ([]*domain.SessionPolicy, error)

	// FindAll returns every policy with scopes, same ordering.
	FindAll(ctx context.Context, db DBTX) ([]*domain.SessionPolicy, error)

	// FindByID returns one policy with scopes, nil when absent.
	FindByID(ctx context.Context, db DBTX, id int64) (*domain.SessionPolicy, error)

	// Create inserts a policy and its scopes, returning the stored policy.
	Create(ctx context.Context, db DBTX, p *domain.SessionPolicy) (*domain.SessionPolicy, error)

	// SetActive flips the active flag. Returns false when the id is absent.
	SetActive(ctx context.Context, db DBTX, id int64, active bool) (bool, error)

	// Delete removes the policy and its scopes. Returns false when absent.
	Delete(ctx context.Context, db DBTX, id int64) (bool, error)
}

// RiskStateRepository persists per (tenant, user) risk states.
type RiskStateRepository interface {
	Get(ctx context.Context, db DBTX, tenantID, userID string) (*domain.RiskState, error)
	Put(ctx context.Context, db DBTX, tenantID, userID string, state domain.RiskState) error
	DeleteExpired(ctx context.Context, db DBTX, now time.Time) (int64, error)
}

// RiskEventRepository persists the append-only action event log.
type RiskEventRepository interface {
	Append(ctx context.Context, db DBTX, event domain.ActionEvent) error
	RecentByUser(ctx context.Context, db DBTX, tenantID, userID string, limit int) ([]domain.ActionEvent, error)
	DeleteOlderThanForUser(ctx context.Context, db DBTX, tenantID, userID string, cutoff time.Time) error
	DeleteOlderThan(ctx context.Context, db DBTX, cutoff time.Time) (int64, error)
}

// TenantLimitRepository persists per-tenant session limits.
type TenantLimitRepository interface {
	Get(ctx context.Context, db DBTX, tenantID string) (*domain.TenantSessionLimit, error)
	Upsert(ctx context.Context, db DBTX, limit domain.TenantSessionLimit) error
	FindAll(ctx context.Context, db DBTX) ([]domain.TenantSessionLimit, error)
}
