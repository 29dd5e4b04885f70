package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tenantgate/platform/internal/domain"
)

type tenantLimitRepo struct{}

// NewTenantLimitRepository returns a pgx-backed TenantLimitRepository.
func NewTenantLimitRepository() TenantLimitRepository {
	return &tenantLimitRepo{}
}

func (r *tenantLimitRepo) Get(ctx context.Context, db DBTX, tenantID string) (*domain.TenantSessionLimit, error) {
	row := db.QueryRow(ctx, `
		SELECT tenant_id, max_sessions, max_idle_seconds, max_duration_seconds
		FROM tenant_session_limits
		WHERE tenant_id = $1`, tenantID)

	var l domain.TenantSessionLimit
	err := row.Scan(&l.TenantID, &l.MaxSessions, &l.MaxIdleSeconds, &l.MaxDurationSeconds)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan tenant limit: %w", err)
	}
	return &l, nil
}

func (r *tenantLimitRepo) Upsert(ctx context.Context, db DBTX, limit domain.TenantSessionLimit) error {
	_, err := db.Exec(ctx, `
		INSERT INTO tenant_session_limits (tenant_id, max_sessions, max_idle_seconds, max_duration_seconds)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id)
		DO UPDATE SET max_sessions = EXCLUDED.max_sessions,
		              max_idle_seconds = EXCLUDED.max_idle_seconds,
		              max_duration_seconds = EXCLUDED.max_duration_seconds`,
		limit.TenantID, limit.MaxSessions, limit.MaxIdleSeconds, limit.MaxDurationSeconds)
	if err != nil {
		return fmt.Errorf("upsert tenant limit: %w", err)
	}
	return nil
}

func (r *tenantLimitRepo) FindAll(ctx context.Context, db DBTX) ([]domain.TenantSessionLimit, error) {
	rows, err := db.Query(ctx, `
		SELECT tenant_id, max_sessions, max_idle_seconds, max_duration_seconds
		FROM tenant_session_limits
		ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("query tenant limits: %w", err)
	}
	defer rows.Close()

	var limits []domain.TenantSessionLimit
	for rows.Next() {
		var l domain.TenantSessionLimit
		if err := rows.Scan(&l.TenantID, &l.MaxSessions, &l.MaxIdleSeconds, &l.MaxDurationSeconds); err != nil {
			return nil, fmt.Errorf("scan tenant limit: %w", err)
		}
		limits = append(limits, l)
	}
	return limits, rows.Err()
}
