package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tenantgate/platform/internal/domain"
)

type riskStateRepo struct{}

// NewRiskStateRepository returns a pgx-backed RiskStateRepository.
func NewRiskStateRepository() RiskStateRepository {
	return &riskStateRepo{}
}

func (r *riskStateRepo) Get(ctx context.Context, db DBTX, tenantID, userID string) (*domain.RiskState, error) {
	row := db.QueryRow(ctx, `
		SELECT level, score, expires_at
		FROM security_level_state
		WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID)

	var s domain.RiskState
	if err := row.Scan(&s.Level, &s.Score, &s.ExpiresAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan risk state: %w", err)
	}
	return &s, nil
}

func (r *riskStateRepo) Put(ctx context.Context, db DBTX, tenantID, userID string, state domain.RiskState) error {
	_, err := db.Exec(ctx, `
		INSERT INTO security_level_state (tenant_id, user_id, level, score, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, user_id)
		DO UPDATE SET level = EXCLUDED.level, score = EXCLUDED.score, expires_at = EXCLUDED.expires_at`,
		tenantID, userID, state.Level, state.Score, state.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert risk state: %w", err)
	}
	return nil
}

func (r *riskStateRepo) DeleteExpired(ctx context.Context, db DBTX, now time.Time) (int64, error) {
	tag, err := db.Exec(ctx, `DELETE FROM security_level_state WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired risk states: %w", err)
	}
	return tag.RowsAffected(), nil
}

type riskEventRepo struct{}

// NewRiskEventRepository returns a pgx-backed RiskEventRepository.
func NewRiskEventRepository() RiskEventRepository {
	return &riskEventRepo{}
}

func (r *riskEventRepo) Append(ctx context.Context, db DBTX, event domain.ActionEvent) error {
	_, err := db.Exec(ctx, `
		INSERT INTO security_level_events (tenant_id, user_id, action_type, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		event.TenantID, event.UserID, event.ActionType, event.Detail, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert action event: %w", err)
	}
	return nil
}

func (r *riskEventRepo) RecentByUser(ctx context.Context, db DBTX, tenantID, userID string, limit int) ([]domain.ActionEvent, error) {
	rows, err := db.Query(ctx, `
		SELECT tenant_id, user_id, action_type, detail, occurred_at
		FROM security_level_events
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY occurred_at DESC, id DESC
		LIMIT $3`, tenantID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query action events: %w", err)
	}
	defer rows.Close()

	var events []domain.ActionEvent
	for rows.Next() {
		var e domain.ActionEvent
		if err := rows.Scan(&e.TenantID, &e.UserID, &e.ActionType, &e.Detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan action event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *riskEventRepo) DeleteOlderThanForUser(ctx context.Context, db DBTX, tenantID, userID string, cutoff time.Time) error {
	_, err := db.Exec(ctx, `
		DELETE FROM security_level_events
		WHERE tenant_id = $1 AND user_id = $2 AND occurred_at < $3`,
		tenantID, userID, cutoff)
	if err != nil {
		return fmt.Errorf("prune action events: %w", err)
	}
	return nil
}

func (r *riskEventRepo) DeleteOlderThan(ctx context.Context, db DBTX, cutoff time.Time) (int64, error) {
	tag, err := db.Exec(ctx, `DELETE FROM security_level_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old action events: %w", err)
	}
	return tag.RowsAffected(), nil
}
