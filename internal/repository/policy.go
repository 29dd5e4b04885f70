package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tenantgate/platform/internal/domain"
)

type policyRepo struct{}

// NewPolicyRepository returns a pgx-backed PolicyRepository.
func NewPolicyRepository() PolicyRepository {
	return &policyRepo{}
}

const policyColumns = `id, name, condition_type, condition_value, effect, priority, active, created_at`

func (r *policyRepo) FindActiveForTenant(ctx context.Context, db DBTX, tenantID string) ([]*domain.SessionPolicy, error) {
	rows, err := db.Query(ctx, `
		SELECT `+policyColumns+`
		FROM session_policies p
		WHERE p.active = true
		  AND EXISTS (
			SELECT 1 FROM policy_scopes s
			WHERE s.policy_id = p.id
			  AND s.scope_type = 'TENANT'
			  AND s.excluded = false
			  AND s.scope_value = $1
		  )
		ORDER BY p.priority DESC, p.id DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query active policies: %w", err)
	}
	return r.collect(ctx, db, rows)
}

func (r *policyRepo) FindAll(ctx context.Context, db DBTX) ([]*domain.SessionPolicy, error) {
	rows, err := db.Query(ctx, `
		SELECT `+policyColumns+`
		FROM session_policies p
		ORDER BY p.priority DESC, p.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}
	return r.collect(ctx, db, rows)
}

func (r *policyRepo) FindByID(ctx context.Context, db DBTX, id int64) (*domain.SessionPolicy, error) {
	row := db.QueryRow(ctx, `
		SELECT `+policyColumns+`
		FROM session_policies p WHERE p.id = $1`, id)
	p, err := scanPolicy(row)
	if err != nil || p == nil {
		return p, err
	}
	if err := r.loadScopes(ctx, db, []*domain.SessionPolicy{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *policyRepo) Create(ctx context.Context, db DBTX, p *domain.SessionPolicy) (*domain.SessionPolicy, error) {
	row := db.QueryRow(ctx, `
		INSERT INTO session_policies (name, condition_type, condition_value, effect, priority, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, created_at`,
		p.Name, p.ConditionType, p.ConditionValue, p.Effect, p.Priority, p.Active)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert policy: %w", err)
	}
	for i := range p.Scopes {
		scope := &p.Scopes[i]
		scope.PolicyID = p.ID
		row := db.QueryRow(ctx, `
			INSERT INTO policy_scopes (policy_id, scope_type, scope_value, excluded)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			scope.PolicyID, scope.ScopeType, scope.Value, scope.Excluded)
		if err := row.Scan(&scope.ID); err != nil {
			return nil, fmt.Errorf("insert policy scope: %w", err)
		}
	}
	return p, nil
}

func (r *policyRepo) SetActive(ctx context.Context, db DBTX, id int64, active bool) (bool, error) {
	tag, err := db.Exec(ctx, `UPDATE session_policies SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return false, fmt.Errorf("toggle policy: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *policyRepo) Delete(ctx context.Context, db DBTX, id int64) (bool, error) {
	if _, err := db.Exec(ctx, `DELETE FROM policy_scopes WHERE policy_id = $1`, id); err != nil {
		return false, fmt.Errorf("delete policy scopes: %w", err)
	}
	tag, err := db.Exec(ctx, `DELETE FROM session_policies WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete policy: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *policyRepo) collect(ctx context.Context, db DBTX, rows pgx.Rows) ([]*domain.SessionPolicy, error) {
	defer rows.Close()
	var policies []*domain.SessionPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadScopes(ctx, db, policies); err != nil {
		return nil, err
	}
	return policies, nil
}

func (r *policyRepo) loadScopes(ctx context.Context, db DBTX, policies []*domain.SessionPolicy) error {
	if len(policies) == 0 {
		return nil
	}
	ids := make([]int64, len(policies))
	byID := make(map[int64]*domain.SessionPolicy, len(policies))
	for i, p := range policies {
		ids[i] = p.ID
		byID[p.ID] = p
	}
	rows, err := db.Query(ctx, `
		SELECT id, policy_id, scope_type, scope_value, excluded
		FROM policy_scopes WHERE policy_id = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("query policy scopes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s domain.PolicyScope
		if err := rows.Scan(&s.ID, &s.PolicyID, &s.ScopeType, &s.Value, &s.Excluded); err != nil {
			return fmt.Errorf("scan policy scope: %w", err)
		}
		if p, ok := byID[s.PolicyID]; ok {
			p.Scopes = append(p.Scopes, s)
		}
	}
	return rows.Err()
}

func scanPolicy(row pgx.Row) (*domain.SessionPolicy, error) {
	var p domain.SessionPolicy
	err := row.Scan(&p.ID, &p.Name, &p.ConditionType, &p.ConditionValue,
		&p.Effect, &p.Priority, &p.Active, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
