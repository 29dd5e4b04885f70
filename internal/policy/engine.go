package policy

import (
	"context"
	"fmt"

	"github.com/tenantgate/platform/internal/domain"
)

// Source provides the active policies for a tenant, ordered by descending
// priority with descending id as the tiebreak, scopes populated.
type Source interface {
	FindActiveForTenant(ctx context.Context, tenantID string) ([]*domain.SessionPolicy, error)
}

// Engine walks a tenant's active policies in priority order and returns the
// first match's effect, or the default allow when nothing matches.
type Engine struct {
	source     Source
	evaluators map[domain.ConditionType]ConditionEvaluator
}

// NewEngine creates an evaluation engine over the given policy source.
func NewEngine(source Source) *Engine {
	return &Engine{source: source, evaluators: DefaultEvaluators()}
}

// Evaluate matches the context against the tenant's active policies. A
// context without a tenant evaluates to the default allow without touching
// the source. Policies whose scope or condition fails to match are skipped;
// nothing a single policy does can abort evaluation of the rest.
func (e *Engine) Evaluate(ctx context.Context, ec domain.EvaluationContext) (domain.EvaluationResult, error) {
	if !ec.HasTenant() {
		return domain.DefaultAllow(), nil
	}
	policies, err := e.source.FindActiveForTenant(ctx, ec.TenantID)
	if err != nil {
		return domain.EvaluationResult{}, fmt.Errorf("load policies for tenant %s: %w", ec.TenantID, err)
	}
	for _, p := range policies {
		if !ScopeMatches(p, ec) {
			continue
		}
		evaluator, ok := e.evaluators[p.ConditionType]
		if !ok {
			continue
		}
		if !evaluator.Matches(p, ec) {
			continue
		}
		return domain.MatchResult(p), nil
	}
	return domain.DefaultAllow(), nil
}
