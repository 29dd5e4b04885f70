package policy

import "github.com/tenantgate/platform/internal/domain"

// ConditionEvaluator tests a policy's condition payload against a context.
// Implementations never return an error: a malformed payload or a missing
// context field is a non-match.
type ConditionEvaluator interface {
	Supports(t domain.ConditionType) bool
	Matches(p *domain.SessionPolicy, ctx domain.EvaluationContext) bool
}

// DefaultEvaluators returns the evaluator table for the closed condition
// set, keyed by condition type. Adding a condition type means adding an
// enum variant and a table entry here.
func DefaultEvaluators() map[domain.ConditionType]ConditionEvaluator {
	return map[domain.ConditionType]ConditionEvaluator{
		domain.ConditionTimeWindow: TimeWindowEvaluator{},
		domain.ConditionIPRange:    IPRangeEvaluator{},
		domain.ConditionLocation:   LocationEvaluator{},
	}
}
