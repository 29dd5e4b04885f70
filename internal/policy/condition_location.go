package policy

import (
	"encoding/json"
	"strings"

	"github.com/tenantgate/platform/internal/domain"
)

// LocationEvaluator matches when the context's country code equals any of
// the policy's configured countries. Codes are compared case-insensitively.
type LocationEvaluator struct{}

type locationCondition struct {
	Countries []string `json:"countries"`
}

func (LocationEvaluator) Supports(t domain.ConditionType) bool {
	return t == domain.ConditionLocation
}

func (LocationEvaluator) Matches(p *domain.SessionPolicy, ctx domain.EvaluationContext) bool {
	if ctx.CountryCode == "" {
		return false
	}
	var cond locationCondition
	if err := json.Unmarshal([]byte(p.ConditionValue), &cond); err != nil {
		return false
	}
	if len(cond.Countries) == 0 {
		return false
	}
	want := normalizeCountry(ctx.CountryCode)
	for _, c := range cond.Countries {
		if normalizeCountry(c) == want {
			return true
		}
	}
	return false
}

func normalizeCountry(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}
