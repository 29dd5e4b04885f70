package domain

import "time"

// ConditionType selects which condition evaluator applies to a policy.
type ConditionType string

const (
	ConditionTimeWindow ConditionType = "TIME_WINDOW"
	ConditionIPRange    ConditionType = "IP_RANGE"
	ConditionLocation   ConditionType = "LOCATION"
)

// Valid reports whether the condition type is one of the closed set.
func (t ConditionType) Valid() bool {
	switch t {
	case ConditionTimeWindow, ConditionIPRange, ConditionLocation:
		return true
	}
	return false
}

// PolicyEffect is what a matched policy prescribes.
type PolicyEffect string

const (
	EffectAllow PolicyEffect = "ALLOW"
	EffectDeny  PolicyEffect = "DENY"
)

func (e PolicyEffect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

// ScopeType is the targeting dimension of a policy scope entry.
type ScopeType string

const (
	ScopeTenant ScopeType = "TENANT"
	ScopeGroup  ScopeType = "GROUP"
	ScopeUser   ScopeType = "USER"
)

// PolicyScope targets a policy along one dimension. Excluded scopes always
// override included ones during matching.
type PolicyScope struct {
	ID        int64     `json:"id"`
	PolicyID  int64     `json:"policy_id"`
	ScopeType ScopeType `json:"scope_type"`
	Value     string    `json:"value"`
	Excluded  bool      `json:"excluded"`
}

// SessionPolicy is a tenant-scoped allow/deny rule. The condition payload is
// a JSON document whose shape depends on ConditionType:
//
//	TIME_WINDOW: {"start":"HH:MM","end":"HH:MM","zone":"<IANA zone>"}
//	IP_RANGE:    {"cidr":["a.b.c.d/n", ...]}
//	LOCATION:    {"countries":["XX", ...]}
type SessionPolicy struct {
	ID             int64         `json:"id"`
	Name           string        `json:"name"`
	ConditionType  ConditionType `json:"condition_type"`
	ConditionValue string        `json:"condition_value"`
	Effect         PolicyEffect  `json:"effect"`
	Priority       int           `json:"priority"`
	Active         bool          `json:"active"`
	Scopes         []PolicyScope `json:"scopes"`
	CreatedAt      time.Time     `json:"created_at"`
}

// ScopeValues collects the values of scopes of the given type and polarity.
func (p *SessionPolicy) ScopeValues(scopeType ScopeType, excluded bool) map[string]struct{} {
	values := make(map[string]struct{})
	for _, s := range p.Scopes {
		if s.ScopeType == scopeType && s.Excluded == excluded {
			values[s.Value] = struct{}{}
		}
	}
	return values
}

// EvaluationContext is the per-request immutable input to policy evaluation.
type EvaluationContext struct {
	TenantID    string
	UserID      string
	GroupIDs    map[string]struct{}
	ClientIP    string
	CountryCode string
	RequestTime time.Time
}

// HasTenant reports whether the context carries a usable tenant id.
func (c EvaluationContext) HasTenant() bool { return c.TenantID != "" }

// HasUser reports whether the context carries a usable user id.
func (c EvaluationContext) HasUser() bool { return c.UserID != "" }

// HasGroups reports whether the context carries any group ids.
func (c EvaluationContext) HasGroups() bool { return len(c.GroupIDs) > 0 }

// EvaluationResult is the outcome of evaluating one context.
//
// A nil PolicyID with Allowed=true means no policy matched and the default
// allow applied; an explicit ALLOW match carries the matched policy's id.
type EvaluationResult struct {
	Allowed  bool          `json:"allowed"`
	PolicyID *int64        `json:"policy_id,omitempty"`
	Effect   *PolicyEffect `json:"effect,omitempty"`
}

// DefaultAllow is the result when no policy matched.
func DefaultAllow() EvaluationResult {
	return EvaluationResult{Allowed: true}
}

// MatchResult builds the result for an explicit policy match.
func MatchResult(p *SessionPolicy) EvaluationResult {
	effect := p.Effect
	id := p.ID
	return EvaluationResult{
		Allowed:  effect == EffectAllow,
		PolicyID: &id,
		Effect:   &effect,
	}
}
