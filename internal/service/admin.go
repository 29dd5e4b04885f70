package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tenantgate/platform/internal/domain"
	"github.com/tenantgate/platform/internal/policy"
	"github.com/tenantgate/platform/internal/repository"
)

// PolicyAdminService manages session policies: creation, activation,
// deletion, listing, and dry-run evaluation against a supplied context.
type PolicyAdminService struct {
	pool     *pgxpool.Pool
	policies repository.PolicyRepository
}

// NewPolicyAdminService creates a new PolicyAdminService.
func NewPolicyAdminService(pool *pgxpool.Pool, policies repository.PolicyRepository) *PolicyAdminService {
	return &PolicyAdminService{pool: pool, policies: policies}
}

// CreatePolicyInput holds the policy creation request fields. Scope fields
// accept comma or newline separated tokens.
type CreatePolicyInput struct {
	Name          string `json:"name"`
	ConditionType string `json:"condition_type"`
	Effect        string `json:"effect"`
	Priority      int    `json:"priority"`
	Active        bool   `json:"active"`

	Tenants        string `json:"tenants"`
	GroupsIncluded string `json:"groups_included"`
	GroupsExcluded string `json:"groups_excluded"`
	UsersIncluded  string `json:"users_included"`
	UsersExcluded  string `json:"users_excluded"`

	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
	WindowZone  string `json:"window_zone"`
	CIDRs       string `json:"cidrs"`
	Countries   string `json:"countries"`
}

// PolicySummary is the list representation of a policy.
type PolicySummary struct {
	ID            int64                `json:"id"`
	Name          string               `json:"name"`
	ConditionType domain.ConditionType `json:"condition_type"`
	Effect        domain.PolicyEffect  `json:"effect"`
	Priority      int                  `json:"priority"`
	Active        bool                 `json:"active"`
	ScopeCount    int                  `json:"scope_count"`
	CreatedAt     time.Time            `json:"created_at"`
}

// Create validates the input, builds the condition payload and scopes, and
// stores the policy.
func (s *PolicyAdminService) Create(ctx context.Context, input CreatePolicyInput) (*domain.SessionPolicy, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.ErrValidation("policy name is required")
	}
	condType := domain.ConditionType(strings.ToUpper(strings.TrimSpace(input.ConditionType)))
	if !condType.Valid() {
		return nil, domain.ErrValidation("unknown condition type")
	}
	effect := domain.PolicyEffect(strings.ToUpper(strings.TrimSpace(input.Effect)))
	if effect != domain.EffectAllow && effect != domain.EffectDeny {
		return nil, domain.ErrValidation("effect must be ALLOW or DENY")
	}

	tenants := parseTokens(input.Tenants)
	if len(tenants) == 0 {
		return nil, domain.ErrValidation("at least one tenant is required")
	}

	groupsIn := parseTokens(input.GroupsIncluded)
	groupsEx := parseTokens(input.GroupsExcluded)
	if err := ensureDisjoint("group", groupsIn, groupsEx); err != nil {
		return nil, err
	}
	usersIn := parseTokens(input.UsersIncluded)
	usersEx := parseTokens(input.UsersExcluded)
	if err := ensureDisjoint("user", usersIn, usersEx); err != nil {
		return nil, err
	}

	condValue, err := buildConditionValue(condType, input)
	if err != nil {
		return nil, err
	}

	p := &domain.SessionPolicy{
		Name:           name,
		ConditionType:  condType,
		ConditionValue: condValue,
		Effect:         effect,
		Priority:       input.Priority,
		Active:         input.Active,
	}
	appendScopes(p, domain.ScopeTenant, tenants, false)
	appendScopes(p, domain.ScopeGroup, groupsIn, false)
	appendScopes(p, domain.ScopeGroup, groupsEx, true)
	appendScopes(p, domain.ScopeUser, usersIn, false)
	appendScopes(p, domain.ScopeUser, usersEx, true)

	created, err := s.policies.Create(ctx, s.pool, p)
	if err != nil {
		return nil, domain.ErrInternal("create policy", err)
	}
	return created, nil
}

// List returns summaries of every policy, priority desc.
func (s *PolicyAdminService) List(ctx context.Context) ([]PolicySummary, error) {
	policies, err := s.policies.FindAll(ctx, s.pool)
	if err != nil {
		return nil, domain.ErrInternal("list policies", err)
	}
	out := make([]PolicySummary, 0, len(policies))
	for _, p := range policies {
		out = append(out, PolicySummary{
			ID:            p.ID,
			Name:          p.Name,
			ConditionType: p.ConditionType,
			Effect:        p.Effect,
			Priority:      p.Priority,
			Active:        p.Active,
			ScopeCount:    len(p.Scopes),
			CreatedAt:     p.CreatedAt,
		})
	}
	return out, nil
}

// SetActive flips a policy's active flag.
func (s *PolicyAdminService) SetActive(ctx context.Context, id int64, active bool) error {
	found, err := s.policies.SetActive(ctx, s.pool, id, active)
	if err != nil {
		return domain.ErrInternal("toggle policy", err)
	}
	if !found {
		return domain.ErrNotFound("policy", strconv.FormatInt(id, 10))
	}
	return nil
}

// Delete removes a policy and its scopes.
func (s *PolicyAdminService) Delete(ctx context.Context, id int64) error {
	found, err := s.policies.Delete(ctx, s.pool, id)
	if err != nil {
		return domain.ErrInternal("delete policy", err)
	}
	if !found {
		return domain.ErrNotFound("policy", strconv.FormatInt(id, 10))
	}
	return nil
}

// TestPolicyInput describes the synthetic request context for a dry run.
type TestPolicyInput struct {
	TenantID    string `json:"tenant_id"`
	UserID      string `json:"user_id"`
	Groups      string `json:"groups"`
	ClientIP    string `json:"client_ip"`
	CountryCode string `json:"country_code"`
	Date        string `json:"date"` // 2006-01-02, defaults to today
	Time        string `json:"time"` // 15:04, defaults to now
	Zone        string `json:"zone"` // IANA zone, defaults to UTC
}

// Test evaluates the active policies for the input's tenant against a
// synthetic context and reports the outcome.
func (s *PolicyAdminService) Test(ctx context.Context, input TestPolicyInput) (*domain.EvaluationResult, error) {
	requestTime, err := resolveTestTime(input.Date, input.Time, input.Zone)
	if err != nil {
		return nil, err
	}

	evalCtx := domain.EvaluationContext{
		TenantID:    strings.TrimSpace(input.TenantID),
		UserID:      strings.TrimSpace(input.UserID),
		ClientIP:    strings.TrimSpace(input.ClientIP),
		CountryCode: strings.ToUpper(strings.TrimSpace(input.CountryCode)),
		RequestTime: requestTime,
	}
	if groups := parseTokens(input.Groups); len(groups) > 0 {
		evalCtx.GroupIDs = make(map[string]struct{}, len(groups))
		for _, g := range groups {
			evalCtx.GroupIDs[g] = struct{}{}
		}
	}

	engine := policy.NewEngine(policySourceFunc(func(c context.Context, tenantID string) ([]*domain.SessionPolicy, error) {
		return s.policies.FindActiveForTenant(c, s.pool, tenantID)
	}))

	result, err := engine.Evaluate(ctx, evalCtx)
	if err != nil {
		return nil, domain.ErrInternal("evaluate policies", err)
	}
	return &result, nil
}

type policySourceFunc func(ctx context.Context, tenantID string) ([]*domain.SessionPolicy, error)

func (f policySourceFunc) FindActiveForTenant(ctx context.Context, tenantID string) ([]*domain.SessionPolicy, error) {
	return f(ctx, tenantID)
}

func resolveTestTime(date, clock, zone string) (time.Time, error) {
	loc := time.UTC
	if z := strings.TrimSpace(zone); z != "" {
		var err error
		loc, err = time.LoadLocation(z)
		if err != nil {
			return time.Time{}, domain.ErrValidation("unknown time zone, use an IANA name like Europe/Berlin")
		}
	}
	now := time.Now().In(loc)

	day := now
	if d := strings.TrimSpace(date); d != "" {
		parsed, err := time.ParseInLocation("2006-01-02", d, loc)
		if err != nil {
			return time.Time{}, domain.ErrValidation("invalid date, expected YYYY-MM-DD")
		}
		day = parsed
	}
	hour, minute := now.Hour(), now.Minute()
	if c := strings.TrimSpace(clock); c != "" {
		parsed, err := time.Parse("15:04", c)
		if err != nil {
			return time.Time{}, domain.ErrValidation("invalid time, expected HH:MM")
		}
		hour, minute = parsed.Hour(), parsed.Minute()
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

// buildConditionValue assembles the JSON condition payload for the type.
func buildConditionValue(t domain.ConditionType, input CreatePolicyInput) (string, error) {
	switch t {
	case domain.ConditionTimeWindow:
		start := strings.TrimSpace(input.WindowStart)
		end := strings.TrimSpace(input.WindowEnd)
		if start == "" || end == "" {
			return "", domain.ErrValidation("time window requires start and end")
		}
		if _, err := time.Parse("15:04", start); err != nil {
			return "", domain.ErrValidation("invalid window start, expected HH:MM")
		}
		if _, err := time.Parse("15:04", end); err != nil {
			return "", domain.ErrValidation("invalid window end, expected HH:MM")
		}
		if z := strings.TrimSpace(input.WindowZone); z != "" {
			if _, err := time.LoadLocation(z); err != nil {
				return "", domain.ErrValidation("unknown window zone, use an IANA name like Europe/Berlin")
			}
		}
		return marshalCondition(map[string]string{
			"start": start,
			"end":   end,
			"zone":  strings.TrimSpace(input.WindowZone),
		})
	case domain.ConditionIPRange:
		cidrs := parseTokens(input.CIDRs)
		if len(cidrs) == 0 {
			return "", domain.ErrValidation("ip range requires at least one CIDR")
		}
		return marshalCondition(map[string][]string{"cidr": cidrs})
	case domain.ConditionLocation:
		countries := parseTokens(input.Countries)
		if len(countries) == 0 {
			return "", domain.ErrValidation("location requires at least one country code")
		}
		for i, c := range countries {
			countries[i] = strings.ToUpper(c)
		}
		return marshalCondition(map[string][]string{"countries": countries})
	}
	return "", domain.ErrValidation("unknown condition type")
}

func marshalCondition(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", domain.ErrInternal("marshal condition", err)
	}
	return string(raw), nil
}

// parseTokens splits a comma or newline separated value into trimmed,
// de-duplicated tokens, preserving first-seen order.
func parseTokens(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func ensureDisjoint(kind string, included, excluded []string) error {
	in := make(map[string]struct{}, len(included))
	for _, v := range included {
		in[v] = struct{}{}
	}
	for _, v := range excluded {
		if _, clash := in[v]; clash {
			return domain.ErrValidation(fmt.Sprintf("%s %q appears in both include and exclude lists", kind, v))
		}
	}
	return nil
}

func appendScopes(p *domain.SessionPolicy, t domain.ScopeType, values []string, excluded bool) {
	for _, v := range values {
		p.Scopes = append(p.Scopes, domain.PolicyScope{
			ScopeType: t,
			Value:     v,
			Excluded:  excluded,
		})
	}
}

// TenantLimitService manages per-tenant session limits.
type TenantLimitService struct {
	pool   *pgxpool.Pool
	limits repository.TenantLimitRepository
}

// NewTenantLimitService creates a new TenantLimitService.
func NewTenantLimitService(pool *pgxpool.Pool, limits repository.TenantLimitRepository) *TenantLimitService {
	return &TenantLimitService{pool: pool, limits: limits}
}

// List returns every stored tenant limit.
func (s *TenantLimitService) List(ctx context.Context) ([]domain.TenantSessionLimit, error) {
	limits, err := s.limits.FindAll(ctx, s.pool)
	if err != nil {
		return nil, domain.ErrInternal("list tenant limits", err)
	}
	return limits, nil
}

// Upsert stores a tenant's limits, clamping negative values to zero.
func (s *TenantLimitService) Upsert(ctx context.Context, limit domain.TenantSessionLimit) (domain.TenantSessionLimit, error) {
	limit.TenantID = strings.TrimSpace(limit.TenantID)
	if limit.TenantID == "" {
		return domain.TenantSessionLimit{}, domain.ErrValidation("tenant id is required")
	}
	if limit.MaxSessions < 0 {
		limit.MaxSessions = 0
	}
	if limit.MaxIdleSeconds < 0 {
		limit.MaxIdleSeconds = 0
	}
	if limit.MaxDurationSeconds < 0 {
		limit.MaxDurationSeconds = 0
	}
	if err := s.limits.Upsert(ctx, s.pool, limit); err != nil {
		return domain.TenantSessionLimit{}, domain.ErrInternal("upsert tenant limit", err)
	}
	return limit, nil
}
