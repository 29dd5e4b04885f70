package policy

import "github.com/tenantgate/platform/internal/domain"

// ScopeMatches reports whether a policy's scopes target the given context.
//
// A policy must carry at least one non-excluded TENANT scope containing the
// context's tenant. USER and GROUP include-scopes restrict only when
// present; exclusion is evaluated after inclusion and always overrides.
func ScopeMatches(p *domain.SessionPolicy, ctx domain.EvaluationContext) bool {
	tenantIncludes := p.ScopeValues(domain.ScopeTenant, false)
	if len(tenantIncludes) == 0 || !ctx.HasTenant() {
		return false
	}
	if _, ok := tenantIncludes[ctx.TenantID]; !ok {
		return false
	}
	if _, ok := p.ScopeValues(domain.ScopeTenant, true)[ctx.TenantID]; ok {
		return false
	}

	userIncludes := p.ScopeValues(domain.ScopeUser, false)
	if len(userIncludes) > 0 {
		if !ctx.HasUser() {
			return false
		}
		if _, ok := userIncludes[ctx.UserID]; !ok {
			return false
		}
	}
	if ctx.HasUser() {
		if _, ok := p.ScopeValues(domain.ScopeUser, true)[ctx.UserID]; ok {
			return false
		}
	}

	groupIncludes := p.ScopeValues(domain.ScopeGroup, false)
	if len(groupIncludes) > 0 {
		if !ctx.HasGroups() || !intersects(ctx.GroupIDs, groupIncludes) {
			return false
		}
	}
	if ctx.HasGroups() && intersects(ctx.GroupIDs, p.ScopeValues(domain.ScopeGroup, true)) {
		return false
	}
	return true
}

func intersects(a, b map[string]struct{}) bool {
	for v := range a {
		if _, ok := b[v]; ok {
			return true
		}
	}
	return false
}
