package domain

import "time"

// TenantSessionLimit is the persisted per-tenant limit row. Zero values
// disable the corresponding cap.
type TenantSessionLimit struct {
	TenantID           string `json:"tenant_id"`
	MaxSessions        int    `json:"max_sessions"`
	MaxIdleSeconds     int    `json:"max_idle_seconds"`
	MaxDurationSeconds int    `json:"max_duration_seconds"`
}

// SessionLimitSettings is the resolved, request-time view of a tenant's
// limits (tenant override or system default).
type SessionLimitSettings struct {
	MaxSessions int           `json:"max_sessions"`
	MaxIdle     time.Duration `json:"max_idle"`
	MaxDuration time.Duration `json:"max_duration"`
}

// HasMaxSessionsLimit reports whether a concurrency cap applies.
func (s SessionLimitSettings) HasMaxSessionsLimit() bool { return s.MaxSessions > 0 }

// HasIdleLimit reports whether idle expiry applies. A zero MaxIdle means the
// session never idles out.
func (s SessionLimitSettings) HasIdleLimit() bool { return s.MaxIdle > 0 }

// HasDurationLimit reports whether an absolute lifetime cap applies.
func (s SessionLimitSettings) HasDurationLimit() bool { return s.MaxDuration > 0 }
