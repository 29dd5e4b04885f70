// Package limiter enforces per-tenant session limits: idle timeout,
// absolute lifetime, and a concurrency cap with LRU eviction.
package limiter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tenantgate/platform/internal/domain"
)

// System defaults applied when a tenant has no override row.
const (
	DefaultMaxSessions = 0
	DefaultMaxIdle     = 1800 * time.Second
	DefaultMaxDuration = time.Duration(0)
)

// SettingsSource reads a tenant's limit override, nil when absent.
type SettingsSource interface {
	Get(ctx context.Context, tenantID string) (*domain.TenantSessionLimit, error)
}

// Resolver turns tenant limit rows into request-time settings.
type Resolver struct {
	source SettingsSource
}

// NewResolver creates a settings resolver over the given source.
func NewResolver(source SettingsSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the tenant's settings, or the system defaults when the
// tenant is blank or has no override.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) (domain.SessionLimitSettings, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return DefaultSettings(), nil
	}
	row, err := r.source.Get(ctx, tenantID)
	if err != nil {
		return domain.SessionLimitSettings{}, fmt.Errorf("load session limits for tenant %s: %w", tenantID, err)
	}
	if row == nil {
		return DefaultSettings(), nil
	}
	return domain.SessionLimitSettings{
		MaxSessions: maxInt(0, row.MaxSessions),
		MaxIdle:     secondsToDuration(row.MaxIdleSeconds, DefaultMaxIdle),
		MaxDuration: secondsToDuration(row.MaxDurationSeconds, DefaultMaxDuration),
	}, nil
}

// DefaultSettings is the system-wide fallback.
func DefaultSettings() domain.SessionLimitSettings {
	return domain.SessionLimitSettings{
		MaxSessions: DefaultMaxSessions,
		MaxIdle:     DefaultMaxIdle,
		MaxDuration: DefaultMaxDuration,
	}
}

func secondsToDuration(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
