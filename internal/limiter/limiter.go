package limiter

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tenantgate/platform/internal/domain"
)

// Result is the outcome of one enforcement pass.
type Result struct {
	Allowed bool
	Reason  string
	// SessionInvalidated means the current session was removed as part of
	// the decision; the caller must not reuse it.
	SessionInvalidated bool
}

// Limiter enforces resolved session limit settings against the shared
// session index. The read-then-evict sequence is intentionally unlocked:
// concurrent requests for one tenant can transiently over-admit, and strict
// enforcement requires external per-tenant serialization.
type Limiter struct {
	store domain.SessionStore
	clock func() time.Time
}

// New creates a limiter over the given session store.
func New(store domain.SessionStore) *Limiter {
	return &Limiter{store: store, clock: time.Now}
}

// Enforce applies the idle, absolute-duration, and concurrency rules to the
// current session, in that order. tenantID is the evaluation context's
// tenant, the same one the settings were resolved for; the session may not
// carry it as an attribute when it arrived via request headers. Denials are
// terminal for the request.
func (l *Limiter) Enforce(ctx context.Context, settings domain.SessionLimitSettings, tenantID string, sess *domain.Session) (Result, error) {
	l.applyIdleTimeout(settings, sess)

	if settings.HasDurationLimit() {
		expiry := sess.CreatedAt.Add(settings.MaxDuration)
		if l.clock().After(expiry) {
			if err := l.store.Delete(ctx, sess.ID); err != nil {
				return Result{}, fmt.Errorf("invalidate expired session: %w", err)
			}
			return Result{
				Reason:             "session exceeded maximum lifetime",
				SessionInvalidated: true,
			}, nil
		}
	}

	if !settings.HasMaxSessionsLimit() {
		if err := l.store.Save(ctx, sess); err != nil {
			return Result{}, fmt.Errorf("save session: %w", err)
		}
		return Result{Allowed: true}, nil
	}
	return l.enforceConcurrency(ctx, settings, tenantID, sess)
}

func (l *Limiter) applyIdleTimeout(settings domain.SessionLimitSettings, sess *domain.Session) {
	if settings.MaxIdle == 0 {
		sess.MaxIdleSeconds = domain.MaxIdleDisabled
		return
	}
	if !settings.HasIdleLimit() {
		return
	}
	seconds := int64(settings.MaxIdle / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	if seconds > math.MaxInt32 {
		seconds = math.MaxInt32
	}
	sess.MaxIdleSeconds = int(seconds)
}

// enforceConcurrency tags the session into the tenant index, then evicts
// least-recently-used sessions until the tenant fits its cap. The current
// session is never an eviction candidate; if the cap still cannot be met,
// the current session itself is invalidated and the request denied.
func (l *Limiter) enforceConcurrency(ctx context.Context, settings domain.SessionLimitSettings, tenantID string, sess *domain.Session) (Result, error) {
	sess.SetAttr(domain.TenantIndexKey, tenantID)
	if err := l.store.Save(ctx, sess); err != nil {
		return Result{}, fmt.Errorf("tag session into tenant index: %w", err)
	}

	indexed, err := l.store.FindByTenant(ctx, tenantID)
	if err != nil {
		return Result{}, fmt.Errorf("list tenant sessions: %w", err)
	}

	registered := false
	for _, s := range indexed {
		if s.ID == sess.ID {
			registered = true
			break
		}
	}
	expected := len(indexed)
	if !registered {
		expected++
	}
	if expected <= settings.MaxSessions {
		return Result{Allowed: true}, nil
	}

	toRemove := expected - settings.MaxSessions
	sort.Slice(indexed, func(i, j int) bool {
		return indexed[i].LastAccessedAt.Before(indexed[j].LastAccessedAt)
	})
	for _, candidate := range indexed {
		if candidate.ID == sess.ID {
			continue
		}
		if err := l.store.Delete(ctx, candidate.ID); err != nil {
			return Result{}, fmt.Errorf("evict session %s: %w", candidate.ID, err)
		}
		toRemove--
		if toRemove <= 0 {
			break
		}
	}

	if toRemove > 0 {
		if err := l.store.Delete(ctx, sess.ID); err != nil {
			return Result{}, fmt.Errorf("invalidate over-cap session: %w", err)
		}
		return Result{
			Reason:             "maximum session count exceeded",
			SessionInvalidated: true,
		}, nil
	}
	return Result{Allowed: true}, nil
}
