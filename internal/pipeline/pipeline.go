// Package pipeline orchestrates the per-request authorization sequence:
// session rotation, policy evaluation, risk resolution, and session limit
// enforcement, in a fixed order with terminal deny outcomes.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tenantgate/platform/internal/domain"
	"github.com/tenantgate/platform/internal/limiter"
	"github.com/tenantgate/platform/internal/policy"
	"github.com/tenantgate/platform/internal/risk"
)

// SessionCookie names the cookie carrying the session's public id.
const SessionCookie = "TG_SESSION"

// Paths that bypass the pipeline entirely.
var bypassPrefixes = []string{"/auth/login", "/auth/register", "/health", "/error"}

// Decision is the pipeline's verdict for one request.
type Decision struct {
	Allowed bool
	Reason  string
	// SessionID is the session's public id after rotation; empty when the
	// session was invalidated along the way.
	SessionID string
	Context   domain.EvaluationContext
}

// Pipeline composes the three engines over a shared session store.
type Pipeline struct {
	store    domain.SessionStore
	policies *policy.Engine
	risks    *risk.Engine
	resolver *limiter.Resolver
	limits   *limiter.Limiter
	geo      CountryResolver
	logger   *slog.Logger
	clock    func() time.Time
}

// New creates a request authorization pipeline. geo may be nil.
func New(store domain.SessionStore, policies *policy.Engine, risks *risk.Engine,
	resolver *limiter.Resolver, limits *limiter.Limiter, geo CountryResolver,
	logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:    store,
		policies: policies,
		risks:    risks,
		resolver: resolver,
		limits:   limits,
		geo:      geo,
		logger:   logger,
		clock:    time.Now,
	}
}

// Bypass reports whether the request skips authorization: OPTIONS preflight
// and the login/error/infrastructure paths.
func Bypass(r *http.Request) bool {
	if r.Method == http.MethodOptions {
		return true
	}
	for _, prefix := range bypassPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// Run executes the authorization sequence for one request and session. The
// session must exist; callers pass requests without a session straight
// through. Attribute writes and the id rotation stay applied even when the
// final verdict is a deny.
func (p *Pipeline) Run(ctx context.Context, r *http.Request, sess *domain.Session) (Decision, error) {
	if _, err := p.store.RotateID(ctx, sess); err != nil {
		return Decision{}, err
	}

	ec := BuildContext(r, sess, p.geo, p.clock())

	result, err := p.policies.Evaluate(ctx, ec)
	if err != nil {
		return Decision{}, err
	}
	p.storePolicyOutcome(sess, result)
	if !result.Allowed {
		if err := p.store.Save(ctx, sess); err != nil {
			return Decision{}, err
		}
		return p.deny(sess, ec, "access blocked by session policy"), nil
	}

	denied, err := p.applyRiskLevel(ctx, sess, ec)
	if err != nil {
		return Decision{}, err
	}
	if denied {
		if err := p.store.Save(ctx, sess); err != nil {
			return Decision{}, err
		}
		return p.deny(sess, ec, "access blocked due to high security risk level"), nil
	}

	settings, err := p.resolver.Resolve(ctx, ec.TenantID)
	if err != nil {
		return Decision{}, err
	}
	limitResult, err := p.limits.Enforce(ctx, settings, ec.TenantID, sess)
	if err != nil {
		return Decision{}, err
	}
	if !limitResult.Allowed {
		d := p.deny(sess, ec, limitResult.Reason)
		if limitResult.SessionInvalidated {
			d.SessionID = ""
		}
		return d, nil
	}

	return Decision{Allowed: true, SessionID: sess.ID, Context: ec}, nil
}

func (p *Pipeline) storePolicyOutcome(sess *domain.Session, result domain.EvaluationResult) {
	if result.PolicyID != nil {
		sess.SetAttr(domain.AttrPolicyID, strconv.FormatInt(*result.PolicyID, 10))
	} else {
		sess.SetAttr(domain.AttrPolicyID, "")
	}
	if result.Effect != nil {
		sess.SetAttr(domain.AttrPolicyEffect, string(*result.Effect))
	} else {
		sess.SetAttr(domain.AttrPolicyEffect, "")
	}
}

// applyRiskLevel resolves and stores the risk level, returning true when
// the request must be denied. A context without tenant or user forces LOW
// and skips the engine.
func (p *Pipeline) applyRiskLevel(ctx context.Context, sess *domain.Session, ec domain.EvaluationContext) (bool, error) {
	if !ec.HasTenant() || !ec.HasUser() {
		sess.SetAttr(domain.AttrSecurityLevel, string(domain.RiskLow))
		return false, nil
	}
	level, err := p.risks.ResolveLevel(ctx, ec.TenantID, ec.UserID)
	if err != nil {
		return false, err
	}
	sess.SetAttr(domain.AttrSecurityLevel, string(level))
	return level == domain.RiskHigh, nil
}

func (p *Pipeline) deny(sess *domain.Session, ec domain.EvaluationContext, reason string) Decision {
	return Decision{Reason: reason, SessionID: sess.ID, Context: ec}
}

// Middleware returns the chi-compatible middleware running the pipeline on
// every non-bypassed request carrying a session cookie. Requests without a
// session pass through untouched.
func (p *Pipeline) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Bypass(r) {
			next.ServeHTTP(w, r)
			return
		}
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		sess, err := p.store.Find(r.Context(), cookie.Value)
		if err != nil {
			p.logger.Error("session lookup failed", "error", err)
			writeDenied(w, http.StatusInternalServerError, "INTERNAL_ERROR", "session lookup failed")
			return
		}
		if sess == nil {
			next.ServeHTTP(w, r)
			return
		}

		decision, err := p.Run(r.Context(), r, sess)
		if err != nil {
			p.logger.Error("authorization pipeline failed", "error", err, "path", r.URL.Path)
			writeDenied(w, http.StatusInternalServerError, "INTERNAL_ERROR", "authorization failed")
			return
		}
		if decision.SessionID != "" {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    decision.SessionID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		} else {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    "",
				Path:     "/",
				MaxAge:   -1,
				HttpOnly: true,
			})
		}
		if !decision.Allowed {
			p.logger.Info("request denied",
				"reason", decision.Reason,
				"tenant", decision.Context.TenantID,
				"user", decision.Context.UserID,
				"path", r.URL.Path,
			)
			writeDenied(w, http.StatusForbidden, "ACCESS_DENIED", decision.Reason)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeDenied(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}
