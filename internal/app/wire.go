package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tenantgate/platform/internal/auth"
	"github.com/tenantgate/platform/internal/domain"
	"github.com/tenantgate/platform/internal/handler"
	"github.com/tenantgate/platform/internal/limiter"
	"github.com/tenantgate/platform/internal/pipeline"
	"github.com/tenantgate/platform/internal/policy"
	"github.com/tenantgate/platform/internal/repository"
	"github.com/tenantgate/platform/internal/risk"
	"github.com/tenantgate/platform/internal/service"
)

// Deps holds the externally constructed dependencies the router needs.
type Deps struct {
	Pool      *pgxpool.Pool
	Sessions  domain.SessionStore
	JWTMgr    *auth.JWTManager
	Geo       pipeline.CountryResolver
	Publisher risk.Publisher
	Logger    *slog.Logger

	CORSOrigin string
}

// App bundles the assembled router with the long-lived engines main
// manages directly.
type App struct {
	Router     chi.Router
	RiskEngine *risk.Engine
}

// New wires repositories, engines, services and handlers into a router.
func New(deps Deps) *App {
	pool := deps.Pool
	logger := deps.Logger

	// Repositories
	policyRepo := repository.NewPolicyRepository()
	stateRepo := repository.NewRiskStateRepository()
	eventRepo := repository.NewRiskEventRepository()
	limitRepo := repository.NewTenantLimitRepository()
	userRepo := repository.NewUserRepository()

	// Engines
	policyEngine := policy.NewEngine(&policySource{pool: pool, repo: policyRepo})
	riskEngine := risk.NewEngine(risk.DefaultConfig(),
		&riskStates{pool: pool, repo: stateRepo},
		&riskEvents{pool: pool, repo: eventRepo},
		deps.Publisher, logger)
	limitResolver := limiter.NewResolver(&limitSource{pool: pool, repo: limitRepo})
	sessionLimiter := limiter.New(deps.Sessions)

	pipe := pipeline.New(deps.Sessions, policyEngine, riskEngine,
		limitResolver, sessionLimiter, deps.Geo, logger)

	// Services
	authSvc := service.NewAuthService(pool, userRepo, deps.Sessions, deps.JWTMgr, deps.Geo)
	policyAdminSvc := service.NewPolicyAdminService(pool, policyRepo)
	limitSvc := service.NewTenantLimitService(pool, limitRepo)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	policyAdminHandler := handler.NewPolicyAdminHandler(policyAdminSvc)
	riskHandler := handler.NewRiskHandler(riskEngine)
	limitsHandler := handler.NewLimitsHandler(limitSvc)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(deps.CORSOrigin))
	r.Use(handler.JSONContentType)

	// Health (no auth, bypasses the pipeline)
	r.Get("/health", handler.HealthHandler(pool))

	// Auth routes (no auth, bypass the pipeline)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
	})

	// User-facing routes behind the authorization pipeline
	r.Group(func(r chi.Router) {
		r.Use(pipe.Middleware)
		r.Use(auth.AuthenticateUser(deps.JWTMgr))

		r.Get("/me/security-level", riskHandler.MySecurityLevel)
	})

	// Admin routes
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.AuthenticateAdmin(deps.JWTMgr))

		r.Route("/policies", func(r chi.Router) {
			r.Get("/", policyAdminHandler.List)
			r.Post("/test", policyAdminHandler.Test)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(auth.WriteRoles()...))
				r.Post("/", policyAdminHandler.Create)
				r.Patch("/{id}/active", policyAdminHandler.SetActive)
				r.Delete("/{id}", policyAdminHandler.Delete)
			})
		})

		r.Route("/security/{tenantID}/{userID}", func(r chi.Router) {
			r.Get("/", riskHandler.CurrentLevel)
			r.Get("/actions", riskHandler.RecentActions)
			r.With(auth.RequireRole(auth.WriteRoles()...)).Post("/actions", riskHandler.RegisterAction)
		})

		r.Route("/limits", func(r chi.Router) {
			r.Get("/", limitsHandler.List)
			r.With(auth.RequireRole(auth.WriteRoles()...)).Put("/{tenantID}", limitsHandler.Upsert)
		})
	})

	return &App{Router: r, RiskEngine: riskEngine}
}

// Pool-bound adapters. Repositories take a DBTX per call; the engines want
// plain stores.

type policySource struct {
	pool *pgxpool.Pool
	repo repository.PolicyRepository
}

func (s *policySource) FindActiveForTenant(ctx context.Context, tenantID string) ([]*domain.SessionPolicy, error) {
	return s.repo.FindActiveForTenant(ctx, s.pool, tenantID)
}

type riskStates struct {
	pool *pgxpool.Pool
	repo repository.RiskStateRepository
}

func (s *riskStates) Get(ctx context.Context, tenantID, userID string) (*domain.RiskState, error) {
	return s.repo.Get(ctx, s.pool, tenantID, userID)
}

func (s *riskStates) Put(ctx context.Context, tenantID, userID string, state domain.RiskState) error {
	return s.repo.Put(ctx, s.pool, tenantID, userID, state)
}

func (s *riskStates) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.pool, now)
}

type riskEvents struct {
	pool *pgxpool.Pool
	repo repository.RiskEventRepository
}

func (s *riskEvents) Append(ctx context.Context, event domain.ActionEvent) error {
	return s.repo.Append(ctx, s.pool, event)
}

func (s *riskEvents) RecentByUser(ctx context.Context, tenantID, userID string, limit int) ([]domain.ActionEvent, error) {
	return s.repo.RecentByUser(ctx, s.pool, tenantID, userID, limit)
}

func (s *riskEvents) DeleteOlderThanForUser(ctx context.Context, tenantID, userID string, cutoff time.Time) error {
	return s.repo.DeleteOlderThanForUser(ctx, s.pool, tenantID, userID, cutoff)
}

func (s *riskEvents) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, s.pool, cutoff)
}

type limitSource struct {
	pool *pgxpool.Pool
	repo repository.TenantLimitRepository
}

func (s *limitSource) Get(ctx context.Context, tenantID string) (*domain.TenantSessionLimit, error) {
	return s.repo.Get(ctx, s.pool, tenantID)
}
