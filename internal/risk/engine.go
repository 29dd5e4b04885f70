package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tenantgate/platform/internal/domain"
)

// SecurityActionsTopic is where registered actions are published.
const SecurityActionsTopic = "security.actions"

// StateStore persists the (tenant, user) risk state.
type StateStore interface {
	Get(ctx context.Context, tenantID, userID string) (*domain.RiskState, error)
	Put(ctx context.Context, tenantID, userID string, state domain.RiskState) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// EventStore persists the append-only action event log.
type EventStore interface {
	Append(ctx context.Context, event domain.ActionEvent) error
	RecentByUser(ctx context.Context, tenantID, userID string, limit int) ([]domain.ActionEvent, error)
	DeleteOlderThanForUser(ctx context.Context, tenantID, userID string, cutoff time.Time) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Publisher emits registered actions to an event stream. May be nil.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Engine wraps the Calculator with persistence of the current state and an
// append-only event log. Concurrent registrations for the same (tenant,
// user) are best-effort: an intervening score update can be overwritten.
type Engine struct {
	calc      *Calculator
	states    StateStore
	events    EventStore
	publisher Publisher
	cfg       Config
	logger    *slog.Logger
	clock     func() time.Time
}

// NewEngine creates a risk level engine. publisher may be nil.
func NewEngine(cfg Config, states StateStore, events EventStore, publisher Publisher, logger *slog.Logger) *Engine {
	return &Engine{
		calc:      NewCalculator(cfg),
		states:    states,
		events:    events,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		clock:     time.Now,
	}
}

// CurrentLevel loads the persisted state for (tenant, user). An absent or
// expired state is replaced by a freshly persisted default; a live state is
// returned as-is. Blank ids yield the default state without persistence.
func (e *Engine) CurrentLevel(ctx context.Context, tenantID, userID string) (domain.RiskState, error) {
	tenantID = strings.TrimSpace(tenantID)
	userID = strings.TrimSpace(userID)
	if tenantID == "" || userID == "" {
		return e.calc.DefaultState(), nil
	}
	stored, err := e.states.Get(ctx, tenantID, userID)
	if err != nil {
		return domain.RiskState{}, fmt.Errorf("load risk state: %w", err)
	}
	refreshed := e.calc.RefreshIfExpired(stored)
	if stored == nil || stored.Expired(e.clock()) {
		if err := e.states.Put(ctx, tenantID, userID, refreshed); err != nil {
			return domain.RiskState{}, fmt.Errorf("persist refreshed risk state: %w", err)
		}
	}
	return refreshed, nil
}

// RegisterAction records a security event for (tenant, user) and escalates
// the risk state accordingly. The action type is normalized to upper-case,
// blank types map to UNKNOWN.
func (e *Engine) RegisterAction(ctx context.Context, tenantID, userID, actionType, detail string) (domain.RiskState, error) {
	tenantID = strings.TrimSpace(tenantID)
	userID = strings.TrimSpace(userID)
	if tenantID == "" || userID == "" {
		return domain.RiskState{}, domain.ErrValidation("tenant and user ids are required")
	}
	action := strings.ToUpper(strings.TrimSpace(actionType))
	if action == "" {
		action = "UNKNOWN"
	}

	current, err := e.CurrentLevel(ctx, tenantID, userID)
	if err != nil {
		return domain.RiskState{}, err
	}

	event := domain.ActionEvent{
		TenantID:   tenantID,
		UserID:     userID,
		ActionType: action,
		Detail:     strings.TrimSpace(detail),
		OccurredAt: e.clock(),
	}
	if err := e.events.Append(ctx, event); err != nil {
		return domain.RiskState{}, fmt.Errorf("append action event: %w", err)
	}
	e.publish(ctx, event)

	next := e.calc.ApplyEvent(&current, event)
	if err := e.states.Put(ctx, tenantID, userID, next); err != nil {
		return domain.RiskState{}, fmt.Errorf("persist risk state: %w", err)
	}
	if err := e.pruneEvents(ctx, tenantID, userID); err != nil {
		e.logger.Warn("prune action events failed", "tenant", tenantID, "user", userID, "error", err)
	}
	return next, nil
}

// RecentActions returns the most recent events for (tenant, user), newest
// first, capped at the retention count. Blank ids return an empty list.
func (e *Engine) RecentActions(ctx context.Context, tenantID, userID string) ([]domain.ActionEvent, error) {
	tenantID = strings.TrimSpace(tenantID)
	userID = strings.TrimSpace(userID)
	if tenantID == "" || userID == "" {
		return nil, nil
	}
	return e.events.RecentByUser(ctx, tenantID, userID, e.cfg.RetentionEvents)
}

// ResolveLevel is a convenience wrapper returning only the level.
func (e *Engine) ResolveLevel(ctx context.Context, tenantID, userID string) (domain.RiskLevel, error) {
	state, err := e.CurrentLevel(ctx, tenantID, userID)
	if err != nil {
		return "", err
	}
	return state.Level, nil
}

// Cleanup deletes all expired states and all events older than the
// retention window. Idempotent; invoked by the sweeper.
func (e *Engine) Cleanup(ctx context.Context) error {
	now := e.clock()
	states, err := e.states.DeleteExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("delete expired risk states: %w", err)
	}
	events, err := e.events.DeleteOlderThan(ctx, now.Add(-e.cfg.RetentionWindow))
	if err != nil {
		return fmt.Errorf("delete stale action events: %w", err)
	}
	if states > 0 || events > 0 {
		e.logger.Info("risk cleanup sweep", "states_deleted", states, "events_deleted", events)
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, event domain.ActionEvent) {
	if e.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	key := []byte(event.TenantID + ":" + event.UserID)
	if err := e.publisher.Publish(ctx, SecurityActionsTopic, key, payload); err != nil {
		e.logger.Warn("publish action event failed", "error", err)
	}
}

// pruneEvents drops events beyond the retention count for one user. When a
// full page comes back, everything older than its last entry goes.
func (e *Engine) pruneEvents(ctx context.Context, tenantID, userID string) error {
	recent, err := e.events.RecentByUser(ctx, tenantID, userID, e.cfg.RetentionEvents)
	if err != nil {
		return err
	}
	if len(recent) < e.cfg.RetentionEvents {
		return nil
	}
	cutoff := recent[len(recent)-1].OccurredAt
	return e.events.DeleteOlderThanForUser(ctx, tenantID, userID, cutoff)
}
