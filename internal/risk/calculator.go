package risk

import (
	"strings"
	"time"

	"github.com/tenantgate/platform/internal/domain"
)

// Score thresholds for deriving a level from the accumulated score.
const (
	mediumScoreThreshold = 5
	highScoreThreshold   = 15
)

// scoreWeight is how much an action of the given rule level adds.
var scoreWeight = map[domain.RiskLevel]int{
	domain.RiskLow:    0,
	domain.RiskMedium: 5,
	domain.RiskHigh:   10,
}

// Config holds the risk rule table and retention knobs.
type Config struct {
	DefaultTTL      time.Duration
	RetentionEvents int
	RetentionWindow time.Duration
	Rules           map[string]domain.RiskRule
}

// DefaultConfig returns the built-in rule table.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:      15 * time.Minute,
		RetentionEvents: 20,
		RetentionWindow: 6 * time.Hour,
		Rules: map[string]domain.RiskRule{
			"LOGIN_FAILURE":  {Level: domain.RiskMedium, TTL: 30 * time.Minute},
			"PASSWORD_RESET": {Level: domain.RiskHigh, TTL: time.Hour},
			"SUSPICIOUS_IP":  {Level: domain.RiskHigh, TTL: 2 * time.Hour},
			"DEVICE_CHANGE":  {Level: domain.RiskMedium, TTL: 45 * time.Minute},
			"UNKNOWN":        {Level: domain.RiskMedium, TTL: 30 * time.Minute},
		},
	}
}

// RuleFor resolves the rule for an action type, falling back to UNKNOWN.
func (c Config) RuleFor(actionType string) domain.RiskRule {
	key := strings.ToUpper(strings.TrimSpace(actionType))
	if key == "" {
		key = "UNKNOWN"
	}
	if rule, ok := c.Rules[key]; ok {
		return rule
	}
	return c.Rules["UNKNOWN"]
}

// Calculator derives the next risk state from the current state and an
// incoming action event. It is pure apart from the injected clock.
type Calculator struct {
	cfg   Config
	clock func() time.Time
}

// NewCalculator creates a calculator over the given rule config.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg, clock: time.Now}
}

// DefaultState is LOW, score 0, expiring after the default TTL.
func (c *Calculator) DefaultState() domain.RiskState {
	return domain.RiskState{
		Level:     domain.RiskLow,
		ExpiresAt: c.clock().Add(c.cfg.DefaultTTL),
	}
}

// RefreshIfExpired returns the state unchanged unless it is nil or past its
// expiry, in which case a fresh default state is returned.
func (c *Calculator) RefreshIfExpired(state *domain.RiskState) domain.RiskState {
	if state == nil || state.Expired(c.clock()) {
		return c.DefaultState()
	}
	return *state
}

// ApplyEvent computes the next state. The score accumulates the weight of
// the rule's level; the resulting level is the more severe of the
// score-derived level and the rule's own level. Every event resets the TTL
// window from the event's timestamp.
func (c *Calculator) ApplyEvent(current *domain.RiskState, event domain.ActionEvent) domain.RiskState {
	rule := c.cfg.RuleFor(event.ActionType)
	score := 0
	if current != nil {
		score = current.Score
	}
	score += scoreWeight[rule.Level]
	return domain.RiskState{
		Level:     domain.MaxSeverity(deriveLevel(score), rule.Level),
		ExpiresAt: event.OccurredAt.Add(rule.TTL),
		Score:     score,
	}
}

func deriveLevel(score int) domain.RiskLevel {
	switch {
	case score >= highScoreThreshold:
		return domain.RiskHigh
	case score >= mediumScoreThreshold:
		return domain.RiskMedium
	}
	return domain.RiskLow
}
