package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tenantgate/platform/internal/domain"
)

var baseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedCalculator() *Calculator {
	c := NewCalculator(DefaultConfig())
	c.clock = func() time.Time { return baseTime }
	return c
}

func TestCalculator_DefaultState(t *testing.T) {
	c := fixedCalculator()

	state := c.DefaultState()
	assert.Equal(t, domain.RiskLow, state.Level)
	assert.Equal(t, 0, state.Score)
	assert.Equal(t, baseTime.Add(15*time.Minute), state.ExpiresAt)
}

func TestCalculator_RefreshIfExpired(t *testing.T) {
	c := fixedCalculator()

	live := domain.RiskState{Level: domain.RiskMedium, Score: 5, ExpiresAt: baseTime.Add(time.Minute)}
	assert.Equal(t, live, c.RefreshIfExpired(&live))

	expired := domain.RiskState{Level: domain.RiskHigh, Score: 30, ExpiresAt: baseTime.Add(-time.Second)}
	refreshed := c.RefreshIfExpired(&expired)
	assert.Equal(t, domain.RiskLow, refreshed.Level)
	assert.Equal(t, 0, refreshed.Score)

	assert.Equal(t, c.DefaultState(), c.RefreshIfExpired(nil))
}

func TestCalculator_ThreeSuspiciousIPEventsReachHigh(t *testing.T) {
	c := fixedCalculator()

	var state *domain.RiskState
	for i := 0; i < 3; i++ {
		next := c.ApplyEvent(state, domain.ActionEvent{
			ActionType: "SUSPICIOUS_IP",
			OccurredAt: baseTime.Add(time.Duration(i) * time.Minute),
		})
		state = &next
	}

	assert.Equal(t, 30, state.Score)
	assert.Equal(t, domain.RiskHigh, state.Level)
}

func TestCalculator_RuleLevelOverridesDerivedLevel(t *testing.T) {
	c := fixedCalculator()

	// One HIGH event gives score 10, derived MEDIUM, but the rule's own
	// level wins because it is more severe.
	state := c.ApplyEvent(nil, domain.ActionEvent{ActionType: "PASSWORD_RESET", OccurredAt: baseTime})
	assert.Equal(t, 10, state.Score)
	assert.Equal(t, domain.RiskHigh, state.Level)
}

func TestCalculator_EventResetsTTLFromEventTimestamp(t *testing.T) {
	c := fixedCalculator()

	ts := baseTime.Add(10 * time.Minute)
	state := c.ApplyEvent(nil, domain.ActionEvent{ActionType: "LOGIN_FAILURE", OccurredAt: ts})
	assert.Equal(t, ts.Add(30*time.Minute), state.ExpiresAt)
}

func TestCalculator_UnknownActionMapsToDefaultRule(t *testing.T) {
	c := fixedCalculator()

	state := c.ApplyEvent(nil, domain.ActionEvent{ActionType: "NEVER_CONFIGURED", OccurredAt: baseTime})
	assert.Equal(t, 5, state.Score)
	assert.Equal(t, domain.RiskMedium, state.Level)
	assert.Equal(t, baseTime.Add(30*time.Minute), state.ExpiresAt)
}

func TestConfig_RuleForNormalizesActionType(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, cfg.Rules["SUSPICIOUS_IP"], cfg.RuleFor("  suspicious_ip "))
	assert.Equal(t, cfg.Rules["UNKNOWN"], cfg.RuleFor(""))
	assert.Equal(t, cfg.Rules["UNKNOWN"], cfg.RuleFor("no-such-rule"))
}

func TestMaxSeverity(t *testing.T) {
	assert.Equal(t, domain.RiskHigh, domain.MaxSeverity(domain.RiskLow, domain.RiskHigh))
	assert.Equal(t, domain.RiskHigh, domain.MaxSeverity(domain.RiskHigh, domain.RiskMedium))
	assert.Equal(t, domain.RiskMedium, domain.MaxSeverity(domain.RiskMedium, domain.RiskLow))
	assert.Equal(t, domain.RiskLow, domain.MaxSeverity(domain.RiskLow, domain.RiskLow))
}
