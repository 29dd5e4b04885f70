package domain

import "time"

// RiskLevel classifies how risky a user's current session looks.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// severity orders levels LOW < MEDIUM < HIGH.
func (l RiskLevel) severity() int {
	switch l {
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	}
	return 0
}

// MaxSeverity returns the more severe of two levels.
func MaxSeverity(a, b RiskLevel) RiskLevel {
	if a.severity() >= b.severity() {
		return a
	}
	return b
}

// RiskState is the per (tenant, user) accumulated risk record. Score is
// monotonically non-decreasing within a TTL window and resets to 0 once the
// state expires and is refreshed.
type RiskState struct {
	Level     RiskLevel `json:"level"`
	ExpiresAt time.Time `json:"expires_at"`
	Score     int       `json:"score"`
}

// Expired reports whether the state's TTL window has passed.
func (s RiskState) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now)
}

// ActionEvent is an append-only security event reported for a user.
type ActionEvent struct {
	TenantID   string    `json:"tenant_id"`
	UserID     string    `json:"user_id"`
	ActionType string    `json:"action_type"`
	Detail     string    `json:"detail"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RiskRule maps an action type to the level it implies and the TTL it
// stamps on the resulting state.
type RiskRule struct {
	Level RiskLevel
	TTL   time.Duration
}
