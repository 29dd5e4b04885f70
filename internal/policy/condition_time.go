package policy

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tenantgate/platform/internal/domain"
)

// TimeWindowEvaluator matches when the request's local time falls inside a
// configured daily window. Windows may cross midnight; start == end means
// the full 24 hours.
type TimeWindowEvaluator struct{}

type timeWindowCondition struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Zone  string `json:"zone"`
}

func (TimeWindowEvaluator) Supports(t domain.ConditionType) bool {
	return t == domain.ConditionTimeWindow
}

func (TimeWindowEvaluator) Matches(p *domain.SessionPolicy, ctx domain.EvaluationContext) bool {
	var cond timeWindowCondition
	if err := json.Unmarshal([]byte(p.ConditionValue), &cond); err != nil {
		return false
	}
	if cond.Start == "" || cond.End == "" {
		return false
	}
	start, err := parseClock(cond.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(cond.End)
	if err != nil {
		return false
	}

	loc := resolveZone(cond.Zone, ctx.RequestTime)
	local := ctx.RequestTime.In(loc)
	now := (local.Hour()*60+local.Minute())*60 + local.Second()

	if start == end {
		return true
	}
	if start < end {
		return now >= start && now <= end
	}
	// Window crosses midnight.
	return now >= start || now <= end
}

// parseClock parses "HH:MM" into seconds since midnight, so the bounds
// compare exactly against the request's clock time.
func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	return (t.Hour()*60 + t.Minute()) * 60, nil
}

// resolveZone loads the condition's zone, falling back to the request's own
// zone when absent or unknown.
func resolveZone(zone string, ref time.Time) *time.Location {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return ref.Location()
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return ref.Location()
	}
	return loc
}
