package policy

import (
	"encoding/json"
	"net"
	"strconv"
	"strings"

	"github.com/tenantgate/platform/internal/domain"
)

// IPRangeEvaluator matches when the context's client IP falls inside any of
// the policy's IPv4 CIDR ranges. Malformed or non-IPv4 entries are skipped.
type IPRangeEvaluator struct{}

type ipRangeCondition struct {
	CIDR []string `json:"cidr"`
}

func (IPRangeEvaluator) Supports(t domain.ConditionType) bool {
	return t == domain.ConditionIPRange
}

func (IPRangeEvaluator) Matches(p *domain.SessionPolicy, ctx domain.EvaluationContext) bool {
	if ctx.ClientIP == "" {
		return false
	}
	var cond ipRangeCondition
	if err := json.Unmarshal([]byte(p.ConditionValue), &cond); err != nil {
		return false
	}
	if len(cond.CIDR) == 0 {
		return false
	}
	ip, ok := ipv4ToUint32(ctx.ClientIP)
	if !ok {
		return false
	}
	for _, entry := range cond.CIDR {
		base, mask, ok := parseCIDR(strings.TrimSpace(entry))
		if !ok {
			continue
		}
		if ip&mask == base&mask {
			return true
		}
	}
	return false
}

// parseCIDR splits "a.b.c.d/n" into a base address and mask. Prefix 0 means
// mask 0 (matches everything), prefix 32 matches only the exact address.
func parseCIDR(cidr string) (base, mask uint32, ok bool) {
	parts := strings.Split(cidr, "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	base, ok = ipv4ToUint32(parts[0])
	if !ok {
		return 0, 0, false
	}
	prefix, err := strconv.Atoi(parts[1])
	if err != nil || prefix < 0 || prefix > 32 {
		return 0, 0, false
	}
	if prefix == 0 {
		return base, 0, true
	}
	mask = ^uint32(0) << (32 - prefix)
	return base, mask, true
}

func ipv4ToUint32(s string) (uint32, bool) {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return 0, false
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0, false
	}
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3]), true
}
