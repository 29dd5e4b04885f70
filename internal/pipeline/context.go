package pipeline

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tenantgate/platform/internal/domain"
)

// Request headers consulted when a session attribute is absent.
const (
	HeaderTenantID     = "X-Tenant-Id"
	HeaderUserID       = "X-User-Id"
	HeaderGroupIDs     = "X-Group-Ids"
	HeaderCountry      = "X-Location-Country"
	HeaderForwardedFor = "X-Forwarded-For"
)

// CountryResolver maps a client IP to an ISO country code; "" means
// unresolved. May be nil.
type CountryResolver interface {
	Country(ip string) string
}

// BuildContext assembles the per-request evaluation context from session
// attributes, falling back to request headers. The client IP additionally
// falls back to the forwarded-for header (first entry) and then the
// transport peer address; the country additionally falls back to a GeoIP
// lookup of the resolved client IP.
func BuildContext(r *http.Request, sess *domain.Session, geo CountryResolver, now time.Time) domain.EvaluationContext {
	clientIP := firstNonBlank(sess.Attr(domain.AttrClientIP), resolveClientIP(r))

	country := firstNonBlank(sess.Attr(domain.AttrCountryCode), r.Header.Get(HeaderCountry))
	if country == "" && geo != nil && clientIP != "" {
		country = geo.Country(clientIP)
	}
	country = strings.ToUpper(strings.TrimSpace(country))

	return domain.EvaluationContext{
		TenantID:    firstNonBlank(sess.Attr(domain.AttrTenantID), r.Header.Get(HeaderTenantID)),
		UserID:      firstNonBlank(sess.Attr(domain.AttrUserID), r.Header.Get(HeaderUserID)),
		GroupIDs:    resolveGroups(sess.Attr(domain.AttrGroupIDs), r.Header.Get(HeaderGroupIDs)),
		ClientIP:    clientIP,
		CountryCode: country,
		RequestTime: now,
	}
}

// ClientIP resolves the request's client address: first X-Forwarded-For
// entry when present, otherwise the peer address.
func ClientIP(r *http.Request) string {
	return resolveClientIP(r)
}

func resolveClientIP(r *http.Request) string {
	forwarded := r.Header.Get(HeaderForwardedFor)
	if forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// resolveGroups merges the comma-separated session attribute with the
// comma-separated header into one set.
func resolveGroups(attr, header string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, raw := range []string{attr, header} {
		for _, token := range strings.Split(raw, ",") {
			token = strings.TrimSpace(token)
			if token != "" {
				set[token] = struct{}{}
			}
		}
	}
	return set
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}
