package domain

import (
	"context"
	"time"
)

// Session attribute keys written by the authorization pipeline. Stable
// across the system; external readers rely on them.
const (
	AttrTenantID      = "tenantId"
	AttrUserID        = "userId"
	AttrGroupIDs      = "groupIds"
	AttrClientIP      = "clientIp"
	AttrCountryCode   = "countryCode"
	AttrPolicyID      = "sessionPolicy:lastAppliedId"
	AttrPolicyEffect  = "sessionPolicy:lastEffect"
	AttrSecurityLevel = "sessionSecurity:level"

	// TenantIndexKey is the attribute indexed by the session store for
	// tenant → sessions lookups. Its value is the tenant id.
	TenantIndexKey = "sessionLimit:tenantIndex"
)

// MaxIdleDisabled marks a session that never expires from inactivity.
const MaxIdleDisabled = -1

// Session is the server-side session record the pipeline reads and mutates.
type Session struct {
	ID             string            `json:"id"`
	Attributes     map[string]string `json:"attributes"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	MaxIdleSeconds int               `json:"max_idle_seconds"`
}

// Attr returns the named attribute or "".
func (s *Session) Attr(key string) string {
	if s.Attributes == nil {
		return ""
	}
	return s.Attributes[key]
}

// SetAttr sets the named attribute.
func (s *Session) SetAttr(key, value string) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]string)
	}
	s.Attributes[key] = value
}

// SessionStore is the session CRUD + secondary-index-by-tenant contract.
// The core issues reads, attribute writes, rotations and deletions against
// it; the store's durability and distribution are the caller's concern.
type SessionStore interface {
	// Create persists a new session and returns it with an assigned id.
	Create(ctx context.Context, attrs map[string]string) (*Session, error)

	// Find returns the session or nil when absent or invalidated.
	Find(ctx context.Context, id string) (*Session, error)

	// Save persists attribute and idle-timeout mutations.
	Save(ctx context.Context, s *Session) error

	// RotateID assigns the session a fresh public identifier, keeping all
	// other state. Returns the new id.
	RotateID(ctx context.Context, s *Session) (string, error)

	// Delete removes the session by id. Deleting an absent id is not an
	// error.
	Delete(ctx context.Context, id string) error

	// FindByTenant lists sessions whose TenantIndexKey attribute equals
	// the given tenant id.
	FindByTenant(ctx context.Context, tenantID string) ([]*Session, error)
}
