package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an authenticatable account belonging to a tenant.
type User struct {
	ID           uuid.UUID
	TenantID     string
	Username     string
	PasswordHash string
	GroupIDs     []string
	Active       bool
	CreatedAt    time.Time
}
