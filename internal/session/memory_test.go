package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantgate/platform/internal/domain"
)

func TestMemoryStore_CreateAndFind(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	created, err := store.Create(ctx, map[string]string{domain.AttrUserID: "alice"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	found, err := store.Find(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "alice", found.Attr(domain.AttrUserID))
}

func TestMemoryStore_FindAbsentReturnsNil(t *testing.T) {
	store := NewMemoryStore()

	found, err := store.Find(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestMemoryStore_SaveMutatesAttributes(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s, err := store.Create(ctx, nil)
	require.NoError(t, err)

	s.SetAttr(domain.AttrSecurityLevel, "MEDIUM")
	s.MaxIdleSeconds = 600
	require.NoError(t, store.Save(ctx, s))

	found, err := store.Find(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "MEDIUM", found.Attr(domain.AttrSecurityLevel))
	assert.Equal(t, 600, found.MaxIdleSeconds)
}

func TestMemoryStore_RotateIDKeepsState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s, err := store.Create(ctx, map[string]string{domain.AttrTenantID: "tenant1"})
	require.NoError(t, err)
	oldID := s.ID

	newID, err := store.RotateID(ctx, s)
	require.NoError(t, err)
	assert.NotEqual(t, oldID, newID)
	assert.Equal(t, newID, s.ID)

	gone, err := store.Find(ctx, oldID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	found, err := store.Find(ctx, newID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "tenant1", found.Attr(domain.AttrTenantID))
}

func TestMemoryStore_FindByTenantUsesIndexAttribute(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a, _ := store.Create(ctx, map[string]string{domain.TenantIndexKey: "tenant1"})
	b, _ := store.Create(ctx, map[string]string{domain.TenantIndexKey: "tenant1"})
	_, _ = store.Create(ctx, map[string]string{domain.TenantIndexKey: "tenant2"})

	sessions, err := store.FindByTenant(ctx, "tenant1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	ids := []string{sessions[0].ID, sessions[1].ID}
	assert.Contains(t, ids, a.ID)
	assert.Contains(t, ids, b.ID)
}

func TestMemoryStore_FindDropsIdleExpiredSession(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s, err := store.Create(ctx, nil)
	require.NoError(t, err)
	s.MaxIdleSeconds = 60
	require.NoError(t, store.Save(ctx, s))
	store.SetLastAccessed(s.ID, time.Now().Add(-time.Hour))

	found, err := store.Find(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, found, "idle-expired session must not be returned")

	// The expired session is gone, not resurrected by the lookup.
	found, err = store.Find(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestMemoryStore_FindKeepsSessionWithinIdleWindow(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s, err := store.Create(ctx, nil)
	require.NoError(t, err)
	s.MaxIdleSeconds = 3600
	require.NoError(t, store.Save(ctx, s))
	store.SetLastAccessed(s.ID, time.Now().Add(-time.Minute))

	found, err := store.Find(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
}

func TestMemoryStore_DisabledIdleNeverExpires(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s, err := store.Create(ctx, nil)
	require.NoError(t, err)
	s.MaxIdleSeconds = domain.MaxIdleDisabled
	require.NoError(t, store.Save(ctx, s))
	store.SetLastAccessed(s.ID, time.Now().Add(-240*time.Hour))

	found, err := store.Find(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
}

func TestMemoryStore_DeleteIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s, _ := store.Create(ctx, nil)
	require.NoError(t, store.Delete(ctx, s.ID))
	require.NoError(t, store.Delete(ctx, s.ID))

	found, err := store.Find(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestMemoryStore_SaveDeletedSessionFails(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s, _ := store.Create(ctx, nil)
	require.NoError(t, store.Delete(ctx, s.ID))

	err := store.Save(ctx, s)
	require.Error(t, err)
	appErr, ok := err.(*domain.AppError)
	require.True(t, ok)
	assert.Equal(t, "SESSION_INVALIDATED", appErr.Code)
}
