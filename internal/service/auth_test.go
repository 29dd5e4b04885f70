package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantgate/platform/internal/auth"
	"github.com/tenantgate/platform/internal/domain"
	"github.com/tenantgate/platform/internal/repository"
	"github.com/tenantgate/platform/internal/session"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	users []*domain.User
}

func (f *fakeUserRepo) FindByUsername(ctx context.Context, db repository.DBTX, tenantID, username string) (*domain.User, error) {
	for _, u := range f.users {
		if u.TenantID == tenantID && u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, db repository.DBTX, user *domain.User) error {
	f.users = append(f.users, user)
	return nil
}

type staticGeo struct{ country string }

func (g staticGeo) Country(ip string) string { return g.country }

func newAuthFixture(t *testing.T) (*AuthService, *fakeUserRepo, *session.MemoryStore) {
	t.Helper()
	users := &fakeUserRepo{}
	sessions := session.NewMemoryStore()
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour, time.Hour)
	svc := NewAuthService(nil, users, sessions, jwtMgr, staticGeo{country: "DE"})
	return svc, users, sessions
}

func seedUser(t *testing.T, users *fakeUserRepo, tenantID, username, password string, groups ...string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &domain.User{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Username:     username,
		PasswordHash: string(hash),
		GroupIDs:     groups,
		Active:       true,
	}
	users.users = append(users.users, u)
	return u
}

func TestLoginSeedsSessionAttributes(t *testing.T) {
	svc, users, sessions := newAuthFixture(t)
	u := seedUser(t, users, "acme", "alice", "hunter2secret", "ops", "dev")

	result, err := svc.Login(context.Background(), LoginInput{
		TenantID: "acme",
		Username: "alice",
		Password: "hunter2secret",
	}, "198.51.100.9")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	require.NotEmpty(t, result.SessionID)

	sess, err := sessions.Find(context.Background(), result.SessionID)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "acme", sess.Attr(domain.AttrTenantID))
	assert.Equal(t, u.ID.String(), sess.Attr(domain.AttrUserID))
	assert.Equal(t, "ops,dev", sess.Attr(domain.AttrGroupIDs))
	assert.Equal(t, "198.51.100.9", sess.Attr(domain.AttrClientIP))
	assert.Equal(t, "DE", sess.Attr(domain.AttrCountryCode))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	seedUser(t, users, "acme", "alice", "hunter2secret")

	_, err := svc.Login(context.Background(), LoginInput{
		TenantID: "acme",
		Username: "alice",
		Password: "wrong-password",
	}, "")
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", err.(*domain.AppError).Code)

	_, err = svc.Login(context.Background(), LoginInput{
		TenantID: "acme",
		Username: "nobody",
		Password: "hunter2secret",
	}, "")
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", err.(*domain.AppError).Code)
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	u := seedUser(t, users, "acme", "alice", "hunter2secret")
	u.Active = false

	_, err := svc.Login(context.Background(), LoginInput{
		TenantID: "acme",
		Username: "alice",
		Password: "hunter2secret",
	}, "")
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", err.(*domain.AppError).Code)
}

func TestRegister(t *testing.T) {
	svc, users, _ := newAuthFixture(t)

	result, err := svc.Register(context.Background(), RegisterInput{
		TenantID: "acme",
		Username: "bob",
		Password: "longenoughpw",
		GroupIDs: []string{"dev"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	require.Len(t, users.users, 1)
	assert.True(t, users.users[0].Active)

	_, err = svc.Register(context.Background(), RegisterInput{
		TenantID: "acme",
		Username: "bob",
		Password: "longenoughpw",
	})
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", err.(*domain.AppError).Code)

	_, err = svc.Register(context.Background(), RegisterInput{
		TenantID: "acme",
		Username: "carol",
		Password: "short",
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", err.(*domain.AppError).Code)
}

func TestLogout(t *testing.T) {
	svc, users, sessions := newAuthFixture(t)
	seedUser(t, users, "acme", "alice", "hunter2secret")

	result, err := svc.Login(context.Background(), LoginInput{
		TenantID: "acme",
		Username: "alice",
		Password: "hunter2secret",
	}, "")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), result.SessionID))
	sess, err := sessions.Find(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.Nil(t, sess)

	require.NoError(t, svc.Logout(context.Background(), ""))
}
