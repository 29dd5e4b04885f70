package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tenantgate/platform/internal/auth"
	"github.com/tenantgate/platform/internal/domain"
	"github.com/tenantgate/platform/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// CountryResolver maps a client IP to an ISO country code, "" when unknown.
type CountryResolver interface {
	Country(ip string) string
}

// AuthService handles user registration and login. A successful login
// establishes the server-side session the authorization pipeline governs.
type AuthService struct {
	pool     *pgxpool.Pool
	users    repository.UserRepository
	sessions domain.SessionStore
	jwtMgr   *auth.JWTManager
	geo      CountryResolver
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	pool *pgxpool.Pool,
	users repository.UserRepository,
	sessions domain.SessionStore,
	jwtMgr *auth.JWTManager,
	geo CountryResolver,
) *AuthService {
	return &AuthService{
		pool:     pool,
		users:    users,
		sessions: sessions,
		jwtMgr:   jwtMgr,
		geo:      geo,
	}
}

// RegisterInput holds the registration request fields.
type RegisterInput struct {
	TenantID string   `json:"tenant_id"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	GroupIDs []string `json:"group_ids"`
}

// LoginInput holds the login request fields.
type LoginInput struct {
	TenantID string `json:"tenant_id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResult is returned on successful registration or login.
type AuthResult struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id"`
	TenantID  string `json:"tenant_id"`
}

// Register creates a new user account.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.TenantID = strings.TrimSpace(input.TenantID)
	input.Username = strings.TrimSpace(input.Username)
	if input.TenantID == "" {
		return nil, domain.ErrValidation("tenant id is required")
	}
	if input.Username == "" {
		return nil, domain.ErrValidation("username is required")
	}
	if len(input.Password) < 8 {
		return nil, domain.ErrValidation("password must be at least 8 characters")
	}

	existing, err := s.users.FindByUsername(ctx, s.pool, input.TenantID, input.Username)
	if err != nil {
		return nil, domain.ErrInternal("find user", err)
	}
	if existing != nil {
		return nil, domain.ErrConflict("username already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ErrInternal("hash password", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		TenantID:     input.TenantID,
		Username:     input.Username,
		PasswordHash: string(hash),
		GroupIDs:     input.GroupIDs,
		Active:       true,
	}
	if err := s.users.Create(ctx, s.pool, user); err != nil {
		return nil, domain.ErrInternal("create user", err)
	}

	token, err := s.jwtMgr.GenerateToken(auth.RealmUser, user.ID.String(), user.TenantID, "")
	if err != nil {
		return nil, domain.ErrInternal("generate token", err)
	}
	return &AuthResult{Token: token, UserID: user.ID.String(), TenantID: user.TenantID}, nil
}

// Login validates credentials and creates the server session, seeding the
// identity attributes the authorization pipeline reads on every request.
func (s *AuthService) Login(ctx context.Context, input LoginInput, clientIP string) (*AuthResult, error) {
	input.TenantID = strings.TrimSpace(input.TenantID)
	input.Username = strings.TrimSpace(input.Username)
	if input.TenantID == "" || input.Username == "" || input.Password == "" {
		return nil, domain.ErrValidation("tenant id, username and password are required")
	}

	user, err := s.users.FindByUsername(ctx, s.pool, input.TenantID, input.Username)
	if err != nil {
		return nil, domain.ErrInternal("find user", err)
	}
	if user == nil || !user.Active {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}

	attrs := map[string]string{
		domain.AttrTenantID:   user.TenantID,
		domain.AttrUserID:     user.ID.String(),
		domain.TenantIndexKey: user.TenantID,
	}
	if len(user.GroupIDs) > 0 {
		attrs[domain.AttrGroupIDs] = strings.Join(user.GroupIDs, ",")
	}
	if clientIP != "" {
		attrs[domain.AttrClientIP] = clientIP
		if s.geo != nil {
			if country := s.geo.Country(clientIP); country != "" {
				attrs[domain.AttrCountryCode] = country
			}
		}
	}

	sess, err := s.sessions.Create(ctx, attrs)
	if err != nil {
		return nil, domain.ErrInternal("create session", err)
	}

	token, err := s.jwtMgr.GenerateToken(auth.RealmUser, user.ID.String(), user.TenantID, "")
	if err != nil {
		return nil, domain.ErrInternal("generate token", err)
	}

	return &AuthResult{
		Token:     token,
		SessionID: sess.ID,
		UserID:    user.ID.String(),
		TenantID:  user.TenantID,
	}, nil
}

// Logout deletes the server session. Unknown ids are ignored.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return domain.ErrInternal("delete session", err)
	}
	return nil
}
