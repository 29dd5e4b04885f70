package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tenantgate/platform/internal/domain"
)

// UserRepository provides access to the users table.
type UserRepository interface {
	FindByUsername(ctx context.Context, db DBTX, tenantID, username string) (*domain.User, error)
	Create(ctx context.Context, db DBTX, user *domain.User) error
}

type userRepo struct{}

// NewUserRepository returns a pgx-backed UserRepository.
func NewUserRepository() UserRepository {
	return &userRepo{}
}

func (r *userRepo) FindByUsername(ctx context.Context, db DBTX, tenantID, username string) (*domain.User, error) {
	row := db.QueryRow(ctx, `
		SELECT id, tenant_id, username, password_hash, group_ids, active, created_at
		FROM users
		WHERE tenant_id = $1 AND username = $2`, tenantID, username)

	var u domain.User
	err := row.Scan(&u.ID, &u.TenantID, &u.Username, &u.PasswordHash, &u.GroupIDs, &u.Active, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *userRepo) Create(ctx context.Context, db DBTX, user *domain.User) error {
	_, err := db.Exec(ctx, `
		INSERT INTO users (id, tenant_id, username, password_hash, group_ids, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		user.ID, user.TenantID, user.Username, user.PasswordHash, user.GroupIDs, user.Active)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}
