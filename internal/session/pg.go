package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tenantgate/platform/internal/domain"
)

// PgStore is a Postgres-backed session store. The tenant secondary index is
// a dedicated column kept in sync with the TenantIndexKey attribute on
// every save.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a Postgres session store over the given pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Create(ctx context.Context, attrs map[string]string) (*domain.Session, error) {
	if attrs == nil {
		attrs = map[string]string{}
	}
	payload, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("marshal session attributes: %w", err)
	}
	sess := &domain.Session{
		ID:         uuid.New().String(),
		Attributes: attrs,
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (id, attributes, tenant_index, max_idle_seconds, created_at, last_accessed_at)
		VALUES ($1, $2, $3, 0, now(), now())
		RETURNING created_at, last_accessed_at`,
		sess.ID, payload, attrs[domain.TenantIndexKey])
	if err := row.Scan(&sess.CreatedAt, &sess.LastAccessedAt); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// Find touches and returns the session. An idle-expired session is deleted
// and treated as gone rather than resurrected by the touch.
func (s *PgStore) Find(ctx context.Context, id string) (*domain.Session, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE sessions SET last_accessed_at = now()
		WHERE id = $1
		  AND (max_idle_seconds <= 0
		       OR last_accessed_at + make_interval(secs => max_idle_seconds) >= now())
		RETURNING id, attributes, max_idle_seconds, created_at, last_accessed_at`, id)
	sess, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if sess == nil {
		// Missing or idle-expired; the delete is a no-op for the former.
		if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
			return nil, fmt.Errorf("delete idle session: %w", err)
		}
		return nil, nil
	}
	return sess, nil
}

func (s *PgStore) Save(ctx context.Context, sess *domain.Session) error {
	payload, err := json.Marshal(sess.Attributes)
	if err != nil {
		return fmt.Errorf("marshal session attributes: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET attributes = $2, tenant_index = $3, max_idle_seconds = $4
		WHERE id = $1`,
		sess.ID, payload, sess.Attr(domain.TenantIndexKey), sess.MaxIdleSeconds)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionGone("session no longer exists")
	}
	return nil
}

func (s *PgStore) RotateID(ctx context.Context, sess *domain.Session) (string, error) {
	newID := uuid.New().String()
	tag, err := s.pool.Exec(ctx, `UPDATE sessions SET id = $2 WHERE id = $1`, sess.ID, newID)
	if err != nil {
		return "", fmt.Errorf("rotate session id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", domain.ErrSessionGone("session no longer exists")
	}
	sess.ID = newID
	return newID, nil
}

func (s *PgStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *PgStore) FindByTenant(ctx context.Context, tenantID string) ([]*domain.Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, attributes, max_idle_seconds, created_at, last_accessed_at
		FROM sessions WHERE tenant_index = $1`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list sessions by tenant: %w", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// DeleteIdleExpired removes sessions whose idle timeout has lapsed. Periodic
// housekeeping for stores without native expiry.
func (s *PgStore) DeleteIdleExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM sessions
		WHERE max_idle_seconds > 0
		  AND last_accessed_at + make_interval(secs => max_idle_seconds) < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var sess domain.Session
	var payload []byte
	err := row.Scan(&sess.ID, &payload, &sess.MaxIdleSeconds, &sess.CreatedAt, &sess.LastAccessedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(payload, &sess.Attributes); err != nil {
		return nil, err
	}
	return &sess, nil
}
