package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lnurl-gateway/backend/internal/db"
	"github.com/lnurl-gateway/backend/internal/models"
)

type SessionRepo struct {
	pool db.Querier
}

func NewSessionRepo(pool db.Querier) *SessionRepo {
	return &SessionRepo{pool: pool}
}

const sessionColumns = `id, k1, linking_key, action, created_at, expires_at`

func scanSession(row interface{ Scan(...any) error }) (*models.AuthSession, error) {
	var s models.AuthSession
	if err := row.Scan(&s.ID, &s.K1, &s.LinkingKey, &s.Action, &s.CreatedAt, &s.ExpiresAt); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// ClaimAndCreate consumes the auth challenge and inserts the session in one
// statement. If the challenge is gone, used or expired nothing is written and
// ErrNotFound is returned.
func (r *SessionRepo) ClaimAndCreate(ctx context.Context, k1, linkingKey string, now, expiresAt time.Time) (*models.AuthSession, error) {
	return scanSession(r.pool.QueryRow(ctx, `
		WITH claimed AS (
			UPDATE challenges
			SET state = 'used', consumed_at = $3
			WHERE k1 = $1 AND kind = 'auth' AND state = 'unused'
			  AND (expires_at IS NULL OR expires_at > $3)
			RETURNING k1, action
		)
		INSERT INTO auth_sessions (k1, linking_key, action, created_at, expires_at)
		SELECT claimed.k1, $2, claimed.action, $3, $4 FROM claimed
		RETURNING `+sessionColumns,
		k1, linkingKey, now, expiresAt))
}

func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AuthSession, error) {
	return scanSession(r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM auth_sessions WHERE id = $1
	`, id))
}

func (r *SessionRepo) GetByK1(ctx context.Context, k1 string) (*models.AuthSession, error) {
	return scanSession(r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM auth_sessions WHERE k1 = $1
	`, k1))
}

func (r *SessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
