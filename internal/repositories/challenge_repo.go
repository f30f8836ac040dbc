package repositories

import (
	"context"
	"time"

	"github.com/lnurl-gateway/backend/internal/db"
	"github.com/lnurl-gateway/backend/internal/models"
)

type ChallengeRepo struct {
	pool db.Querier
}

func NewChallengeRepo(pool db.Querier) *ChallengeRepo {
	return &ChallengeRepo{pool: pool}
}

const challengeColumns = `k1, kind, state, created_at, expires_at, consumed_at,
	min_withdrawable_msat, max_withdrawable_msat, description, action, amount_sat, payment_request`

func scanChallenge(row interface{ Scan(...any) error }) (*models.Challenge, error) {
	var c models.Challenge
	err := row.Scan(&c.K1, &c.Kind, &c.State, &c.CreatedAt, &c.ExpiresAt, &c.ConsumedAt,
		&c.MinWithdrawableMsat, &c.MaxWithdrawableMsat, &c.Description, &c.Action, &c.AmountSat, &c.PaymentRequest)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *ChallengeRepo) Create(ctx context.Context, c *models.Challenge) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO challenges (k1, kind, state, created_at, expires_at,
			min_withdrawable_msat, max_withdrawable_msat, description, action)
		VALUES ($1, $2, 'unused', $3, $4, $5, $6, $7, $8)
		RETURNING state
	`, c.K1, c.Kind, c.CreatedAt, c.ExpiresAt,
		c.MinWithdrawableMsat, c.MaxWithdrawableMsat, c.Description, c.Action,
	).Scan(&c.State)
}

// Claim moves an unused, unexpired challenge to "used" in one statement.
// Of any number of concurrent callers exactly one gets the row; the rest get ErrNotFound.
func (r *ChallengeRepo) Claim(ctx context.Context, kind, k1 string, now time.Time) (*models.Challenge, error) {
	return scanChallenge(r.pool.QueryRow(ctx, `
		UPDATE challenges
		SET state = 'used', consumed_at = $3
		WHERE k1 = $1 AND kind = $2 AND state = 'unused'
		  AND (expires_at IS NULL OR expires_at > $3)
		RETURNING `+challengeColumns,
		k1, kind, now))
}

func (r *ChallengeRepo) Cancel(ctx context.Context, kind, k1 string, now time.Time) (*models.Challenge, error) {
	return scanChallenge(r.pool.QueryRow(ctx, `
		UPDATE challenges
		SET state = 'cancelled', consumed_at = $3
		WHERE k1 = $1 AND kind = $2 AND state = 'unused'
		  AND (expires_at IS NULL OR expires_at > $3)
		RETURNING `+challengeColumns,
		k1, kind, now))
}

// Peek loads a challenge only while it is still redeemable. It never mutates.
func (r *ChallengeRepo) Peek(ctx context.Context, kind, k1 string, now time.Time) (*models.Challenge, error) {
	return scanChallenge(r.pool.QueryRow(ctx, `
		SELECT `+challengeColumns+`
		FROM challenges
		WHERE k1 = $1 AND kind = $2 AND state = 'unused'
		  AND (expires_at IS NULL OR expires_at > $3)
	`, k1, kind, now))
}

// SetWithdrawResult records what a used withdraw challenge paid out.
func (r *ChallengeRepo) SetWithdrawResult(ctx context.Context, k1 string, amountSat int64, paymentRequest string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE challenges SET amount_sat = $2, payment_request = $3
		WHERE k1 = $1 AND kind = 'withdraw' AND state = 'used' AND amount_sat IS NULL
	`, k1, amountSat, paymentRequest)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired removes challenges of kind whose expiry has passed, whatever their state.
func (r *ChallengeRepo) DeleteExpired(ctx context.Context, kind string, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM challenges WHERE kind = $1 AND expires_at IS NOT NULL AND expires_at < $2
	`, kind, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
