package repositories

import (
	"context"
	"time"

	"github.com/lnurl-gateway/backend/internal/db"
	"github.com/lnurl-gateway/backend/internal/models"
)

type ChannelRequestRepo struct {
	pool db.Querier
}

func NewChannelRequestRepo(pool db.Querier) *ChannelRequestRepo {
	return &ChannelRequestRepo{pool: pool}
}

const channelRequestColumns = `id, k1, remote_id, private, state, created_at, updated_at`

func scanChannelRequest(row interface{ Scan(...any) error }) (*models.ChannelRequest, error) {
	var c models.ChannelRequest
	if err := row.Scan(&c.ID, &c.K1, &c.RemoteID, &c.Private, &c.State, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *ChannelRequestRepo) Create(ctx context.Context, c *models.ChannelRequest) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO channel_requests (k1, state, created_at, updated_at)
		VALUES ($1, 'pending', $2, $2)
		RETURNING id, state, private
	`, c.K1, c.CreatedAt).Scan(&c.ID, &c.State, &c.Private)
}

// ClaimAndCollect redeems the channel k1 and moves its request pending ->
// collected with the remote node recorded, in one statement. The challenge is
// only claimed while its request is still pending, so either both change or
// neither does.
func (r *ChannelRequestRepo) ClaimAndCollect(ctx context.Context, k1, remoteID string, private bool, now time.Time) (*models.ChannelRequest, error) {
	return scanChannelRequest(r.pool.QueryRow(ctx, `
		WITH claimed AS (
			UPDATE challenges SET state = 'used', consumed_at = $4
			WHERE k1 = $1 AND kind = 'channel' AND state = 'unused'
			  AND (expires_at IS NULL OR expires_at > $4)
			  AND EXISTS (SELECT 1 FROM channel_requests WHERE k1 = $1 AND state = 'pending')
			RETURNING k1
		)
		UPDATE channel_requests cr
		SET state = 'collected', remote_id = $2, private = $3, updated_at = $4
		FROM claimed
		WHERE cr.k1 = claimed.k1 AND cr.state = 'pending'
		RETURNING cr.id, cr.k1, cr.remote_id, cr.private, cr.state, cr.created_at, cr.updated_at
	`, k1, remoteID, private, now))
}

// Transition moves the request to "to" only from one of the "from" states.
func (r *ChannelRequestRepo) Transition(ctx context.Context, k1 string, from []string, to string, now time.Time) (*models.ChannelRequest, error) {
	return scanChannelRequest(r.pool.QueryRow(ctx, `
		UPDATE channel_requests
		SET state = $3, updated_at = $4
		WHERE k1 = $1 AND state = ANY($2)
		RETURNING `+channelRequestColumns,
		k1, from, to, now))
}

func (r *ChannelRequestRepo) List(ctx context.Context, state *string, limit, offset int) ([]models.ChannelRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+channelRequestColumns+` FROM channel_requests
		WHERE ($1::text IS NULL OR state = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, state, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChannelRequest
	for rows.Next() {
		c, err := scanChannelRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
