package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lnurl-gateway/backend/internal/db"
	"github.com/lnurl-gateway/backend/internal/models"
)

type PaymentRepo struct {
	pool db.Querier
}

func NewPaymentRepo(pool db.Querier) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// --- Payment configs ---

const configColumns = `id, min_sendable_msat, max_sendable_msat, comment_allowed, description, username, created_at`

func scanConfig(row interface{ Scan(...any) error }) (*models.PaymentConfig, error) {
	var c models.PaymentConfig
	if err := row.Scan(&c.ID, &c.MinSendableMsat, &c.MaxSendableMsat, &c.CommentAllowed, &c.Description, &c.Username, &c.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *PaymentRepo) CreateConfig(ctx context.Context, c *models.PaymentConfig) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO payment_configs (id, min_sendable_msat, max_sendable_msat, comment_allowed, description, username)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, c.ID, c.MinSendableMsat, c.MaxSendableMsat, c.CommentAllowed, c.Description, c.Username).Scan(&c.CreatedAt)
}

// UpsertAddressConfig returns the config for a Lightning Address, creating it on
// first resolution. An existing row is returned unchanged.
func (r *PaymentRepo) UpsertAddressConfig(ctx context.Context, c *models.PaymentConfig) (*models.PaymentConfig, error) {
	return scanConfig(r.pool.QueryRow(ctx, `
		INSERT INTO payment_configs (id, min_sendable_msat, max_sendable_msat, comment_allowed, description, username)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING `+configColumns,
		c.ID, c.MinSendableMsat, c.MaxSendableMsat, c.CommentAllowed, c.Description, c.Username))
}

func (r *PaymentRepo) GetConfig(ctx context.Context, id string) (*models.PaymentConfig, error) {
	return scanConfig(r.pool.QueryRow(ctx, `
		SELECT `+configColumns+` FROM payment_configs WHERE id = $1
	`, id))
}

func (r *PaymentRepo) ListConfigs(ctx context.Context, limit, offset int) ([]models.PaymentConfig, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+configColumns+` FROM payment_configs
		ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PaymentConfig
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// --- Invoices ---

const invoiceColumns = `id, payment_id, amount_sat, payment_hash, payment_request, description, comment, paid, created_at, paid_at`

func scanInvoice(row interface{ Scan(...any) error }) (*models.InvoiceRecord, error) {
	var i models.InvoiceRecord
	err := row.Scan(&i.ID, &i.PaymentID, &i.AmountSat, &i.PaymentHash, &i.PaymentRequest,
		&i.Description, &i.Comment, &i.Paid, &i.CreatedAt, &i.PaidAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &i, nil
}

func (r *PaymentRepo) CreateInvoice(ctx context.Context, i *models.InvoiceRecord) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO invoices (payment_id, amount_sat, payment_hash, payment_request, description, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, paid
	`, i.PaymentID, i.AmountSat, i.PaymentHash, i.PaymentRequest, i.Description, i.Comment, i.CreatedAt).Scan(&i.ID, &i.Paid)
}

func (r *PaymentRepo) GetInvoice(ctx context.Context, id uuid.UUID) (*models.InvoiceRecord, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `
		SELECT `+invoiceColumns+` FROM invoices WHERE id = $1
	`, id))
}

// UnpaidCursor is the (created_at, id) of the last record of a page.
type UnpaidCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

type UnpaidQuery struct {
	Limit int
	// CreatedAfter, when set, leaves older records out of the pass.
	CreatedAfter *time.Time
	// After continues a walk from the end of the previous page.
	After *UnpaidCursor
}

// ListUnpaid returns unpaid records oldest first, ordered by (created_at, id)
// so a caller can page through all of them with After.
func (r *PaymentRepo) ListUnpaid(ctx context.Context, q UnpaidQuery) ([]models.InvoiceRecord, error) {
	if q.Limit <= 0 {
		q.Limit = 200
	}
	var afterAt *time.Time
	var afterID *uuid.UUID
	if q.After != nil {
		afterAt, afterID = &q.After.CreatedAt, &q.After.ID
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE paid = false
		  AND ($2::timestamptz IS NULL OR created_at > $2)
		  AND ($3::timestamptz IS NULL OR (created_at, id) > ($3, $4::uuid))
		ORDER BY created_at ASC, id ASC LIMIT $1
	`, q.Limit, q.CreatedAfter, afterAt, afterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.InvoiceRecord
	for rows.Next() {
		i, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

// MarkPaid flips unpaid -> paid. It reports false when the record was already
// paid, so callers can tell a fresh settlement from a repeat.
func (r *PaymentRepo) MarkPaid(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices SET paid = true, paid_at = $2
		WHERE id = $1 AND paid = false
	`, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type InvoiceFilter struct {
	PaymentID *string
	Paid      *bool
	Limit     int
	Offset    int
}

func (r *PaymentRepo) ListInvoices(ctx context.Context, f InvoiceFilter) ([]models.InvoiceRecord, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE ($1::text IS NULL OR payment_id = $1)
		  AND ($2::boolean IS NULL OR paid = $2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4
	`, f.PaymentID, f.Paid, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.InvoiceRecord
	for rows.Next() {
		i, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}
