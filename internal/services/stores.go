package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lnurl-gateway/backend/internal/models"
	"github.com/lnurl-gateway/backend/internal/repositories"
)

// The services depend on these rather than on the pgx repositories so the
// flows can be exercised against in-memory stores.

type ChallengeStore interface {
	Create(ctx context.Context, c *models.Challenge) error
	Claim(ctx context.Context, kind, k1 string, now time.Time) (*models.Challenge, error)
	Cancel(ctx context.Context, kind, k1 string, now time.Time) (*models.Challenge, error)
	Peek(ctx context.Context, kind, k1 string, now time.Time) (*models.Challenge, error)
	SetWithdrawResult(ctx context.Context, k1 string, amountSat int64, paymentRequest string) error
}

type PaymentStore interface {
	CreateConfig(ctx context.Context, c *models.PaymentConfig) error
	UpsertAddressConfig(ctx context.Context, c *models.PaymentConfig) (*models.PaymentConfig, error)
	GetConfig(ctx context.Context, id string) (*models.PaymentConfig, error)
	ListConfigs(ctx context.Context, limit, offset int) ([]models.PaymentConfig, error)
	CreateInvoice(ctx context.Context, i *models.InvoiceRecord) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*models.InvoiceRecord, error)
	ListInvoices(ctx context.Context, f repositories.InvoiceFilter) ([]models.InvoiceRecord, error)
}

// SettlementStore is the one write the settlement path makes.
type SettlementStore interface {
	MarkPaid(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

type ChannelRequestStore interface {
	Create(ctx context.Context, c *models.ChannelRequest) error
	// ClaimAndCollect redeems the channel k1 and collects its pending request atomically.
	ClaimAndCollect(ctx context.Context, k1, remoteID string, private bool, now time.Time) (*models.ChannelRequest, error)
	Transition(ctx context.Context, k1 string, from []string, to string, now time.Time) (*models.ChannelRequest, error)
	List(ctx context.Context, state *string, limit, offset int) ([]models.ChannelRequest, error)
}

type SessionStore interface {
	ClaimAndCreate(ctx context.Context, k1, linkingKey string, now, expiresAt time.Time) (*models.AuthSession, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuthSession, error)
	GetByK1(ctx context.Context, k1 string) (*models.AuthSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type AuditLogger interface {
	Log(ctx context.Context, entry models.AuditLog) error
}
