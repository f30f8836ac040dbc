package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lnurl-gateway/backend/internal/apperr"
	"github.com/lnurl-gateway/backend/internal/config"
	"github.com/lnurl-gateway/backend/internal/lightning"
	"github.com/lnurl-gateway/backend/internal/lnurl"
	"github.com/lnurl-gateway/backend/internal/metrics"
	"github.com/lnurl-gateway/backend/internal/models"
	"github.com/lnurl-gateway/backend/internal/repositories"
	"go.uber.org/zap"
)

// minSendableFloor: an invoice is issued in whole satoshis.
const minSendableFloor = 1000

type PayService struct {
	store      PaymentStore
	settlement *SettlementService
	ln         lightning.Client
	audit      AuditLogger
	metrics    *metrics.Metrics
	cfg        *config.Config
	log        *zap.Logger
	now        func() time.Time
}

func NewPayService(
	store PaymentStore,
	settlement *SettlementService,
	ln lightning.Client,
	auditLog AuditLogger,
	m *metrics.Metrics,
	cfg *config.Config,
	log *zap.Logger,
) *PayService {
	return &PayService{
		store:      store,
		settlement: settlement,
		ln:         ln,
		audit:      auditLog,
		metrics:    m,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// PayBounds are the optional overrides accepted by Generate.
type PayBounds struct {
	MinSendableMsat *int64  `json:"min_sendable_msat"`
	MaxSendableMsat *int64  `json:"max_sendable_msat"`
	CommentAllowed  *int    `json:"comment_allowed"`
	Description     *string `json:"description"`
}

// Generate persists a reusable pay config from b, falling back to the configured defaults.
func (s *PayService) Generate(ctx context.Context, b PayBounds) (*models.PaymentConfig, error) {
	pc := &models.PaymentConfig{
		ID:              uuid.New().String(),
		MinSendableMsat: s.cfg.PayMinMsat,
		MaxSendableMsat: s.cfg.PayMaxMsat,
		CommentAllowed:  s.cfg.PayCommentMax,
		Description:     s.cfg.PayDescription,
	}
	if b.MinSendableMsat != nil {
		pc.MinSendableMsat = *b.MinSendableMsat
	}
	if b.MaxSendableMsat != nil {
		pc.MaxSendableMsat = *b.MaxSendableMsat
	}
	if b.CommentAllowed != nil {
		pc.CommentAllowed = *b.CommentAllowed
	}
	if b.Description != nil {
		pc.Description = *b.Description
	}

	if err := validateBounds(pc); err != nil {
		return nil, err
	}

	if err := s.store.CreateConfig(ctx, pc); err != nil {
		return nil, apperr.Internal("failed to save payment config", err)
	}

	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorType:  models.ActorTypeSystem,
		Action:     "payment_config_created",
		EntityType: models.EntityPaymentConfig,
		EntityID:   pc.ID,
		Meta:       map[string]any{"min_msat": pc.MinSendableMsat, "max_msat": pc.MaxSendableMsat},
	})

	s.log.Info("payment config created",
		zap.String("payment_id", pc.ID),
		zap.Int64("min_msat", pc.MinSendableMsat),
		zap.Int64("max_msat", pc.MaxSendableMsat),
	)
	return pc, nil
}

func validateBounds(pc *models.PaymentConfig) error {
	if pc.MinSendableMsat < minSendableFloor {
		return apperr.Validationf("minSendable must be at least %d msat", minSendableFloor)
	}
	if pc.MinSendableMsat > pc.MaxSendableMsat {
		return apperr.Validation("minSendable must not exceed maxSendable")
	}
	if pc.CommentAllowed < 0 {
		return apperr.Validation("commentAllowed must not be negative")
	}
	return nil
}

func (s *PayService) Config(ctx context.Context, id string) (*models.PaymentConfig, error) {
	pc, err := s.store.GetConfig(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("Payment not found")
		}
		return nil, apperr.Internal("failed to load payment config", err)
	}
	return pc, nil
}

// Request builds the payRequest a wallet fetches before paying.
func (s *PayService) Request(ctx context.Context, id string) (*lnurl.PayRequest, error) {
	pc, err := s.Config(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.payRequest(pc), nil
}

// ResolveAddress maps user@domain to its pay config, creating it on first use.
// The id is derived from the username so repeated lookups hit the same row.
func (s *PayService) ResolveAddress(ctx context.Context, username string) (*lnurl.PayRequest, error) {
	name, ok := lnurl.NormalizeUsername(username)
	if !ok {
		return nil, apperr.Validation("Invalid username")
	}

	sum := sha256.Sum256([]byte(name))
	pc, err := s.store.UpsertAddressConfig(ctx, &models.PaymentConfig{
		ID:              hex.EncodeToString(sum[:]),
		MinSendableMsat: s.cfg.PayMinMsat,
		MaxSendableMsat: s.cfg.PayMaxMsat,
		CommentAllowed:  s.cfg.PayCommentMax,
		Description:     "Payment to " + s.address(name),
		Username:        &name,
	})
	if err != nil {
		return nil, apperr.Internal("failed to resolve address", err)
	}
	return s.payRequest(pc), nil
}

// Callback issues an invoice of floor(amountMsat/1000) sat against config id.
func (s *PayService) Callback(ctx context.Context, id string, amountMsat int64, comment string) (*lnurl.PayValues, *models.InvoiceRecord, error) {
	pc, err := s.Config(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if amountMsat <= 0 {
		return nil, nil, apperr.Validation("Amount must be a positive integer")
	}
	if amountMsat < pc.MinSendableMsat || amountMsat > pc.MaxSendableMsat {
		return nil, nil, apperr.Validationf("Amount %d msat is outside [%d, %d]", amountMsat, pc.MinSendableMsat, pc.MaxSendableMsat)
	}
	if n := utf8.RuneCountInString(comment); n > pc.CommentAllowed {
		return nil, nil, apperr.Validationf("Comment is %d characters, at most %d allowed", n, pc.CommentAllowed)
	}

	amountSat := amountMsat / 1000
	inv, err := s.createInvoice(ctx, amountSat, pc.Description)
	if err != nil {
		s.log.Warn("create invoice failed", zap.String("payment_id", id), zap.Int64("amount_sat", amountSat), zap.Error(err))
		return nil, nil, apperr.Upstream("Failed to create invoice", err)
	}

	rec := &models.InvoiceRecord{
		PaymentID:      pc.ID,
		AmountSat:      amountSat,
		PaymentHash:    inv.PaymentHash,
		PaymentRequest: inv.PaymentRequest,
		Description:    pc.Description,
		CreatedAt:      s.now().UTC(),
	}
	if comment != "" {
		rec.Comment = strPtr(comment)
	}
	if err := s.store.CreateInvoice(ctx, rec); err != nil {
		return nil, nil, apperr.Internal("failed to save invoice", err)
	}

	s.metrics.InvoiceIssued()
	s.log.Info("invoice issued",
		zap.String("payment_id", pc.ID),
		zap.String("invoice_id", rec.ID.String()),
		zap.Int64("amount_sat", amountSat),
	)

	return &lnurl.PayValues{PR: inv.PaymentRequest, Routes: []any{}}, rec, nil
}

// InvoiceStatus returns the record after asking the node whether it has been paid.
func (s *PayService) InvoiceStatus(ctx context.Context, id uuid.UUID) (*models.InvoiceRecord, error) {
	rec, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("Invoice not found")
		}
		return nil, apperr.Internal("failed to load invoice", err)
	}
	if rec.Paid {
		return rec, nil
	}

	if _, err := s.settlement.Check(ctx, rec, SourceStatusQuery); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PayService) ListInvoices(ctx context.Context, f repositories.InvoiceFilter) ([]models.InvoiceRecord, error) {
	list, err := s.store.ListInvoices(ctx, f)
	if err != nil {
		return nil, apperr.Internal("failed to list invoices", err)
	}
	return list, nil
}

func (s *PayService) ListConfigs(ctx context.Context, limit, offset int) ([]models.PaymentConfig, error) {
	list, err := s.store.ListConfigs(ctx, limit, offset)
	if err != nil {
		return nil, apperr.Internal("failed to list payment configs", err)
	}
	return list, nil
}

func (s *PayService) createInvoice(ctx context.Context, amountSat int64, memo string) (*lightning.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.NodeTimeout)
	defer cancel()

	started := time.Now()
	inv, err := s.ln.CreateInvoice(ctx, amountSat, memo, int64(s.cfg.InvoiceExpiry/time.Second))
	s.metrics.NodeCall("create_invoice", started, err)
	return inv, err
}

func (s *PayService) payRequest(pc *models.PaymentConfig) *lnurl.PayRequest {
	identifier := ""
	if pc.Username != nil {
		identifier = s.address(*pc.Username)
	}
	return &lnurl.PayRequest{
		Tag:            lnurl.TagPay,
		Callback:       s.cfg.PublicURL + "/lnurl/pay/" + pc.ID + "/callback",
		MinSendable:    pc.MinSendableMsat,
		MaxSendable:    pc.MaxSendableMsat,
		Metadata:       lnurl.Metadata(pc.Description, identifier),
		CommentAllowed: pc.CommentAllowed,
	}
}

func (s *PayService) address(username string) string {
	return username + "@" + s.cfg.AddressDomain
}
