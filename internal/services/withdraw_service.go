package services

import (
	"context"
	"net/url"
	"time"

	"github.com/lnurl-gateway/backend/internal/apperr"
	"github.com/lnurl-gateway/backend/internal/config"
	"github.com/lnurl-gateway/backend/internal/events"
	"github.com/lnurl-gateway/backend/internal/lightning"
	"github.com/lnurl-gateway/backend/internal/lnurl"
	"github.com/lnurl-gateway/backend/internal/metrics"
	"github.com/lnurl-gateway/backend/internal/models"
	"go.uber.org/zap"
)

type WithdrawService struct {
	challenges *ChallengeService
	store      ChallengeStore
	ln         lightning.Client
	publisher  events.Publisher
	audit      AuditLogger
	metrics    *metrics.Metrics
	cfg        *config.Config
	log        *zap.Logger
}

func NewWithdrawService(
	challenges *ChallengeService,
	store ChallengeStore,
	ln lightning.Client,
	publisher events.Publisher,
	auditLog AuditLogger,
	m *metrics.Metrics,
	cfg *config.Config,
	log *zap.Logger,
) *WithdrawService {
	return &WithdrawService{
		challenges: challenges,
		store:      store,
		ln:         ln,
		publisher:  publisher,
		audit:      auditLog,
		metrics:    m,
		cfg:        cfg,
		log:        log,
	}
}

type WithdrawOffer struct {
	K1                  string `json:"k1"`
	Callback            string `json:"callback"`
	LNURL               string `json:"lnurl"`
	QR                  string `json:"qr"`
	MinWithdrawableMsat int64  `json:"min_withdrawable_msat"`
	MaxWithdrawableMsat int64  `json:"max_withdrawable_msat"`
	Description         string `json:"description"`
}

// Generate mints a withdraw challenge with the configured bounds.
func (s *WithdrawService) Generate(ctx context.Context) (*WithdrawOffer, error) {
	c, err := s.challenges.Mint(ctx, models.ChallengeKindWithdraw, models.Challenge{
		MinWithdrawableMsat: s.cfg.WithdrawMinMsat,
		MaxWithdrawableMsat: s.cfg.WithdrawMaxMsat,
		Description:         s.cfg.WithdrawDescription,
	})
	if err != nil {
		return nil, err
	}

	first := buildURL(s.cfg.PublicURL, "/lnurl/withdraw/request", url.Values{"k1": {c.K1}})
	code, qr, err := encodeOffer(first)
	if err != nil {
		return nil, apperr.Internal("failed to encode lnurl", err)
	}

	s.log.Info("withdraw challenge minted", zap.String("k1", c.K1))

	return &WithdrawOffer{
		K1:                  c.K1,
		Callback:            s.callbackURL(),
		LNURL:               code,
		QR:                  qr,
		MinWithdrawableMsat: c.MinWithdrawableMsat,
		MaxWithdrawableMsat: c.MaxWithdrawableMsat,
		Description:         c.Description,
	}, nil
}

// Request answers the wallet's first call with the withdrawRequest parameters.
func (s *WithdrawService) Request(ctx context.Context, k1 string) (*lnurl.WithdrawRequest, error) {
	c, err := s.challenges.Peek(ctx, models.ChallengeKindWithdraw, k1)
	if err != nil {
		return nil, err
	}
	return &lnurl.WithdrawRequest{
		Tag:                lnurl.TagWithdraw,
		K1:                 c.K1,
		Callback:           s.callbackURL(),
		MinWithdrawable:    c.MinWithdrawableMsat,
		MaxWithdrawable:    c.MaxWithdrawableMsat,
		DefaultDescription: c.Description,
	}, nil
}

// Redeem pays invoice against k1. The challenge is consumed before the invoice
// is decoded: an out-of-bounds amount or a failed payment leaves it spent and
// the wallet has to start over with a new challenge.
func (s *WithdrawService) Redeem(ctx context.Context, k1, invoice string) (*models.Challenge, error) {
	// 1. Формат k1 и инвойса
	k1, err := normalizeK1(k1)
	if err != nil {
		return nil, err
	}
	pr, err := lnurl.NormalizeInvoice(invoice)
	if err != nil {
		return nil, apperr.Validation("Invalid invoice")
	}

	// 2. Атомарно забираем k1
	c, err := s.challenges.Claim(ctx, models.ChallengeKindWithdraw, k1)
	if err != nil {
		return nil, err
	}

	// 3. Декодируем инвойс через ноду
	decoded, err := s.decode(ctx, pr)
	if err != nil {
		s.log.Warn("withdraw decode failed", zap.String("k1", k1), zap.Error(err))
		return nil, apperr.Upstream("Failed to decode invoice", err)
	}

	// 4. Проверяем границы; k1 уже израсходован и не восстанавливается
	amountMsat := decoded.AmountSat * 1000
	if amountMsat <= 0 || amountMsat < c.MinWithdrawableMsat || amountMsat > c.MaxWithdrawableMsat {
		s.log.Info("withdraw amount out of bounds",
			zap.String("k1", k1),
			zap.Int64("amount_msat", amountMsat),
			zap.Int64("min_msat", c.MinWithdrawableMsat),
			zap.Int64("max_msat", c.MaxWithdrawableMsat),
		)
		audit(ctx, s.audit, s.log, models.AuditLog{
			ActorType:  models.ActorTypeWallet,
			Action:     "withdraw_rejected",
			EntityType: models.EntityChallenge,
			EntityID:   k1,
			Meta:       map[string]any{"amount_msat": amountMsat, "reason": "amount_out_of_bounds"},
		})
		return nil, apperr.Validationf("Amount %d msat is outside [%d, %d]", amountMsat, c.MinWithdrawableMsat, c.MaxWithdrawableMsat)
	}

	// 5. Платим
	if err := s.pay(ctx, pr); err != nil {
		s.log.Error("withdraw payment failed", zap.String("k1", k1), zap.Int64("amount_sat", decoded.AmountSat), zap.Error(err))
		audit(ctx, s.audit, s.log, models.AuditLog{
			ActorType:  models.ActorTypeWallet,
			Action:     "withdraw_payment_failed",
			EntityType: models.EntityChallenge,
			EntityID:   k1,
			Meta:       map[string]any{"amount_sat": decoded.AmountSat, "error": err.Error()},
		})
		return nil, apperr.Upstream("Payment failed", err)
	}

	// 6. Фиксируем сумму. Платёж уже ушёл, поэтому ошибка записи только логируется.
	if err := s.store.SetWithdrawResult(ctx, k1, decoded.AmountSat, pr); err != nil {
		s.log.Error("failed to record withdraw result", zap.String("k1", k1), zap.Int64("amount_sat", decoded.AmountSat), zap.Error(err))
	}
	amount := decoded.AmountSat
	c.AmountSat = &amount
	c.PaymentRequest = &pr

	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorType:  models.ActorTypeWallet,
		Action:     "withdraw_paid",
		EntityType: models.EntityChallenge,
		EntityID:   k1,
		Meta:       map[string]any{"amount_sat": amount, "payment_hash": decoded.PaymentHash},
	})
	publish(ctx, s.publisher, s.log, events.Event{
		Type:    events.EventWithdrawPaid,
		Payload: map[string]any{"k1": k1, "amount_sat": amount},
	})

	s.log.Info("withdraw paid", zap.String("k1", k1), zap.Int64("amount_sat", amount))
	return c, nil
}

func (s *WithdrawService) decode(ctx context.Context, pr string) (*lightning.DecodedInvoice, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.NodeTimeout)
	defer cancel()

	started := time.Now()
	decoded, err := s.ln.DecodeInvoice(ctx, pr)
	s.metrics.NodeCall("decode_invoice", started, err)
	return decoded, err
}

func (s *WithdrawService) pay(ctx context.Context, pr string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.NodeTimeout)
	defer cancel()

	started := time.Now()
	err := s.ln.PayInvoice(ctx, pr)
	s.metrics.NodeCall("pay_invoice", started, err)
	return err
}

func (s *WithdrawService) callbackURL() string {
	return s.cfg.PublicURL + "/lnurl/withdraw/callback"
}
