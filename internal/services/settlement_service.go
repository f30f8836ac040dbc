package services

import (
	"context"
	"fmt"
	"time"

	"github.com/lnurl-gateway/backend/internal/apperr"
	"github.com/lnurl-gateway/backend/internal/config"
	"github.com/lnurl-gateway/backend/internal/events"
	"github.com/lnurl-gateway/backend/internal/lightning"
	"github.com/lnurl-gateway/backend/internal/metrics"
	"github.com/lnurl-gateway/backend/internal/models"
	"go.uber.org/zap"
)

// Settlement sources
const (
	SourceReconciler  = "reconciler"
	SourceStatusQuery = "status_query"
)

// SettlementService asks the node whether an invoice record has been paid and
// flips it unpaid -> paid. Used by the reconciler and by direct status queries.
type SettlementService struct {
	store     SettlementStore
	ln        lightning.Client
	publisher events.Publisher
	audit     AuditLogger
	metrics   *metrics.Metrics
	cfg       *config.Config
	log       *zap.Logger
	now       func() time.Time
}

func NewSettlementService(
	store SettlementStore,
	ln lightning.Client,
	publisher events.Publisher,
	auditLog AuditLogger,
	m *metrics.Metrics,
	cfg *config.Config,
	log *zap.Logger,
) *SettlementService {
	return &SettlementService{
		store:     store,
		ln:        ln,
		publisher: publisher,
		audit:     auditLog,
		metrics:   m,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Check reports whether this call marked inv paid. A record already paid, an
// unsettled invoice, and a settlement another caller recorded first all return false.
func (s *SettlementService) Check(ctx context.Context, inv *models.InvoiceRecord, source string) (bool, error) {
	if inv.Paid {
		return false, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.NodeTimeout)
	defer cancel()

	started := time.Now()
	st, err := s.ln.GetInvoiceStatus(callCtx, inv.PaymentHash)
	s.metrics.NodeCall("get_invoice_status", started, err)
	if err != nil {
		return false, apperr.Upstream("failed to query invoice status", err)
	}
	if !st.Settled {
		return false, nil
	}

	now := s.now().UTC()
	changed, err := s.store.MarkPaid(ctx, inv.ID, now)
	if err != nil {
		return false, apperr.Internal("failed to mark invoice paid", fmt.Errorf("invoice %s: %w", inv.ID, err))
	}
	inv.Paid = true
	if !changed {
		return false, nil
	}
	inv.PaidAt = &now

	s.metrics.InvoiceSettled(source)
	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorType:  models.ActorTypeSystem,
		Action:     "invoice_settled",
		EntityType: models.EntityInvoice,
		EntityID:   inv.ID.String(),
		Meta:       map[string]any{"amount_sat": inv.AmountSat, "payment_id": inv.PaymentID, "source": source},
	})
	publish(ctx, s.publisher, s.log, events.Event{
		Type: events.EventInvoiceSettled,
		Payload: map[string]any{
			"invoice_id":   inv.ID.String(),
			"payment_id":   inv.PaymentID,
			"amount_sat":   inv.AmountSat,
			"payment_hash": inv.PaymentHash,
		},
	})

	s.log.Info("invoice settled",
		zap.String("invoice_id", inv.ID.String()),
		zap.Int64("amount_sat", inv.AmountSat),
		zap.String("source", source),
	)
	return true, nil
}
