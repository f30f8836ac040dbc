// Package worker holds the background loops: invoice settlement reconciliation
// and expiry cleanup. cmd/api runs them in-process, cmd/worker on their own.
package worker

import (
	"context"
	"time"

	"github.com/lnurl-gateway/backend/internal/config"
	"github.com/lnurl-gateway/backend/internal/metrics"
	"github.com/lnurl-gateway/backend/internal/models"
	"github.com/lnurl-gateway/backend/internal/repositories"
	"github.com/lnurl-gateway/backend/internal/services"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type UnpaidLister interface {
	ListUnpaid(ctx context.Context, q repositories.UnpaidQuery) ([]models.InvoiceRecord, error)
}

type Settler interface {
	Check(ctx context.Context, inv *models.InvoiceRecord, source string) (bool, error)
}

// Reconciler walks unpaid invoice records and asks the node about each one.
type Reconciler struct {
	invoices UnpaidLister
	settler  Settler
	limiter  *rate.Limiter
	metrics  *metrics.Metrics
	batch    int
	maxAge   time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewReconciler(invoices UnpaidLister, settler Settler, m *metrics.Metrics, cfg *config.Config, log *zap.Logger) *Reconciler {
	limit := rate.Inf
	if cfg.ReconcileRPS > 0 {
		limit = rate.Limit(cfg.ReconcileRPS)
	}
	burst := cfg.ReconcileRPS
	if burst <= 0 {
		burst = 1
	}
	batch := cfg.ReconcileBatch
	if batch <= 0 {
		batch = 200
	}
	return &Reconciler{
		invoices: invoices,
		settler:  settler,
		limiter:  rate.NewLimiter(limit, burst),
		metrics:  m,
		batch:    batch,
		maxAge:   cfg.ReconcileMaxAge,
		log:      log.Named("reconciler"),
		now:      time.Now,
	}
}

// PassResult summarizes one RunOnce.
type PassResult struct {
	Checked int
	Settled int
	Failed  int
}

// RunOnce makes one pass over every unpaid record, a page of batch rows at a
// time. A failure on one record is logged and the pass moves on; a failure to
// list stops the pass with what was done so far.
func (r *Reconciler) RunOnce(ctx context.Context) (PassResult, error) {
	started := time.Now()
	defer r.metrics.ReconcilePass(started)

	q := repositories.UnpaidQuery{Limit: r.batch}
	if r.maxAge > 0 {
		t := r.now().UTC().Add(-r.maxAge)
		q.CreatedAfter = &t
	}

	var res PassResult
	for {
		page, err := r.invoices.ListUnpaid(ctx, q)
		if err != nil {
			r.log.Error("failed to list unpaid invoices", zap.Error(err))
			return res, err
		}

		for i := range page {
			if err := r.limiter.Wait(ctx); err != nil {
				// контекст отменён, остаток подберёт следующий проход
				return res, nil
			}
			r.check(ctx, &page[i], &res)
		}

		if len(page) < r.batch {
			break
		}
		last := page[len(page)-1]
		q.After = &repositories.UnpaidCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	if res.Checked > 0 {
		r.log.Info("reconcile pass done",
			zap.Int("checked", res.Checked),
			zap.Int("settled", res.Settled),
			zap.Int("failed", res.Failed),
			zap.Duration("took", time.Since(started)),
		)
	}
	return res, nil
}

func (r *Reconciler) check(ctx context.Context, inv *models.InvoiceRecord, res *PassResult) {
	res.Checked++
	settled, err := r.settler.Check(ctx, inv, services.SourceReconciler)
	switch {
	case err != nil:
		res.Failed++
		r.metrics.ReconcileItem("error")
		r.log.Warn("invoice check failed",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("payment_hash", inv.PaymentHash),
			zap.Error(err),
		)
	case settled:
		res.Settled++
		r.metrics.ReconcileItem("settled")
	default:
		r.metrics.ReconcileItem("pending")
	}
}

// Run ticks until ctx is cancelled. The first pass runs immediately.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	run(ctx, interval, r.log, func(ctx context.Context) {
		_, _ = r.RunOnce(ctx)
	})
}

func run(ctx context.Context, interval time.Duration, log *zap.Logger, pass func(context.Context)) {
	log.Info("loop started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pass(ctx)
	for {
		select {
		case <-ticker.C:
			pass(ctx)
		case <-ctx.Done():
			log.Info("loop stopped")
			return
		}
	}
}
