package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lnurl-gateway/backend/internal/apperr"
	"github.com/lnurl-gateway/backend/internal/lnurl"
	"github.com/lnurl-gateway/backend/internal/metrics"
	"github.com/lnurl-gateway/backend/internal/models"
	"github.com/lnurl-gateway/backend/internal/repositories"
	"go.uber.org/zap"
)

// ChallengeService owns the k1 lifecycle: unused -> used | cancelled, once.
// Every transition is a single conditional statement in the store, so two
// concurrent redemptions of the same k1 cannot both succeed.
type ChallengeService struct {
	store   ChallengeStore
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewChallengeService(store ChallengeStore, m *metrics.Metrics, log *zap.Logger) *ChallengeService {
	return &ChallengeService{store: store, metrics: m, log: log, now: time.Now}
}

// Mint persists a fresh unused challenge of kind. Payload fields of tmpl
// (bounds, description, action, expiry) are copied; K1 and state are set here.
func (s *ChallengeService) Mint(ctx context.Context, kind string, tmpl models.Challenge) (*models.Challenge, error) {
	k1, err := lnurl.NewK1()
	if err != nil {
		return nil, apperr.Internal("failed to generate k1", err)
	}

	c := tmpl
	c.K1 = k1
	c.Kind = kind
	c.State = models.ChallengeStateUnused
	c.CreatedAt = s.now().UTC()
	c.ConsumedAt = nil
	c.AmountSat = nil
	c.PaymentRequest = nil

	if err := s.store.Create(ctx, &c); err != nil {
		return nil, apperr.Internal("failed to save challenge", err)
	}

	s.metrics.Challenge(kind, "minted")
	return &c, nil
}

// Claim redeems k1. Malformed input never reaches the store.
func (s *ChallengeService) Claim(ctx context.Context, kind, k1 string) (*models.Challenge, error) {
	k1, err := normalizeK1(k1)
	if err != nil {
		return nil, err
	}

	c, err := s.store.Claim(ctx, kind, k1, s.now().UTC())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.metrics.Challenge(kind, "rejected")
			return nil, apperr.NotFound(apperr.ReasonInvalidK1)
		}
		return nil, apperr.Internal("failed to claim challenge", err)
	}

	s.metrics.Challenge(kind, "claimed")
	return c, nil
}

func (s *ChallengeService) Cancel(ctx context.Context, kind, k1 string) (*models.Challenge, error) {
	k1, err := normalizeK1(k1)
	if err != nil {
		return nil, err
	}

	c, err := s.store.Cancel(ctx, kind, k1, s.now().UTC())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound(apperr.ReasonInvalidK1)
		}
		return nil, apperr.Internal("failed to cancel challenge", err)
	}

	s.metrics.Challenge(kind, "cancelled")
	return c, nil
}

// Peek returns the challenge while it is still redeemable, without touching it.
func (s *ChallengeService) Peek(ctx context.Context, kind, k1 string) (*models.Challenge, error) {
	k1, err := normalizeK1(k1)
	if err != nil {
		return nil, err
	}

	c, err := s.store.Peek(ctx, kind, k1, s.now().UTC())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound(apperr.ReasonInvalidK1)
		}
		return nil, apperr.Internal("failed to load challenge", err)
	}
	return c, nil
}

func normalizeK1(k1 string) (string, error) {
	n, err := lnurl.NormalizeK1(k1)
	if err != nil {
		return "", apperr.Validation(fmt.Sprintf("Invalid k1: %v", err))
	}
	return n, nil
}
