package services

import (
	"context"
	"errors"
	"testing"

	"github.com/lnurl-gateway/backend/internal/apperr"
	"github.com/lnurl-gateway/backend/internal/config"
	"github.com/lnurl-gateway/backend/internal/metrics"
)

type harness struct {
	cfg        *config.Config
	store      *memStore
	node       *fakeNode
	events     *recordingPublisher
	challenges *ChallengeService
	settlement *SettlementService
	withdraw   *WithdrawService
	pay        *PayService
	channel    *ChannelService
	auth       *AuthService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		cfg:    testConfig(),
		store:  newMemStore(),
		node:   newFakeNode(),
		events: &recordingPublisher{},
	}
	m := metrics.Get()

	h.challenges = NewChallengeService(h.store, m, testLog)
	h.settlement = NewSettlementService(h.store, h.node, h.events, h.store, m, h.cfg, testLog)
	h.withdraw = NewWithdrawService(h.challenges, h.store, h.node, h.events, h.store, m, h.cfg, testLog)
	h.pay = NewPayService(h.store, h.settlement, h.node, h.store, m, h.cfg, testLog)
	h.channel = NewChannelService(h.challenges, channelStore{h.store}, h.node, h.node, h.events, h.store, m, h.cfg, testLog)
	h.auth = NewAuthService(h.challenges, sessionStore{h.store}, h.events, h.store, m, h.cfg, testLog)
	t.Cleanup(h.channel.Wait)
	return h
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

func wantInvalidK1(t *testing.T, err error) {
	t.Helper()
	wantKind(t, err, apperr.KindNotFound)
	var e *apperr.Error
	if !errors.As(err, &e) || e.Message != apperr.ReasonInvalidK1 {
		t.Fatalf("expected reason %q, got %v", apperr.ReasonInvalidK1, err)
	}
}

var bg = context.Background()
