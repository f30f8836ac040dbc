package services

import (
	"context"
	"encoding/hex"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/lnurl-gateway/backend/internal/apperr"
	"github.com/lnurl-gateway/backend/internal/config"
	"github.com/lnurl-gateway/backend/internal/events"
	"github.com/lnurl-gateway/backend/internal/lightning"
	"github.com/lnurl-gateway/backend/internal/lnurl"
	"github.com/lnurl-gateway/backend/internal/metrics"
	"github.com/lnurl-gateway/backend/internal/models"
	"github.com/lnurl-gateway/backend/internal/repositories"
	"go.uber.org/zap"
)

// NodeInfoSource is satisfied by lightning.Client and by lightning.InfoCache.
type NodeInfoSource interface {
	GetInfo(ctx context.Context) (*lightning.NodeInfo, error)
}

type ChannelService struct {
	challenges *ChallengeService
	store      ChannelRequestStore
	info       NodeInfoSource
	ln         lightning.Client
	publisher  events.Publisher
	audit      AuditLogger
	metrics    *metrics.Metrics
	cfg        *config.Config
	log        *zap.Logger
	now        func() time.Time

	opens sync.WaitGroup
}

func NewChannelService(
	challenges *ChallengeService,
	store ChannelRequestStore,
	info NodeInfoSource,
	ln lightning.Client,
	publisher events.Publisher,
	auditLog AuditLogger,
	m *metrics.Metrics,
	cfg *config.Config,
	log *zap.Logger,
) *ChannelService {
	return &ChannelService{
		challenges: challenges,
		store:      store,
		info:       info,
		ln:         ln,
		publisher:  publisher,
		audit:      auditLog,
		metrics:    m,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

type ChannelOffer struct {
	K1       string `json:"k1"`
	URI      string `json:"uri"`
	Callback string `json:"callback"`
	LNURL    string `json:"lnurl"`
	QR       string `json:"qr"`
}

// Generate mints a channel challenge together with its pending request.
func (s *ChannelService) Generate(ctx context.Context) (*ChannelOffer, error) {
	uri, err := s.nodeURI(ctx)
	if err != nil {
		return nil, err
	}

	c, err := s.challenges.Mint(ctx, models.ChallengeKindChannel, models.Challenge{})
	if err != nil {
		return nil, err
	}

	req := &models.ChannelRequest{K1: c.K1, CreatedAt: c.CreatedAt}
	if err := s.store.Create(ctx, req); err != nil {
		// без заявки челлендж бесполезен, гасим его
		if _, cerr := s.challenges.Cancel(ctx, models.ChallengeKindChannel, c.K1); cerr != nil {
			s.log.Warn("failed to cancel orphan channel challenge", zap.String("k1", c.K1), zap.Error(cerr))
		}
		return nil, apperr.Internal("failed to save channel request", err)
	}

	first := buildURL(s.cfg.PublicURL, "/lnurl/channel/request", url.Values{"k1": {c.K1}})
	code, qr, err := encodeOffer(first)
	if err != nil {
		return nil, apperr.Internal("failed to encode lnurl", err)
	}

	s.log.Info("channel challenge minted", zap.String("k1", c.K1), zap.String("request_id", req.ID.String()))

	return &ChannelOffer{
		K1:       c.K1,
		URI:      uri,
		Callback: s.callbackURL(),
		LNURL:    code,
		QR:       qr,
	}, nil
}

// Request answers the wallet's first call with the node URI to connect to.
func (s *ChannelService) Request(ctx context.Context, k1 string) (*lnurl.ChannelRequest, error) {
	c, err := s.challenges.Peek(ctx, models.ChallengeKindChannel, k1)
	if err != nil {
		return nil, err
	}
	uri, err := s.nodeURI(ctx)
	if err != nil {
		return nil, err
	}
	return &lnurl.ChannelRequest{
		Tag:      lnurl.TagChannel,
		K1:       c.K1,
		URI:      uri,
		Callback: s.callbackURL(),
	}, nil
}

// Callback either cancels the offer or accepts the wallet's node id and starts
// the channel open in the background. The wallet gets its answer before the
// open finishes.
func (s *ChannelService) Callback(ctx context.Context, k1, remoteID string, private, cancel bool) (*models.ChannelRequest, error) {
	k1, err := normalizeK1(k1)
	if err != nil {
		return nil, err
	}

	if cancel {
		return s.cancel(ctx, k1)
	}

	pub, err := lnurl.ParsePubKey(remoteID)
	if err != nil {
		return nil, apperr.Validation("Invalid remoteid")
	}
	remote := hex.EncodeToString(pub.SerializeCompressed())

	// 1. Забираем k1 и переводим заявку pending -> collected
	req, err := s.store.ClaimAndCollect(ctx, k1, remote, private, s.now().UTC())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.metrics.Challenge(models.ChallengeKindChannel, "rejected")
			return nil, apperr.NotFound(apperr.ReasonInvalidK1)
		}
		return nil, apperr.Internal("failed to collect channel request", err)
	}
	s.metrics.Challenge(models.ChallengeKindChannel, "claimed")

	audit(ctx, s.audit, s.log, models.AuditLog{
		Actor:      strPtr(remote),
		ActorType:  models.ActorTypeWallet,
		Action:     "channel_collected",
		EntityType: models.EntityChannelRequest,
		EntityID:   req.ID.String(),
		Meta:       map[string]any{"k1": k1, "private": private},
	})
	s.stateChanged(ctx, req)

	// 2. Открываем канал в фоне
	s.opens.Add(1)
	go func(req models.ChannelRequest) {
		defer s.opens.Done()
		s.open(req)
	}(*req)

	return req, nil
}

func (s *ChannelService) cancel(ctx context.Context, k1 string) (*models.ChannelRequest, error) {
	if _, err := s.challenges.Cancel(ctx, models.ChallengeKindChannel, k1); err != nil {
		return nil, err
	}

	req, err := s.store.Transition(ctx, k1,
		models.ChannelStatesInto(models.ChannelStateCancelled),
		models.ChannelStateCancelled, s.now().UTC())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("Channel request not found")
		}
		return nil, apperr.Internal("failed to cancel channel request", err)
	}

	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorType:  models.ActorTypeWallet,
		Action:     "channel_cancelled",
		EntityType: models.EntityChannelRequest,
		EntityID:   req.ID.String(),
		Meta:       map[string]any{"k1": k1},
	})
	s.stateChanged(ctx, req)

	s.log.Info("channel request cancelled", zap.String("k1", k1))
	return req, nil
}

// open runs detached from the request that triggered it.
func (s *ChannelService) open(req models.ChannelRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.NodeTimeout)
	defer cancel()

	remote := ""
	if req.RemoteID != nil {
		remote = *req.RemoteID
	}

	started := time.Now()
	err := s.ln.OpenChannel(ctx, remote, s.cfg.ChannelCapacitySat, req.Private)
	s.metrics.NodeCall("open_channel", started, err)

	meta := map[string]any{"k1": req.K1, "capacity_sat": s.cfg.ChannelCapacitySat, "private": req.Private}
	action := "channel_opened"
	if err != nil {
		s.log.Error("channel open failed", zap.String("k1", req.K1), zap.String("remote_id", remote), zap.Error(err))
		action = "channel_open_failed"
		meta["error"] = err.Error()
		// следующий оффер перечитает URI узла
		if c, ok := s.info.(interface{ Invalidate() }); ok {
			c.Invalidate()
		}
	} else {
		s.log.Info("channel open initiated", zap.String("k1", req.K1), zap.String("remote_id", remote))
	}

	// Заявка закрывается при любом исходе открытия
	done, terr := s.store.Transition(context.Background(), req.K1,
		models.ChannelStatesInto(models.ChannelStateCompleted), models.ChannelStateCompleted, s.now().UTC())
	if terr != nil {
		s.log.Warn("failed to complete channel request", zap.String("k1", req.K1), zap.Error(terr))
	}

	audit(context.Background(), s.audit, s.log, models.AuditLog{
		ActorType:  models.ActorTypeSystem,
		Action:     action,
		EntityType: models.EntityChannelRequest,
		EntityID:   req.ID.String(),
		Meta:       meta,
	})
	if done != nil {
		s.stateChanged(context.Background(), done)
	}
}

// Wait blocks until every background channel open has finished.
func (s *ChannelService) Wait() {
	s.opens.Wait()
}

func (s *ChannelService) List(ctx context.Context, state *string, limit, offset int) ([]models.ChannelRequest, error) {
	if state != nil {
		if _, ok := models.ValidChannelTransitions[*state]; !ok {
			return nil, apperr.Validationf("unknown channel state %q", *state)
		}
	}
	list, err := s.store.List(ctx, state, limit, offset)
	if err != nil {
		return nil, apperr.Internal("failed to list channel requests", err)
	}
	return list, nil
}

func (s *ChannelService) stateChanged(ctx context.Context, req *models.ChannelRequest) {
	publish(ctx, s.publisher, s.log, events.Event{
		Type:    events.EventChannelStateChanged,
		Payload: map[string]any{"k1": req.K1, "request_id": req.ID.String(), "state": req.State},
	})
}

func (s *ChannelService) nodeURI(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.NodeTimeout)
	defer cancel()

	started := time.Now()
	info, err := s.info.GetInfo(ctx)
	s.metrics.NodeCall("get_info", started, err)
	if err != nil {
		return "", apperr.Upstream("Failed to reach lightning node", err)
	}
	return info.URI(), nil
}

func (s *ChannelService) callbackURL() string {
	return s.cfg.PublicURL + "/lnurl/channel/callback"
}
