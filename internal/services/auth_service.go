package services

import (
	"context"
	"encoding/hex"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/lnurl-gateway/backend/internal/apperr"
	"github.com/lnurl-gateway/backend/internal/auth"
	"github.com/lnurl-gateway/backend/internal/config"
	"github.com/lnurl-gateway/backend/internal/events"
	"github.com/lnurl-gateway/backend/internal/lnurl"
	"github.com/lnurl-gateway/backend/internal/metrics"
	"github.com/lnurl-gateway/backend/internal/models"
	"github.com/lnurl-gateway/backend/internal/repositories"
	"go.uber.org/zap"
)

type AuthService struct {
	challenges *ChallengeService
	sessions   SessionStore
	publisher  events.Publisher
	audit      AuditLogger
	metrics    *metrics.Metrics
	cfg        *config.Config
	log        *zap.Logger
	now        func() time.Time
}

func NewAuthService(
	challenges *ChallengeService,
	sessions SessionStore,
	publisher events.Publisher,
	auditLog AuditLogger,
	m *metrics.Metrics,
	cfg *config.Config,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		challenges: challenges,
		sessions:   sessions,
		publisher:  publisher,
		audit:      auditLog,
		metrics:    m,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

type AuthOffer struct {
	K1        string    `json:"k1"`
	Action    string    `json:"action"`
	Callback  string    `json:"callback"`
	LNURL     string    `json:"lnurl"`
	QR        string    `json:"qr"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionToken is what the browser receives once its k1 has been signed.
type SessionToken struct {
	Session *models.AuthSession `json:"session"`
	Token   string              `json:"token"`
}

// Generate mints a login challenge valid for AuthChallengeTTL.
func (s *AuthService) Generate(ctx context.Context, action string) (*AuthOffer, error) {
	if action == "" {
		action = models.AuthActionLogin
	}
	if !models.IsValidAuthAction(action) {
		return nil, apperr.Validationf("Invalid action %q", action)
	}

	expiresAt := s.now().UTC().Add(s.cfg.AuthChallengeTTL)
	c, err := s.challenges.Mint(ctx, models.ChallengeKindAuth, models.Challenge{
		Action:    action,
		ExpiresAt: &expiresAt,
	})
	if err != nil {
		return nil, err
	}

	callback := buildURL(s.cfg.PublicURL, "/lnurl/auth/callback", url.Values{
		"tag":    {lnurl.TagLogin},
		"k1":     {c.K1},
		"action": {action},
	})
	code, qr, err := encodeOffer(callback)
	if err != nil {
		return nil, apperr.Internal("failed to encode lnurl", err)
	}

	return &AuthOffer{
		K1:        c.K1,
		Action:    action,
		Callback:  callback,
		LNURL:     code,
		QR:        qr,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks the wallet's signature over k1 and, if it holds, consumes the
// challenge and creates the session in one step. A bad signature leaves the
// challenge usable.
func (s *AuthService) Verify(ctx context.Context, k1, sig, key string) (*models.AuthSession, error) {
	// 1. Формат входных данных
	k1, err := normalizeK1(k1)
	if err != nil {
		return nil, err
	}
	pub, err := lnurl.ParsePubKey(key)
	if err != nil {
		return nil, apperr.Validation("Invalid key")
	}
	if !lnurl.SignatureShapeOK(sig) {
		return nil, apperr.Validation("Invalid sig")
	}
	linkingKey := hex.EncodeToString(pub.SerializeCompressed())

	// 2. Челлендж должен быть жив
	if _, err := s.challenges.Peek(ctx, models.ChallengeKindAuth, k1); err != nil {
		return nil, err
	}

	// 3. Подпись
	if err := lnurl.VerifySignature(k1, sig, linkingKey); err != nil {
		s.metrics.Challenge(models.ChallengeKindAuth, "bad_signature")
		s.log.Info("auth signature rejected", zap.String("k1", k1), zap.String("key", linkingKey), zap.Error(err))
		return nil, apperr.Signature(apperr.ReasonInvalidSignature)
	}

	// 4. Забираем k1 и создаём сессию одним запросом
	now := s.now().UTC()
	sess, err := s.sessions.ClaimAndCreate(ctx, k1, linkingKey, now, now.Add(s.cfg.SessionTTL))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.metrics.Challenge(models.ChallengeKindAuth, "rejected")
			return nil, apperr.NotFound(apperr.ReasonInvalidK1)
		}
		return nil, apperr.Internal("failed to create session", err)
	}
	s.metrics.Challenge(models.ChallengeKindAuth, "claimed")

	audit(ctx, s.audit, s.log, models.AuditLog{
		Actor:      strPtr(linkingKey),
		ActorType:  models.ActorTypeWallet,
		Action:     "session_created",
		EntityType: models.EntitySession,
		EntityID:   sess.ID.String(),
		Meta:       map[string]any{"k1": k1, "action": sess.Action},
	})
	publish(ctx, s.publisher, s.log, events.Event{
		Type:    events.EventSessionCreated,
		Payload: map[string]any{"k1": k1, "session_id": sess.ID.String(), "linking_key": linkingKey},
	})

	s.log.Info("auth session created", zap.String("session_id", sess.ID.String()), zap.String("linking_key", linkingKey))
	return sess, nil
}

// SessionByK1 is polled by the page that displayed the challenge. It answers
// NotFound until the wallet has signed.
func (s *AuthService) SessionByK1(ctx context.Context, k1 string) (*SessionToken, error) {
	k1, err := normalizeK1(k1)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.GetByK1(ctx, k1)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("Session not found")
		}
		return nil, apperr.Internal("failed to load session", err)
	}
	if !sess.Active(s.now()) {
		return nil, apperr.NotFound("Session expired")
	}

	token, err := auth.GenerateJWT(s.cfg.JWTSecret, sess.ID, sess.LinkingKey, sess.Action, sess.ExpiresAt)
	if err != nil {
		return nil, apperr.Internal("failed to issue token", err)
	}
	return &SessionToken{Session: sess, Token: token}, nil
}

// Validate returns the session if it exists and has not expired.
func (s *AuthService) Validate(ctx context.Context, sessionID uuid.UUID) (*models.AuthSession, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.Unauthorized("Session not found")
		}
		return nil, apperr.Internal("failed to load session", err)
	}
	if !sess.Active(s.now()) {
		return nil, apperr.Unauthorized("Session expired")
	}
	return sess, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("Session not found")
		}
		return apperr.Internal("failed to delete session", err)
	}

	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorType:  models.ActorTypeWallet,
		Action:     "session_deleted",
		EntityType: models.EntitySession,
		EntityID:   sessionID.String(),
	})
	return nil
}
