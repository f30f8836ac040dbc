package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lnurl-gateway/backend/internal/apperr"
	"github.com/lnurl-gateway/backend/internal/http/dto"
	"github.com/lnurl-gateway/backend/internal/lnurl"
	"github.com/lnurl-gateway/backend/internal/middleware"
	"github.com/lnurl-gateway/backend/internal/models"
	"github.com/lnurl-gateway/backend/internal/services"
	"go.uber.org/zap"
)

type AuthFlow interface {
	Generate(ctx context.Context, action string) (*services.AuthOffer, error)
	Verify(ctx context.Context, k1, sig, key string) (*models.AuthSession, error)
	SessionByK1(ctx context.Context, k1 string) (*services.SessionToken, error)
	Validate(ctx context.Context, sessionID uuid.UUID) (*models.AuthSession, error)
	Logout(ctx context.Context, sessionID uuid.UUID) error
}

type AuthHandler struct {
	flow AuthFlow
	log  *zap.Logger
}

func NewAuthHandler(flow AuthFlow, log *zap.Logger) *AuthHandler {
	return &AuthHandler{flow: flow, log: log}
}

// Generate GET /lnurl/auth?action=
func (h *AuthHandler) Generate(c *fiber.Ctx) error {
	offer, err := h.flow.Generate(c.Context(), c.Query("action"))
	if err != nil {
		return apiFail(c, h.log, err)
	}
	return ok(c, offer)
}

// Callback GET /lnurl/auth/callback?tag=login&k1=&sig=&key=
func (h *AuthHandler) Callback(c *fiber.Ctx) error {
	if tag := c.Query("tag"); tag != "" && tag != lnurl.TagLogin {
		return lnurlFail(c, h.log, apperr.Validation("Invalid tag"))
	}

	if _, err := h.flow.Verify(c.Context(), c.Query("k1"), c.Query("sig"), c.Query("key")); err != nil {
		return lnurlFail(c, h.log, err)
	}
	return c.JSON(lnurl.OK())
}

// Session GET /api/v1/auth/session?k1=
// Polled by the page showing the QR code; 404 until the wallet has signed.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	st, err := h.flow.SessionByK1(c.Context(), c.Query("k1"))
	if err != nil {
		return apiFail(c, h.log, err)
	}
	return ok(c, st)
}

// Me GET /api/v1/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	sess, err := h.flow.Validate(c.Context(), middleware.GetSessionID(c))
	if err != nil {
		return apiFail(c, h.log, err)
	}
	return ok(c, dto.MeResponse{
		SessionID:  sess.ID.String(),
		LinkingKey: sess.LinkingKey,
		Action:     sess.Action,
		ExpiresAt:  sess.ExpiresAt,
	})
}

// Logout DELETE /api/v1/auth/session
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.flow.Logout(c.Context(), middleware.GetSessionID(c)); err != nil {
		return apiFail(c, h.log, err)
	}
	return ok(c, nil)
}
