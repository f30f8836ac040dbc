package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/lnurl-gateway/backend/internal/lnurl"
	"github.com/lnurl-gateway/backend/internal/models"
	"github.com/lnurl-gateway/backend/internal/services"
	"go.uber.org/zap"
)

type WithdrawFlow interface {
	Generate(ctx context.Context) (*services.WithdrawOffer, error)
	Request(ctx context.Context, k1 string) (*lnurl.WithdrawRequest, error)
	Redeem(ctx context.Context, k1, invoice string) (*models.Challenge, error)
}

type WithdrawHandler struct {
	flow WithdrawFlow
	log  *zap.Logger
}

func NewWithdrawHandler(flow WithdrawFlow, log *zap.Logger) *WithdrawHandler {
	return &WithdrawHandler{flow: flow, log: log}
}

// Generate GET /lnurl/withdraw
func (h *WithdrawHandler) Generate(c *fiber.Ctx) error {
	offer, err := h.flow.Generate(c.Context())
	if err != nil {
		return apiFail(c, h.log, err)
	}
	return ok(c, offer)
}

// Request GET /lnurl/withdraw/request?k1=
func (h *WithdrawHandler) Request(c *fiber.Ctx) error {
	req, err := h.flow.Request(c.Context(), c.Query("k1"))
	if err != nil {
		return lnurlFail(c, h.log, err)
	}
	return c.JSON(req)
}

// Callback GET /lnurl/withdraw/callback?k1=&pr=
func (h *WithdrawHandler) Callback(c *fiber.Ctx) error {
	if _, err := h.flow.Redeem(c.Context(), c.Query("k1"), c.Query("pr")); err != nil {
		return lnurlFail(c, h.log, err)
	}
	return c.JSON(lnurl.OK())
}
