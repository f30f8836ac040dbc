package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/lnurl-gateway/backend/internal/lnurl"
	"github.com/lnurl-gateway/backend/internal/models"
	"github.com/lnurl-gateway/backend/internal/services"
	"go.uber.org/zap"
)

type ChannelFlow interface {
	Generate(ctx context.Context) (*services.ChannelOffer, error)
	Request(ctx context.Context, k1 string) (*lnurl.ChannelRequest, error)
	Callback(ctx context.Context, k1, remoteID string, private, cancel bool) (*models.ChannelRequest, error)
	List(ctx context.Context, state *string, limit, offset int) ([]models.ChannelRequest, error)
}

type ChannelHandler struct {
	flow ChannelFlow
	log  *zap.Logger
}

func NewChannelHandler(flow ChannelFlow, log *zap.Logger) *ChannelHandler {
	return &ChannelHandler{flow: flow, log: log}
}

// Generate GET /lnurl/channel
func (h *ChannelHandler) Generate(c *fiber.Ctx) error {
	offer, err := h.flow.Generate(c.Context())
	if err != nil {
		return apiFail(c, h.log, err)
	}
	return ok(c, offer)
}

// Request GET /lnurl/channel/request?k1=
func (h *ChannelHandler) Request(c *fiber.Ctx) error {
	req, err := h.flow.Request(c.Context(), c.Query("k1"))
	if err != nil {
		return lnurlFail(c, h.log, err)
	}
	return c.JSON(req)
}

// Callback GET /lnurl/channel/callback?k1=&remoteid=&private=&cancel=
// The answer does not wait for the channel to open.
func (h *ChannelHandler) Callback(c *fiber.Ctx) error {
	_, err := h.flow.Callback(c.Context(),
		c.Query("k1"),
		c.Query("remoteid"),
		queryFlag(c, "private"),
		queryFlag(c, "cancel"),
	)
	if err != nil {
		return lnurlFail(c, h.log, err)
	}
	return c.JSON(lnurl.OK())
}

// List GET /api/v1/channels?state=
func (h *ChannelHandler) List(c *fiber.Ctx) error {
	limit, offset := paging(c)
	var state *string
	if v := c.Query("state"); v != "" {
		state = &v
	}

	list, err := h.flow.List(c.Context(), state, limit, offset)
	if err != nil {
		return apiFail(c, h.log, err)
	}
	return ok(c, list)
}
