package handlers

import (
	"context"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lnurl-gateway/backend/internal/apperr"
	"github.com/lnurl-gateway/backend/internal/http/dto"
	"github.com/lnurl-gateway/backend/internal/lnurl"
	"github.com/lnurl-gateway/backend/internal/models"
	"github.com/lnurl-gateway/backend/internal/repositories"
	"github.com/lnurl-gateway/backend/internal/services"
	"go.uber.org/zap"
)

type PayFlow interface {
	Generate(ctx context.Context, b services.PayBounds) (*models.PaymentConfig, error)
	Request(ctx context.Context, id string) (*lnurl.PayRequest, error)
	ResolveAddress(ctx context.Context, username string) (*lnurl.PayRequest, error)
	Callback(ctx context.Context, id string, amountMsat int64, comment string) (*lnurl.PayValues, *models.InvoiceRecord, error)
	InvoiceStatus(ctx context.Context, id uuid.UUID) (*models.InvoiceRecord, error)
	ListInvoices(ctx context.Context, f repositories.InvoiceFilter) ([]models.InvoiceRecord, error)
	ListConfigs(ctx context.Context, limit, offset int) ([]models.PaymentConfig, error)
}

type PayHandler struct {
	flow      PayFlow
	publicURL string
	log       *zap.Logger
}

func NewPayHandler(flow PayFlow, publicURL string, log *zap.Logger) *PayHandler {
	return &PayHandler{flow: flow, publicURL: publicURL, log: log}
}

// Generate POST /lnurl/pay
func (h *PayHandler) Generate(c *fiber.Ctx) error {
	var req dto.GeneratePayRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
		}
	}

	pc, err := h.flow.Generate(c.Context(), services.PayBounds{
		MinSendableMsat: req.MinSendableMsat,
		MaxSendableMsat: req.MaxSendableMsat,
		CommentAllowed:  req.CommentAllowed,
		Description:     req.Description,
	})
	if err != nil {
		return apiFail(c, h.log, err)
	}

	first := h.publicURL + "/lnurl/pay/" + url.PathEscape(pc.ID)
	code, err := lnurl.Encode(first)
	if err != nil {
		return apiFail(c, h.log, apperr.Internal("failed to encode lnurl", err))
	}
	qr, err := lnurl.QRDataURL(lnurl.ProtocolPrefix + code)
	if err != nil {
		return apiFail(c, h.log, apperr.Internal("failed to render qr", err))
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dto.PayConfigResponse{
		ID:              pc.ID,
		LNURL:           code,
		QR:              qr,
		URL:             first,
		MinSendableMsat: pc.MinSendableMsat,
		MaxSendableMsat: pc.MaxSendableMsat,
		CommentAllowed:  pc.CommentAllowed,
		Description:     pc.Description,
		CreatedAt:       pc.CreatedAt,
	}})
}

// Request GET /lnurl/pay/:id
func (h *PayHandler) Request(c *fiber.Ctx) error {
	req, err := h.flow.Request(c.Context(), c.Params("id"))
	if err != nil {
		return lnurlFail(c, h.log, err)
	}
	return c.JSON(req)
}

// Address GET /.well-known/lnurlp/:username
func (h *PayHandler) Address(c *fiber.Ctx) error {
	req, err := h.flow.ResolveAddress(c.Context(), c.Params("username"))
	if err != nil {
		return lnurlFail(c, h.log, err)
	}
	return c.JSON(req)
}

// Callback GET /lnurl/pay/:id/callback?amount=&comment=
func (h *PayHandler) Callback(c *fiber.Ctx) error {
	amount, err := strconv.ParseInt(c.Query("amount"), 10, 64)
	if err != nil || amount <= 0 {
		return lnurlFail(c, h.log, apperr.Validation("Amount must be a positive integer"))
	}

	values, _, err := h.flow.Callback(c.Context(), c.Params("id"), amount, c.Query("comment"))
	if err != nil {
		return lnurlFail(c, h.log, err)
	}
	return c.JSON(values)
}

// InvoiceStatus GET /api/v1/invoices/:id/status
func (h *PayHandler) InvoiceStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid invoice id"})
	}

	rec, err := h.flow.InvoiceStatus(c.Context(), id)
	if err != nil {
		return apiFail(c, h.log, err)
	}
	return ok(c, rec)
}

// ListInvoices GET /api/v1/invoices?paid=&payment_id=
func (h *PayHandler) ListInvoices(c *fiber.Ctx) error {
	var f repositories.InvoiceFilter
	f.Limit, f.Offset = paging(c)

	if v := c.Query("paid"); v != "" {
		paid, err := strconv.ParseBool(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "paid must be true or false"})
		}
		f.Paid = &paid
	}
	if v := c.Query("payment_id"); v != "" {
		f.PaymentID = &v
	}

	list, err := h.flow.ListInvoices(c.Context(), f)
	if err != nil {
		return apiFail(c, h.log, err)
	}
	return ok(c, list)
}

// ListConfigs GET /api/v1/payments
func (h *PayHandler) ListConfigs(c *fiber.Ctx) error {
	limit, offset := paging(c)
	list, err := h.flow.ListConfigs(c.Context(), limit, offset)
	if err != nil {
		return apiFail(c, h.log, err)
	}
	return ok(c, list)
}
