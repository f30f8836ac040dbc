package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/lnurl-gateway/backend/internal/apperr"
	"github.com/lnurl-gateway/backend/internal/http/dto"
	"github.com/lnurl-gateway/backend/internal/models"
	"github.com/lnurl-gateway/backend/internal/services"
	"go.uber.org/zap"
)

type HealthChecker interface {
	Check(ctx context.Context) *services.HealthReport
	NodeAddress(ctx context.Context) (string, error)
}

type AuditReader interface {
	GetByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]models.AuditLog, error)
}

var auditEntities = map[string]bool{
	models.EntityChallenge:      true,
	models.EntityInvoice:        true,
	models.EntityChannelRequest: true,
	models.EntitySession:        true,
	models.EntityPaymentConfig:  true,
}

// OpsHandler serves health and the operator read endpoints.
type OpsHandler struct {
	health HealthChecker
	audit  AuditReader
	log    *zap.Logger
}

func NewOpsHandler(health HealthChecker, audit AuditReader, log *zap.Logger) *OpsHandler {
	return &OpsHandler{health: health, audit: audit, log: log}
}

// Health GET /health. Degraded is still 200 so the process is not restarted
// for a node outage; the body says which node is down.
func (h *OpsHandler) Health(c *fiber.Ctx) error {
	return c.JSON(h.health.Check(c.Context()))
}

// NodeAddress GET /api/v1/node/address
func (h *OpsHandler) NodeAddress(c *fiber.Ctx) error {
	addr, err := h.health.NodeAddress(c.Context())
	if err != nil {
		return apiFail(c, h.log, err)
	}
	return ok(c, dto.AddressResponse{Address: addr})
}

// Audit GET /api/v1/audit/:type/:id
func (h *OpsHandler) Audit(c *fiber.Ctx) error {
	entityType := c.Params("type")
	if !auditEntities[entityType] {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "unknown entity type"})
	}

	limit, offset := paging(c)
	logs, err := h.audit.GetByEntity(c.Context(), entityType, c.Params("id"), limit, offset)
	if err != nil {
		return apiFail(c, h.log, apperr.Internal("failed to read audit log", err))
	}
	return ok(c, logs)
}
