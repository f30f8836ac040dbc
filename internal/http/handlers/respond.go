package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/lnurl-gateway/backend/internal/apperr"
	"github.com/lnurl-gateway/backend/internal/http/dto"
	"github.com/lnurl-gateway/backend/internal/lnurl"
	"github.com/lnurl-gateway/backend/internal/middleware"
	"go.uber.org/zap"
)

const (
	defaultLimit = 20
	maxLimit     = 200
)

// lnurlFail answers a wallet with {"status":"ERROR","reason":...}.
func lnurlFail(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := apperr.HTTPStatus(err)
	logFailure(c, log, status, err)
	return c.Status(status).JSON(lnurl.Error(apperr.Message(err)))
}

// apiFail answers the browser/operator API with the {"error":...} envelope.
func apiFail(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := apperr.HTTPStatus(err)
	logFailure(c, log, status, err)
	return c.Status(status).JSON(dto.ErrorResponse{
		Error:     apperr.Message(err),
		RequestID: middleware.GetRequestID(c),
	})
}

func logFailure(c *fiber.Ctx, log *zap.Logger, status int, err error) {
	l := middleware.RequestLogger(c, log)
	if status >= fiber.StatusInternalServerError {
		l.Error("request failed", zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err))
		return
	}
	l.Debug("request rejected", zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err))
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: data})
}

func paging(c *fiber.Ctx) (limit, offset int) {
	limit, offset = defaultLimit, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// queryFlag reads LNURL style booleans: "1"/"true" are set, anything else is not.
func queryFlag(c *fiber.Ctx, key string) bool {
	switch c.Query(key) {
	case "1", "true", "TRUE", "True":
		return true
	}
	return false
}
