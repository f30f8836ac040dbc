package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lnurl-gateway/backend/internal/auth"
	"github.com/lnurl-gateway/backend/internal/config"
	"github.com/lnurl-gateway/backend/internal/models"
	"go.uber.org/zap"
)

const (
	CtxSessionID  = "session_id"
	CtxLinkingKey = "linking_key"
)

// SessionValidator is implemented by services.AuthService.
type SessionValidator interface {
	Validate(ctx context.Context, sessionID uuid.UUID) (*models.AuthSession, error)
}

// AuthMiddleware accepts a bearer JWT issued for an auth session. The token
// alone is not enough: the session must still exist, so logout takes effect
// before the token expires.
func AuthMiddleware(cfg *config.Config, sessions SessionValidator, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		sess, err := sessions.Validate(c.UserContext(), claims.SessionID)
		if err != nil {
			log.Debug("session rejected", zap.String("session_id", claims.SessionID.String()), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "session expired or logged out"})
		}

		c.Locals(CtxSessionID, sess.ID)
		c.Locals(CtxLinkingKey, sess.LinkingKey)

		return c.Next()
	}
}

func GetSessionID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(CtxSessionID).(uuid.UUID)
	return id
}

func GetLinkingKey(c *fiber.Ctx) string {
	key, _ := c.Locals(CtxLinkingKey).(string)
	return key
}

// AdminMiddleware limits operational endpoints to ADMIN_LINKING_KEYS
func AdminMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cfg.IsAdmin(GetLinkingKey(c)) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access required"})
		}
		return c.Next()
	}
}
