package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/lnurl-gateway/backend/internal/config"
	"github.com/lnurl-gateway/backend/internal/http/handlers"
	"github.com/lnurl-gateway/backend/internal/metrics"
	"github.com/lnurl-gateway/backend/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handlers struct {
	Withdraw *handlers.WithdrawHandler
	Pay      *handlers.PayHandler
	Channel  *handlers.ChannelHandler
	Auth     *handlers.AuthHandler
	Ops      *handlers.OpsHandler
	WS       *handlers.WSHub
}

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	sessions middleware.SessionValidator,
	m *metrics.Metrics,
	h Handlers,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log, m))

	app.Get("/health", h.Ops.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	limited := middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute, log)

	// LNURL (public, called by wallets)
	ln := app.Group("/lnurl", limited)

	ln.Get("/withdraw", h.Withdraw.Generate)
	ln.Get("/withdraw/request", h.Withdraw.Request)
	ln.Get("/withdraw/callback", h.Withdraw.Callback)

	ln.Post("/pay", h.Pay.Generate)
	ln.Get("/pay/:id", h.Pay.Request)
	ln.Get("/pay/:id/callback", h.Pay.Callback)

	ln.Get("/channel", h.Channel.Generate)
	ln.Get("/channel/request", h.Channel.Request)
	ln.Get("/channel/callback", h.Channel.Callback)

	ln.Get("/auth", h.Auth.Generate)
	ln.Get("/auth/callback", h.Auth.Callback)

	// Lightning Address
	app.Get("/.well-known/lnurlp/:username", limited, h.Pay.Address)

	api := app.Group("/api/v1", limited)

	// Auth (public, polled with the k1 shown in the QR)
	api.Get("/auth/session", h.Auth.Session)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, sessions, log))
	protected.Get("/me", h.Auth.Me)
	protected.Delete("/auth/session", h.Auth.Logout)

	// Operator listings
	admin := protected.Group("", middleware.AdminMiddleware(cfg))
	admin.Get("/invoices", h.Pay.ListInvoices)
	admin.Get("/invoices/:id/status", h.Pay.InvoiceStatus)
	admin.Get("/payments", h.Pay.ListConfigs)
	admin.Get("/channels", h.Channel.List)
	admin.Get("/audit/:type/:id", h.Ops.Audit)
	admin.Get("/node/address", h.Ops.NodeAddress)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(h.WS.HandleWS))
}
