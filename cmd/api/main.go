package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lnurl-gateway/backend/internal/apperr"
	"github.com/lnurl-gateway/backend/internal/chain"
	"github.com/lnurl-gateway/backend/internal/config"
	"github.com/lnurl-gateway/backend/internal/db"
	"github.com/lnurl-gateway/backend/internal/events"
	apphttp "github.com/lnurl-gateway/backend/internal/http"
	"github.com/lnurl-gateway/backend/internal/http/handlers"
	"github.com/lnurl-gateway/backend/internal/lightning"
	"github.com/lnurl-gateway/backend/internal/metrics"
	"github.com/lnurl-gateway/backend/internal/repositories"
	"github.com/lnurl-gateway/backend/internal/services"
	"github.com/lnurl-gateway/backend/internal/worker"
	"github.com/lnurl-gateway/backend/migrations"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := cfg.NewLogger()
	defer log.Sync()

	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	challengeRepo := repositories.NewChallengeRepo(pool)
	paymentRepo := repositories.NewPaymentRepo(pool)
	channelRepo := repositories.NewChannelRequestRepo(pool)
	sessionRepo := repositories.NewSessionRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Nodes
	m := metrics.Get()
	lnd := lightning.NewLND(cfg.LNDRESTURL, cfg.LNDMacaroonPath, cfg.LNDTLSCertPath, cfg.NodeTimeout, log)
	nodeInfo := lightning.NewInfoCache(lnd, cfg.NodeInfoTTL)
	chainRPC := chain.NewRPCClient(cfg.ChainRPCURL, cfg.ChainRPCUser, cfg.ChainRPCPassword, cfg.NodeTimeout)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	challengeService := services.NewChallengeService(challengeRepo, m, log)
	settlementService := services.NewSettlementService(paymentRepo, lnd, publisher, auditRepo, m, cfg, log)
	withdrawService := services.NewWithdrawService(challengeService, challengeRepo, lnd, publisher, auditRepo, m, cfg, log)
	payService := services.NewPayService(paymentRepo, settlementService, lnd, auditRepo, m, cfg, log)
	channelService := services.NewChannelService(challengeService, channelRepo, nodeInfo, lnd, publisher, auditRepo, m, cfg, log)
	authService := services.NewAuthService(challengeService, sessionRepo, publisher, auditRepo, m, cfg, log)
	healthService := services.NewHealthService(lnd, chainRPC, m, cfg, log)

	// Handlers
	wsHub := handlers.NewWSHub(cfg, subscriber, authService, log)
	h := apphttp.Handlers{
		Withdraw: handlers.NewWithdrawHandler(withdrawService, log),
		Pay:      handlers.NewPayHandler(payService, cfg.PublicURL, log),
		Channel:  handlers.NewChannelHandler(channelService, log),
		Auth:     handlers.NewAuthHandler(authService, log),
		Ops:      handlers.NewOpsHandler(healthService, auditRepo, log),
		WS:       wsHub,
	}

	// Start WS hub
	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to subscribe to events", zap.Error(err))
	}

	// Background loops
	var loops sync.WaitGroup
	if cfg.RunWorkers {
		reconciler := worker.NewReconciler(paymentRepo, settlementService, m, cfg, log)
		cleanup := worker.NewCleanup(challengeRepo, sessionRepo, m, log)

		loops.Add(2)
		go func() {
			defer loops.Done()
			reconciler.Run(ctx, cfg.ReconcileInterval)
		}()
		go func() {
			defer loops.Done()
			cleanup.Run(ctx, cfg.CleanupInterval)
		}()
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
				return c.Status(code).JSON(fiber.Map{"error": fe.Message})
			}
			return c.Status(code).JSON(fiber.Map{"error": apperr.Message(err)})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authService, m, h)

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr), zap.Bool("workers", cfg.RunWorkers))
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(addr)
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info("shutting down...")
	case err := <-listenErr:
		log.Error("server error", zap.Error(err))
	}

	// 1. Останавливаем фоновые циклы и WS-хаб
	cancel()
	// 2. Дожидаемся in-flight запросов
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Warn("server shutdown", zap.Error(err))
	}
	// 3. Потом циклы и открытия каналов, запущенные этими запросами
	loops.Wait()
	channelService.Wait()
	log.Info("stopped")
}
