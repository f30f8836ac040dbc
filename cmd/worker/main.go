package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/lnurl-gateway/backend/internal/config"
	"github.com/lnurl-gateway/backend/internal/db"
	"github.com/lnurl-gateway/backend/internal/events"
	"github.com/lnurl-gateway/backend/internal/lightning"
	"github.com/lnurl-gateway/backend/internal/metrics"
	"github.com/lnurl-gateway/backend/internal/repositories"
	"github.com/lnurl-gateway/backend/internal/services"
	"github.com/lnurl-gateway/backend/internal/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Runs the settlement reconciler and the expiry cleanup without the HTTP API.
// Pair it with RUN_WORKERS=false on the api instances.
func main() {
	cfg := config.Load()
	log := cfg.NewLogger()
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repos
	challengeRepo := repositories.NewChallengeRepo(pool)
	paymentRepo := repositories.NewPaymentRepo(pool)
	sessionRepo := repositories.NewSessionRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Services
	m := metrics.Get()
	lnd := lightning.NewLND(cfg.LNDRESTURL, cfg.LNDMacaroonPath, cfg.LNDTLSCertPath, cfg.NodeTimeout, log)
	publisher := events.NewRedisPublisher(rdb, log)
	settlement := services.NewSettlementService(paymentRepo, lnd, publisher, auditRepo, m, cfg, log)

	reconciler := worker.NewReconciler(paymentRepo, settlement, m, cfg, log)
	cleanup := worker.NewCleanup(challengeRepo, sessionRepo, m, log)

	// Metrics only; the worker serves nothing else.
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	go func() {
		addr := fmt.Sprintf(":%s", cfg.WorkerPort)
		if err := app.Listen(addr); err != nil {
			log.Error("metrics server error", zap.Error(err))
		}
	}()

	log.Info("worker started",
		zap.Duration("reconcile_interval", cfg.ReconcileInterval),
		zap.Duration("cleanup_interval", cfg.CleanupInterval),
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		reconciler.Run(ctx, cfg.ReconcileInterval)
	}()
	go func() {
		defer wg.Done()
		cleanup.Run(ctx, cfg.CleanupInterval)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down worker")
	cancel()
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Warn("metrics server shutdown", zap.Error(err))
	}
	wg.Wait()
}
