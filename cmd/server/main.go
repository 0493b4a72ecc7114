package main

import (
	"context"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"atelier-checkout/internal/cache"
	"atelier-checkout/internal/config"
	"atelier-checkout/internal/database"
	"atelier-checkout/internal/events"
	"atelier-checkout/internal/infrastructure/payment"
	"atelier-checkout/internal/repo"
	"atelier-checkout/internal/service"
	"atelier-checkout/internal/tracking"
	transport "atelier-checkout/internal/transport/http"
	"atelier-checkout/internal/worker"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	publisher := events.Nop()
	if cfg.KafkaBroker != "" {
		publisher, err = events.NewKafkaPublisher(cfg.KafkaBroker, logger)
		if err != nil {
			logger.Fatal("connect kafka", zap.String("broker", cfg.KafkaBroker), zap.Error(err))
		}
	}

	store := repo.NewSQLStore(db)
	issuer := tracking.NewIssuer()
	caches := cache.NewRegistry(cfg.CacheTTL)
	gateway := payment.NewHTTPGateway(cfg.GatewayURL, cfg.GatewayToken)
	adapter := payment.NewAdapter(gateway, store, logger,
		payment.WithSiteURL(cfg.SiteURL))
	orders := service.NewOrderService(store, issuer, adapter, publisher, caches, logger)

	reconciler := worker.NewReconciliationWorker(
		store, gateway, orders, cfg.StuckThreshold, cfg.ReconcileInterval, logger)
	go reconciler.Run(ctx)

	handler := transport.NewHandler(orders, adapter, issuer, caches,
		strings.HasPrefix(cfg.SiteURL, "https://"),
		func() map[string]string { return database.Health(db) }, logger)
	engine := transport.NewRouter(handler, []string{cfg.SiteURL})

	logger.Info("checkout service listening", zap.String("port", cfg.HTTPPort))
	if err := engine.Run(":" + cfg.HTTPPort); err != nil {
		logger.Fatal("http server", zap.Error(err))
	}
}
