package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/stocktrace/stocktrace-backend/api/routes"
	"github.com/stocktrace/stocktrace-backend/internal/barcode"
	"github.com/stocktrace/stocktrace-backend/internal/identifier"
	"github.com/stocktrace/stocktrace-backend/internal/optical"
	"github.com/stocktrace/stocktrace-backend/internal/printbatch"
	"github.com/stocktrace/stocktrace-backend/internal/stockledger"
	"github.com/stocktrace/stocktrace-backend/internal/stockreport"
	"github.com/stocktrace/stocktrace-backend/pkg/config"
	"github.com/stocktrace/stocktrace-backend/pkg/db"
	"github.com/stocktrace/stocktrace-backend/pkg/logger"
	"github.com/stocktrace/stocktrace-backend/pkg/metrics"
	"github.com/stocktrace/stocktrace-backend/pkg/migrate"
	"github.com/stocktrace/stocktrace-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured, idempotency and scan rate limiting disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	movement := metrics.NewMovementMetrics(registry)

	ledgerService, err := stockledger.NewService(stockledger.NewRepository(dbClient.DB()), dbClient, logg, movement)
	if err != nil {
		logg.Error(context.Background(), "failed to create stock ledger service", err)
		os.Exit(1)
	}

	reportService, err := stockreport.NewService(stockreport.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create stock report service", err)
		os.Exit(1)
	}

	identifierService, err := identifier.NewService(identifier.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create identifier service", err)
		os.Exit(1)
	}

	renderer := barcode.NewRenderer(cfg.Barcode)
	batchService, err := printbatch.NewService(printbatch.NewRepository(dbClient.DB()), identifierService, renderer, cfg.Barcode)
	if err != nil {
		logg.Error(context.Background(), "failed to create print batch service", err)
		os.Exit(1)
	}

	ensemble := optical.NewEnsemble(optical.FromConfig(cfg.Scan), logg, movement)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			ledgerService,
			reportService,
			batchService,
			identifierService,
			ensemble,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
