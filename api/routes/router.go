package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stocktrace/stocktrace-backend/api/controllers"
	"github.com/stocktrace/stocktrace-backend/api/middleware"
	"github.com/stocktrace/stocktrace-backend/internal/identifier"
	"github.com/stocktrace/stocktrace-backend/internal/optical"
	"github.com/stocktrace/stocktrace-backend/internal/printbatch"
	"github.com/stocktrace/stocktrace-backend/internal/stockledger"
	"github.com/stocktrace/stocktrace-backend/internal/stockreport"
	"github.com/stocktrace/stocktrace-backend/pkg/config"
	"github.com/stocktrace/stocktrace-backend/pkg/db"
	"github.com/stocktrace/stocktrace-backend/pkg/logger"
	pkgredis "github.com/stocktrace/stocktrace-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	metricsG prometheus.Gatherer,
	ledgerService stockledger.Service,
	reportService stockreport.Service,
	batchService printbatch.Service,
	identifierService identifier.Service,
	ensemble *optical.Ensemble,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var redisPinger pkgredis.Pinger
	var idemStore pkgredis.IdempotencyStore
	if redisClient != nil {
		redisPinger = redisClient
		idemStore = redisClient
	}

	scanLimit := passthrough
	if redisClient != nil {
		policy := middleware.NewScanRateLimitPolicy("scan", cfg.Scan.RateLimitWindow, cfg.Scan.RateLimitPerIP)
		scanLimit = middleware.ScanRateLimit(policy, redisClient, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})

	if metricsG != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsG, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ActorContext(logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/stock", func(r chi.Router) {
			r.Post("/in", controllers.StockIn(ledgerService, logg))
			r.Post("/out", controllers.StockOut(ledgerService, logg))
			r.With(scanLimit).Post("/scan", controllers.StockScan(ensemble, ledgerService, cfg.Scan, logg))
			r.Get("/report", controllers.StockReport(reportService, logg))
			r.Get("/summary", controllers.StockSummary(reportService, logg))
		})

		r.Route("/products/{productId}", func(r chi.Router) {
			r.Get("/history", controllers.ProductHistory(ledgerService, logg))
			r.Get("/barcode", controllers.ProductBarcode(identifierService, cfg.Barcode, logg))
			r.Post("/print-batches", controllers.PrintBatchIssue(batchService, logg))
			r.Get("/print-batches", controllers.PrintBatchList(batchService, logg))
		})
	})

	return r
}

func passthrough(next http.Handler) http.Handler {
	return next
}
