package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/stocktrace/stocktrace-backend/api/responses"
	"github.com/stocktrace/stocktrace-backend/pkg/config"
	"github.com/stocktrace/stocktrace-backend/pkg/db"
	pkgerrors "github.com/stocktrace/stocktrace-backend/pkg/errors"
	"github.com/stocktrace/stocktrace-backend/pkg/logger"
	pkgredis "github.com/stocktrace/stocktrace-backend/pkg/redis"
)

const readinessTimeout = 5 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-StockTrace-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every hard dependency. Redis is optional: a nil pinger
// means the API was deployed without it and readiness ignores it.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP pkgredis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-StockTrace-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if dbP == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "database not configured"))
			return
		}
		if err := dbP.Ping(ctx); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unreachable"))
			return
		}

		if redisP != nil {
			if err := redisP.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unreachable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
