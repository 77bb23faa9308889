package controllers

import (
	"net/http"

	"github.com/stocktrace/stocktrace-backend/api/responses"
	"github.com/stocktrace/stocktrace-backend/api/validators"
	"github.com/stocktrace/stocktrace-backend/internal/stockreport"
	pkgerrors "github.com/stocktrace/stocktrace-backend/pkg/errors"
	"github.com/stocktrace/stocktrace-backend/pkg/logger"
)

// StockReport lists every product with its counters and derived status.
// Unknown sort input falls back to the default ordering rather than failing.
func StockReport(svc stockreport.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock report unavailable"))
			return
		}

		query := stockreport.Query{
			Status:    validators.SanitizeString(r.URL.Query().Get("status"), 32),
			Search:    validators.SanitizeString(r.URL.Query().Get("q"), 100),
			SortBy:    validators.SanitizeString(r.URL.Query().Get("sort_by"), 32),
			SortOrder: validators.SanitizeString(r.URL.Query().Get("sort_order"), 8),
		}

		rows, err := svc.Report(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"items": rows, "count": len(rows)})
	}
}

// StockSummary returns the aggregate counters for the dashboard header.
func StockSummary(svc stockreport.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock report unavailable"))
			return
		}

		summary, err := svc.Summary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, summary)
	}
}
