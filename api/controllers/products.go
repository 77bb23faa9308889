package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stocktrace/stocktrace-backend/api/responses"
	"github.com/stocktrace/stocktrace-backend/api/validators"
	"github.com/stocktrace/stocktrace-backend/internal/barcode"
	"github.com/stocktrace/stocktrace-backend/internal/identifier"
	"github.com/stocktrace/stocktrace-backend/internal/printbatch"
	"github.com/stocktrace/stocktrace-backend/internal/stockledger"
	"github.com/stocktrace/stocktrace-backend/pkg/config"
	pkgerrors "github.com/stocktrace/stocktrace-backend/pkg/errors"
	"github.com/stocktrace/stocktrace-backend/pkg/logger"
	"github.com/stocktrace/stocktrace-backend/pkg/pagination"
)

type printBatchRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=1000"`
	Scale    int `json:"scale,omitempty" validate:"omitempty,min=1,max=10"`
}

// ProductHistory pages through a product's ledger, newest first.
func ProductHistory(svc stockledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock ledger unavailable"))
			return
		}

		productID, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		result, err := svc.History(r.Context(), productID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"entries":     result.Entries,
			"next_cursor": result.NextCursor,
		})
	}
}

// ProductBarcode streams the product's label as PNG bytes. Height and scale
// are per-request overrides of the configured defaults.
func ProductBarcode(identifiers identifier.Service, cfg config.BarcodeConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identifiers == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "identifier service unavailable"))
			return
		}

		productID, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		scale, err := validators.ParseQueryInt(r, "scale", cfg.Scale, 1, cfg.MaxScale)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		height, err := validators.ParseQueryInt(r, "height", cfg.BarHeight, 20, 400)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		code, err := identifiers.Ensure(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		renderCfg := cfg
		renderCfg.BarHeight = height
		renderer := barcode.NewRenderer(renderCfg)

		png, err := renderer.RenderPNGWithLabel(identifier.BarcodePayload(code), code, scale)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}
}

// PrintBatchIssue renders a product's label once and records the print run.
func PrintBatchIssue(svc printbatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "print batch service unavailable"))
			return
		}

		actorID, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload printBatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Issue(r.Context(), printbatch.IssueInput{
			ProductID: productID,
			Count:     payload.Quantity,
			IssuedBy:  actorID,
			Scale:     payload.Scale,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// PrintBatchList returns a product's print runs, newest first.
func PrintBatchList(svc printbatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "print batch service unavailable"))
			return
		}

		productID, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batches, err := svc.History(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"batches": batches, "count": len(batches)})
	}
}

func parseProductID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "productId"))
	productID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	return productID, nil
}
