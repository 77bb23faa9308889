package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/stocktrace/stocktrace-backend/api/middleware"
	"github.com/stocktrace/stocktrace-backend/api/responses"
	"github.com/stocktrace/stocktrace-backend/api/validators"
	"github.com/stocktrace/stocktrace-backend/internal/stockledger"
	"github.com/stocktrace/stocktrace-backend/pkg/enums"
	pkgerrors "github.com/stocktrace/stocktrace-backend/pkg/errors"
	"github.com/stocktrace/stocktrace-backend/pkg/logger"
)

// conflictRetries bounds how many times a movement is replayed when two
// operators hit the same product at once. The ledger maps those races to a
// retryable conflict, so the controller owns the retry loop.
const conflictRetries = 3

const conflictBackoff = 25 * time.Millisecond

type stockInRequest struct {
	ProductID     string `json:"product_id" validate:"required,uuid4"`
	Quantity      int    `json:"quantity" validate:"required,min=1"`
	ReferenceType string `json:"reference_type,omitempty"`
	ReferenceID   string `json:"reference_id,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type stockOutRequest struct {
	Identifier    string `json:"identifier" validate:"required,min=1,max=64"`
	ReferenceType string `json:"reference_type,omitempty"`
	ReferenceID   string `json:"reference_id,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type movementResponse struct {
	ProductID       uuid.UUID             `json:"product_id"`
	BarcodeID       *string               `json:"barcode_id,omitempty"`
	TransactionType enums.TransactionType `json:"transaction_type"`
	Quantity        int                   `json:"quantity"`
	NewQuantity     int                   `json:"new_quantity"`
	LedgerSeq       int64                 `json:"ledger_seq"`
}

// StockIn handles receipt of new stock against a known product.
func StockIn(svc stockledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock ledger unavailable"))
			return
		}

		actorID, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload stockInRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := uuid.Parse(payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		refType, err := parseReferenceType(payload.ReferenceType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := stockledger.AddStockInput{
			ProductID:     productID,
			Quantity:      payload.Quantity,
			ActorID:       actorID,
			ReferenceType: refType,
			ReferenceID:   optionalString(payload.ReferenceID),
			Notes:         validators.SanitizeString(payload.Notes, 500),
		}

		result, err := withConflictRetry(r.Context(), func(ctx context.Context) (*stockledger.MovementResult, error) {
			return svc.AddStock(ctx, input)
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toMovementResponse(result))
	}
}

// StockOut withdraws exactly one unit for a scanned identifier.
func StockOut(svc stockledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock ledger unavailable"))
			return
		}

		actorID, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload stockOutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refType, err := parseReferenceType(payload.ReferenceType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := stockledger.RemoveStockInput{
			Identifier:    validators.SanitizeString(payload.Identifier, 64),
			ActorID:       actorID,
			ReferenceType: refType,
			ReferenceID:   optionalString(payload.ReferenceID),
			Notes:         validators.SanitizeString(payload.Notes, 500),
		}

		result, err := withConflictRetry(r.Context(), func(ctx context.Context) (*stockledger.MovementResult, error) {
			return svc.RemoveStock(ctx, input)
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toMovementResponse(result))
	}
}

func toMovementResponse(result *stockledger.MovementResult) movementResponse {
	resp := movementResponse{
		NewQuantity: result.NewQuantity,
	}
	if result.Product != nil {
		resp.ProductID = result.Product.ID
		resp.BarcodeID = result.Product.BarcodeID
	}
	if result.Entry != nil {
		resp.TransactionType = result.Entry.Type
		resp.Quantity = result.Entry.Quantity
		resp.LedgerSeq = result.Entry.Seq
	}
	return resp
}

func withConflictRetry(ctx context.Context, fn func(context.Context) (*stockledger.MovementResult, error)) (*stockledger.MovementResult, error) {
	var result *stockledger.MovementResult
	backoff := retry.WithMaxRetries(conflictRetries, retry.NewExponential(conflictBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		if innerErr != nil && pkgerrors.IsRetryable(innerErr) {
			return retry.RetryableError(innerErr)
		}
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func requireActor(r *http.Request) (uuid.UUID, error) {
	raw := middleware.ActorIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "X-Actor-Id header required")
	}
	actorID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor id")
	}
	return actorID, nil
}

func parseReferenceType(raw string) (enums.ReferenceType, error) {
	if raw == "" {
		return "", nil
	}
	refType, err := enums.ParseReferenceType(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reference type")
	}
	return refType, nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
