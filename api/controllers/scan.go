package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/stocktrace/stocktrace-backend/api/responses"
	"github.com/stocktrace/stocktrace-backend/internal/optical"
	"github.com/stocktrace/stocktrace-backend/internal/stockledger"
	"github.com/stocktrace/stocktrace-backend/pkg/config"
	"github.com/stocktrace/stocktrace-backend/pkg/enums"
	pkgerrors "github.com/stocktrace/stocktrace-backend/pkg/errors"
	"github.com/stocktrace/stocktrace-backend/pkg/logger"
)

// scanImageField is the multipart form field carrying the label photo.
const scanImageField = "image"

type scanResponse struct {
	Decoded    bool              `json:"decoded"`
	Content    string            `json:"content,omitempty"`
	Decoder    string            `json:"decoder,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	Movement   *movementResponse `json:"movement,omitempty"`
}

// StockScan decodes an uploaded label image and, when a barcode is read,
// withdraws one unit as a sale. A miss is a successful response with
// decoded:false, not an error.
func StockScan(ensemble *optical.Ensemble, svc stockledger.Service, cfg config.ScanConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ensemble == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scan pipeline unavailable"))
			return
		}

		actorID, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		maxBytes := int64(cfg.MaxUploadMB) << 20
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart upload"))
			return
		}

		file, _, err := r.FormFile(scanImageField)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "image file is required"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read image upload"))
			return
		}
		defer file.Close()

		image, err := io.ReadAll(file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read image upload"))
			return
		}

		scanCtx, cancel := context.WithTimeout(r.Context(), cfg.Timeout)
		defer cancel()

		result, err := ensemble.Scan(scanCtx, image)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "scan image"))
			return
		}
		if result == nil {
			responses.WriteSuccess(w, scanResponse{Decoded: false})
			return
		}

		input := stockledger.RemoveStockInput{
			Identifier:    result.Content,
			ActorID:       actorID,
			ReferenceType: enums.ReferenceTypeSale,
		}

		movement, err := withConflictRetry(r.Context(), func(ctx context.Context) (*stockledger.MovementResult, error) {
			return svc.RemoveStock(ctx, input)
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := toMovementResponse(movement)
		responses.WriteSuccess(w, scanResponse{
			Decoded:    true,
			Content:    result.Content,
			Decoder:    result.Decoder,
			Confidence: result.Confidence,
			Movement:   &resp,
		})
	}
}
