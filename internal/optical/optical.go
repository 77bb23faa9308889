package optical

import (
	"context"
	"fmt"
	"strings"

	"github.com/stocktrace/stocktrace-backend/pkg/logger"
	"github.com/stocktrace/stocktrace-backend/pkg/metrics"
)

// Result is one successful decode: the string read from the image and the
// decoder's declared confidence in it.
type Result struct {
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
	Decoder    string  `json:"decoder"`
}

// Decoder attempts to read a barcode from raw image bytes. A nil result
// with a nil error means the decoder found nothing, which is a normal
// outcome, not a failure.
type Decoder interface {
	Name() string
	Decode(ctx context.Context, image []byte) (*Result, error)
}

// Ensemble fans an image out to every configured decoder and keeps the
// highest-confidence read. Decoding is best effort: individual decoder
// failures are logged and skipped, never surfaced.
type Ensemble struct {
	decoders []Decoder
	logg     *logger.Logger
	movement *metrics.MovementMetrics
}

// NewEnsemble builds an ensemble over the provided decoders.
func NewEnsemble(decoders []Decoder, logg *logger.Logger, movement *metrics.MovementMetrics) *Ensemble {
	return &Ensemble{decoders: decoders, logg: logg, movement: movement}
}

// Scan tries every decoder in order and returns the highest-confidence
// result, or nil when nothing decoded. Ties keep the earlier decoder.
func (e *Ensemble) Scan(ctx context.Context, image []byte) (*Result, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("image is required")
	}

	var best *Result
	for _, decoder := range e.decoders {
		if ctx.Err() != nil {
			return best, nil
		}
		result, err := decoder.Decode(ctx, image)
		if err != nil {
			e.movement.IncScan(decoder.Name(), "error")
			if e.logg != nil {
				e.logg.Warn(e.logg.WithField(ctx, "decoder", decoder.Name()), "decoder failed, skipping")
			}
			continue
		}
		if result == nil || strings.TrimSpace(result.Content) == "" {
			e.movement.IncScan(decoder.Name(), "miss")
			continue
		}
		e.movement.IncScan(decoder.Name(), "hit")
		result.Decoder = decoder.Name()
		if best == nil || result.Confidence > best.Confidence {
			best = result
		}
	}
	return best, nil
}
