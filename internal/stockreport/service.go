package stockreport

import (
	"context"
	"fmt"

	"github.com/stocktrace/stocktrace-backend/pkg/enums"
	pkgerrors "github.com/stocktrace/stocktrace-backend/pkg/errors"
)

// Classify derives the stock status for a quantity against its configured
// minimum. Zero stock is always OUT_OF_STOCK, even when the minimum is zero.
func Classify(current, minimum int) enums.StockStatus {
	switch {
	case current <= 0:
		return enums.StockStatusOut
	case current <= minimum:
		return enums.StockStatusLow
	default:
		return enums.StockStatusIn
	}
}

// Summary aggregates the catalog-wide stock posture.
type Summary struct {
	ProductCount int `json:"product_count"`
	UnitsInStock int `json:"units_in_stock"`
	LowStock     int `json:"low_stock"`
	OutOfStock   int `json:"out_of_stock"`
}

// Service reads derived stock reporting views.
type Service interface {
	Report(ctx context.Context, query Query) ([]Row, error)
	Summary(ctx context.Context) (*Summary, error)
}

type service struct {
	repo *Repository
}

// NewService constructs a stock report service instance.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("report repository required")
	}
	return &service{repo: repo}, nil
}

// Report lists every product joined with its stock counters. Unrecognized
// sort parameters fall back to name ascending rather than failing; an
// unknown status filter simply matches nothing.
func (s *service) Report(ctx context.Context, query Query) ([]Row, error) {
	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock report")
	}
	return rows, nil
}

// Summary returns the whole-catalog aggregates.
func (s *service) Summary(ctx context.Context) (*Summary, error) {
	record, err := s.repo.Aggregate(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate stock summary")
	}
	return &Summary{
		ProductCount: record.ProductCount,
		UnitsInStock: record.UnitsInStock,
		LowStock:     record.LowStock,
		OutOfStock:   record.OutOfStock,
	}, nil
}
