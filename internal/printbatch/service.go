package printbatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stocktrace/stocktrace-backend/internal/identifier"
	"github.com/stocktrace/stocktrace-backend/pkg/config"
	"github.com/stocktrace/stocktrace-backend/pkg/db"
	"github.com/stocktrace/stocktrace-backend/pkg/db/models"
	pkgerrors "github.com/stocktrace/stocktrace-backend/pkg/errors"
)

// batchTimeLayout is the timestamp component of a batch reference.
const batchTimeLayout = "20060102150405"

// renderer is the slice of the barcode renderer the issuer needs.
type renderer interface {
	RenderBase64WithLabel(payload, label string, scale int) (string, error)
}

// IssueInput requests one print run of count identical labels.
type IssueInput struct {
	ProductID uuid.UUID
	Count     int
	IssuedBy  uuid.UUID
	Scale     int
}

// IssueResult carries everything the caller needs to print the run: the
// image is rendered exactly once and reused for every physical copy.
type IssueResult struct {
	Identifier      string `json:"identifier"`
	ImageBase64     string `json:"image_base64"`
	BatchReference  string `json:"batch_reference"`
	QuantityPrinted int    `json:"quantity_printed"`
}

// Service issues traceable print batches.
type Service interface {
	Issue(ctx context.Context, input IssueInput) (*IssueResult, error)
	History(ctx context.Context, productID uuid.UUID) ([]models.PrintBatch, error)
}

type service struct {
	repo        *Repository
	identifiers identifier.Service
	renderer    renderer
	defaults    config.BarcodeConfig
	now         func() time.Time
}

// NewService constructs a print batch service instance.
func NewService(repo *Repository, identifiers identifier.Service, r renderer, defaults config.BarcodeConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("print batch repository required")
	}
	if identifiers == nil {
		return nil, fmt.Errorf("identifier service required")
	}
	if r == nil {
		return nil, fmt.Errorf("barcode renderer required")
	}
	return &service{
		repo:        repo,
		identifiers: identifiers,
		renderer:    r,
		defaults:    defaults,
		now:         time.Now,
	}, nil
}

// Issue ensures the product has an identifier, renders its label once and
// records the print run under a time-based reference.
func (s *service) Issue(ctx context.Context, input IssueInput) (*IssueResult, error) {
	if input.Count <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "count must be greater than zero")
	}
	scale := input.Scale
	if scale == 0 {
		scale = s.defaults.Scale
	}

	code, err := s.identifiers.Ensure(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	image, err := s.renderer.RenderBase64WithLabel(identifier.BarcodePayload(code), code, scale)
	if err != nil {
		return nil, err
	}

	reference := fmt.Sprintf("BATCH_%s_%s", s.now().UTC().Format(batchTimeLayout), input.ProductID)
	batch := &models.PrintBatch{
		ProductID:       input.ProductID,
		BatchReference:  reference,
		QuantityPrinted: input.Count,
		IssuedBy:        input.IssuedBy,
	}
	if err := s.repo.Create(ctx, batch); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "batch reference collision, retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record print batch")
	}

	return &IssueResult{
		Identifier:      code,
		ImageBase64:     image,
		BatchReference:  reference,
		QuantityPrinted: input.Count,
	}, nil
}

// History lists a product's past print runs, newest first.
func (s *service) History(ctx context.Context, productID uuid.UUID) ([]models.PrintBatch, error) {
	batches, err := s.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list print batches")
	}
	return batches, nil
}
