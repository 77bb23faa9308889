package identifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stocktrace/stocktrace-backend/pkg/db/models"
	pkgerrors "github.com/stocktrace/stocktrace-backend/pkg/errors"
)

// Prefix starts every auto-derived product identifier.
const Prefix = "PROD_"

// Format derives the canonical identifier for a product sequence number:
// the fixed prefix followed by the sequence zero-padded to six digits.
func Format(seq int64) string {
	return fmt.Sprintf("%s%06d", Prefix, seq)
}

// BarcodePayload maps an identifier to the string carried by its bars. The
// symbology alphabet has no underscore, so the payload substitutes a hyphen;
// the printed label still shows the stored identifier.
func BarcodePayload(id string) string {
	return strings.ReplaceAll(strings.ToUpper(id), "_", "-")
}

// Service assigns stable barcode identifiers to products.
type Service interface {
	Ensure(ctx context.Context, productID uuid.UUID) (string, error)
}

type productStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ClaimBarcodeID(ctx context.Context, id uuid.UUID, code string) (bool, error)
}

type service struct {
	repo productStore
}

// NewService constructs an identifier service instance.
func NewService(repo productStore) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

// Ensure returns the product's stored identifier, deriving and persisting
// one when absent. Ensure never overwrites an existing identifier: when a
// concurrent caller claims first, the stored value is reloaded and returned.
func (s *service) Ensure(ctx context.Context, productID uuid.UUID) (string, error) {
	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return "", err
	}
	if code := storedIdentifier(product); code != "" {
		return code, nil
	}

	code := Format(product.Seq)
	claimed, err := s.repo.ClaimBarcodeID(ctx, productID, code)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim identifier")
	}
	if claimed {
		return code, nil
	}

	// lost the race: the winner's value is authoritative
	product, err = s.loadProduct(ctx, productID)
	if err != nil {
		return "", err
	}
	if code := storedIdentifier(product); code != "" {
		return code, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeConflict, "identifier claim did not converge")
}

func (s *service) loadProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func storedIdentifier(product *models.Product) string {
	if product.BarcodeID == nil {
		return ""
	}
	return *product.BarcodeID
}
