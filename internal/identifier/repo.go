package identifier

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stocktrace/stocktrace-backend/pkg/db/models"
)

// Repository persists product identifier assignments.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// ClaimBarcodeID writes a derived identifier onto the product, but only when
// no identifier is stored yet. The guard keeps concurrent claims from
// overwriting each other; the loser observes zero affected rows and reloads.
func (r *Repository) ClaimBarcodeID(ctx context.Context, id uuid.UUID, code string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND barcode_id IS NULL", id).
		Update("barcode_id", code)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
