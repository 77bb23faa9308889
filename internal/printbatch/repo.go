package printbatch

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stocktrace/stocktrace-backend/pkg/db/models"
)

// Repository persists print batch records.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts one immutable print batch record.
func (r *Repository) Create(ctx context.Context, batch *models.PrintBatch) error {
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(batch).Error
}

// ListByProduct returns a product's print history, newest first.
func (r *Repository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.PrintBatch, error) {
	var batches []models.PrintBatch
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("issued_at DESC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}
