package models

import (
	"time"

	"github.com/google/uuid"
)

// PrintBatch records one issuance of printable barcode labels for a product.
type PrintBatch struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID       uuid.UUID `gorm:"column:product_id;type:uuid;not null;index:idx_print_batches_product_id"`
	BatchReference  string    `gorm:"column:batch_reference;not null;uniqueIndex:idx_print_batches_reference"`
	QuantityPrinted int       `gorm:"column:quantity_printed;not null"`
	IssuedBy        uuid.UUID `gorm:"column:issued_by;type:uuid;not null"`
	IssuedAt        time.Time `gorm:"column:issued_at;autoCreateTime"`
}
