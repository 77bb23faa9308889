package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalog entity the stock engine tracks units against. The
// catalog itself is managed elsewhere; this service only reads products and
// assigns the barcode identifier exactly once.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Seq         int64     `gorm:"column:seq;not null;uniqueIndex:idx_products_seq"`
	Name        string    `gorm:"column:name;not null"`
	SKU         string    `gorm:"column:sku;not null;uniqueIndex:idx_products_sku"`
	Description *string   `gorm:"column:description"`
	BarcodeID   *string   `gorm:"column:barcode_id;uniqueIndex:idx_products_barcode_id"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
