package models

import (
	"time"

	"github.com/google/uuid"
)

// StockLevel tracks the running quantity counters per product. The row is
// created lazily on the first movement and never deleted. QuantityInStock
// always equals TotalReceived minus TotalSold.
type StockLevel struct {
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	QuantityInStock   int       `gorm:"column:quantity_in_stock;not null;default:0"`
	TotalReceived     int       `gorm:"column:total_received;not null;default:0"`
	TotalSold         int       `gorm:"column:total_sold;not null;default:0"`
	MinimumStockLevel int       `gorm:"column:minimum_stock_level;not null;default:0"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
