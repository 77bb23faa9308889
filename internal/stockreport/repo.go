package stockreport

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stocktrace/stocktrace-backend/pkg/enums"
)

// statusExpr derives the stock status inside SQL so filtering and sorting
// happen in one pass; products without a stock row default to zero.
const statusExpr = `CASE
	WHEN COALESCE(sl.quantity_in_stock, 0) <= 0 THEN 'OUT_OF_STOCK'
	WHEN COALESCE(sl.quantity_in_stock, 0) <= COALESCE(sl.minimum_stock_level, 0) THEN 'LOW_STOCK'
	ELSE 'IN_STOCK'
END`

// sortColumns is the allow-list of report sort keys. Anything else falls
// back to name ascending; the parameters are untrusted query input and are
// never interpolated directly.
var sortColumns = map[string]string{
	"name":                "name",
	"sku":                 "sku",
	"current_stock":       "current_stock",
	"total_received":      "total_received",
	"total_sold":          "total_sold",
	"minimum_stock_level": "minimum_stock_level",
	"stock_status":        statusExpr,
}

// Row is one report line: a product joined with its possibly absent stock row.
type Row struct {
	ProductID         uuid.UUID         `gorm:"column:product_id" json:"product_id"`
	Name              string            `gorm:"column:name" json:"name"`
	SKU               string            `gorm:"column:sku" json:"sku"`
	BarcodeID         *string           `gorm:"column:barcode_id" json:"barcode_id"`
	CurrentStock      int               `gorm:"column:current_stock" json:"current_stock"`
	TotalReceived     int               `gorm:"column:total_received" json:"total_received"`
	TotalSold         int               `gorm:"column:total_sold" json:"total_sold"`
	MinimumStockLevel int               `gorm:"column:minimum_stock_level" json:"minimum_stock_level"`
	Status            enums.StockStatus `gorm:"column:stock_status" json:"stock_status"`
}

// Query holds the untrusted report parameters after transport decoding.
type Query struct {
	Status    string
	Search    string
	SortBy    string
	SortOrder string
}

// Repository reads the joined product/stock view.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns every product with its stock counters, filtered and sorted
// per the query.
func (r *Repository) List(ctx context.Context, query Query) ([]Row, error) {
	qb := r.db.WithContext(ctx).
		Table("products p").
		Select(strings.Join([]string{
			"p.id AS product_id",
			"p.name",
			"p.sku",
			"p.barcode_id",
			"COALESCE(sl.quantity_in_stock, 0) AS current_stock",
			"COALESCE(sl.total_received, 0) AS total_received",
			"COALESCE(sl.total_sold, 0) AS total_sold",
			"COALESCE(sl.minimum_stock_level, 0) AS minimum_stock_level",
			statusExpr + " AS stock_status",
		}, ", ")).
		Joins("LEFT JOIN stock_levels sl ON sl.product_id = p.id")

	if status := strings.TrimSpace(query.Status); status != "" && status != "all" {
		qb = qb.Where(statusExpr+" = ?", status)
	}
	if search := strings.TrimSpace(query.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(p.name) LIKE ? OR LOWER(p.sku) LIKE ? OR LOWER(p.barcode_id) LIKE ?)",
			pattern, pattern, pattern)
	}

	column, ok := sortColumns[query.SortBy]
	if !ok {
		column = "name"
	}
	direction := "ASC"
	if strings.EqualFold(query.SortOrder, "DESC") {
		direction = "DESC"
	}
	qb = qb.Order(column + " " + direction)

	var rows []Row
	if err := qb.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// summaryRecord carries the aggregate counters for the summary endpoint.
type summaryRecord struct {
	ProductCount int `gorm:"column:product_count"`
	UnitsInStock int `gorm:"column:units_in_stock"`
	LowStock     int `gorm:"column:low_stock"`
	OutOfStock   int `gorm:"column:out_of_stock"`
}

// Aggregate computes the whole-catalog summary in one query.
func (r *Repository) Aggregate(ctx context.Context) (*summaryRecord, error) {
	var record summaryRecord
	err := r.db.WithContext(ctx).
		Table("products p").
		Select(strings.Join([]string{
			"COUNT(*) AS product_count",
			"COALESCE(SUM(COALESCE(sl.quantity_in_stock, 0)), 0) AS units_in_stock",
			"COALESCE(SUM(CASE WHEN " + statusExpr + " = 'LOW_STOCK' THEN 1 ELSE 0 END), 0) AS low_stock",
			"COALESCE(SUM(CASE WHEN " + statusExpr + " = 'OUT_OF_STOCK' THEN 1 ELSE 0 END), 0) AS out_of_stock",
		}, ", ")).
		Joins("LEFT JOIN stock_levels sl ON sl.product_id = p.id").
		Scan(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}
