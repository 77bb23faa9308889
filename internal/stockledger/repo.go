package stockledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stocktrace/stocktrace-backend/pkg/db/models"
	"github.com/stocktrace/stocktrace-backend/pkg/pagination"
)

// Repository persists stock levels and ledger entries. Movement writes are
// single guarded statements so concurrent movements against one product
// serialize on the row without an explicit lock.
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

// FindProductByID loads the product without associations.
func (r *Repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindProductByIdentifier resolves a scanned identifier to its product. The
// bars substitute a hyphen for the underscore the stored identifier carries,
// so a miss on the exact string retries the underscore spelling.
func (r *Repository) FindProductByIdentifier(ctx context.Context, code string, variants ...string) (*models.Product, error) {
	lookups := append([]string{code}, variants...)
	var lastErr error
	for _, lookup := range lookups {
		var product models.Product
		err := r.db.WithContext(ctx).First(&product, "barcode_id = ?", lookup).Error
		if err == nil {
			return &product, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// ApplyReceipt adds quantity to the product's counter, creating the stock
// row lazily on the first movement. The increment is one upsert statement,
// so two concurrent receipts both land.
func (r *Repository) ApplyReceipt(ctx context.Context, productID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO stock_levels (product_id, quantity_in_stock, total_received, total_sold, minimum_stock_level, updated_at)
		VALUES (?, ?, ?, 0, 0, CURRENT_TIMESTAMP)
		ON CONFLICT (product_id) DO UPDATE
		SET quantity_in_stock = stock_levels.quantity_in_stock + excluded.quantity_in_stock,
			total_received = stock_levels.total_received + excluded.total_received,
			updated_at = CURRENT_TIMESTAMP
	`, productID, quantity, quantity).Error
}

// ApplyWithdrawal removes one unit. The guard refuses to take the counter
// below zero; zero affected rows means there was no stock to withdraw.
func (r *Repository) ApplyWithdrawal(ctx context.Context, productID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE stock_levels
		SET quantity_in_stock = quantity_in_stock - 1,
			total_sold = total_sold + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND quantity_in_stock >= 1
	`, productID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetLevel reads the product's stock row. A missing row is returned as
// gorm.ErrRecordNotFound; callers decide whether that defaults to zero.
func (r *Repository) GetLevel(ctx context.Context, productID uuid.UUID) (*models.StockLevel, error) {
	var level models.StockLevel
	if err := r.db.WithContext(ctx).First(&level, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &level, nil
}

// AppendEntry writes one immutable ledger row. The per-product sequence is
// assigned here from the current maximum; the unique (product_id, seq) index
// turns a concurrent double-assignment into a retryable conflict.
func (r *Repository) AppendEntry(ctx context.Context, entry *models.LedgerEntry) error {
	var maxSeq int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("product_id = ?", entry.ProductID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return err
	}
	entry.Seq = maxSeq + 1
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListHistory returns ledger entries for a product, newest first. One extra
// row beyond the limit signals another page; the caller trims it.
func (r *Repository) ListHistory(ctx context.Context, productID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.LedgerEntry, error) {
	query := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Order("seq DESC").
		Limit(limit)
	if cursor != nil {
		var mark models.LedgerEntry
		err := r.db.WithContext(ctx).First(&mark, "id = ?", cursor.ID).Error
		switch {
		case err == nil:
			query = query.Where("created_at < ? OR (created_at = ? AND seq < ?)",
				mark.CreatedAt, mark.CreatedAt, mark.Seq)
		case errors.Is(err, gorm.ErrRecordNotFound):
			// stale cursor, fall back to timestamp only
			query = query.Where("created_at < ?", cursor.CreatedAt)
		default:
			return nil, err
		}
	}

	var entries []models.LedgerEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
