package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stocktrace/stocktrace-backend/pkg/enums"
)

// LedgerEntry records one immutable stock movement. Entries are append-only
// and are the audit trail of record; ordering is CreatedAt with the
// per-product Seq as the tie break. Seq is assigned inside the movement
// transaction, so it is gapless and strictly increasing per product.
type LedgerEntry struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	ProductID      uuid.UUID             `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_ledger_product_seq,priority:1"`
	Seq            int64                 `gorm:"column:seq;not null;uniqueIndex:idx_ledger_product_seq,priority:2"`
	Type           enums.TransactionType `gorm:"column:transaction_type;type:transaction_type_enum;not null"`
	Quantity       int                   `gorm:"column:quantity;not null"`
	RunningBalance int                   `gorm:"column:running_balance;not null"`
	ReferenceType  enums.ReferenceType   `gorm:"column:reference_type;type:reference_type_enum;not null"`
	ReferenceID    *string               `gorm:"column:reference_id"`
	ActorID        uuid.UUID             `gorm:"column:actor_id;type:uuid;not null"`
	Notes          string                `gorm:"column:notes;not null;default:''"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
}
