package stockledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stocktrace/stocktrace-backend/pkg/db"
	"github.com/stocktrace/stocktrace-backend/pkg/db/models"
	"github.com/stocktrace/stocktrace-backend/pkg/enums"
	pkgerrors "github.com/stocktrace/stocktrace-backend/pkg/errors"
	"github.com/stocktrace/stocktrace-backend/pkg/logger"
	"github.com/stocktrace/stocktrace-backend/pkg/metrics"
	"github.com/stocktrace/stocktrace-backend/pkg/pagination"
)

// Service applies stock movements under the ledger invariant: the quantity
// in stock always equals total received minus total sold, and every
// movement leaves exactly one immutable ledger entry behind.
type Service interface {
	AddStock(ctx context.Context, input AddStockInput) (*MovementResult, error)
	RemoveStock(ctx context.Context, input RemoveStockInput) (*MovementResult, error)
	History(ctx context.Context, productID uuid.UUID, params pagination.Params) (*HistoryResult, error)
}

// AddStockInput is a validated receipt request.
type AddStockInput struct {
	ProductID     uuid.UUID
	Quantity      int
	ActorID       uuid.UUID
	ReferenceType enums.ReferenceType
	ReferenceID   *string
	Notes         string
}

// RemoveStockInput is a withdrawal triggered by one scan. The identifier is
// the scanned string; exactly one unit is withdrawn per call.
type RemoveStockInput struct {
	Identifier    string
	ActorID       uuid.UUID
	ReferenceType enums.ReferenceType
	ReferenceID   *string
	Notes         string
}

// MovementResult reports the committed movement.
type MovementResult struct {
	Product     *models.Product
	NewQuantity int
	Entry       *models.LedgerEntry
}

// HistoryResult is one page of ledger entries, newest first.
type HistoryResult struct {
	Entries    []models.LedgerEntry
	NextCursor string
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	logg     *logger.Logger
	movement *metrics.MovementMetrics
}

// NewService constructs a stock ledger service instance.
func NewService(repo *Repository, dbClient *db.Client, logg *logger.Logger, movement *metrics.MovementMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, dbClient: dbClient, logg: logg, movement: movement}, nil
}

// AddStock receives quantity units into stock. The counter update and the
// ledger append commit in one transaction; on failure neither is visible.
func (s *service) AddStock(ctx context.Context, input AddStockInput) (*MovementResult, error) {
	txType := enums.TransactionTypeStockIn
	if input.Quantity <= 0 {
		s.movement.IncRejected(txType.String(), "validation")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	refType := input.ReferenceType
	if refType == "" {
		refType = enums.ReferenceTypeReceipt
	}
	if !refType.IsValid() {
		s.movement.IncRejected(txType.String(), "validation")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown reference type")
	}

	product, err := s.repo.FindProductByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.movement.IncRejected(txType.String(), "not_found")
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	start := time.Now()
	var entry *models.LedgerEntry
	var newQty int
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.ApplyReceipt(ctx, product.ID, input.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply receipt")
		}
		level, err := repo.GetLevel(ctx, product.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock level")
		}
		newQty = level.QuantityInStock

		entry = &models.LedgerEntry{
			ProductID:      product.ID,
			Type:           txType,
			Quantity:       input.Quantity,
			RunningBalance: newQty,
			ReferenceType:  refType,
			ReferenceID:    input.ReferenceID,
			ActorID:        input.ActorID,
			Notes:          input.Notes,
		}
		return s.appendEntry(ctx, repo, entry)
	})
	if err != nil {
		s.recordFailure(txType, err)
		return nil, err
	}

	s.movement.IncApplied(txType.String())
	s.movement.ObserveDuration(txType.String(), time.Since(start))
	s.logMovement(ctx, product, entry)
	return &MovementResult{Product: product, NewQuantity: newQty, Entry: entry}, nil
}

// RemoveStock withdraws exactly one unit for a scanned identifier. One scan
// is one physical unit; there is no caller-supplied quantity.
func (s *service) RemoveStock(ctx context.Context, input RemoveStockInput) (*MovementResult, error) {
	txType := enums.TransactionTypeStockOut
	code := strings.TrimSpace(input.Identifier)
	if code == "" {
		s.movement.IncRejected(txType.String(), "validation")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "identifier is required")
	}
	refType := input.ReferenceType
	if refType == "" {
		refType = enums.ReferenceTypeSale
	}
	if !refType.IsValid() {
		s.movement.IncRejected(txType.String(), "validation")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown reference type")
	}

	product, err := s.repo.FindProductByIdentifier(ctx, code, scanVariants(code)...)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.movement.IncRejected(txType.String(), "not_found")
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no product matches the scanned identifier")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve identifier")
	}

	start := time.Now()
	var entry *models.LedgerEntry
	var newQty int
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		withdrawn, err := repo.ApplyWithdrawal(ctx, product.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply withdrawal")
		}
		if !withdrawn {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "product has no stock to remove").
				WithDetails(map[string]any{"product_id": product.ID, "identifier": code})
		}
		level, err := repo.GetLevel(ctx, product.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock level")
		}
		newQty = level.QuantityInStock

		entry = &models.LedgerEntry{
			ProductID:      product.ID,
			Type:           txType,
			Quantity:       1,
			RunningBalance: newQty,
			ReferenceType:  refType,
			ReferenceID:    input.ReferenceID,
			ActorID:        input.ActorID,
			Notes:          input.Notes,
		}
		return s.appendEntry(ctx, repo, entry)
	})
	if err != nil {
		s.recordFailure(txType, err)
		return nil, err
	}

	s.movement.IncApplied(txType.String())
	s.movement.ObserveDuration(txType.String(), time.Since(start))
	s.logMovement(ctx, product, entry)
	return &MovementResult{Product: product, NewQuantity: newQty, Entry: entry}, nil
}

// History lists a product's ledger entries, newest first, with an opaque
// cursor for the next page.
func (s *service) History(ctx context.Context, productID uuid.UUID, params pagination.Params) (*HistoryResult, error) {
	if _, err := s.repo.FindProductByID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid history cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	entries, err := s.repo.ListHistory(ctx, productID, limit+1, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger history")
	}

	result := &HistoryResult{Entries: entries}
	if len(entries) > limit {
		result.Entries = entries[:limit]
		last := result.Entries[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return result, nil
}

// appendEntry writes the audit row, translating a sequence collision from a
// concurrent movement into a retryable conflict.
func (s *service) appendEntry(ctx context.Context, repo *Repository, entry *models.LedgerEntry) error {
	if err := repo.AppendEntry(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "") || pkgerrors.IsSerializationFailure(err) {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "concurrent movement, retry")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger entry")
	}
	return nil
}

func (s *service) recordFailure(txType enums.TransactionType, err error) {
	appErr := pkgerrors.As(err)
	if appErr == nil {
		s.movement.IncRejected(txType.String(), "internal")
		return
	}
	switch appErr.Code() {
	case pkgerrors.CodeInsufficientStock:
		s.movement.IncRejected(txType.String(), "insufficient_stock")
	case pkgerrors.CodeConflict:
		s.movement.IncRejected(txType.String(), "conflict")
	default:
		s.movement.IncRejected(txType.String(), "dependency")
	}
}

func (s *service) logMovement(ctx context.Context, product *models.Product, entry *models.LedgerEntry) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithProductID(ctx, product.ID.String())
	ctx = s.logg.WithFields(ctx, map[string]any{
		"transaction_type": entry.Type.String(),
		"quantity":         entry.Quantity,
		"running_balance":  entry.RunningBalance,
	})
	s.logg.Info(ctx, "stock movement applied")
}

// scanVariants returns alternate spellings a scanner may produce for a
// stored identifier, currently just the hyphen-for-underscore substitution.
func scanVariants(code string) []string {
	if !strings.Contains(code, "-") {
		return nil
	}
	return []string{strings.ReplaceAll(code, "-", "_")}
}
