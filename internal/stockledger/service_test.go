package stockledger

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stocktrace/stocktrace-backend/pkg/db"
	"github.com/stocktrace/stocktrace-backend/pkg/db/models"
	"github.com/stocktrace/stocktrace-backend/pkg/enums"
	pkgerrors "github.com/stocktrace/stocktrace-backend/pkg/errors"
	"github.com/stocktrace/stocktrace-backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:stockledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db handle: %v", err)
	}
	// one connection serializes transactions the way row locks do in Postgres
	sqlDB.SetMaxOpenConns(1)
	if err := conn.AutoMigrate(&models.Product{}, &models.StockLevel{}, &models.LedgerEntry{}); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(conn), db.FromGorm(conn), nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, conn *gorm.DB, seq int64, barcodeID string) models.Product {
	t.Helper()
	product := models.Product{
		ID:   uuid.New(),
		Seq:  seq,
		Name: "Widget",
		SKU:  uuid.NewString(),
	}
	if barcodeID != "" {
		product.BarcodeID = &barcodeID
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func loadLevel(t *testing.T, conn *gorm.DB, productID uuid.UUID) models.StockLevel {
	t.Helper()
	var level models.StockLevel
	if err := conn.First(&level, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load stock level: %v", err)
	}
	return level
}

func countEntries(t *testing.T, conn *gorm.DB, productID uuid.UUID) int64 {
	t.Helper()
	var count int64
	if err := conn.Model(&models.LedgerEntry{}).Where("product_id = ?", productID).Count(&count).Error; err != nil {
		t.Fatalf("count entries: %v", err)
	}
	return count
}

func TestAddStock_FirstMovementCreatesRowAndEntry(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	product := seedProduct(t, conn, 1, "PROD_000001")

	result, err := svc.AddStock(ctx, AddStockInput{
		ProductID: product.ID,
		Quantity:  10,
		ActorID:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("add stock: %v", err)
	}
	if result.NewQuantity != 10 {
		t.Fatalf("expected quantity 10, got %d", result.NewQuantity)
	}

	level := loadLevel(t, conn, product.ID)
	if level.QuantityInStock != 10 || level.TotalReceived != 10 || level.TotalSold != 0 {
		t.Fatalf("unexpected level %+v", level)
	}
	if got := countEntries(t, conn, product.ID); got != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", got)
	}
	if result.Entry.Type != enums.TransactionTypeStockIn || result.Entry.RunningBalance != 10 {
		t.Fatalf("unexpected entry %+v", result.Entry)
	}
	if result.Entry.ReferenceType != enums.ReferenceTypeReceipt {
		t.Fatalf("receipt should be the default reference type, got %s", result.Entry.ReferenceType)
	}
}

func TestAddStock_RejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	product := seedProduct(t, conn, 2, "")

	for _, qty := range []int{0, -5} {
		_, err := svc.AddStock(ctx, AddStockInput{ProductID: product.ID, Quantity: qty, ActorID: uuid.New()})
		appErr := pkgerrors.As(err)
		if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
			t.Fatalf("quantity %d: expected validation error, got %v", qty, err)
		}
	}

	if got := countEntries(t, conn, product.ID); got != 0 {
		t.Fatalf("rejected movements must not write entries, got %d", got)
	}
	var levels int64
	if err := conn.Model(&models.StockLevel{}).Where("product_id = ?", product.ID).Count(&levels).Error; err != nil {
		t.Fatalf("count levels: %v", err)
	}
	if levels != 0 {
		t.Fatal("rejected movements must not create a stock row")
	}
}

func TestAddStock_UnknownProduct(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)

	_, err := svc.AddStock(context.Background(), AddStockInput{ProductID: uuid.New(), Quantity: 1, ActorID: uuid.New()})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemoveStock_OneUnitPerScan(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	product := seedProduct(t, conn, 3, "PROD_000003")

	if _, err := svc.AddStock(ctx, AddStockInput{ProductID: product.ID, Quantity: 10, ActorID: uuid.New()}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	result, err := svc.RemoveStock(ctx, RemoveStockInput{Identifier: "PROD_000003", ActorID: uuid.New()})
	if err != nil {
		t.Fatalf("remove stock: %v", err)
	}
	if result.NewQuantity != 9 {
		t.Fatalf("expected quantity 9, got %d", result.NewQuantity)
	}
	if result.Product.ID != product.ID {
		t.Fatal("resolved wrong product")
	}
	if result.Entry.Type != enums.TransactionTypeStockOut || result.Entry.Quantity != 1 || result.Entry.RunningBalance != 9 {
		t.Fatalf("unexpected entry %+v", result.Entry)
	}

	level := loadLevel(t, conn, product.ID)
	if level.QuantityInStock != 9 || level.TotalReceived != 10 || level.TotalSold != 1 {
		t.Fatalf("unexpected level %+v", level)
	}
	if got := countEntries(t, conn, product.ID); got != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", got)
	}
}

func TestRemoveStock_ScannedHyphenResolvesStoredUnderscore(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	product := seedProduct(t, conn, 42, "PROD_000042")

	if _, err := svc.AddStock(ctx, AddStockInput{ProductID: product.ID, Quantity: 1, ActorID: uuid.New()}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	result, err := svc.RemoveStock(ctx, RemoveStockInput{Identifier: "PROD-000042", ActorID: uuid.New()})
	if err != nil {
		t.Fatalf("remove stock via scanned spelling: %v", err)
	}
	if result.Product.ID != product.ID {
		t.Fatal("hyphen spelling resolved wrong product")
	}
}

func TestRemoveStock_InsufficientStockLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	product := seedProduct(t, conn, 4, "PROD_000004")

	if _, err := svc.AddStock(ctx, AddStockInput{ProductID: product.ID, Quantity: 1, ActorID: uuid.New()}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	if _, err := svc.RemoveStock(ctx, RemoveStockInput{Identifier: "PROD_000004", ActorID: uuid.New()}); err != nil {
		t.Fatalf("drain stock: %v", err)
	}

	_, err := svc.RemoveStock(ctx, RemoveStockInput{Identifier: "PROD_000004", ActorID: uuid.New()})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	level := loadLevel(t, conn, product.ID)
	if level.QuantityInStock != 0 || level.TotalReceived != 1 || level.TotalSold != 1 {
		t.Fatalf("counters changed on rejected withdrawal: %+v", level)
	}
	if got := countEntries(t, conn, product.ID); got != 2 {
		t.Fatalf("rejected withdrawal must not append, got %d entries", got)
	}
}

func TestRemoveStock_UnknownIdentifier(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)

	_, err := svc.RemoveStock(context.Background(), RemoveStockInput{Identifier: "NOPE-123", ActorID: uuid.New()})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLedgerInvariantAcrossMixedMovements(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	product := seedProduct(t, conn, 5, "PROD_000005")
	actor := uuid.New()

	steps := []struct {
		add int // 0 means remove one
	}{
		{add: 4}, {add: 0}, {add: 0}, {add: 7}, {add: 0}, {add: 1}, {add: 0}, {add: 0},
	}
	for i, step := range steps {
		if step.add > 0 {
			if _, err := svc.AddStock(ctx, AddStockInput{ProductID: product.ID, Quantity: step.add, ActorID: actor}); err != nil {
				t.Fatalf("step %d add: %v", i, err)
			}
		} else {
			if _, err := svc.RemoveStock(ctx, RemoveStockInput{Identifier: "PROD_000005", ActorID: actor}); err != nil {
				t.Fatalf("step %d remove: %v", i, err)
			}
		}

		level := loadLevel(t, conn, product.ID)
		if level.QuantityInStock != level.TotalReceived-level.TotalSold {
			t.Fatalf("step %d broke the invariant: %+v", i, level)
		}
	}

	// running balances must replay to the final counter
	var entries []models.LedgerEntry
	if err := conn.Where("product_id = ?", product.ID).Order("seq ASC").Find(&entries).Error; err != nil {
		t.Fatalf("load entries: %v", err)
	}
	balance := 0
	for _, entry := range entries {
		switch entry.Type {
		case enums.TransactionTypeStockIn:
			balance += entry.Quantity
		case enums.TransactionTypeStockOut:
			balance -= entry.Quantity
		}
		if entry.RunningBalance != balance {
			t.Fatalf("entry seq %d has balance %d, replay says %d", entry.Seq, entry.RunningBalance, balance)
		}
	}
	level := loadLevel(t, conn, product.ID)
	if balance != level.QuantityInStock {
		t.Fatalf("replayed balance %d != stored quantity %d", balance, level.QuantityInStock)
	}
}

func TestConcurrentReceiptsAllLand(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	product := seedProduct(t, conn, 6, "PROD_000006")
	actor := uuid.New()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddStock(ctx, AddStockInput{ProductID: product.ID, Quantity: 1, ActorID: actor})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	applied := 0
	for err := range errs {
		if err == nil {
			applied++
			continue
		}
		// a sequence collision is the one acceptable failure, and it must
		// leave no partial state behind
		appErr := pkgerrors.As(err)
		if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
			t.Fatalf("unexpected concurrent failure: %v", err)
		}
	}
	if applied == 0 {
		t.Fatal("no receipt landed")
	}

	level := loadLevel(t, conn, product.ID)
	if level.QuantityInStock != applied || level.TotalReceived != applied {
		t.Fatalf("expected %d applied units, level %+v", applied, level)
	}
	if got := countEntries(t, conn, product.ID); got != int64(applied) {
		t.Fatalf("expected %d entries, got %d", applied, got)
	}
}

func TestHistory_NewestFirstAndPaged(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	product := seedProduct(t, conn, 8, "PROD_000008")
	actor := uuid.New()

	for i := 0; i < 5; i++ {
		if _, err := svc.AddStock(ctx, AddStockInput{ProductID: product.ID, Quantity: i + 1, ActorID: actor}); err != nil {
			t.Fatalf("seed movement %d: %v", i, err)
		}
	}

	page, err := svc.History(ctx, product.ID, pagination.Params{Limit: 3})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(page.Entries))
	}
	if page.NextCursor == "" {
		t.Fatal("expected a next cursor")
	}
	for i := 1; i < len(page.Entries); i++ {
		if page.Entries[i-1].Seq <= page.Entries[i].Seq {
			t.Fatal("entries are not newest first")
		}
	}

	rest, err := svc.History(ctx, product.ID, pagination.Params{Limit: 3, Cursor: page.NextCursor})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(rest.Entries) != 2 {
		t.Fatalf("expected 2 remaining entries, got %d", len(rest.Entries))
	}
	if rest.NextCursor != "" {
		t.Fatal("last page should have no cursor")
	}
	if rest.Entries[0].Seq != 2 || rest.Entries[1].Seq != 1 {
		t.Fatalf("unexpected page boundary: seqs %d, %d", rest.Entries[0].Seq, rest.Entries[1].Seq)
	}
}

func TestHistory_UnknownProductAndLimitClamp(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	_, err := svc.History(ctx, uuid.New(), pagination.Params{})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	product := seedProduct(t, conn, 9, "PROD_000009")
	page, err := svc.History(ctx, product.ID, pagination.Params{Limit: 100000})
	if err != nil {
		t.Fatalf("history with huge limit: %v", err)
	}
	if len(page.Entries) != 0 || page.NextCursor != "" {
		t.Fatalf("expected empty history, got %+v", page)
	}
}
