package service

import (
	"context"
	"errors"
	"testing"

	"retailpos/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newInventoryFixture() (*memLedger, *recordingNotifier, InventoryService) {
	ledger := newMemLedger()
	notifier := &recordingNotifier{}
	products, _, movements, _, _, audits := ledger.repos()
	return ledger, notifier, NewInventoryService(products, movements, audits, ledger, notifier, nil)
}

func TestCreateProduct(t *testing.T) {
	ledger, notifier, svc := newInventoryFixture()

	res, err := svc.CreateProduct(context.Background(), cashier, CreateProductRequest{
		SKU:          " NB-A5 ",
		Name:         "Notebook A5",
		CostPrice:    dec("4.5"),
		SellingPrice: dec("9.99"),
		ReorderPoint: 5,
		InitialStock: 12,
	})
	require.NoError(t, err)

	assert.Equal(t, "NB-A5", res.SKU)
	assert.Equal(t, "pcs", res.Unit)
	assert.Equal(t, 12, res.CurrentStock)
	assert.Equal(t, "4.5000", res.CostPrice)
	assert.Equal(t, "9.9900", res.SellingPrice)
	assert.False(t, res.LowStock)

	id := uuid.MustParse(res.ID)
	movements := ledger.movementsFor(id)
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementTypeIn, movements[0].MovementType)
	assert.Equal(t, model.RefTypeAdjustment, movements[0].ReferenceType)
	assert.Equal(t, 12, movements[0].Quantity)
	assert.Equal(t, 12, movements[0].StockAfter)

	require.Len(t, ledger.audits, 1)
	assert.Equal(t, model.ActionCreateProduct, ledger.audits[0].Action)
	assert.Len(t, notifier.events(), 1)
}

func TestCreateProduct_WithoutInitialStockRecordsNoMovement(t *testing.T) {
	ledger, _, svc := newInventoryFixture()

	res, err := svc.CreateProduct(context.Background(), cashier, CreateProductRequest{
		SKU: "PEN-01", Name: "Pen", SellingPrice: dec("1.2"),
	})
	require.NoError(t, err)
	assert.True(t, res.LowStock)
	assert.Empty(t, ledger.movementsFor(uuid.MustParse(res.ID)))
}

func TestCreateProduct_Rejections(t *testing.T) {
	ledger, _, svc := newInventoryFixture()
	existing := ledger.addProduct("Pen", 1, 0)

	tests := []struct {
		name string
		req  CreateProductRequest
		want error
	}{
		{name: "missing sku", req: CreateProductRequest{Name: "X"}, want: ErrValidation},
		{name: "missing name", req: CreateProductRequest{SKU: "X"}, want: ErrValidation},
		{name: "blank sku", req: CreateProductRequest{SKU: "   ", Name: "X"}, want: ErrValidation},
		{name: "price finer than scale", req: CreateProductRequest{SKU: "X", Name: "X", SellingPrice: dec("1.23456")}, want: ErrValidation},
		{name: "negative reorder point", req: CreateProductRequest{SKU: "X", Name: "X", ReorderPoint: -1}, want: ErrValidation},
		{name: "negative price", req: CreateProductRequest{SKU: "X", Name: "X", SellingPrice: dec("-1")}, want: ErrValidation},
		{name: "negative initial stock", req: CreateProductRequest{SKU: "X", Name: "X", InitialStock: -1}, want: ErrValidation},
		{name: "duplicate sku", req: CreateProductRequest{SKU: existing.SKU, Name: "Other"}, want: ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateProduct(context.Background(), cashier, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, ledgerCounts{}, ledger.counts())
}

func TestCreateProduct_ValidationNamesField(t *testing.T) {
	_, _, svc := newInventoryFixture()

	_, err := svc.CreateProduct(context.Background(), cashier, CreateProductRequest{SKU: "X", Name: "X", InitialStock: -1})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "initial_stock", ve.Field)
	assert.Equal(t, "must not be negative", ve.Reason)
	assert.Nil(t, ve.Item)
}

func TestCreateProduct_DuplicateSKUInsertedConcurrently(t *testing.T) {
	ledger, notifier, svc := newInventoryFixture()
	existing := ledger.addProduct("Pen", 1, 0)
	// the lookup misses, as it does when a concurrent create commits between lookup and insert
	ledger.setFailure("product.find_sku", gorm.ErrRecordNotFound)

	_, err := svc.CreateProduct(context.Background(), cashier, CreateProductRequest{SKU: existing.SKU, Name: "Other", InitialStock: 4})

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.NotErrorIs(t, err, ErrPersistence)
	assert.Equal(t, ledgerCounts{}, ledger.counts())
	assert.Empty(t, notifier.events())
}

func TestCreateProduct_RollsBackOnAuditFailure(t *testing.T) {
	ledger, notifier, svc := newInventoryFixture()
	ledger.setFailure("audit.log", errors.New("connection refused"))

	_, err := svc.CreateProduct(context.Background(), cashier, CreateProductRequest{
		SKU: "PEN-01", Name: "Pen", InitialStock: 3,
	})
	assert.ErrorIs(t, err, ErrPersistence)

	_, err = memProducts{ledger}.FindBySKU(context.Background(), "PEN-01")
	assert.Error(t, err)
	assert.Equal(t, ledgerCounts{}, ledger.counts())
	assert.Empty(t, notifier.events())
}

func TestGetProduct(t *testing.T) {
	ledger, _, svc := newInventoryFixture()
	p := ledger.addProduct("Stapler", 2, 2)

	res, err := svc.GetProduct(context.Background(), p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Stapler", res.Name)
	assert.True(t, res.LowStock)

	_, err = svc.GetProduct(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetProduct(context.Background(), "42")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAdjustStock(t *testing.T) {
	ledger, notifier, svc := newInventoryFixture()
	p := ledger.addProduct("Stapler", 5, 2)

	res, err := svc.AdjustStock(context.Background(), cashier, p.ID.String(), AdjustStockRequest{Delta: -4, Note: "damaged"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.CurrentStock)
	assert.True(t, res.LowStock)

	res, err = svc.AdjustStock(context.Background(), cashier, p.ID.String(), AdjustStockRequest{Delta: 10, Note: "recount"})
	require.NoError(t, err)
	assert.Equal(t, 11, res.CurrentStock)

	movements := ledger.movementsFor(p.ID)
	require.Len(t, movements, 2)
	assert.Equal(t, model.MovementTypeAdjustment, movements[0].MovementType)
	assert.Equal(t, -4, movements[0].Quantity)
	assert.Equal(t, 1, movements[0].StockAfter)
	assert.Equal(t, "damaged", movements[0].Note)
	assert.Equal(t, 10, movements[1].Quantity)
	assert.Equal(t, 11, movements[1].StockAfter)

	assert.Len(t, notifier.events(), 2)
	assert.Equal(t, 11, ledger.stockOf(p.ID))
}

func TestAdjustStock_Rejections(t *testing.T) {
	ledger, _, svc := newInventoryFixture()
	p := ledger.addProduct("Stapler", 3, 0)

	_, err := svc.AdjustStock(context.Background(), cashier, p.ID.String(), AdjustStockRequest{Delta: -4})
	var ise *InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 3, ise.Available)
	assert.Equal(t, 4, ise.Requested)

	_, err = svc.AdjustStock(context.Background(), cashier, p.ID.String(), AdjustStockRequest{Delta: 0})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.AdjustStock(context.Background(), cashier, uuid.NewString(), AdjustStockRequest{Delta: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 3, ledger.stockOf(p.ID))
	assert.Empty(t, ledger.movementsFor(p.ID))
}
