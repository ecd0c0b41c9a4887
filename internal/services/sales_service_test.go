package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/apperrors"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/models"
)

func seedSaleFixture(t *testing.T, f *fixture) (storeID, employeeID, p1, p2 uuid.UUID, inv1, inv2 *models.Inventory) {
	t.Helper()
	storeID, employeeID = uuid.New(), uuid.New()
	p1, p2 = uuid.New(), uuid.New()
	f.staff.storeOf[employeeID.String()] = storeID.String()

	price1, price2 := 10.0, 25.0
	inv1 = f.seedInventory(t, p1, storeID, 20, &price1)
	inv2 = f.seedInventory(t, p2, storeID, 8, &price2)
	return
}

func TestCreateSaleDecrementsEveryLineAtomically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storeID, employeeID, p1, p2, inv1, inv2 := seedSaleFixture(t, f)

	sale, err := f.sales.CreateSale(ctx, testTenant, models.CreateSaleRequest{
		StoreID:       storeID,
		EmployeeID:    employeeID,
		PaymentMethod: "CASH",
		Items: []models.CreateSaleItemRequest{
			{ProductID: p1, Quantity: 3, UnitPrice: priceOf(10.0)},
			{ProductID: p2, Quantity: 2, UnitPrice: priceOf(25.0)},
		},
	}, "cashier-1")
	require.NoError(t, err)

	assert.Equal(t, 80.0, sale.Subtotal)
	assert.Equal(t, 6.4, sale.Tax)
	assert.Equal(t, 86.4, sale.Total)
	require.Len(t, sale.Items, 2)

	assert.Equal(t, 17, f.reload(t, inv1.ID).Quantity)
	assert.Equal(t, 6, f.reload(t, inv2.ID).Quantity)

	history := f.historyFor(t, inv1.ID)
	require.Len(t, history, 2)
	assert.Equal(t, models.ChangeTypeSale, history[1].ChangeType)
	require.NotNil(t, history[1].ReferenceID)
	assert.Equal(t, sale.ID, *history[1].ReferenceID)
}

func TestCreateSaleShortLineRollsBackWholeSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storeID, employeeID, p1, p2, inv1, inv2 := seedSaleFixture(t, f)

	_, err := f.sales.CreateSale(ctx, testTenant, models.CreateSaleRequest{
		StoreID:       storeID,
		EmployeeID:    employeeID,
		PaymentMethod: "CASH",
		Items: []models.CreateSaleItemRequest{
			{ProductID: p1, Quantity: 3, UnitPrice: priceOf(10.0)},
			{ProductID: p2, Quantity: 9, UnitPrice: priceOf(25.0)}, // only 8 in stock
		},
	}, "cashier-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInsufficientInventory, apperrors.KindOf(err))

	// No partial decrement, no sale row
	assert.Equal(t, 20, f.reload(t, inv1.ID).Quantity)
	assert.Equal(t, 8, f.reload(t, inv2.ID).Quantity)
	var count int64
	f.db.Model(&models.Sale{}).Count(&count)
	assert.Zero(t, count)
}

func TestCreateSaleFallsBackToStorePrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storeID, employeeID, p1, _, _, _ := seedSaleFixture(t, f)

	sale, err := f.sales.CreateSale(ctx, testTenant, models.CreateSaleRequest{
		StoreID:       storeID,
		EmployeeID:    employeeID,
		PaymentMethod: "CARD",
		Items: []models.CreateSaleItemRequest{
			{ProductID: p1, Quantity: 2}, // no unit price in request
		},
	}, "cashier-1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, sale.Items[0].UnitPrice)
	assert.Equal(t, 20.0, sale.Subtotal)
}

func TestCreateSaleHonorsExplicitZeroPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storeID, employeeID, p1, _, inv1, _ := seedSaleFixture(t, f)

	// Giveaway line: free even though the store price is 10
	sale, err := f.sales.CreateSale(ctx, testTenant, models.CreateSaleRequest{
		StoreID:       storeID,
		EmployeeID:    employeeID,
		PaymentMethod: "CASH",
		Items: []models.CreateSaleItemRequest{
			{ProductID: p1, Quantity: 2, UnitPrice: priceOf(0)},
		},
	}, "cashier-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, sale.Items[0].UnitPrice)
	assert.Equal(t, 0.0, sale.Total)
	assert.Equal(t, 18, f.reload(t, inv1.ID).Quantity)
}

func TestCreateSaleRejectsMissingPriceWhenStoreHasNone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storeID, employeeID := uuid.New(), uuid.New()
	f.staff.storeOf[employeeID.String()] = storeID.String()
	productID := uuid.New()
	f.seedInventory(t, productID, storeID, 5, nil)

	_, err := f.sales.CreateSale(ctx, testTenant, models.CreateSaleRequest{
		StoreID:       storeID,
		EmployeeID:    employeeID,
		PaymentMethod: "CASH",
		Items:         []models.CreateSaleItemRequest{{ProductID: productID, Quantity: 1}},
	}, "cashier-1")
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
}

func TestCreateSaleValidatesEmployee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storeID, employeeID, p1, _, _, _ := seedSaleFixture(t, f)

	req := models.CreateSaleRequest{
		StoreID:       storeID,
		EmployeeID:    employeeID,
		PaymentMethod: "CASH",
		Items:         []models.CreateSaleItemRequest{{ProductID: p1, Quantity: 1, UnitPrice: priceOf(10.0)}},
	}

	f.staff.inactive[employeeID.String()] = true
	_, err := f.sales.CreateSale(ctx, testTenant, req, "cashier-1")
	assert.Equal(t, apperrors.KindPolicyViolation, apperrors.KindOf(err))

	f.staff.inactive[employeeID.String()] = false
	f.staff.storeOf[employeeID.String()] = uuid.NewString() // other store
	_, err = f.sales.CreateSale(ctx, testTenant, req, "cashier-1")
	assert.Equal(t, apperrors.KindPolicyViolation, apperrors.KindOf(err))

	f.staff.missing[employeeID.String()] = true
	_, err = f.sales.CreateSale(ctx, testTenant, req, "cashier-1")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func createSale(t *testing.T, f *fixture, storeID, employeeID, p1, p2 uuid.UUID) *models.Sale {
	t.Helper()
	sale, err := f.sales.CreateSale(context.Background(), testTenant, models.CreateSaleRequest{
		StoreID:       storeID,
		EmployeeID:    employeeID,
		PaymentMethod: "CASH",
		Items: []models.CreateSaleItemRequest{
			{ProductID: p1, Quantity: 3, UnitPrice: priceOf(10.0)},
			{ProductID: p2, Quantity: 2, UnitPrice: priceOf(25.0)},
		},
	}, "cashier-1")
	require.NoError(t, err)
	return sale
}

// ========== Void ==========

func TestVoidSaleRestocksEveryLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storeID, employeeID, p1, p2, inv1, inv2 := seedSaleFixture(t, f)
	sale := createSale(t, f, storeID, employeeID, p1, p2)

	voided, err := f.sales.VoidSale(ctx, testTenant, sale.ID, "customer changed mind", "manager-1")
	require.NoError(t, err)
	require.NotNil(t, voided.Voided)
	assert.Equal(t, sale.Total, voided.Voided.OriginalTotal)

	assert.Equal(t, 20, f.reload(t, inv1.ID).Quantity)
	assert.Equal(t, 8, f.reload(t, inv2.ID).Quantity)

	history := f.historyFor(t, inv1.ID)
	require.Len(t, history, 3)
	assert.Equal(t, models.ChangeTypeReturn, history[2].ChangeType)
	require.NotNil(t, history[2].ReferenceType)
	assert.Equal(t, models.ReferenceTypeSaleVoid, *history[2].ReferenceType)
}

func TestVoidSaleTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storeID, employeeID, p1, p2, _, _ := seedSaleFixture(t, f)
	sale := createSale(t, f, storeID, employeeID, p1, p2)

	_, err := f.sales.VoidSale(ctx, testTenant, sale.ID, "first", "manager-1")
	require.NoError(t, err)

	_, err = f.sales.VoidSale(ctx, testTenant, sale.ID, "second", "manager-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindAlreadyVoided, apperrors.KindOf(err))
}

func TestVoidSaleOutsideWindowIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storeID, employeeID, p1, p2, _, _ := seedSaleFixture(t, f)
	sale := createSale(t, f, storeID, employeeID, p1, p2)

	// Age the sale past the window
	require.NoError(t, f.db.Model(&models.Sale{}).
		Where("id = ?", sale.ID).
		Update("created_at", time.Now().Add(-31*24*time.Hour)).Error)

	_, err := f.sales.VoidSale(ctx, testTenant, sale.ID, "too late", "manager-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindPolicyViolation, apperrors.KindOf(err))
}

func TestVoidSaleRequiresReason(t *testing.T) {
	f := newFixture(t)
	storeID, employeeID, p1, p2, _, _ := seedSaleFixture(t, f)
	sale := createSale(t, f, storeID, employeeID, p1, p2)

	_, err := f.sales.VoidSale(context.Background(), testTenant, sale.ID, "", "manager-1")
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
}

// ========== Returns ==========

func TestProcessReturnCreatesLinkedRefundSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storeID, employeeID, p1, p2, inv1, _ := seedSaleFixture(t, f)
	sale := createSale(t, f, storeID, employeeID, p1, p2)

	var p1Item models.SaleItem
	for _, item := range sale.Items {
		if item.ProductID == p1 {
			p1Item = item
		}
	}

	refund, err := f.sales.ProcessReturn(ctx, testTenant, sale.ID, models.ProcessReturnRequest{
		Items: []models.ReturnItemRequest{
			{SaleItemID: p1Item.ID, Quantity: 2},
		},
	}, "manager-1")
	require.NoError(t, err)

	require.NotNil(t, refund.ReferenceID)
	assert.Equal(t, sale.ID, *refund.ReferenceID)
	assert.Equal(t, -20.0, refund.Subtotal)
	assert.Equal(t, 0.0, refund.Tax)
	assert.Equal(t, -20.0, refund.Total)
	require.Len(t, refund.Items, 1)
	assert.Equal(t, -2, refund.Items[0].Quantity)

	// Stock came back, original sale untouched
	assert.Equal(t, 19, f.reload(t, inv1.ID).Quantity)
	original, err := f.sales.GetSale(ctx, testTenant, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.Total, original.Total)
	require.Len(t, original.Items, 2)
}

func TestProcessReturnCapsAtRemainingQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storeID, employeeID, p1, p2, _, _ := seedSaleFixture(t, f)
	sale := createSale(t, f, storeID, employeeID, p1, p2)

	var p1Item models.SaleItem
	for _, item := range sale.Items {
		if item.ProductID == p1 {
			p1Item = item
		}
	}

	// Return 2 of 3
	_, err := f.sales.ProcessReturn(ctx, testTenant, sale.ID, models.ProcessReturnRequest{
		Items: []models.ReturnItemRequest{{SaleItemID: p1Item.ID, Quantity: 2}},
	}, "manager-1")
	require.NoError(t, err)

	// Only 1 remains returnable
	_, err = f.sales.ProcessReturn(ctx, testTenant, sale.ID, models.ProcessReturnRequest{
		Items: []models.ReturnItemRequest{{SaleItemID: p1Item.ID, Quantity: 2}},
	}, "manager-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindPolicyViolation, apperrors.KindOf(err))

	_, err = f.sales.ProcessReturn(ctx, testTenant, sale.ID, models.ProcessReturnRequest{
		Items: []models.ReturnItemRequest{{SaleItemID: p1Item.ID, Quantity: 1}},
	}, "manager-1")
	require.NoError(t, err)
}

func TestProcessReturnHonorsRefundOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storeID, employeeID, p1, p2, _, _ := seedSaleFixture(t, f)
	sale := createSale(t, f, storeID, employeeID, p1, p2)

	var p1Item models.SaleItem
	for _, item := range sale.Items {
		if item.ProductID == p1 {
			p1Item = item
		}
	}

	// Damaged item refunded below the price paid
	override := 12.0
	refund, err := f.sales.ProcessReturn(ctx, testTenant, sale.ID, models.ProcessReturnRequest{
		Items: []models.ReturnItemRequest{{SaleItemID: p1Item.ID, Quantity: 2, RefundAmount: &override}},
	}, "manager-1")
	require.NoError(t, err)
	assert.Equal(t, -12.0, refund.Subtotal)

	// Override above the price paid is rejected
	tooMuch := 50.0
	_, err = f.sales.ProcessReturn(ctx, testTenant, sale.ID, models.ProcessReturnRequest{
		Items: []models.ReturnItemRequest{{SaleItemID: p1Item.ID, Quantity: 1, RefundAmount: &tooMuch}},
	}, "manager-1")
	assert.Equal(t, apperrors.KindPolicyViolation, apperrors.KindOf(err))
}

func TestProcessReturnRejectsVoidedSaleAndForeignItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storeID, employeeID, p1, p2, _, _ := seedSaleFixture(t, f)
	sale := createSale(t, f, storeID, employeeID, p1, p2)

	// Foreign sale item ID
	_, err := f.sales.ProcessReturn(ctx, testTenant, sale.ID, models.ProcessReturnRequest{
		Items: []models.ReturnItemRequest{{SaleItemID: uuid.New(), Quantity: 1}},
	}, "manager-1")
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))

	// Voided sales have nothing left to return
	_, err = f.sales.VoidSale(ctx, testTenant, sale.ID, "voided", "manager-1")
	require.NoError(t, err)
	_, err = f.sales.ProcessReturn(ctx, testTenant, sale.ID, models.ProcessReturnRequest{
		Items: []models.ReturnItemRequest{{SaleItemID: sale.Items[0].ID, Quantity: 1}},
	}, "manager-1")
	assert.Equal(t, apperrors.KindPolicyViolation, apperrors.KindOf(err))
}

func TestVoidRefundSaleIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storeID, employeeID, p1, p2, _, _ := seedSaleFixture(t, f)
	sale := createSale(t, f, storeID, employeeID, p1, p2)

	refund, err := f.sales.ProcessReturn(ctx, testTenant, sale.ID, models.ProcessReturnRequest{
		Items: []models.ReturnItemRequest{{SaleItemID: sale.Items[0].ID, Quantity: 1}},
	}, "manager-1")
	require.NoError(t, err)

	_, err = f.sales.VoidSale(ctx, testTenant, refund.ID, "nope", "manager-1")
	assert.Equal(t, apperrors.KindPolicyViolation, apperrors.KindOf(err))
}

func TestProcessReturnCapsPerLineNotPerProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storeID, employeeID, p1, _, inv1, _ := seedSaleFixture(t, f)

	// Two lines of the same product on one receipt
	sale, err := f.sales.CreateSale(ctx, testTenant, models.CreateSaleRequest{
		StoreID:       storeID,
		EmployeeID:    employeeID,
		PaymentMethod: "CASH",
		Items: []models.CreateSaleItemRequest{
			{ProductID: p1, Quantity: 3, UnitPrice: priceOf(10.0)},
			{ProductID: p1, Quantity: 2, UnitPrice: priceOf(10.0)},
		},
	}, "cashier-1")
	require.NoError(t, err)
	require.Len(t, sale.Items, 2)
	assert.Equal(t, 15, f.reload(t, inv1.ID).Quantity)

	// Both lines come back at their full original quantities
	refund, err := f.sales.ProcessReturn(ctx, testTenant, sale.ID, models.ProcessReturnRequest{
		Items: []models.ReturnItemRequest{
			{SaleItemID: sale.Items[0].ID, Quantity: sale.Items[0].Quantity},
			{SaleItemID: sale.Items[1].ID, Quantity: sale.Items[1].Quantity},
		},
	}, "manager-1")
	require.NoError(t, err)
	assert.Equal(t, -50.0, refund.Subtotal)
	assert.Equal(t, 20, f.reload(t, inv1.ID).Quantity)

	// Seed purchase, one SALE row per line, one RETURN row per line
	history := f.historyFor(t, inv1.ID)
	assert.Len(t, history, 5)

	// Each line is exhausted on its own ledger
	_, err = f.sales.ProcessReturn(ctx, testTenant, sale.ID, models.ProcessReturnRequest{
		Items: []models.ReturnItemRequest{{SaleItemID: sale.Items[0].ID, Quantity: 1}},
	}, "manager-1")
	assert.Equal(t, apperrors.KindPolicyViolation, apperrors.KindOf(err))
}

func TestConcurrentReturnsCannotExceedSoldQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storeID, employeeID, p1, _, inv1, _ := seedSaleFixture(t, f)

	sale, err := f.sales.CreateSale(ctx, testTenant, models.CreateSaleRequest{
		StoreID:       storeID,
		EmployeeID:    employeeID,
		PaymentMethod: "CASH",
		Items:         []models.CreateSaleItemRequest{{ProductID: p1, Quantity: 3, UnitPrice: priceOf(10.0)}},
	}, "cashier-1")
	require.NoError(t, err)
	item := sale.Items[0]

	// Two overlapping returns of 2 against a line of 3: the cap check
	// runs under the sale row lock, so exactly one commits.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.sales.ProcessReturn(ctx, testTenant, sale.ID, models.ProcessReturnRequest{
				Items: []models.ReturnItemRequest{{SaleItemID: item.ID, Quantity: 2}},
			}, "manager-1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	failures := 0
	for err := range errs {
		if err != nil {
			failures++
			assert.Equal(t, apperrors.KindPolicyViolation, apperrors.KindOf(err))
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 19, f.reload(t, inv1.ID).Quantity)
}
