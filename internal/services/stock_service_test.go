package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/apperrors"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/models"
)

func TestAllocateCreatesRowWithInitialLedgerEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID, storeID := uuid.New(), uuid.New()

	inv, err := f.stock.Allocate(ctx, testTenant, productID, storeID, 50, "user-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 50, inv.Quantity)

	history := f.historyFor(t, inv.ID)
	require.Len(t, history, 1)
	assert.Equal(t, models.ChangeTypePurchase, history[0].ChangeType)
	assert.Equal(t, 0, history[0].PreviousQuantity)
	assert.Equal(t, 50, history[0].NewQuantity)
	require.NotNil(t, history[0].ReferenceType)
	assert.Equal(t, models.ReferenceTypeInitialAllocation, *history[0].ReferenceType)
}

func TestAllocateTopsUpExistingRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID, storeID := uuid.New(), uuid.New()

	first, err := f.stock.Allocate(ctx, testTenant, productID, storeID, 10, "user-1", nil)
	require.NoError(t, err)

	second, err := f.stock.Allocate(ctx, testTenant, productID, storeID, 15, "user-1", nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 25, second.Quantity)

	history := f.historyFor(t, first.ID)
	require.Len(t, history, 2)
	assert.Nil(t, history[1].ReferenceType)
}

func TestAllocateRejectsNegativeQuantity(t *testing.T) {
	f := newFixture(t)

	_, err := f.stock.Allocate(context.Background(), testTenant, uuid.New(), uuid.New(), -1, "user-1", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
}

func TestAllocateUnknownProduct(t *testing.T) {
	f := newFixture(t)
	productID := uuid.New()
	f.products.missing[productID.String()] = true

	_, err := f.stock.Allocate(context.Background(), testTenant, productID, uuid.New(), 5, "user-1", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestAdjustNeverDrivesQuantityNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.seedInventory(t, uuid.New(), uuid.New(), 3, nil)

	_, err := f.stock.Adjust(ctx, testTenant, inv.ID, -5, models.ChangeTypeSale, "user-1", nil, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInsufficientInventory, apperrors.KindOf(err))

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 3, appErr.Available)
	assert.Equal(t, 5, appErr.Requested)

	// Failed adjustment leaves no ledger row
	assert.Len(t, f.historyFor(t, inv.ID), 1)
	assert.Equal(t, 3, f.reload(t, inv.ID).Quantity)
}

func TestAdjustToExactlyZero(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInventory(t, uuid.New(), uuid.New(), 5, nil)

	updated, err := f.stock.Adjust(context.Background(), testTenant, inv.ID, -5, models.ChangeTypeDamage, "user-1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Quantity)
}

func TestAdjustWritesBracketedLedgerRow(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInventory(t, uuid.New(), uuid.New(), 10, nil)

	_, err := f.stock.Adjust(context.Background(), testTenant, inv.ID, -4, models.ChangeTypeSale, "user-1", nil, nil)
	require.NoError(t, err)

	history := f.historyFor(t, inv.ID)
	require.Len(t, history, 2)
	row := history[1]
	assert.Equal(t, -4, row.QuantityChange)
	assert.Equal(t, 10, row.PreviousQuantity)
	assert.Equal(t, 6, row.NewQuantity)
	assert.Equal(t, "user-1", row.CreatedBy)
}

func TestAdjustRejectsZeroDeltaAndUnknownChangeType(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInventory(t, uuid.New(), uuid.New(), 10, nil)

	_, err := f.stock.Adjust(context.Background(), testTenant, inv.ID, 0, models.ChangeTypeSale, "user-1", nil, nil)
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))

	_, err = f.stock.Adjust(context.Background(), testTenant, inv.ID, 1, models.ChangeType("BOGUS"), "user-1", nil, nil)
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
}

func TestAdjustMissingInventory(t *testing.T) {
	f := newFixture(t)

	_, err := f.stock.Adjust(context.Background(), testTenant, uuid.New(), -1, models.ChangeTypeSale, "user-1", nil, nil)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestAdjustIsTenantScoped(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInventory(t, uuid.New(), uuid.New(), 10, nil)

	_, err := f.stock.Adjust(context.Background(), "other-tenant", inv.ID, -1, models.ChangeTypeSale, "user-1", nil, nil)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.Equal(t, 10, f.reload(t, inv.ID).Quantity)
}

func TestBulkReceiveIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storeID := uuid.New()
	p1, p2 := uuid.New(), uuid.New()

	entries := []models.BulkReceiveEntry{
		{ProductID: p1, StoreID: storeID, Quantity: 10},
		{ProductID: p2, StoreID: storeID, Quantity: -3},
	}
	_, err := f.stock.BulkReceive(ctx, testTenant, entries, uuid.New(), "user-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))

	// Nothing applied
	var count int64
	f.db.Model(&models.Inventory{}).Count(&count)
	assert.Zero(t, count)
}

func TestBulkReceiveAppliesAllEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storeID := uuid.New()
	p1, p2 := uuid.New(), uuid.New()
	shipmentID := uuid.New()

	price := 9.99
	rows, err := f.stock.BulkReceive(ctx, testTenant, []models.BulkReceiveEntry{
		{ProductID: p1, StoreID: storeID, Quantity: 10, StorePrice: &price},
		{ProductID: p2, StoreID: storeID, Quantity: 4},
	}, shipmentID, "user-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	for _, row := range rows {
		history := f.historyFor(t, row.ID)
		require.Len(t, history, 1)
		require.NotNil(t, history[0].ReferenceID)
		assert.Equal(t, shipmentID, *history[0].ReferenceID)
		require.NotNil(t, history[0].ReferenceType)
		assert.Equal(t, models.ReferenceTypeShipment, *history[0].ReferenceType)
	}
}

func TestSetReorderLevelsValidation(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInventory(t, uuid.New(), uuid.New(), 10, nil)

	_, err := f.stock.SetReorderLevels(context.Background(), testTenant, inv.ID, 10, 5)
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))

	updated, err := f.stock.SetReorderLevels(context.Background(), testTenant, inv.ID, 5, 20)
	require.NoError(t, err)
	require.NotNil(t, updated.ReorderLevel)
	assert.Equal(t, 5, *updated.ReorderLevel)
	require.NotNil(t, updated.OptimalLevel)
	assert.Equal(t, 20, *updated.OptimalLevel)
}

func TestRestockReportListsRowsAtOrBelowReorderLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	low := f.seedInventory(t, uuid.New(), uuid.New(), 3, nil)
	_, err := f.stock.SetReorderLevels(ctx, testTenant, low.ID, 5, 20)
	require.NoError(t, err)

	healthy := f.seedInventory(t, uuid.New(), uuid.New(), 50, nil)
	_, err = f.stock.SetReorderLevels(ctx, testTenant, healthy.ID, 5, 20)
	require.NoError(t, err)

	rows, err := f.stock.GetStoresNeedingRestock(ctx, testTenant)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, low.ID, rows[0].ID)
}

func TestCheckAvailabilityExcludesStoreAndRespectsReservations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := uuid.New()
	storeA, storeB := uuid.New(), uuid.New()

	f.seedInventory(t, productID, storeA, 10, nil)
	invB := f.seedInventory(t, productID, storeB, 10, nil)

	// Hold 8 at store B so only 2 remain available there
	_, err := f.stock.Reserve(ctx, testTenant, productID, storeB, 8, nil, time.Minute, "user-1")
	require.NoError(t, err)

	stores, err := f.stock.CheckAvailability(ctx, testTenant, productID, 5, nil)
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, storeA, stores[0].StoreID)

	// Excluding store A leaves nothing
	stores, err = f.stock.CheckAvailability(ctx, testTenant, productID, 5, &storeA)
	require.NoError(t, err)
	assert.Empty(t, stores)

	assert.Equal(t, 2, f.reload(t, invB.ID).Available())
}

// ========== Reservations ==========

func TestReserveDebitsAvailabilityNotOnHand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID, storeID := uuid.New(), uuid.New()
	inv := f.seedInventory(t, productID, storeID, 10, nil)

	res, err := f.stock.Reserve(ctx, testTenant, productID, storeID, 4, nil, time.Minute, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusActive, res.Status)

	reloaded := f.reload(t, inv.ID)
	assert.Equal(t, 10, reloaded.Quantity)
	assert.Equal(t, 4, reloaded.QuantityReserved)
	assert.Equal(t, 6, reloaded.Available())

	// A hold places no ledger row; only conversion does
	assert.Len(t, f.historyFor(t, inv.ID), 1)
}

func TestReserveFailsWhenAvailabilityExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID, storeID := uuid.New(), uuid.New()
	f.seedInventory(t, productID, storeID, 10, nil)

	_, err := f.stock.Reserve(ctx, testTenant, productID, storeID, 7, nil, time.Minute, "user-1")
	require.NoError(t, err)

	_, err = f.stock.Reserve(ctx, testTenant, productID, storeID, 4, nil, time.Minute, "user-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInsufficientInventory, apperrors.KindOf(err))
}

func TestReleaseReservationRestoresAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID, storeID := uuid.New(), uuid.New()
	inv := f.seedInventory(t, productID, storeID, 10, nil)

	res, err := f.stock.Reserve(ctx, testTenant, productID, storeID, 4, nil, time.Minute, "user-1")
	require.NoError(t, err)

	require.NoError(t, f.stock.ReleaseReservation(ctx, testTenant, res.ID, "user-1"))
	assert.Equal(t, 10, f.reload(t, inv.ID).Available())

	// Releasing twice is rejected
	err = f.stock.ReleaseReservation(ctx, testTenant, res.ID, "user-1")
	assert.Equal(t, apperrors.KindInvalidStateTransition, apperrors.KindOf(err))
}

func TestConvertReservationDecrementsOnHand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID, storeID := uuid.New(), uuid.New()
	inv := f.seedInventory(t, productID, storeID, 10, nil)

	res, err := f.stock.Reserve(ctx, testTenant, productID, storeID, 4, nil, time.Minute, "user-1")
	require.NoError(t, err)

	updated, err := f.stock.ConvertReservation(ctx, testTenant, res.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 6, updated.Quantity)
	assert.Equal(t, 0, updated.QuantityReserved)

	history := f.historyFor(t, inv.ID)
	require.Len(t, history, 2)
	assert.Equal(t, models.ChangeTypeSale, history[1].ChangeType)
	require.NotNil(t, history[1].ReferenceType)
	assert.Equal(t, models.ReferenceTypeReservation, *history[1].ReferenceType)

	// Converting again is rejected
	_, err = f.stock.ConvertReservation(ctx, testTenant, res.ID, "user-1")
	assert.Equal(t, apperrors.KindInvalidStateTransition, apperrors.KindOf(err))
}

func TestReleaseExpiredReservations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID, storeID := uuid.New(), uuid.New()
	inv := f.seedInventory(t, productID, storeID, 10, nil)

	res, err := f.stock.Reserve(ctx, testTenant, productID, storeID, 4, nil, time.Minute, "user-1")
	require.NoError(t, err)

	// Force the hold into the past
	require.NoError(t, f.db.Model(&models.StockReservation{}).
		Where("id = ?", res.ID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	released, err := f.stock.ReleaseExpiredReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	assert.Equal(t, 10, f.reload(t, inv.ID).Available())

	var swept models.StockReservation
	require.NoError(t, f.db.First(&swept, "id = ?", res.ID).Error)
	assert.Equal(t, models.ReservationStatusExpired, swept.Status)
}

// ========== Integrity ==========

func TestLedgerIntegrityConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.seedInventory(t, uuid.New(), uuid.New(), 20, nil)

	_, err := f.stock.Adjust(ctx, testTenant, inv.ID, -5, models.ChangeTypeSale, "user-1", nil, nil)
	require.NoError(t, err)
	_, err = f.stock.Adjust(ctx, testTenant, inv.ID, 3, models.ChangeTypeReturn, "user-1", nil, nil)
	require.NoError(t, err)

	report, err := f.stock.CheckLedgerIntegrity(ctx, testTenant, inv.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, 3, report.RowsChecked)
	assert.Equal(t, 18, report.LedgerQuantity)
	assert.Equal(t, 18, report.CurrentQuantity)
	assert.Empty(t, report.Problems)
}

func TestLedgerIntegrityDetectsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.seedInventory(t, uuid.New(), uuid.New(), 20, nil)

	// Mutate the row behind the ledger's back
	require.NoError(t, f.db.Model(&models.Inventory{}).
		Where("id = ?", inv.ID).
		Update("quantity", 17).Error)

	report, err := f.stock.CheckLedgerIntegrity(ctx, testTenant, inv.ID)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.NotEmpty(t, report.Problems)
	assert.Equal(t, 20, report.LedgerQuantity)
	assert.Equal(t, 17, report.CurrentQuantity)
}
