package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/apperrors"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/models"
)

func seedTransfer(t *testing.T, f *fixture, sourceQty int) (*models.ProductTransfer, *models.Inventory) {
	t.Helper()
	ctx := context.Background()
	productID, fromStore, toStore := uuid.New(), uuid.New(), uuid.New()
	source := f.seedInventory(t, productID, fromStore, sourceQty, nil)

	transfer, err := f.transfers.InitiateTransfer(ctx, testTenant, models.InitiateTransferRequest{
		ProductID:   productID,
		FromStoreID: fromStore,
		ToStoreID:   toStore,
		Quantity:    5,
	}, "user-1")
	require.NoError(t, err)
	return transfer, source
}

func TestInitiateTransferRecordsPendingIntent(t *testing.T) {
	f := newFixture(t)
	transfer, source := seedTransfer(t, f, 20)

	assert.Equal(t, models.TransferStatusPending, transfer.Status)
	assert.Equal(t, source.ID, transfer.FromInventoryID)

	// Initiate places no hold and moves no stock
	assert.Equal(t, 20, f.reload(t, source.ID).Quantity)
	assert.Equal(t, 20, f.reload(t, source.ID).Available())

	// Destination row exists at zero
	dest := f.reload(t, transfer.ToInventoryID)
	assert.Equal(t, 0, dest.Quantity)
}

func TestInitiateTransferRejectsInsufficientSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID, fromStore := uuid.New(), uuid.New()
	f.seedInventory(t, productID, fromStore, 2, nil)

	_, err := f.transfers.InitiateTransfer(ctx, testTenant, models.InitiateTransferRequest{
		ProductID:   productID,
		FromStoreID: fromStore,
		ToStoreID:   uuid.New(),
		Quantity:    5,
	}, "user-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInsufficientInventory, apperrors.KindOf(err))
}

func TestInitiateTransferRejectsSameStore(t *testing.T) {
	f := newFixture(t)
	storeID := uuid.New()

	_, err := f.transfers.InitiateTransfer(context.Background(), testTenant, models.InitiateTransferRequest{
		ProductID:   uuid.New(),
		FromStoreID: storeID,
		ToStoreID:   storeID,
		Quantity:    5,
	}, "user-1")
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
}

func TestCompleteTransferMovesStockWithLedgerRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	transfer, source := seedTransfer(t, f, 20)

	completed, err := f.transfers.CompleteTransfer(ctx, testTenant, transfer.ID, "manager-1")
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusCompleted, completed.Status)

	assert.Equal(t, 15, f.reload(t, source.ID).Quantity)
	assert.Equal(t, 5, f.reload(t, transfer.ToInventoryID).Quantity)

	sourceHistory := f.historyFor(t, source.ID)
	require.Len(t, sourceHistory, 2)
	assert.Equal(t, models.ChangeTypeTransferOut, sourceHistory[1].ChangeType)
	require.NotNil(t, sourceHistory[1].ReferenceID)
	assert.Equal(t, transfer.ID, *sourceHistory[1].ReferenceID)

	destHistory := f.historyFor(t, transfer.ToInventoryID)
	require.Len(t, destHistory, 1)
	assert.Equal(t, models.ChangeTypeTransferIn, destHistory[0].ChangeType)
}

func TestCompleteTransferRevalidatesSourceStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	transfer, source := seedTransfer(t, f, 20)

	// Stock sold between initiation and approval
	_, err := f.stock.Adjust(ctx, testTenant, source.ID, -18, models.ChangeTypeSale, "user-1", nil, nil)
	require.NoError(t, err)

	_, err = f.transfers.CompleteTransfer(ctx, testTenant, transfer.ID, "manager-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInsufficientInventory, apperrors.KindOf(err))

	// Whole completion rolled back, including the status flip
	reloaded, err := f.transfers.GetTransfer(ctx, testTenant, transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusPending, reloaded.Status)
	assert.Equal(t, 0, f.reload(t, transfer.ToInventoryID).Quantity)
}

func TestCancelTransferIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	transfer, source := seedTransfer(t, f, 20)

	cancelled, err := f.transfers.CancelTransfer(ctx, testTenant, transfer.ID, "not needed", "manager-1")
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusCancelled, cancelled.Status)
	assert.Equal(t, 20, f.reload(t, source.ID).Quantity)

	// A cancelled transfer cannot be completed
	_, err = f.transfers.CompleteTransfer(ctx, testTenant, transfer.ID, "manager-1")
	assert.Equal(t, apperrors.KindInvalidStateTransition, apperrors.KindOf(err))

	// Nor cancelled again
	_, err = f.transfers.CancelTransfer(ctx, testTenant, transfer.ID, "again", "manager-1")
	assert.Equal(t, apperrors.KindInvalidStateTransition, apperrors.KindOf(err))
}

func TestRejectTransferReversesCompletedMovement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	transfer, source := seedTransfer(t, f, 20)

	_, err := f.transfers.CompleteTransfer(ctx, testTenant, transfer.ID, "manager-1")
	require.NoError(t, err)

	rejected, err := f.transfers.RejectTransfer(ctx, testTenant, transfer.ID, "damaged in transit", "manager-2")
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusRejected, rejected.Status)

	assert.Equal(t, 20, f.reload(t, source.ID).Quantity)
	assert.Equal(t, 0, f.reload(t, transfer.ToInventoryID).Quantity)

	destHistory := f.historyFor(t, transfer.ToInventoryID)
	require.Len(t, destHistory, 2)
	require.NotNil(t, destHistory[1].ReferenceType)
	assert.Equal(t, models.ReferenceTypeTransferRejection, *destHistory[1].ReferenceType)
}

func TestRejectTransferRequiresReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	transfer, _ := seedTransfer(t, f, 20)

	_, err := f.transfers.CompleteTransfer(ctx, testTenant, transfer.ID, "manager-1")
	require.NoError(t, err)

	_, err = f.transfers.RejectTransfer(ctx, testTenant, transfer.ID, "", "manager-1")
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))

	reloaded, err := f.transfers.GetTransfer(ctx, testTenant, transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusCompleted, reloaded.Status)
}

func TestRejectTransferRequiresCompletedState(t *testing.T) {
	f := newFixture(t)
	transfer, _ := seedTransfer(t, f, 20)

	_, err := f.transfers.RejectTransfer(context.Background(), testTenant, transfer.ID, "nope", "manager-1")
	assert.Equal(t, apperrors.KindInvalidStateTransition, apperrors.KindOf(err))
}

func TestRejectTransferFailsWhenDestinationStockGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	transfer, _ := seedTransfer(t, f, 20)

	_, err := f.transfers.CompleteTransfer(ctx, testTenant, transfer.ID, "manager-1")
	require.NoError(t, err)

	// Destination sold everything it received
	_, err = f.stock.Adjust(ctx, testTenant, transfer.ToInventoryID, -5, models.ChangeTypeSale, "user-1", nil, nil)
	require.NoError(t, err)

	_, err = f.transfers.RejectTransfer(ctx, testTenant, transfer.ID, "return it", "manager-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInsufficientInventory, apperrors.KindOf(err))

	// Rejection rolled back wholesale
	reloaded, err := f.transfers.GetTransfer(ctx, testTenant, transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusCompleted, reloaded.Status)
}
