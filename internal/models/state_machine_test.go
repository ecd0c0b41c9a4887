package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransferStatusTransitions(t *testing.T) {
	tests := []struct {
		name  string
		from  TransferStatus
		to    TransferStatus
		valid bool
	}{
		{"pending to completed", TransferStatusPending, TransferStatusCompleted, true},
		{"pending to cancelled", TransferStatusPending, TransferStatusCancelled, true},
		{"pending to rejected", TransferStatusPending, TransferStatusRejected, false},
		{"completed to rejected", TransferStatusCompleted, TransferStatusRejected, true},
		{"completed to cancelled", TransferStatusCompleted, TransferStatusCancelled, false},
		{"completed to pending", TransferStatusCompleted, TransferStatusPending, false},
		{"cancelled to completed", TransferStatusCancelled, TransferStatusCompleted, false},
		{"rejected to pending", TransferStatusRejected, TransferStatusPending, false},
		{"unknown status", TransferStatus("BOGUS"), TransferStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, CanTransitionTransferStatus(tt.from, tt.to))
			if tt.valid {
				assert.NoError(t, ValidateTransferStatusTransition(tt.from, tt.to))
			} else {
				assert.Error(t, ValidateTransferStatusTransition(tt.from, tt.to))
			}
		})
	}
}

func TestTerminalTransferStatuses(t *testing.T) {
	assert.False(t, IsTerminalTransferStatus(TransferStatusPending))
	assert.False(t, IsTerminalTransferStatus(TransferStatusCompleted))
	assert.True(t, IsTerminalTransferStatus(TransferStatusCancelled))
	assert.True(t, IsTerminalTransferStatus(TransferStatusRejected))
}

func TestGetNextValidTransferStatuses(t *testing.T) {
	next := GetNextValidTransferStatuses(TransferStatusPending)
	assert.ElementsMatch(t, []TransferStatus{TransferStatusCompleted, TransferStatusCancelled}, next)
	assert.Empty(t, GetNextValidTransferStatuses(TransferStatusRejected))
}

func TestValidChangeType(t *testing.T) {
	for _, ct := range []ChangeType{
		ChangeTypePurchase, ChangeTypeSale, ChangeTypeTransferOut,
		ChangeTypeTransferIn, ChangeTypeAdjustment, ChangeTypeReturn, ChangeTypeDamage,
	} {
		assert.True(t, ValidChangeType(ct), string(ct))
	}
	assert.False(t, ValidChangeType(ChangeType("RESTOCK")))
	assert.False(t, ValidChangeType(ChangeType("")))
}
