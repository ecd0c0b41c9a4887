package models

import "fmt"

// ValidTransferTransitions defines valid state transitions for TransferStatus
// Flow: PENDING → COMPLETED or CANCELLED; a COMPLETED transfer can be
// REJECTED afterwards (admin reversal that gives the stock back).
var ValidTransferTransitions = map[TransferStatus][]TransferStatus{
	TransferStatusPending:   {TransferStatusCompleted, TransferStatusCancelled},
	TransferStatusCompleted: {TransferStatusRejected},
	TransferStatusCancelled: {}, // Terminal state
	TransferStatusRejected:  {}, // Terminal state
}

// CanTransitionTransferStatus checks if a transition from one transfer status to another is valid
func CanTransitionTransferStatus(from, to TransferStatus) bool {
	validTransitions, exists := ValidTransferTransitions[from]
	if !exists {
		return false
	}
	for _, validTo := range validTransitions {
		if validTo == to {
			return true
		}
	}
	return false
}

// ValidateTransferStatusTransition returns an error if the transition is invalid
func ValidateTransferStatusTransition(from, to TransferStatus) error {
	if !CanTransitionTransferStatus(from, to) {
		return fmt.Errorf("invalid transfer status transition from %s to %s", from, to)
	}
	return nil
}

// GetNextValidTransferStatuses returns the list of valid next statuses for a transfer
func GetNextValidTransferStatuses(current TransferStatus) []TransferStatus {
	return ValidTransferTransitions[current]
}

// IsTerminalTransferStatus checks if the transfer status is a terminal state
func IsTerminalTransferStatus(status TransferStatus) bool {
	return len(ValidTransferTransitions[status]) == 0
}

// DisplayName returns a human-readable name for the transfer status
func (s TransferStatus) DisplayName() string {
	switch s {
	case TransferStatusPending:
		return "Pending"
	case TransferStatusCompleted:
		return "Completed"
	case TransferStatusCancelled:
		return "Cancelled"
	case TransferStatusRejected:
		return "Rejected"
	default:
		return string(s)
	}
}
