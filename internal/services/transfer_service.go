package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/apperrors"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/models"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/repository"
)

// TransferService drives the store-to-store transfer workflow on top of the
// stock engine. Initiate records intent only; stock moves at Complete, and a
// Reject after completion moves it back.
type TransferService struct {
	repo   *repository.TransferRepository
	stock  *StockService
	logger *logrus.Entry
}

func NewTransferService(repo *repository.TransferRepository, stock *StockService, logger *logrus.Logger) *TransferService {
	return &TransferService{
		repo:   repo,
		stock:  stock,
		logger: logger.WithField("component", "transfer-service"),
	}
}

// transitionTx flips the transfer's status with a conditional update so two
// concurrent resolutions of the same transfer cannot both win.
func (s *TransferService) transitionTx(tx *gorm.DB, transfer *models.ProductTransfer, to models.TransferStatus, extra map[string]interface{}) error {
	if err := models.ValidateTransferStatusTransition(transfer.Status, to); err != nil {
		return apperrors.InvalidStateTransition("%s", err.Error())
	}

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := tx.Model(&models.ProductTransfer{}).
		Where("id = ? AND status = ?", transfer.ID, transfer.Status).
		Updates(updates)
	if result.Error != nil {
		return apperrors.Storage("update transfer status", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.InvalidStateTransition("transfer %s is no longer %s", transfer.ID, transfer.Status)
	}

	transfer.Status = to
	return nil
}

// InitiateTransfer records a pending transfer request. Source stock is
// checked as an early guard but no hold is placed; availability is enforced
// again at Complete time.
func (s *TransferService) InitiateTransfer(ctx context.Context, tenantID string, req models.InitiateTransferRequest, actorID string) (*models.ProductTransfer, error) {
	if req.Quantity <= 0 {
		return nil, apperrors.InvalidInput("transfer quantity must be positive, got %d", req.Quantity)
	}
	if req.FromStoreID == req.ToStoreID {
		return nil, apperrors.InvalidInput("source and destination store are the same")
	}
	if err := s.stock.validateStore(tenantID, req.FromStoreID); err != nil {
		return nil, err
	}
	if err := s.stock.validateStore(tenantID, req.ToStoreID); err != nil {
		return nil, err
	}
	if err := s.stock.validateProduct(tenantID, req.ProductID); err != nil {
		return nil, err
	}

	var transfer *models.ProductTransfer
	err := s.stock.repo.Transaction(func(tx *gorm.DB) error {
		var source models.Inventory
		err := tx.Where("tenant_id = ? AND product_id = ? AND store_id = ?", tenantID, req.ProductID, req.FromStoreID).
			First(&source).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("inventory", fmt.Sprintf("product %s at store %s", req.ProductID, req.FromStoreID))
		}
		if err != nil {
			return apperrors.Storage("load source inventory", err)
		}

		if source.Available() < req.Quantity {
			return apperrors.InsufficientInventory(source.Available(), req.Quantity)
		}

		dest, _, err := s.stock.getOrCreateInventoryTx(tx, tenantID, req.ProductID, req.ToStoreID, nil)
		if err != nil {
			return err
		}

		transfer = &models.ProductTransfer{
			TenantID:        tenantID,
			ProductID:       req.ProductID,
			FromStoreID:     req.FromStoreID,
			ToStoreID:       req.ToStoreID,
			FromInventoryID: source.ID,
			ToInventoryID:   dest.ID,
			Quantity:        req.Quantity,
			Status:          models.TransferStatusPending,
			Reason:          req.Reason,
			Notes:           req.Notes,
			RequestedBy:     actorID,
			RequestedAt:     time.Now(),
		}
		if err := tx.Create(transfer).Error; err != nil {
			return apperrors.Storage("create transfer", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"transferId": transfer.ID,
		"productId":  req.ProductID,
		"quantity":   req.Quantity,
	}).Info("Transfer initiated")
	return transfer, nil
}

// CompleteTransfer moves the stock. Source availability is re-validated by
// the conditional decrement, so a transfer approved against stale numbers
// fails here instead of driving the source negative.
func (s *TransferService) CompleteTransfer(ctx context.Context, tenantID string, transferID uuid.UUID, actorID string) (*models.ProductTransfer, error) {
	transfer, err := s.getTransfer(tenantID, transferID)
	if err != nil {
		return nil, err
	}

	refType := models.ReferenceTypeTransfer
	var source, dest *models.Inventory
	var sourcePrev, destPrev int

	err = s.stock.repo.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := s.transitionTx(tx, transfer, models.TransferStatusCompleted, map[string]interface{}{
			"completed_by": actorID,
			"completed_at": now,
		}); err != nil {
			return err
		}

		// Source first so an insufficient source aborts before the
		// destination is touched.
		var err error
		source, err = s.stock.applyAdjustment(tx, tenantID, transfer.FromInventoryID, -transfer.Quantity, models.ChangeTypeTransferOut, &transfer.ID, &refType, transfer.Notes, actorID)
		if err != nil {
			return err
		}
		sourcePrev = source.Quantity + transfer.Quantity

		dest, err = s.stock.applyAdjustment(tx, tenantID, transfer.ToInventoryID, transfer.Quantity, models.ChangeTypeTransferIn, &transfer.ID, &refType, transfer.Notes, actorID)
		if err != nil {
			return err
		}
		destPrev = dest.Quantity - transfer.Quantity
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.stock.afterStockMutation(ctx, tenantID, source, sourcePrev, "transfer.completed", actorID)
	s.stock.afterStockMutation(ctx, tenantID, dest, destPrev, "transfer.completed", actorID)

	s.logger.WithFields(logrus.Fields{
		"transferId": transfer.ID,
		"quantity":   transfer.Quantity,
	}).Info("Transfer completed")
	return transfer, nil
}

// CancelTransfer abandons a pending transfer. No stock has moved yet, so
// this only flips the status.
func (s *TransferService) CancelTransfer(ctx context.Context, tenantID string, transferID uuid.UUID, reason string, actorID string) (*models.ProductTransfer, error) {
	transfer, err := s.getTransfer(tenantID, transferID)
	if err != nil {
		return nil, err
	}

	err = s.stock.repo.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"resolved_by": actorID,
			"resolved_at": time.Now(),
		}
		if reason != "" {
			updates["reason"] = reason
		}
		return s.transitionTx(tx, transfer, models.TransferStatusCancelled, updates)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("transferId", transfer.ID).Info("Transfer cancelled")
	return transfer, nil
}

// RejectTransfer reverses a completed transfer: the moved quantity returns
// from destination to source in one transaction, mirrored by reversing
// ledger rows that reference the transfer.
func (s *TransferService) RejectTransfer(ctx context.Context, tenantID string, transferID uuid.UUID, reason string, actorID string) (*models.ProductTransfer, error) {
	if reason == "" {
		return nil, apperrors.InvalidInput("rejection reason is required")
	}

	transfer, err := s.getTransfer(tenantID, transferID)
	if err != nil {
		return nil, err
	}

	refType := models.ReferenceTypeTransferRejection
	notes := &reason
	var source, dest *models.Inventory
	var sourcePrev, destPrev int

	err = s.stock.repo.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"resolved_by": actorID,
			"resolved_at": time.Now(),
			"reason":      reason,
		}
		if err := s.transitionTx(tx, transfer, models.TransferStatusRejected, updates); err != nil {
			return err
		}

		// Destination first: the rejected goods leave the destination even
		// if some were since sold there, which the conditional decrement
		// will refuse. That refusal aborts the whole rejection.
		var err error
		dest, err = s.stock.applyAdjustment(tx, tenantID, transfer.ToInventoryID, -transfer.Quantity, models.ChangeTypeTransferOut, &transfer.ID, &refType, notes, actorID)
		if err != nil {
			return err
		}
		destPrev = dest.Quantity + transfer.Quantity

		source, err = s.stock.applyAdjustment(tx, tenantID, transfer.FromInventoryID, transfer.Quantity, models.ChangeTypeTransferIn, &transfer.ID, &refType, notes, actorID)
		if err != nil {
			return err
		}
		sourcePrev = source.Quantity - transfer.Quantity
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.stock.afterStockMutation(ctx, tenantID, dest, destPrev, "transfer.rejected", actorID)
	s.stock.afterStockMutation(ctx, tenantID, source, sourcePrev, "transfer.rejected", actorID)

	s.logger.WithFields(logrus.Fields{
		"transferId": transfer.ID,
		"reason":     reason,
	}).Info("Transfer rejected")
	return transfer, nil
}

// GetTransfer returns one transfer by ID
func (s *TransferService) GetTransfer(ctx context.Context, tenantID string, transferID uuid.UUID) (*models.ProductTransfer, error) {
	return s.getTransfer(tenantID, transferID)
}

func (s *TransferService) getTransfer(tenantID string, transferID uuid.UUID) (*models.ProductTransfer, error) {
	transfer, err := s.repo.GetTransferByID(tenantID, transferID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("transfer", transferID)
		}
		return nil, apperrors.Storage("load transfer", err)
	}
	return transfer, nil
}

// ListTransfers returns transfers filtered by status and store
func (s *TransferService) ListTransfers(ctx context.Context, tenantID string, status *models.TransferStatus, storeID *uuid.UUID, page, limit int) ([]models.ProductTransfer, int64, error) {
	transfers, total, err := s.repo.ListTransfers(tenantID, status, storeID, page, limit)
	if err != nil {
		return nil, 0, apperrors.Storage("list transfers", err)
	}
	return transfers, total, nil
}
