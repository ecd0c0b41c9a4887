package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/models"
)

// TransferRepository is the persistence layer for product transfers.
// Transitions that move stock run inside stock engine transactions.
type TransferRepository struct {
	db *gorm.DB
}

func NewTransferRepository(db *gorm.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// GetTransferByID retrieves a transfer by ID
func (r *TransferRepository) GetTransferByID(tenantID string, id uuid.UUID) (*models.ProductTransfer, error) {
	var transfer models.ProductTransfer
	err := r.db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&transfer).Error
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

// ListTransfers retrieves transfers newest first with optional status and
// store filters plus pagination.
func (r *TransferRepository) ListTransfers(tenantID string, status *models.TransferStatus, storeID *uuid.UUID, page, limit int) ([]models.ProductTransfer, int64, error) {
	var transfers []models.ProductTransfer
	var total int64
	query := r.db.Where("tenant_id = ?", tenantID)

	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if storeID != nil {
		query = query.Where("from_store_id = ? OR to_store_id = ?", *storeID, *storeID)
	}

	// Get total count
	if err := query.Model(&models.ProductTransfer{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply pagination if specified
	if page > 0 && limit > 0 {
		offset := (page - 1) * limit
		query = query.Offset(offset).Limit(limit)
	}

	err := query.Order("requested_at DESC").Find(&transfers).Error
	return transfers, total, err
}
