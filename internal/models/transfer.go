package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransferStatus represents the status of a product transfer
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "PENDING"
	TransferStatusCompleted TransferStatus = "COMPLETED"
	TransferStatusCancelled TransferStatus = "CANCELLED"
	TransferStatusRejected  TransferStatus = "REJECTED"
)

// ProductTransfer is one store-to-store movement request. Stock moves only
// at Complete time; Initiate records intent without a hold.
type ProductTransfer struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID string    `json:"tenantId" gorm:"type:varchar(255);not null;index"`

	ProductID       uuid.UUID `json:"productId" gorm:"type:uuid;not null;index"`
	FromStoreID     uuid.UUID `json:"fromStoreId" gorm:"type:uuid;not null;index"`
	ToStoreID       uuid.UUID `json:"toStoreId" gorm:"type:uuid;not null;index"`
	FromInventoryID uuid.UUID `json:"fromInventoryId" gorm:"type:uuid;not null"`
	ToInventoryID   uuid.UUID `json:"toInventoryId" gorm:"type:uuid;not null"`

	Quantity int            `json:"quantity" gorm:"not null"`
	Status   TransferStatus `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';index"`

	Reason *string `json:"reason,omitempty" gorm:"type:varchar(255)"`
	Notes  *string `json:"notes,omitempty" gorm:"type:text"`

	RequestedBy string     `json:"requestedBy" gorm:"type:varchar(255);not null"`
	RequestedAt time.Time  `json:"requestedAt"`
	CompletedBy *string    `json:"completedBy,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	ResolvedBy  *string    `json:"resolvedBy,omitempty"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (t *ProductTransfer) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (ProductTransfer) TableName() string {
	return "product_transfers"
}

// ========== Request models ==========

type InitiateTransferRequest struct {
	ProductID   uuid.UUID `json:"productId" binding:"required"`
	FromStoreID uuid.UUID `json:"fromStoreId" binding:"required"`
	ToStoreID   uuid.UUID `json:"toStoreId" binding:"required"`
	Quantity    int       `json:"quantity" binding:"required,gt=0"`
	Reason      *string   `json:"reason,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
}

type ResolveTransferRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ========== Response models ==========

type TransferResponse struct {
	Success bool             `json:"success"`
	Data    *ProductTransfer `json:"data,omitempty"`
	Message *string          `json:"message,omitempty"`
}

type TransferListResponse struct {
	Success    bool              `json:"success"`
	Data       []ProductTransfer `json:"data"`
	Pagination *PaginationMeta   `json:"pagination,omitempty"`
}
