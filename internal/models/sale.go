package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sale is an immutable point-of-sale transaction. Refunds never mutate a
// sale; a partial return is a new Sale with negative amounts linked back
// through ReferenceID.
type Sale struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID string    `json:"tenantId" gorm:"type:varchar(255);not null;index"`

	StoreID    uuid.UUID `json:"storeId" gorm:"type:uuid;not null;index"`
	EmployeeID uuid.UUID `json:"employeeId" gorm:"type:uuid;not null;index"`

	Subtotal float64 `json:"subtotal" gorm:"type:decimal(10,2);not null"`
	Tax      float64 `json:"tax" gorm:"type:decimal(10,2);not null"`
	Total    float64 `json:"total" gorm:"type:decimal(10,2);not null"`

	PaymentMethod string  `json:"paymentMethod" gorm:"type:varchar(50);not null"`
	CustomerName  *string `json:"customerName,omitempty" gorm:"type:varchar(255)"`
	CustomerPhone *string `json:"customerPhone,omitempty" gorm:"type:varchar(50)"`

	// Set on refund sales only, pointing at the original sale.
	ReferenceID *uuid.UUID `json:"referenceId,omitempty" gorm:"type:uuid;index"`

	// Free-form POS terminal context (register ID, shift, till session).
	Metadata JSON `json:"metadata,omitempty" gorm:"type:jsonb"`

	CreatedBy string    `json:"createdBy" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;index"`

	// Relations
	Items  []SaleItem  `json:"items,omitempty" gorm:"foreignKey:SaleID"`
	Voided *VoidedSale `json:"voided,omitempty" gorm:"foreignKey:SaleID"`
}

func (s *Sale) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SaleItem is one line of a sale. UnitPrice is copied at sale time so later
// price changes never affect historical totals.
type SaleItem struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID string    `json:"tenantId" gorm:"type:varchar(255);not null;index"`
	SaleID   uuid.UUID `json:"saleId" gorm:"type:uuid;not null;index"`

	ProductID uuid.UUID `json:"productId" gorm:"type:uuid;not null;index"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	UnitPrice float64   `json:"unitPrice" gorm:"type:decimal(10,2);not null"`
	Subtotal  float64   `json:"subtotal" gorm:"type:decimal(10,2);not null"`

	// ReferenceItemID is set on refund lines and points at the original
	// sale item the return applies to.
	ReferenceItemID *uuid.UUID `json:"referenceItemId,omitempty" gorm:"type:uuid;index"`

	CreatedAt time.Time `json:"createdAt"`
}

func (i *SaleItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// VoidedSale is the 1:1 reversal record for a sale. Its existence is the
// authoritative "already voided" flag; the unique index on SaleID makes the
// guarantee hold even under concurrent void attempts.
type VoidedSale struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID string    `json:"tenantId" gorm:"type:varchar(255);not null;index"`
	SaleID   uuid.UUID `json:"saleId" gorm:"type:uuid;not null;uniqueIndex"`

	Reason        string  `json:"reason" gorm:"type:text;not null"`
	OriginalTotal float64 `json:"originalTotal" gorm:"type:decimal(10,2);not null"`

	VoidedBy string    `json:"voidedBy" gorm:"type:varchar(255);not null"`
	VoidedAt time.Time `json:"voidedAt" gorm:"not null"`

	CreatedAt time.Time `json:"createdAt"`
}

func (v *VoidedSale) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// TableName implementations
func (Sale) TableName() string {
	return "sales"
}

func (SaleItem) TableName() string {
	return "sale_items"
}

func (VoidedSale) TableName() string {
	return "voided_sales"
}

// ========== Request models ==========

type CreateSaleItemRequest struct {
	ProductID uuid.UUID `json:"productId" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,gt=0"`
	// Nil falls back to the store price; an explicit zero is a free item.
	UnitPrice *float64 `json:"unitPrice,omitempty" binding:"omitempty,gte=0"`
}

type CreateSaleRequest struct {
	StoreID       uuid.UUID               `json:"storeId" binding:"required"`
	EmployeeID    uuid.UUID               `json:"employeeId" binding:"required"`
	PaymentMethod string                  `json:"paymentMethod" binding:"required"`
	CustomerName  *string                 `json:"customerName,omitempty"`
	CustomerPhone *string                 `json:"customerPhone,omitempty"`
	Metadata      JSON                    `json:"metadata,omitempty"`
	Items         []CreateSaleItemRequest `json:"items" binding:"required,min=1"`
}

type VoidSaleRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type ReturnItemRequest struct {
	SaleItemID   uuid.UUID `json:"saleItemId" binding:"required"`
	Quantity     int       `json:"quantity" binding:"required,gt=0"`
	RefundAmount *float64  `json:"refundAmount,omitempty"`
}

type ProcessReturnRequest struct {
	Items  []ReturnItemRequest `json:"items" binding:"required,min=1"`
	Reason *string             `json:"reason,omitempty"`
}

// ========== Response models ==========

type SaleResponse struct {
	Success bool    `json:"success"`
	Data    *Sale   `json:"data,omitempty"`
	Message *string `json:"message,omitempty"`
}

type SaleListResponse struct {
	Success    bool            `json:"success"`
	Data       []Sale          `json:"data"`
	Pagination *PaginationMeta `json:"pagination,omitempty"`
}
