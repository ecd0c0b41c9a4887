package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSON type for PostgreSQL JSONB
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// ChangeType classifies a single inventory movement in the audit ledger
type ChangeType string

const (
	ChangeTypePurchase    ChangeType = "PURCHASE"
	ChangeTypeSale        ChangeType = "SALE"
	ChangeTypeTransferOut ChangeType = "TRANSFER_OUT"
	ChangeTypeTransferIn  ChangeType = "TRANSFER_IN"
	ChangeTypeAdjustment  ChangeType = "ADJUSTMENT"
	ChangeTypeReturn      ChangeType = "RETURN"
	ChangeTypeDamage      ChangeType = "DAMAGE"
)

// ValidChangeType reports whether t is one of the ledger change types.
func ValidChangeType(t ChangeType) bool {
	switch t {
	case ChangeTypePurchase, ChangeTypeSale, ChangeTypeTransferOut, ChangeTypeTransferIn,
		ChangeTypeAdjustment, ChangeTypeReturn, ChangeTypeDamage:
		return true
	}
	return false
}

// Reference types recorded on history rows, linking a movement back to the
// business event that caused it.
const (
	ReferenceTypeSale              = "SALE"
	ReferenceTypeSaleVoid          = "SALE_VOID"
	ReferenceTypeSaleReturn        = "SALE_RETURN"
	ReferenceTypeTransfer          = "TRANSFER"
	ReferenceTypeTransferRejection = "TRANSFER_REJECTION"
	ReferenceTypeShipment          = "SHIPMENT"
	ReferenceTypeInitialAllocation = "INITIAL_ALLOCATION"
	ReferenceTypeReservation       = "RESERVATION"
)

// Inventory is the current stock state of one product at one store.
// Quantity is on-hand stock; QuantityReserved is debited from availability
// by active reservations but never from on-hand.
type Inventory struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID string    `json:"tenantId" gorm:"type:varchar(255);not null;uniqueIndex:idx_tenant_product_store"`

	ProductID uuid.UUID `json:"productId" gorm:"type:uuid;not null;index;uniqueIndex:idx_tenant_product_store"`
	StoreID   uuid.UUID `json:"storeId" gorm:"type:uuid;not null;index;uniqueIndex:idx_tenant_product_store"`

	Quantity         int `json:"quantity" gorm:"not null;default:0"`
	QuantityReserved int `json:"quantityReserved" gorm:"not null;default:0"`

	StorePrice   *float64 `json:"storePrice,omitempty" gorm:"type:decimal(10,2)"`
	ReorderLevel *int     `json:"reorderLevel,omitempty"`
	OptimalLevel *int     `json:"optimalLevel,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (i *Inventory) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Available returns the quantity not held by active reservations.
func (i *Inventory) Available() int {
	return i.Quantity - i.QuantityReserved
}

// InventoryHistory is one immutable row of the movement ledger. Rows are
// appended inside the same transaction as the quantity change they record
// and are never updated or deleted.
type InventoryHistory struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID    string    `json:"tenantId" gorm:"type:varchar(255);not null;index"`
	InventoryID uuid.UUID `json:"inventoryId" gorm:"type:uuid;not null;index"`

	ChangeType       ChangeType `json:"changeType" gorm:"type:varchar(20);not null;index"`
	QuantityChange   int        `json:"quantityChange" gorm:"not null"`
	PreviousQuantity int        `json:"previousQuantity" gorm:"not null"`
	NewQuantity      int        `json:"newQuantity" gorm:"not null"`

	ReferenceID   *uuid.UUID `json:"referenceId,omitempty" gorm:"type:uuid;index"`
	ReferenceType *string    `json:"referenceType,omitempty" gorm:"type:varchar(50)"`

	Notes     *string   `json:"notes,omitempty" gorm:"type:text"`
	CreatedBy string    `json:"createdBy" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;index"`
}

func (h *InventoryHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// ReservationStatus is the lifecycle state of a stock reservation
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "ACTIVE"
	ReservationStatusReleased  ReservationStatus = "RELEASED"
	ReservationStatusConverted ReservationStatus = "CONVERTED"
	ReservationStatusExpired   ReservationStatus = "EXPIRED"
)

// StockReservation is a time-boxed hold against an inventory row. While
// ACTIVE it is counted in Inventory.QuantityReserved; on-hand quantity is
// untouched until the hold converts into a real movement.
type StockReservation struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID    string    `json:"tenantId" gorm:"type:varchar(255);not null;index"`
	InventoryID uuid.UUID `json:"inventoryId" gorm:"type:uuid;not null;index"`

	Quantity    int               `json:"quantity" gorm:"not null"`
	OrderRef    *string           `json:"orderRef,omitempty" gorm:"type:varchar(255)"`
	Status      ReservationStatus `json:"status" gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	ReservedBy  string            `json:"reservedBy" gorm:"type:varchar(255);not null"`
	ReservedAt  time.Time         `json:"reservedAt"`
	ExpiresAt   time.Time         `json:"expiresAt" gorm:"index"`
	ReleasedAt  *time.Time        `json:"releasedAt,omitempty"`
	ConvertedAt *time.Time        `json:"convertedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r *StockReservation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// TableName implementations
func (Inventory) TableName() string {
	return "inventories"
}

func (InventoryHistory) TableName() string {
	return "inventory_history"
}

func (StockReservation) TableName() string {
	return "stock_reservations"
}

// ========== Request models ==========

type AllocateStockRequest struct {
	ProductID  uuid.UUID `json:"productId" binding:"required"`
	StoreID    uuid.UUID `json:"storeId" binding:"required"`
	Quantity   int       `json:"quantity" binding:"gte=0"`
	StorePrice *float64  `json:"storePrice,omitempty"`
}

type AdjustStockRequest struct {
	Delta       int        `json:"delta" binding:"required"`
	ChangeType  ChangeType `json:"changeType" binding:"required"`
	Notes       *string    `json:"notes,omitempty"`
	ReferenceID *uuid.UUID `json:"referenceId,omitempty"`
}

type BulkReceiveEntry struct {
	ProductID  uuid.UUID `json:"productId" binding:"required"`
	StoreID    uuid.UUID `json:"storeId" binding:"required"`
	Quantity   int       `json:"quantity" binding:"required"`
	StorePrice *float64  `json:"storePrice,omitempty"`
}

type BulkReceiveRequest struct {
	ShipmentID uuid.UUID          `json:"shipmentId" binding:"required"`
	Entries    []BulkReceiveEntry `json:"entries" binding:"required,min=1"`
}

type SetReorderLevelsRequest struct {
	ReorderLevel int `json:"reorderLevel" binding:"gte=0"`
	OptimalLevel int `json:"optimalLevel" binding:"gte=0"`
}

type ReserveStockRequest struct {
	ProductID  uuid.UUID `json:"productId" binding:"required"`
	StoreID    uuid.UUID `json:"storeId" binding:"required"`
	Quantity   int       `json:"quantity" binding:"required,gt=0"`
	OrderRef   *string   `json:"orderRef,omitempty"`
	TTLMinutes *int      `json:"ttlMinutes,omitempty"`
}

// ========== Read models ==========

// StoreAvailability is one row of a CheckAvailability result: a store that
// can currently satisfy the requested quantity.
type StoreAvailability struct {
	StoreID     uuid.UUID `json:"storeId"`
	StoreName   string    `json:"storeName,omitempty"`
	IsMainStore bool      `json:"isMainStore"`
	InventoryID uuid.UUID `json:"inventoryId"`
	Available   int       `json:"available"`
	OnHand      int       `json:"onHand"`
}

// IntegrityReport is the result of replaying an inventory row's ledger.
type IntegrityReport struct {
	InventoryID     uuid.UUID `json:"inventoryId"`
	RowsChecked     int       `json:"rowsChecked"`
	CurrentQuantity int       `json:"currentQuantity"`
	LedgerQuantity  int       `json:"ledgerQuantity"`
	Consistent      bool      `json:"consistent"`
	Problems        []string  `json:"problems,omitempty"`
}

// ========== Response models ==========

type ErrorResponse struct {
	Success bool  `json:"success"`
	Error   Error `json:"error"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

type InventoryResponse struct {
	Success bool       `json:"success"`
	Data    *Inventory `json:"data,omitempty"`
	Message *string    `json:"message,omitempty"`
}

type InventoryListResponse struct {
	Success    bool            `json:"success"`
	Data       []Inventory     `json:"data"`
	Pagination *PaginationMeta `json:"pagination,omitempty"`
}

type HistoryListResponse struct {
	Success    bool               `json:"success"`
	Data       []InventoryHistory `json:"data"`
	Pagination *PaginationMeta    `json:"pagination,omitempty"`
}

type AvailabilityResponse struct {
	Success bool                `json:"success"`
	Data    []StoreAvailability `json:"data"`
}

type ReservationResponse struct {
	Success bool              `json:"success"`
	Data    *StockReservation `json:"data,omitempty"`
	Message *string           `json:"message,omitempty"`
}

// PaginationMeta represents pagination metadata
type PaginationMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}
