package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/models"
)

// SalesRepository is the persistence layer for sales, sale items and void
// records. Sale creation and reversal run inside stock engine transactions;
// this layer owns reads.
type SalesRepository struct {
	db *gorm.DB
}

func NewSalesRepository(db *gorm.DB) *SalesRepository {
	return &SalesRepository{db: db}
}

// GetSaleByID retrieves a sale with its items and void record
func (r *SalesRepository) GetSaleByID(tenantID string, id uuid.UUID) (*models.Sale, error) {
	return r.GetSaleByIDTx(r.db, tenantID, id)
}

// GetSaleByIDTx is GetSaleByID on an existing transaction handle.
func (r *SalesRepository) GetSaleByIDTx(tx *gorm.DB, tenantID string, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := tx.Where("tenant_id = ? AND id = ?", tenantID, id).
		Preload("Items").
		Preload("Voided").
		First(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// SaleFilter narrows a sale list query
type SaleFilter struct {
	StoreID    *uuid.UUID
	EmployeeID *uuid.UUID
	From       *time.Time
	To         *time.Time
	// RefundsOnly limits results to negative (return) sales
	RefundsOnly bool
}

// ListSales retrieves sales newest first with pagination
func (r *SalesRepository) ListSales(tenantID string, filter SaleFilter, page, limit int) ([]models.Sale, int64, error) {
	var sales []models.Sale
	var total int64
	query := r.db.Where("tenant_id = ?", tenantID)

	if filter.StoreID != nil {
		query = query.Where("store_id = ?", *filter.StoreID)
	}
	if filter.EmployeeID != nil {
		query = query.Where("employee_id = ?", *filter.EmployeeID)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	if filter.RefundsOnly {
		query = query.Where("reference_id IS NOT NULL")
	}

	// Get total count
	if err := query.Model(&models.Sale{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply pagination if specified
	if page > 0 && limit > 0 {
		offset := (page - 1) * limit
		query = query.Offset(offset).Limit(limit)
	}

	err := query.Preload("Items").Order("created_at DESC").Find(&sales).Error
	return sales, total, err
}

// GetVoidedSale retrieves the void record for a sale, if any
func (r *SalesRepository) GetVoidedSale(tenantID string, saleID uuid.UUID) (*models.VoidedSale, error) {
	var voided models.VoidedSale
	err := r.db.Where("tenant_id = ? AND sale_id = ?", tenantID, saleID).First(&voided).Error
	if err != nil {
		return nil, err
	}
	return &voided, nil
}

// SumReturnedQuantity returns, keyed by original sale item ID, the quantity
// already returned through refund sales linked to the original. It runs on
// the given handle so callers can keep the read inside the transaction that
// acts on it.
func (r *SalesRepository) SumReturnedQuantity(tx *gorm.DB, tenantID string, originalSaleID uuid.UUID) (map[uuid.UUID]int, error) {
	type row struct {
		ReferenceItemID uuid.UUID
		Total           int
	}
	var rows []row
	err := tx.Model(&models.SaleItem{}).
		Select("sale_items.reference_item_id as reference_item_id, COALESCE(SUM(-sale_items.quantity), 0) as total").
		Joins("JOIN sales ON sales.id = sale_items.sale_id").
		Where("sales.tenant_id = ? AND sales.reference_id = ? AND sale_items.reference_item_id IS NOT NULL", tenantID, originalSaleID).
		Group("sale_items.reference_item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	returned := make(map[uuid.UUID]int, len(rows))
	for _, r := range rows {
		returned[r.ReferenceItemID] = r.Total
	}
	return returned, nil
}
