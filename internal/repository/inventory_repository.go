package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Tesseract-Nexus/go-shared/cache"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/models"
)

// Cache TTL constants
const (
	InventoryCacheTTL     = 2 * time.Minute  // Stock rows change on every sale
	InventoryListCacheTTL = 1 * time.Minute  // List caches - shortest, high churn
	RestockCacheTTL       = 5 * time.Minute  // Reorder report tolerates staleness
)

// InventoryRepository is the persistence layer for inventory rows, the
// movement ledger and reservations. Mutations run through the stock engine;
// this layer owns reads, list queries and cache invalidation.
type InventoryRepository struct {
	db    *gorm.DB
	redis *redis.Client
	cache *cache.CacheLayer
}

func NewInventoryRepository(db *gorm.DB, redisClient *redis.Client) *InventoryRepository {
	repo := &InventoryRepository{
		db:    db,
		redis: redisClient,
	}

	// Initialize CacheLayer with the existing Redis client
	if redisClient != nil {
		cacheConfig := cache.CacheConfig{
			L1Enabled:  true,
			L1MaxItems: 5000,
			L1TTL:      30 * time.Second,
			DefaultTTL: InventoryCacheTTL,
			KeyPrefix:  "tdholdings:inventory:",
		}
		repo.cache = cache.NewCacheLayerFromClient(redisClient, cacheConfig)
	}

	return repo
}

// DB exposes the underlying handle for transaction scoping by the services.
func (r *InventoryRepository) DB() *gorm.DB {
	return r.db
}

// Transaction runs fn inside one database transaction.
func (r *InventoryRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

func inventoryCacheKey(tenantID string, productID, storeID uuid.UUID) string {
	return fmt.Sprintf("inv:%s:%s:%s", tenantID, productID.String(), storeID.String())
}

// InvalidateInventoryCaches drops the row cache and the tenant list caches
// after a committed mutation.
func (r *InventoryRepository) InvalidateInventoryCaches(ctx context.Context, tenantID string, productID, storeID uuid.UUID) {
	if r.cache == nil {
		return
	}

	_ = r.cache.Delete(ctx, inventoryCacheKey(tenantID, productID, storeID))
	_ = r.cache.DeletePattern(ctx, fmt.Sprintf("inv:list:%s:*", tenantID))
	_ = r.cache.DeletePattern(ctx, fmt.Sprintf("inv:restock:%s", tenantID))
}

// RedisHealth returns the health status of the Redis connection
func (r *InventoryRepository) RedisHealth(ctx context.Context) error {
	if r.redis == nil {
		return fmt.Errorf("redis not configured")
	}
	return r.redis.Ping(ctx).Err()
}

// CacheStats returns cache statistics
func (r *InventoryRepository) CacheStats() *cache.CacheStats {
	if r.cache == nil {
		return nil
	}
	stats := r.cache.Stats()
	return &stats
}

// ========== Inventory Reads ==========

// GetInventoryByID retrieves an inventory row by ID
func (r *InventoryRepository) GetInventoryByID(tenantID string, id uuid.UUID) (*models.Inventory, error) {
	var inv models.Inventory
	err := r.db.Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetInventoryByProductStore retrieves the row for one product at one store,
// reading through the cache.
func (r *InventoryRepository) GetInventoryByProductStore(ctx context.Context, tenantID string, productID, storeID uuid.UUID) (*models.Inventory, error) {
	key := inventoryCacheKey(tenantID, productID, storeID)

	// Try to get from cache first
	if r.redis != nil {
		val, err := r.redis.Get(ctx, "tdholdings:inventory:"+key).Result()
		if err == nil {
			var cached models.Inventory
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return &cached, nil
			}
		}
	}

	var inv models.Inventory
	err := r.db.Where("tenant_id = ? AND product_id = ? AND store_id = ?", tenantID, productID, storeID).
		First(&inv).Error
	if err != nil {
		return nil, err
	}

	// Cache the result
	if r.redis != nil {
		if data, marshalErr := json.Marshal(inv); marshalErr == nil {
			r.redis.Set(ctx, "tdholdings:inventory:"+key, data, InventoryCacheTTL)
		}
	}

	return &inv, nil
}

// ListInventories retrieves inventory rows with optional store and product
// filters plus pagination.
func (r *InventoryRepository) ListInventories(tenantID string, storeID, productID *uuid.UUID, page, limit int) ([]models.Inventory, int64, error) {
	var rows []models.Inventory
	var total int64
	query := r.db.Where("tenant_id = ?", tenantID)

	if storeID != nil {
		query = query.Where("store_id = ?", *storeID)
	}
	if productID != nil {
		query = query.Where("product_id = ?", *productID)
	}

	// Get total count
	if err := query.Model(&models.Inventory{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply pagination if specified
	if page > 0 && limit > 0 {
		offset := (page - 1) * limit
		query = query.Offset(offset).Limit(limit)
	}

	err := query.Order("product_id ASC, store_id ASC").Find(&rows).Error
	return rows, total, err
}

// FindStoresWithStock returns rows for a product whose available quantity
// covers the requested amount, excluding one store when set. Ordering by
// main store happens above this layer; here it is availability descending.
func (r *InventoryRepository) FindStoresWithStock(tenantID string, productID uuid.UUID, quantity int, excludeStoreID *uuid.UUID) ([]models.Inventory, error) {
	var rows []models.Inventory
	query := r.db.Where("tenant_id = ? AND product_id = ? AND quantity - quantity_reserved >= ?",
		tenantID, productID, quantity)

	if excludeStoreID != nil {
		query = query.Where("store_id != ?", *excludeStoreID)
	}

	err := query.Order("quantity - quantity_reserved DESC").Find(&rows).Error
	return rows, err
}

// GetStoresNeedingRestock returns rows at or below their reorder level
func (r *InventoryRepository) GetStoresNeedingRestock(tenantID string) ([]models.Inventory, error) {
	var rows []models.Inventory
	err := r.db.Where("tenant_id = ? AND reorder_level IS NOT NULL AND quantity - quantity_reserved <= reorder_level", tenantID).
		Order("quantity - quantity_reserved ASC").
		Find(&rows).Error
	return rows, err
}

// ========== Movement Ledger Reads ==========

// HistoryFilter narrows a movement ledger query
type HistoryFilter struct {
	InventoryID *uuid.UUID
	ProductID   *uuid.UUID
	StoreID     *uuid.UUID
	ChangeType  *models.ChangeType
	ReferenceID *uuid.UUID
	From        *time.Time
	To          *time.Time
}

// ListHistory retrieves ledger rows, newest first, with pagination
func (r *InventoryRepository) ListHistory(tenantID string, filter HistoryFilter, page, limit int) ([]models.InventoryHistory, int64, error) {
	var rows []models.InventoryHistory
	var total int64
	query := r.db.Where("inventory_history.tenant_id = ?", tenantID)

	if filter.InventoryID != nil {
		query = query.Where("inventory_history.inventory_id = ?", *filter.InventoryID)
	}
	if filter.ChangeType != nil {
		query = query.Where("inventory_history.change_type = ?", *filter.ChangeType)
	}
	if filter.ReferenceID != nil {
		query = query.Where("inventory_history.reference_id = ?", *filter.ReferenceID)
	}
	if filter.From != nil {
		query = query.Where("inventory_history.created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("inventory_history.created_at <= ?", *filter.To)
	}
	if filter.ProductID != nil || filter.StoreID != nil {
		query = query.Joins("JOIN inventories ON inventories.id = inventory_history.inventory_id")
		if filter.ProductID != nil {
			query = query.Where("inventories.product_id = ?", *filter.ProductID)
		}
		if filter.StoreID != nil {
			query = query.Where("inventories.store_id = ?", *filter.StoreID)
		}
	}

	if err := query.Model(&models.InventoryHistory{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page > 0 && limit > 0 {
		offset := (page - 1) * limit
		query = query.Offset(offset).Limit(limit)
	}

	err := query.Order("inventory_history.created_at DESC").Find(&rows).Error
	return rows, total, err
}

// GetHistoryForInventory returns the full ledger for one inventory row in
// append order, for integrity replay.
func (r *InventoryRepository) GetHistoryForInventory(tenantID string, inventoryID uuid.UUID) ([]models.InventoryHistory, error) {
	var rows []models.InventoryHistory
	err := r.db.Where("tenant_id = ? AND inventory_id = ?", tenantID, inventoryID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// ========== Reservation Reads ==========

// GetReservationByID retrieves a reservation by ID
func (r *InventoryRepository) GetReservationByID(tenantID string, id uuid.UUID) (*models.StockReservation, error) {
	var res models.StockReservation
	err := r.db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// FindExpiredReservations returns ACTIVE reservations past their expiry,
// across all tenants. Used by the sweeper.
func (r *InventoryRepository) FindExpiredReservations(now time.Time, limit int) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	err := r.db.Where("status = ? AND expires_at < ?", models.ReservationStatusActive, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
