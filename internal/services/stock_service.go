package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/apperrors"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/clients"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/events"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/models"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/repository"
)

// StockService is the stock engine: every quantity change in the system
// funnels through its applyAdjustment primitive, which pairs one conditional
// update with exactly one ledger row inside the surrounding transaction.
type StockService struct {
	repo     *repository.InventoryRepository
	products clients.ProductsClient
	stores   clients.StoresClient
	activity clients.ActivityClient
	eventPub *events.StockEventPublisher
	logger   *logrus.Entry

	reservationTTL time.Duration
}

func NewStockService(
	repo *repository.InventoryRepository,
	products clients.ProductsClient,
	stores clients.StoresClient,
	activity clients.ActivityClient,
	eventPub *events.StockEventPublisher,
	logger *logrus.Logger,
	reservationTTL time.Duration,
) *StockService {
	if reservationTTL <= 0 {
		reservationTTL = 30 * time.Minute
	}
	return &StockService{
		repo:           repo,
		products:       products,
		stores:         stores,
		activity:       activity,
		eventPub:       eventPub,
		logger:         logger.WithField("component", "stock-service"),
		reservationTTL: reservationTTL,
	}
}

// applyAdjustment mutates one inventory row by delta and appends the matching
// ledger row. The quantity change is a single conditional UPDATE: zero rows
// affected on an existing row means the change would overdraw availability,
// so concurrent decrements cannot both pass a stale read.
func (s *StockService) applyAdjustment(tx *gorm.DB, tenantID string, inventoryID uuid.UUID, delta int, changeType models.ChangeType, referenceID *uuid.UUID, referenceType *string, notes *string, actorID string) (*models.Inventory, error) {
	if delta == 0 {
		return nil, apperrors.InvalidInput("adjustment delta must be non-zero")
	}

	result := tx.Model(&models.Inventory{}).
		Where("tenant_id = ? AND id = ?", tenantID, inventoryID).
		Where("quantity + ? >= quantity_reserved", delta).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", delta),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return nil, apperrors.Storage("adjust inventory quantity", result.Error)
	}

	if result.RowsAffected == 0 {
		var inv models.Inventory
		err := tx.Where("tenant_id = ? AND id = ?", tenantID, inventoryID).First(&inv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("inventory", inventoryID)
		}
		if err != nil {
			return nil, apperrors.Storage("load inventory", err)
		}
		return nil, apperrors.InsufficientInventory(inv.Available(), -delta)
	}

	// Re-read inside the transaction: the row now reflects our update, so
	// the ledger bracket is exact even with concurrent writers.
	var inv models.Inventory
	if err := tx.Where("tenant_id = ? AND id = ?", tenantID, inventoryID).First(&inv).Error; err != nil {
		return nil, apperrors.Storage("load inventory", err)
	}

	history := models.InventoryHistory{
		TenantID:         tenantID,
		InventoryID:      inv.ID,
		ChangeType:       changeType,
		QuantityChange:   delta,
		PreviousQuantity: inv.Quantity - delta,
		NewQuantity:      inv.Quantity,
		ReferenceID:      referenceID,
		ReferenceType:    referenceType,
		Notes:            notes,
		CreatedBy:        actorID,
		CreatedAt:        time.Now(),
	}
	if err := tx.Create(&history).Error; err != nil {
		return nil, apperrors.Storage("append inventory history", err)
	}

	return &inv, nil
}

// getOrCreateInventoryTx fetches the row for (product, store), creating it at
// quantity zero if absent. A concurrent creator losing the unique-index race
// is resolved by re-fetching.
func (s *StockService) getOrCreateInventoryTx(tx *gorm.DB, tenantID string, productID, storeID uuid.UUID, price *float64) (*models.Inventory, bool, error) {
	var inv models.Inventory
	err := tx.Where("tenant_id = ? AND product_id = ? AND store_id = ?", tenantID, productID, storeID).
		First(&inv).Error
	if err == nil {
		return &inv, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, apperrors.Storage("load inventory", err)
	}

	inv = models.Inventory{
		TenantID:   tenantID,
		ProductID:  productID,
		StoreID:    storeID,
		Quantity:   0,
		StorePrice: price,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := tx.Create(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing models.Inventory
			if ferr := tx.Where("tenant_id = ? AND product_id = ? AND store_id = ?", tenantID, productID, storeID).
				First(&existing).Error; ferr == nil {
				return &existing, false, nil
			}
		}
		return nil, false, apperrors.Storage("create inventory", err)
	}

	return &inv, true, nil
}

// validateProduct checks product existence through the products service
func (s *StockService) validateProduct(tenantID string, productID uuid.UUID) error {
	product, err := s.products.GetProduct(productID.String(), tenantID)
	if err != nil {
		return apperrors.Storage("lookup product", err)
	}
	if product == nil {
		return apperrors.NotFound("product", productID)
	}
	return nil
}

// validateStore checks store existence through the stores service
func (s *StockService) validateStore(tenantID string, storeID uuid.UUID) error {
	store, err := s.stores.GetStore(storeID.String(), tenantID)
	if err != nil {
		return apperrors.Storage("lookup store", err)
	}
	if store == nil {
		return apperrors.NotFound("store", storeID)
	}
	return nil
}

// afterStockMutation runs post-commit side effects: cache invalidation, the
// activity trail and stock events. All fire-and-forget; failures are logged
// and never surfaced to the caller.
func (s *StockService) afterStockMutation(ctx context.Context, tenantID string, inv *models.Inventory, previous int, action, actorID string) {
	s.repo.InvalidateInventoryCaches(ctx, tenantID, inv.ProductID, inv.StoreID)

	if s.activity != nil {
		entry := clients.ActivityEntry{
			Action:     action,
			EntityType: "inventory",
			EntityID:   inv.ID.String(),
			ActorID:    actorID,
		}
		if err := s.activity.Record(entry, tenantID); err != nil {
			s.logger.WithFields(logrus.Fields{
				"inventoryId": inv.ID,
				"action":      action,
			}).WithError(err).Warn("Failed to record activity entry")
		}
	}

	if s.eventPub != nil {
		_ = s.eventPub.PublishStockAdjusted(ctx, tenantID, inv.ProductID.String(), inv.StoreID.String(), previous, inv.Quantity, action, actorID)

		if inv.Quantity == 0 {
			_ = s.eventPub.PublishOutOfStockAlert(ctx, tenantID, inv.ProductID.String(), inv.StoreID.String())
		} else if inv.ReorderLevel != nil && inv.Available() <= *inv.ReorderLevel {
			_ = s.eventPub.PublishLowStockAlert(ctx, tenantID, inv.ProductID.String(), inv.StoreID.String(), inv.Available(), *inv.ReorderLevel)
		}
	}
}

// ========== Public Operations ==========

// Allocate creates the inventory row for (product, store) if absent, else
// increments it. The first creation is tagged INITIAL_ALLOCATION in the
// ledger; subsequent allocations are plain purchases.
func (s *StockService) Allocate(ctx context.Context, tenantID string, productID, storeID uuid.UUID, quantity int, actorID string, price *float64) (*models.Inventory, error) {
	if quantity < 0 {
		return nil, apperrors.InvalidInput("allocation quantity must not be negative, got %d", quantity)
	}
	if err := s.validateProduct(tenantID, productID); err != nil {
		return nil, err
	}
	if err := s.validateStore(tenantID, storeID); err != nil {
		return nil, err
	}

	var inv *models.Inventory
	var previous int
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		row, created, err := s.getOrCreateInventoryTx(tx, tenantID, productID, storeID, price)
		if err != nil {
			return err
		}

		if price != nil && !created {
			if err := tx.Model(&models.Inventory{}).
				Where("id = ?", row.ID).
				Update("store_price", *price).Error; err != nil {
				return apperrors.Storage("update store price", err)
			}
			row.StorePrice = price
		}

		previous = row.Quantity
		if quantity == 0 {
			inv = row
			return nil
		}

		var refType *string
		if created {
			rt := models.ReferenceTypeInitialAllocation
			refType = &rt
		}

		inv, err = s.applyAdjustment(tx, tenantID, row.ID, quantity, models.ChangeTypePurchase, nil, refType, nil, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterStockMutation(ctx, tenantID, inv, previous, "inventory.allocated", actorID)
	return inv, nil
}

// Adjust applies a signed delta to one inventory row. This is the public
// face of the engine primitive; every other workflow goes through the same
// internal path.
func (s *StockService) Adjust(ctx context.Context, tenantID string, inventoryID uuid.UUID, delta int, changeType models.ChangeType, actorID string, notes *string, referenceID *uuid.UUID) (*models.Inventory, error) {
	if delta == 0 {
		return nil, apperrors.InvalidInput("adjustment delta must be non-zero")
	}
	if !models.ValidChangeType(changeType) {
		return nil, apperrors.InvalidInput("unknown change type %q", changeType)
	}

	var inv *models.Inventory
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		var err error
		inv, err = s.applyAdjustment(tx, tenantID, inventoryID, delta, changeType, referenceID, nil, notes, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterStockMutation(ctx, tenantID, inv, inv.Quantity-delta, "inventory.adjusted", actorID)
	return inv, nil
}

// CheckAvailability returns the stores able to satisfy the requested
// quantity for a product. The result is an advisory snapshot, not a hold;
// callers must still expect the mutating operation to fail.
func (s *StockService) CheckAvailability(ctx context.Context, tenantID string, productID uuid.UUID, quantity int, excludeStoreID *uuid.UUID) ([]models.StoreAvailability, error) {
	if quantity <= 0 {
		return nil, apperrors.InvalidInput("requested quantity must be positive, got %d", quantity)
	}

	rows, err := s.repo.FindStoresWithStock(tenantID, productID, quantity, excludeStoreID)
	if err != nil {
		return nil, apperrors.Storage("query store availability", err)
	}

	storeInfo := map[string]clients.Store{}
	if storeList, err := s.stores.ListStores(tenantID); err != nil {
		s.logger.WithError(err).Warn("Failed to fetch store names for availability result")
	} else {
		for _, st := range storeList {
			storeInfo[st.ID] = st
		}
	}

	results := make([]models.StoreAvailability, 0, len(rows))
	for _, row := range rows {
		entry := models.StoreAvailability{
			StoreID:     row.StoreID,
			InventoryID: row.ID,
			Available:   row.Available(),
			OnHand:      row.Quantity,
		}
		if st, ok := storeInfo[row.StoreID.String()]; ok {
			entry.StoreName = st.Name
			entry.IsMainStore = st.IsMainStore
		}
		results = append(results, entry)
	}

	// Main store first, then by availability descending (repository order).
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].IsMainStore && !results[j].IsMainStore
	})

	return results, nil
}

// BulkReceive applies allocation semantics to every entry of a shipment in
// one transaction. Any non-positive quantity fails the whole batch before a
// single row is touched.
func (s *StockService) BulkReceive(ctx context.Context, tenantID string, entries []models.BulkReceiveEntry, shipmentID uuid.UUID, actorID string) ([]models.Inventory, error) {
	if len(entries) == 0 {
		return nil, apperrors.InvalidInput("shipment contains no entries")
	}
	for i, entry := range entries {
		if entry.Quantity <= 0 {
			return nil, apperrors.InvalidInput("entry %d: quantity must be positive, got %d", i, entry.Quantity)
		}
	}

	// Validate referenced products and stores once per distinct ID.
	seenProducts := map[uuid.UUID]bool{}
	seenStores := map[uuid.UUID]bool{}
	for _, entry := range entries {
		if !seenProducts[entry.ProductID] {
			if err := s.validateProduct(tenantID, entry.ProductID); err != nil {
				return nil, err
			}
			seenProducts[entry.ProductID] = true
		}
		if !seenStores[entry.StoreID] {
			if err := s.validateStore(tenantID, entry.StoreID); err != nil {
				return nil, err
			}
			seenStores[entry.StoreID] = true
		}
	}

	refType := models.ReferenceTypeShipment
	shipmentRef := shipmentID

	type pending struct {
		inventoryID uuid.UUID
		entry       models.BulkReceiveEntry
		previous    int
	}

	var applied []models.Inventory
	var previousByID map[uuid.UUID]int
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		resolved := make([]pending, 0, len(entries))
		for _, entry := range entries {
			row, _, err := s.getOrCreateInventoryTx(tx, tenantID, entry.ProductID, entry.StoreID, entry.StorePrice)
			if err != nil {
				return err
			}
			resolved = append(resolved, pending{inventoryID: row.ID, entry: entry, previous: row.Quantity})
		}

		// Deterministic row order keeps overlapping batches deadlock-free.
		sort.Slice(resolved, func(i, j int) bool {
			return resolved[i].inventoryID.String() < resolved[j].inventoryID.String()
		})

		applied = applied[:0]
		previousByID = make(map[uuid.UUID]int, len(resolved))
		for _, p := range resolved {
			inv, err := s.applyAdjustment(tx, tenantID, p.inventoryID, p.entry.Quantity, models.ChangeTypePurchase, &shipmentRef, &refType, nil, actorID)
			if err != nil {
				return err
			}
			applied = append(applied, *inv)
			previousByID[inv.ID] = inv.Quantity - p.entry.Quantity
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range applied {
		s.afterStockMutation(ctx, tenantID, &applied[i], previousByID[applied[i].ID], "inventory.received", actorID)
	}
	return applied, nil
}

// SetReorderLevels updates the restock thresholds for one inventory row
func (s *StockService) SetReorderLevels(ctx context.Context, tenantID string, inventoryID uuid.UUID, reorderLevel, optimalLevel int) (*models.Inventory, error) {
	if reorderLevel < 0 || optimalLevel < 0 {
		return nil, apperrors.InvalidInput("reorder levels must not be negative")
	}
	if optimalLevel <= reorderLevel {
		return nil, apperrors.InvalidInput("optimal level %d must be greater than reorder level %d", optimalLevel, reorderLevel)
	}

	inv, err := s.repo.GetInventoryByID(tenantID, inventoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("inventory", inventoryID)
		}
		return nil, apperrors.Storage("load inventory", err)
	}

	if err := s.repo.DB().Model(&models.Inventory{}).
		Where("tenant_id = ? AND id = ?", tenantID, inventoryID).
		Updates(map[string]interface{}{
			"reorder_level": reorderLevel,
			"optimal_level": optimalLevel,
			"updated_at":    time.Now(),
		}).Error; err != nil {
		return nil, apperrors.Storage("update reorder levels", err)
	}

	s.repo.InvalidateInventoryCaches(ctx, tenantID, inv.ProductID, inv.StoreID)
	return s.repo.GetInventoryByID(tenantID, inventoryID)
}

// GetStoresNeedingRestock returns inventory rows at or below their reorder level
func (s *StockService) GetStoresNeedingRestock(ctx context.Context, tenantID string) ([]models.Inventory, error) {
	rows, err := s.repo.GetStoresNeedingRestock(tenantID)
	if err != nil {
		return nil, apperrors.Storage("query restock report", err)
	}
	return rows, nil
}

// ========== Reservations ==========

// Reserve places a time-boxed hold against available stock. On-hand quantity
// is untouched; the hold debits availability until it is released, converted
// or expires.
func (s *StockService) Reserve(ctx context.Context, tenantID string, productID, storeID uuid.UUID, quantity int, orderRef *string, ttl time.Duration, actorID string) (*models.StockReservation, error) {
	if quantity <= 0 {
		return nil, apperrors.InvalidInput("reservation quantity must be positive, got %d", quantity)
	}
	if ttl <= 0 {
		ttl = s.reservationTTL
	}

	var reservation *models.StockReservation
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		var inv models.Inventory
		err := tx.Where("tenant_id = ? AND product_id = ? AND store_id = ?", tenantID, productID, storeID).
			First(&inv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("inventory", fmt.Sprintf("product %s at store %s", productID, storeID))
		}
		if err != nil {
			return apperrors.Storage("load inventory", err)
		}

		result := tx.Model(&models.Inventory{}).
			Where("tenant_id = ? AND id = ?", tenantID, inv.ID).
			Where("quantity_reserved + ? <= quantity", quantity).
			Updates(map[string]interface{}{
				"quantity_reserved": gorm.Expr("quantity_reserved + ?", quantity),
				"updated_at":        time.Now(),
			})
		if result.Error != nil {
			return apperrors.Storage("reserve inventory", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.InsufficientInventory(inv.Available(), quantity)
		}

		now := time.Now()
		reservation = &models.StockReservation{
			TenantID:    tenantID,
			InventoryID: inv.ID,
			Quantity:    quantity,
			OrderRef:    orderRef,
			Status:      models.ReservationStatusActive,
			ReservedBy:  actorID,
			ReservedAt:  now,
			ExpiresAt:   now.Add(ttl),
		}
		if err := tx.Create(reservation).Error; err != nil {
			return apperrors.Storage("create reservation", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.repo.InvalidateInventoryCaches(ctx, tenantID, productID, storeID)
	return reservation, nil
}

// releaseReservationTx gives a hold's quantity back to availability and
// stamps the terminal status.
func (s *StockService) releaseReservationTx(tx *gorm.DB, res *models.StockReservation, terminal models.ReservationStatus) error {
	result := tx.Model(&models.StockReservation{}).
		Where("id = ? AND status = ?", res.ID, models.ReservationStatusActive).
		Updates(map[string]interface{}{
			"status":      terminal,
			"released_at": time.Now(),
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return apperrors.Storage("update reservation", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.InvalidStateTransition("reservation %s is not active", res.ID)
	}

	result = tx.Model(&models.Inventory{}).
		Where("id = ? AND quantity_reserved >= ?", res.InventoryID, res.Quantity).
		Updates(map[string]interface{}{
			"quantity_reserved": gorm.Expr("quantity_reserved - ?", res.Quantity),
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return apperrors.Storage("release reserved quantity", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.Storage("release reserved quantity", fmt.Errorf("reserved quantity under %d on inventory %s", res.Quantity, res.InventoryID))
	}
	return nil
}

// ReleaseReservation cancels an active hold
func (s *StockService) ReleaseReservation(ctx context.Context, tenantID string, reservationID uuid.UUID, actorID string) error {
	var productID, storeID uuid.UUID
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		var res models.StockReservation
		err := tx.Where("tenant_id = ? AND id = ?", tenantID, reservationID).First(&res).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("reservation", reservationID)
		}
		if err != nil {
			return apperrors.Storage("load reservation", err)
		}

		if err := s.releaseReservationTx(tx, &res, models.ReservationStatusReleased); err != nil {
			return err
		}

		var inv models.Inventory
		if err := tx.Where("id = ?", res.InventoryID).First(&inv).Error; err == nil {
			productID, storeID = inv.ProductID, inv.StoreID
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.repo.InvalidateInventoryCaches(ctx, tenantID, productID, storeID)
	return nil
}

// ConvertReservation turns an active hold into a real sale decrement: the
// held quantity leaves both the reservation and on-hand stock in one
// transaction, with a SALE ledger row referencing the reservation.
func (s *StockService) ConvertReservation(ctx context.Context, tenantID string, reservationID uuid.UUID, actorID string) (*models.Inventory, error) {
	var inv *models.Inventory
	var previous int
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		var res models.StockReservation
		err := tx.Where("tenant_id = ? AND id = ?", tenantID, reservationID).First(&res).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("reservation", reservationID)
		}
		if err != nil {
			return apperrors.Storage("load reservation", err)
		}

		result := tx.Model(&models.StockReservation{}).
			Where("id = ? AND status = ?", res.ID, models.ReservationStatusActive).
			Updates(map[string]interface{}{
				"status":       models.ReservationStatusConverted,
				"converted_at": time.Now(),
				"updated_at":   time.Now(),
			})
		if result.Error != nil {
			return apperrors.Storage("update reservation", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.InvalidStateTransition("reservation %s is not active", res.ID)
		}

		result = tx.Model(&models.Inventory{}).
			Where("id = ? AND quantity_reserved >= ?", res.InventoryID, res.Quantity).
			Updates(map[string]interface{}{
				"quantity_reserved": gorm.Expr("quantity_reserved - ?", res.Quantity),
				"updated_at":        time.Now(),
			})
		if result.Error != nil {
			return apperrors.Storage("release reserved quantity", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.Storage("release reserved quantity", fmt.Errorf("reserved quantity under %d on inventory %s", res.Quantity, res.InventoryID))
		}

		// With the hold released first, the decrement cannot overdraw:
		// quantity >= old reserved >= quantity held.
		refType := models.ReferenceTypeReservation
		resID := res.ID
		inv, err = s.applyAdjustment(tx, tenantID, res.InventoryID, -res.Quantity, models.ChangeTypeSale, &resID, &refType, res.OrderRef, actorID)
		if err != nil {
			return err
		}
		previous = inv.Quantity + res.Quantity
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterStockMutation(ctx, tenantID, inv, previous, "inventory.reservation_converted", actorID)
	return inv, nil
}

// ReleaseExpiredReservations gives back all holds past their expiry. Invoked
// by the background sweeper; each hold is released in its own transaction so
// one failure does not wedge the batch.
func (s *StockService) ReleaseExpiredReservations(ctx context.Context) (int, error) {
	expired, err := s.repo.FindExpiredReservations(time.Now(), 500)
	if err != nil {
		return 0, apperrors.Storage("query expired reservations", err)
	}

	released := 0
	for i := range expired {
		res := expired[i]
		err := s.repo.Transaction(func(tx *gorm.DB) error {
			return s.releaseReservationTx(tx, &res, models.ReservationStatusExpired)
		})
		if err != nil {
			if apperrors.IsKind(err, apperrors.KindInvalidStateTransition) {
				continue // Already released or converted by a concurrent caller
			}
			s.logger.WithField("reservationId", res.ID).WithError(err).Error("Failed to release expired reservation")
			continue
		}
		released++
	}

	if released > 0 {
		s.logger.WithField("count", released).Info("Released expired reservations")
	}
	return released, nil
}

// ========== Integrity ==========

// CheckLedgerIntegrity replays the full movement ledger of one inventory row
// and verifies each row's bracket arithmetic, the chain between consecutive
// rows, and agreement with the current quantity.
func (s *StockService) CheckLedgerIntegrity(ctx context.Context, tenantID string, inventoryID uuid.UUID) (*models.IntegrityReport, error) {
	inv, err := s.repo.GetInventoryByID(tenantID, inventoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("inventory", inventoryID)
		}
		return nil, apperrors.Storage("load inventory", err)
	}

	history, err := s.repo.GetHistoryForInventory(tenantID, inventoryID)
	if err != nil {
		return nil, apperrors.Storage("load inventory history", err)
	}

	report := &models.IntegrityReport{
		InventoryID:     inventoryID,
		RowsChecked:     len(history),
		CurrentQuantity: inv.Quantity,
	}

	running := 0
	for i, row := range history {
		if row.NewQuantity != row.PreviousQuantity+row.QuantityChange {
			report.Problems = append(report.Problems,
				fmt.Sprintf("row %s: new quantity %d != previous %d + change %d", row.ID, row.NewQuantity, row.PreviousQuantity, row.QuantityChange))
		}
		if i == 0 {
			running = row.PreviousQuantity
		}
		if row.PreviousQuantity != running {
			report.Problems = append(report.Problems,
				fmt.Sprintf("row %s: previous quantity %d does not chain from %d", row.ID, row.PreviousQuantity, running))
		}
		running = running + row.QuantityChange
		if row.NewQuantity < 0 {
			report.Problems = append(report.Problems,
				fmt.Sprintf("row %s: ledger records negative quantity %d", row.ID, row.NewQuantity))
		}
	}

	report.LedgerQuantity = running
	if running != inv.Quantity {
		report.Problems = append(report.Problems,
			fmt.Sprintf("ledger replays to %d but current quantity is %d", running, inv.Quantity))
	}
	report.Consistent = len(report.Problems) == 0

	return report, nil
}
