package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/apperrors"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/clients"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/models"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/repository"
)

// SalesService drives the point-of-sale workflow: sale creation decrements
// stock atomically across all lines, voids restock and are guarded by a
// unique reversal record, and partial returns are new negative sales. Sale
// rows themselves are never mutated.
type SalesService struct {
	repo   *repository.SalesRepository
	stock  *StockService
	staff  clients.StaffClient
	logger *logrus.Entry

	taxRate    float64
	voidWindow time.Duration
}

func NewSalesService(repo *repository.SalesRepository, stock *StockService, staff clients.StaffClient, logger *logrus.Logger, taxRate float64, voidWindowDays int) *SalesService {
	if taxRate < 0 {
		taxRate = 0
	}
	if voidWindowDays <= 0 {
		voidWindowDays = 30
	}
	return &SalesService{
		repo:       repo,
		stock:      stock,
		staff:      staff,
		logger:     logger.WithField("component", "sales-service"),
		taxRate:    taxRate,
		voidWindow: time.Duration(voidWindowDays) * 24 * time.Hour,
	}
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// validateEmployee checks the employee exists, is active and belongs to the
// store the sale is rung up at.
func (s *SalesService) validateEmployee(tenantID string, employeeID, storeID uuid.UUID) error {
	employee, err := s.staff.GetEmployee(employeeID.String(), tenantID)
	if err != nil {
		return apperrors.Storage("lookup employee", err)
	}
	if employee == nil {
		return apperrors.NotFound("employee", employeeID)
	}
	if !employee.Active {
		return apperrors.PolicyViolation("employee %s is not active", employeeID)
	}
	if employee.StoreID != "" && employee.StoreID != storeID.String() {
		return apperrors.PolicyViolation("employee %s is not assigned to store %s", employeeID, storeID)
	}
	return nil
}

// CreateSale records a multi-line sale and decrements stock for every line
// in one transaction. Any line short on stock rolls back the whole sale.
func (s *SalesService) CreateSale(ctx context.Context, tenantID string, req models.CreateSaleRequest, actorID string) (*models.Sale, error) {
	if len(req.Items) == 0 {
		return nil, apperrors.InvalidInput("sale contains no items")
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, apperrors.InvalidInput("item %d: quantity must be positive, got %d", i, item.Quantity)
		}
		if item.UnitPrice != nil && *item.UnitPrice < 0 {
			return nil, apperrors.InvalidInput("item %d: unit price must not be negative", i)
		}
	}

	if err := s.stock.validateStore(tenantID, req.StoreID); err != nil {
		return nil, err
	}
	if err := s.validateEmployee(tenantID, req.EmployeeID, req.StoreID); err != nil {
		return nil, err
	}

	refType := models.ReferenceTypeSale
	var sale *models.Sale
	var touched []models.Inventory
	var previousByID map[uuid.UUID]int

	err := s.stock.repo.Transaction(func(tx *gorm.DB) error {
		type line struct {
			inventoryID uuid.UUID
			req         models.CreateSaleItemRequest
			unitPrice   float64
		}

		lines := make([]line, 0, len(req.Items))
		for _, item := range req.Items {
			var inv models.Inventory
			err := tx.Where("tenant_id = ? AND product_id = ? AND store_id = ?", tenantID, item.ProductID, req.StoreID).
				First(&inv).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("inventory", fmt.Sprintf("product %s at store %s", item.ProductID, req.StoreID))
			}
			if err != nil {
				return apperrors.Storage("load inventory", err)
			}

			// Prices are frozen at sale time: an explicit request price
			// wins (zero is a free item), an absent one falls back to the
			// store price.
			var unitPrice float64
			switch {
			case item.UnitPrice != nil:
				unitPrice = *item.UnitPrice
			case inv.StorePrice != nil:
				unitPrice = *inv.StorePrice
			default:
				return apperrors.InvalidInput("product %s has no store price at store %s; unitPrice is required", item.ProductID, req.StoreID)
			}

			lines = append(lines, line{inventoryID: inv.ID, req: item, unitPrice: unitPrice})
		}

		subtotal := 0.0
		saleItems := make([]models.SaleItem, 0, len(lines))
		for _, l := range lines {
			lineSubtotal := roundMoney(float64(l.req.Quantity) * l.unitPrice)
			subtotal += lineSubtotal
			saleItems = append(saleItems, models.SaleItem{
				TenantID:  tenantID,
				ProductID: l.req.ProductID,
				Quantity:  l.req.Quantity,
				UnitPrice: l.unitPrice,
				Subtotal:  lineSubtotal,
			})
		}
		subtotal = roundMoney(subtotal)
		tax := roundMoney(subtotal * s.taxRate)

		sale = &models.Sale{
			TenantID:      tenantID,
			StoreID:       req.StoreID,
			EmployeeID:    req.EmployeeID,
			Subtotal:      subtotal,
			Tax:           tax,
			Total:         roundMoney(subtotal + tax),
			PaymentMethod: req.PaymentMethod,
			CustomerName:  req.CustomerName,
			CustomerPhone: req.CustomerPhone,
			Metadata:      req.Metadata,
			CreatedBy:     actorID,
			CreatedAt:     time.Now(),
			Items:         saleItems,
		}
		if err := tx.Create(sale).Error; err != nil {
			return apperrors.Storage("create sale", err)
		}

		// Decrement in inventory ID order so two overlapping sales take
		// rows in the same sequence.
		sortLinesByInventoryID(lines, func(l line) uuid.UUID { return l.inventoryID })

		touched = touched[:0]
		previousByID = make(map[uuid.UUID]int, len(lines))
		for _, l := range lines {
			inv, err := s.stock.applyAdjustment(tx, tenantID, l.inventoryID, -l.req.Quantity, models.ChangeTypeSale, &sale.ID, &refType, nil, actorID)
			if err != nil {
				return err
			}
			// Duplicate product lines hit the same row; publish one
			// mutation per row from the quantity before the first hit.
			if _, seen := previousByID[inv.ID]; !seen {
				previousByID[inv.ID] = inv.Quantity + l.req.Quantity
				touched = append(touched, *inv)
				continue
			}
			for i := range touched {
				if touched[i].ID == inv.ID {
					touched[i] = *inv
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range touched {
		s.stock.afterStockMutation(ctx, tenantID, &touched[i], previousByID[touched[i].ID], "sale.created", actorID)
	}

	s.logger.WithFields(logrus.Fields{
		"saleId":  sale.ID,
		"storeId": req.StoreID,
		"total":   sale.Total,
		"items":   len(sale.Items),
	}).Info("Sale created")
	return sale, nil
}

// VoidSale reverses a whole sale: every line's quantity returns to stock and
// a VoidedSale record is written. The unique index on the reversal record
// means exactly one of two concurrent void attempts succeeds.
func (s *SalesService) VoidSale(ctx context.Context, tenantID string, saleID uuid.UUID, reason string, actorID string) (*models.Sale, error) {
	if reason == "" {
		return nil, apperrors.InvalidInput("void reason is required")
	}

	refType := models.ReferenceTypeSaleVoid
	var sale *models.Sale
	var touched []models.Inventory
	var previousByID map[uuid.UUID]int

	err := s.stock.repo.Transaction(func(tx *gorm.DB) error {
		var err error
		sale, err = s.lockSale(tx, tenantID, saleID)
		if err != nil {
			return err
		}
		if sale.ReferenceID != nil {
			return apperrors.PolicyViolation("refund sale %s cannot be voided", saleID)
		}
		if sale.Voided != nil {
			return apperrors.AlreadyVoided(saleID.String())
		}
		if time.Since(sale.CreatedAt) > s.voidWindow {
			return apperrors.PolicyViolation("sale %s is older than the %d-day void window", saleID, int(s.voidWindow.Hours()/24))
		}

		voided := models.VoidedSale{
			TenantID:      tenantID,
			SaleID:        sale.ID,
			Reason:        reason,
			OriginalTotal: sale.Total,
			VoidedBy:      actorID,
			VoidedAt:      time.Now(),
		}
		if err := tx.Create(&voided).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.AlreadyVoided(sale.ID.String())
			}
			return apperrors.Storage("create void record", err)
		}

		lines := make([]productQty, 0, len(sale.Items))
		for _, item := range sale.Items {
			lines = append(lines, productQty{productID: item.ProductID, qty: item.Quantity})
		}
		restocks, err := s.resolveRestocks(tx, tenantID, sale.StoreID, lines)
		if err != nil {
			return err
		}

		touched, previousByID, err = s.applyRestocks(tx, tenantID, restocks, sale.ID, refType, &reason, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	for i := range touched {
		s.stock.afterStockMutation(ctx, tenantID, &touched[i], previousByID[touched[i].ID], "sale.voided", actorID)
	}

	s.logger.WithFields(logrus.Fields{
		"saleId": sale.ID,
		"reason": reason,
	}).Info("Sale voided")
	return s.getSale(tenantID, saleID)
}

// ProcessReturn handles a partial return: selected lines come back to stock
// and a new refund sale with negative amounts is written, linked to the
// original. The original sale row stays untouched.
func (s *SalesService) ProcessReturn(ctx context.Context, tenantID string, saleID uuid.UUID, req models.ProcessReturnRequest, actorID string) (*models.Sale, error) {
	if len(req.Items) == 0 {
		return nil, apperrors.InvalidInput("return contains no items")
	}

	refType := models.ReferenceTypeSaleReturn
	var sale *models.Sale
	var refundSale *models.Sale
	var touched []models.Inventory
	var previousByID map[uuid.UUID]int

	err := s.stock.repo.Transaction(func(tx *gorm.DB) error {
		// The row lock serializes overlapping returns against the same
		// sale, so the remaining-quantity check below cannot be dodged by
		// a concurrent refund committing between read and write.
		var err error
		sale, err = s.lockSale(tx, tenantID, saleID)
		if err != nil {
			return err
		}
		if sale.ReferenceID != nil {
			return apperrors.PolicyViolation("refund sale %s cannot be returned against", saleID)
		}
		if sale.Voided != nil {
			return apperrors.PolicyViolation("sale %s has been voided; nothing left to return", saleID)
		}

		itemsByID := make(map[uuid.UUID]models.SaleItem, len(sale.Items))
		for _, item := range sale.Items {
			itemsByID[item.ID] = item
		}

		alreadyReturned, err := s.repo.SumReturnedQuantity(tx, tenantID, sale.ID)
		if err != nil {
			return apperrors.Storage("sum returned quantities", err)
		}

		lines := make([]returnLine, 0, len(req.Items))
		requested := map[uuid.UUID]int{}
		for _, r := range req.Items {
			item, ok := itemsByID[r.SaleItemID]
			if !ok {
				return apperrors.InvalidInput("sale item %s does not belong to sale %s", r.SaleItemID, saleID)
			}
			if r.Quantity <= 0 {
				return apperrors.InvalidInput("return quantity for item %s must be positive", r.SaleItemID)
			}

			// The cap is per original line: two lines of the same product
			// earn their own returnable quantities.
			requested[item.ID] += r.Quantity
			remaining := item.Quantity - alreadyReturned[item.ID]
			if requested[item.ID] > remaining {
				return apperrors.PolicyViolation("cannot return %d of sale item %s; only %d remain returnable", requested[item.ID], item.ID, remaining)
			}

			refund := roundMoney(float64(r.Quantity) * item.UnitPrice)
			if r.RefundAmount != nil {
				if *r.RefundAmount < 0 {
					return apperrors.InvalidInput("refund amount for item %s must not be negative", r.SaleItemID)
				}
				if *r.RefundAmount > refund {
					return apperrors.PolicyViolation("refund %0.2f for item %s exceeds the %0.2f originally paid", *r.RefundAmount, r.SaleItemID, refund)
				}
				refund = roundMoney(*r.RefundAmount)
			}

			lines = append(lines, returnLine{item: item, qty: r.Quantity, refund: refund})
		}

		refundSubtotal := 0.0
		refundItems := make([]models.SaleItem, 0, len(lines))
		for _, l := range lines {
			refundSubtotal += l.refund
			originalItemID := l.item.ID
			refundItems = append(refundItems, models.SaleItem{
				TenantID:        tenantID,
				ProductID:       l.item.ProductID,
				ReferenceItemID: &originalItemID,
				Quantity:        -l.qty,
				UnitPrice:       l.item.UnitPrice,
				Subtotal:        -l.refund,
			})
		}
		refundSubtotal = roundMoney(refundSubtotal)

		// Refunds carry no tax line; the refunded amount is the line
		// subtotal only.
		originalID := sale.ID
		refundSale = &models.Sale{
			TenantID:      tenantID,
			StoreID:       sale.StoreID,
			EmployeeID:    sale.EmployeeID,
			Subtotal:      -refundSubtotal,
			Tax:           0,
			Total:         -refundSubtotal,
			PaymentMethod: sale.PaymentMethod,
			CustomerName:  sale.CustomerName,
			CustomerPhone: sale.CustomerPhone,
			ReferenceID:   &originalID,
			CreatedBy:     actorID,
			CreatedAt:     time.Now(),
			Items:         refundItems,
		}
		if err := tx.Create(refundSale).Error; err != nil {
			return apperrors.Storage("create refund sale", err)
		}

		restockReqs := make([]productQty, 0, len(lines))
		for _, l := range lines {
			restockReqs = append(restockReqs, productQty{productID: l.item.ProductID, qty: l.qty})
		}
		restocks, err := s.resolveRestocks(tx, tenantID, sale.StoreID, restockReqs)
		if err != nil {
			return err
		}

		touched, previousByID, err = s.applyRestocks(tx, tenantID, restocks, refundSale.ID, refType, req.Reason, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	for i := range touched {
		s.stock.afterStockMutation(ctx, tenantID, &touched[i], previousByID[touched[i].ID], "sale.returned", actorID)
	}

	s.logger.WithFields(logrus.Fields{
		"saleId":       sale.ID,
		"refundSaleId": refundSale.ID,
		"refundTotal":  refundSale.Total,
	}).Info("Return processed")
	return refundSale, nil
}

// GetSale returns one sale with its items and void record
func (s *SalesService) GetSale(ctx context.Context, tenantID string, saleID uuid.UUID) (*models.Sale, error) {
	return s.getSale(tenantID, saleID)
}

func (s *SalesService) getSale(tenantID string, saleID uuid.UUID) (*models.Sale, error) {
	sale, err := s.repo.GetSaleByID(tenantID, saleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("sale", saleID)
		}
		return nil, apperrors.Storage("load sale", err)
	}
	return sale, nil
}

// ListSales returns sales matching the filter
func (s *SalesService) ListSales(ctx context.Context, tenantID string, filter repository.SaleFilter, page, limit int) ([]models.Sale, int64, error) {
	sales, total, err := s.repo.ListSales(tenantID, filter, page, limit)
	if err != nil {
		return nil, 0, apperrors.Storage("list sales", err)
	}
	return sales, total, nil
}

// ========== Internal helpers ==========

type productQty struct {
	productID uuid.UUID
	qty       int
}

type restockLine struct {
	inventoryID uuid.UUID
	quantity    int
}

type returnLine struct {
	item   models.SaleItem
	qty    int
	refund float64
}

// sortLinesByInventoryID orders rows so overlapping transactions always take
// inventory rows in the same sequence.
func sortLinesByInventoryID[T any](lines []T, id func(T) uuid.UUID) {
	sort.Slice(lines, func(i, j int) bool {
		return id(lines[i]).String() < id(lines[j]).String()
	})
}

// lockSale loads a sale with its items and void record after taking a row
// lock on it. Concurrent voids and returns against the same sale serialize
// on that lock; on sqlite the locking clause is a no-op and the single
// writer serializes them instead.
func (s *SalesService) lockSale(tx *gorm.DB, tenantID string, saleID uuid.UUID) (*models.Sale, error) {
	var row models.Sale
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("tenant_id = ? AND id = ?", tenantID, saleID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("sale", saleID)
	}
	if err != nil {
		return nil, apperrors.Storage("load sale", err)
	}

	sale, err := s.repo.GetSaleByIDTx(tx, tenantID, saleID)
	if err != nil {
		return nil, apperrors.Storage("load sale", err)
	}
	return sale, nil
}

// resolveRestocks maps product quantities back to inventory rows at the
// store, one restock per line so the ledger keeps a row per returned item,
// sorted for deterministic row order.
func (s *SalesService) resolveRestocks(tx *gorm.DB, tenantID string, storeID uuid.UUID, lines []productQty) ([]restockLine, error) {
	restocks := make([]restockLine, 0, len(lines))
	invByProduct := map[uuid.UUID]uuid.UUID{}
	for _, l := range lines {
		invID, ok := invByProduct[l.productID]
		if !ok {
			inv, _, err := s.stock.getOrCreateInventoryTx(tx, tenantID, l.productID, storeID, nil)
			if err != nil {
				return nil, err
			}
			invID = inv.ID
			invByProduct[l.productID] = invID
		}
		restocks = append(restocks, restockLine{inventoryID: invID, quantity: l.qty})
	}

	sortLinesByInventoryID(restocks, func(l restockLine) uuid.UUID { return l.inventoryID })
	return restocks, nil
}

// applyRestocks increments each restock line, collapsing repeated hits on
// the same inventory row so callers publish one mutation per row with the
// quantity before the first increment.
func (s *SalesService) applyRestocks(tx *gorm.DB, tenantID string, restocks []restockLine, referenceID uuid.UUID, referenceType string, notes *string, actorID string) ([]models.Inventory, map[uuid.UUID]int, error) {
	touched := make([]models.Inventory, 0, len(restocks))
	previous := make(map[uuid.UUID]int, len(restocks))
	for _, r := range restocks {
		inv, err := s.stock.applyAdjustment(tx, tenantID, r.inventoryID, r.quantity, models.ChangeTypeReturn, &referenceID, &referenceType, notes, actorID)
		if err != nil {
			return nil, nil, err
		}
		if _, seen := previous[inv.ID]; !seen {
			previous[inv.ID] = inv.Quantity - r.quantity
			touched = append(touched, *inv)
			continue
		}
		for i := range touched {
			if touched[i].ID == inv.ID {
				touched[i] = *inv
			}
		}
	}
	return touched, previous, nil
}
