package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/middleware"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/models"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/repository"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/services"
)

type StockHandler struct {
	stock *services.StockService
	repo  *repository.InventoryRepository
}

func NewStockHandler(stock *services.StockService, repo *repository.InventoryRepository) *StockHandler {
	return &StockHandler{
		stock: stock,
		repo:  repo,
	}
}

// ========== Stock Handlers ==========

// AllocateStock creates or tops up the inventory row for a product at a store
func (h *StockHandler) AllocateStock(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID := middleware.GetUserID(c)

	var req models.AllocateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	inv, err := h.stock.Allocate(c.Request.Context(), tenantID, req.ProductID, req.StoreID, req.Quantity, userID, req.StorePrice)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.InventoryResponse{
		Success: true,
		Data:    inv,
	})
}

// AdjustStock applies a signed quantity delta to one inventory row
func (h *StockHandler) AdjustStock(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID := middleware.GetUserID(c)

	inventoryID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	inv, err := h.stock.Adjust(c.Request.Context(), tenantID, inventoryID, req.Delta, req.ChangeType, userID, req.Notes, req.ReferenceID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.InventoryResponse{
		Success: true,
		Data:    inv,
	})
}

// GetStock returns one inventory row by ID
func (h *StockHandler) GetStock(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	inventoryID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	inv, err := h.repo.GetInventoryByID(tenantID, inventoryID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "NOT_FOUND",
				Message: "Inventory not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.InventoryResponse{
		Success: true,
		Data:    inv,
	})
}

// GetStockLevel returns the inventory row for one product at one store
func (h *StockHandler) GetStockLevel(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	productID, err := uuid.Parse(c.Query("productId"))
	if err != nil {
		respondValidationError(c, err)
		return
	}
	storeID, err := uuid.Parse(c.Query("storeId"))
	if err != nil {
		respondValidationError(c, err)
		return
	}

	inv, err := h.repo.GetInventoryByProductStore(c.Request.Context(), tenantID, productID, storeID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "NOT_FOUND",
				Message: "Inventory not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.InventoryResponse{
		Success: true,
		Data:    inv,
	})
}

// ListStock returns inventory rows filtered by store and product
func (h *StockHandler) ListStock(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	page, limit := parsePagination(c)

	var storeID, productID *uuid.UUID
	if raw := c.Query("storeId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondValidationError(c, err)
			return
		}
		storeID = &id
	}
	if raw := c.Query("productId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondValidationError(c, err)
			return
		}
		productID = &id
	}

	rows, total, err := h.repo.ListInventories(tenantID, storeID, productID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.InventoryListResponse{
		Success:    true,
		Data:       rows,
		Pagination: paginationMeta(page, limit, total),
	})
}

// CheckAvailability returns the stores able to fill a requested quantity
func (h *StockHandler) CheckAvailability(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	productID, err := uuid.Parse(c.Query("productId"))
	if err != nil {
		respondValidationError(c, err)
		return
	}

	quantity := 1
	if raw := c.Query("quantity"); raw != "" {
		q, err := parsePositiveInt(raw)
		if err != nil {
			respondValidationError(c, err)
			return
		}
		quantity = q
	}

	var excludeStoreID *uuid.UUID
	if raw := c.Query("excludeStoreId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondValidationError(c, err)
			return
		}
		excludeStoreID = &id
	}

	stores, err := h.stock.CheckAvailability(c.Request.Context(), tenantID, productID, quantity, excludeStoreID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AvailabilityResponse{
		Success: true,
		Data:    stores,
	})
}

// BulkReceive applies a shipment to inventory in one transaction
func (h *StockHandler) BulkReceive(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID := middleware.GetUserID(c)

	var req models.BulkReceiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	rows, err := h.stock.BulkReceive(c.Request.Context(), tenantID, req.Entries, req.ShipmentID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.InventoryListResponse{
		Success: true,
		Data:    rows,
	})
}

// SetReorderLevels updates restock thresholds on one inventory row
func (h *StockHandler) SetReorderLevels(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	inventoryID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.SetReorderLevelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	inv, err := h.stock.SetReorderLevels(c.Request.Context(), tenantID, inventoryID, req.ReorderLevel, req.OptimalLevel)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.InventoryResponse{
		Success: true,
		Data:    inv,
	})
}

// GetRestockReport returns inventory rows at or below their reorder level
func (h *StockHandler) GetRestockReport(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	rows, err := h.stock.GetStoresNeedingRestock(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.InventoryListResponse{
		Success: true,
		Data:    rows,
	})
}

// ========== Reservation Handlers ==========

// ReserveStock places a time-boxed hold against available stock
func (h *StockHandler) ReserveStock(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID := middleware.GetUserID(c)

	var req models.ReserveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	var ttl time.Duration
	if req.TTLMinutes != nil {
		ttl = time.Duration(*req.TTLMinutes) * time.Minute
	}

	reservation, err := h.stock.Reserve(c.Request.Context(), tenantID, req.ProductID, req.StoreID, req.Quantity, req.OrderRef, ttl, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.ReservationResponse{
		Success: true,
		Data:    reservation,
	})
}

// GetReservation returns one reservation by ID
func (h *StockHandler) GetReservation(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	reservationID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	reservation, err := h.repo.GetReservationByID(tenantID, reservationID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "NOT_FOUND",
				Message: "Reservation not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.ReservationResponse{
		Success: true,
		Data:    reservation,
	})
}

// ReleaseReservation cancels an active hold
func (h *StockHandler) ReleaseReservation(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID := middleware.GetUserID(c)

	reservationID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.stock.ReleaseReservation(c.Request.Context(), tenantID, reservationID, userID); err != nil {
		respondError(c, err)
		return
	}

	msg := "Reservation released"
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: &msg,
	})
}

// ConvertReservation turns an active hold into a real stock decrement
func (h *StockHandler) ConvertReservation(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID := middleware.GetUserID(c)

	reservationID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	inv, err := h.stock.ConvertReservation(c.Request.Context(), tenantID, reservationID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.InventoryResponse{
		Success: true,
		Data:    inv,
	})
}
