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

type HistoryHandler struct {
	repo  *repository.InventoryRepository
	stock *services.StockService
}

func NewHistoryHandler(repo *repository.InventoryRepository, stock *services.StockService) *HistoryHandler {
	return &HistoryHandler{
		repo:  repo,
		stock: stock,
	}
}

// ListHistory returns movement ledger rows matching the query filters,
// newest first
func (h *HistoryHandler) ListHistory(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	page, limit := parsePagination(c)

	var filter repository.HistoryFilter
	if raw := c.Query("inventoryId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondValidationError(c, err)
			return
		}
		filter.InventoryID = &id
	}
	if raw := c.Query("productId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondValidationError(c, err)
			return
		}
		filter.ProductID = &id
	}
	if raw := c.Query("storeId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondValidationError(c, err)
			return
		}
		filter.StoreID = &id
	}
	if raw := c.Query("changeType"); raw != "" {
		ct := models.ChangeType(raw)
		if !models.ValidChangeType(ct) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "VALIDATION_ERROR",
					Message: "Unknown change type: " + raw,
				},
			})
			return
		}
		filter.ChangeType = &ct
	}
	if raw := c.Query("referenceId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondValidationError(c, err)
			return
		}
		filter.ReferenceID = &id
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondValidationError(c, err)
			return
		}
		filter.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondValidationError(c, err)
			return
		}
		filter.To = &t
	}

	rows, total, err := h.repo.ListHistory(tenantID, filter, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.HistoryListResponse{
		Success:    true,
		Data:       rows,
		Pagination: paginationMeta(page, limit, total),
	})
}

// GetInventoryHistory returns the full ledger for one inventory row in
// append order
func (h *HistoryHandler) GetInventoryHistory(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	inventoryID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	rows, err := h.repo.GetHistoryForInventory(tenantID, inventoryID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.HistoryListResponse{
		Success: true,
		Data:    rows,
	})
}

// CheckIntegrity replays one inventory row's ledger and reports whether it
// agrees with the current quantity
func (h *HistoryHandler) CheckIntegrity(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	inventoryID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	report, err := h.stock.CheckLedgerIntegrity(c.Request.Context(), tenantID, inventoryID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    report,
	})
}
