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

type SalesHandler struct {
	sales *services.SalesService
}

func NewSalesHandler(sales *services.SalesService) *SalesHandler {
	return &SalesHandler{sales: sales}
}

// CreateSale records a multi-line sale and decrements stock atomically
func (h *SalesHandler) CreateSale(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID := middleware.GetUserID(c)

	var req models.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	sale, err := h.sales.CreateSale(c.Request.Context(), tenantID, req, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.SaleResponse{
		Success: true,
		Data:    sale,
	})
}

// GetSale returns one sale with its items and void record
func (h *SalesHandler) GetSale(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	saleID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	sale, err := h.sales.GetSale(c.Request.Context(), tenantID, saleID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SaleResponse{
		Success: true,
		Data:    sale,
	})
}

// ListSales returns sales matching the query filters
func (h *SalesHandler) ListSales(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	page, limit := parsePagination(c)

	var filter repository.SaleFilter
	if raw := c.Query("storeId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondValidationError(c, err)
			return
		}
		filter.StoreID = &id
	}
	if raw := c.Query("employeeId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondValidationError(c, err)
			return
		}
		filter.EmployeeID = &id
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
	filter.RefundsOnly = c.Query("refundsOnly") == "true"

	sales, total, err := h.sales.ListSales(c.Request.Context(), tenantID, filter, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SaleListResponse{
		Success:    true,
		Data:       sales,
		Pagination: paginationMeta(page, limit, total),
	})
}

// VoidSale reverses a whole sale and restocks every line
func (h *SalesHandler) VoidSale(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID := middleware.GetUserID(c)

	saleID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.VoidSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	sale, err := h.sales.VoidSale(c.Request.Context(), tenantID, saleID, req.Reason, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SaleResponse{
		Success: true,
		Data:    sale,
	})
}

// ProcessReturn handles a partial return against an original sale
func (h *SalesHandler) ProcessReturn(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID := middleware.GetUserID(c)

	saleID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.ProcessReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	refundSale, err := h.sales.ProcessReturn(c.Request.Context(), tenantID, saleID, req, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.SaleResponse{
		Success: true,
		Data:    refundSale,
	})
}
