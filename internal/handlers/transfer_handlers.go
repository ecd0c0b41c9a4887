package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/middleware"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/models"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/services"
)

type TransferHandler struct {
	transfers *services.TransferService
}

func NewTransferHandler(transfers *services.TransferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

// InitiateTransfer records a pending store-to-store transfer request
func (h *TransferHandler) InitiateTransfer(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID := middleware.GetUserID(c)

	var req models.InitiateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	transfer, err := h.transfers.InitiateTransfer(c.Request.Context(), tenantID, req, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.TransferResponse{
		Success: true,
		Data:    transfer,
	})
}

// GetTransfer returns one transfer by ID
func (h *TransferHandler) GetTransfer(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	transferID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	transfer, err := h.transfers.GetTransfer(c.Request.Context(), tenantID, transferID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.TransferResponse{
		Success: true,
		Data:    transfer,
	})
}

// ListTransfers returns transfers filtered by status and store
func (h *TransferHandler) ListTransfers(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	page, limit := parsePagination(c)

	var status *models.TransferStatus
	if raw := c.Query("status"); raw != "" {
		s := models.TransferStatus(raw)
		if _, ok := models.ValidTransferTransitions[s]; !ok {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "VALIDATION_ERROR",
					Message: "Unknown transfer status: " + raw,
				},
			})
			return
		}
		status = &s
	}

	var storeID *uuid.UUID
	if raw := c.Query("storeId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondValidationError(c, err)
			return
		}
		storeID = &id
	}

	transfers, total, err := h.transfers.ListTransfers(c.Request.Context(), tenantID, status, storeID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.TransferListResponse{
		Success:    true,
		Data:       transfers,
		Pagination: paginationMeta(page, limit, total),
	})
}

// CompleteTransfer moves the stock for a pending transfer
func (h *TransferHandler) CompleteTransfer(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID := middleware.GetUserID(c)

	transferID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	transfer, err := h.transfers.CompleteTransfer(c.Request.Context(), tenantID, transferID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.TransferResponse{
		Success: true,
		Data:    transfer,
	})
}

// CancelTransfer abandons a pending transfer
func (h *TransferHandler) CancelTransfer(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID := middleware.GetUserID(c)

	transferID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.ResolveTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	transfer, err := h.transfers.CancelTransfer(c.Request.Context(), tenantID, transferID, req.Reason, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.TransferResponse{
		Success: true,
		Data:    transfer,
	})
}

// RejectTransfer reverses a completed transfer
func (h *TransferHandler) RejectTransfer(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID := middleware.GetUserID(c)

	transferID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.ResolveTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	transfer, err := h.transfers.RejectTransfer(c.Request.Context(), tenantID, transferID, req.Reason, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.TransferResponse{
		Success: true,
		Data:    transfer,
	})
}
