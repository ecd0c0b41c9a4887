package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/apperrors"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/models"
)

// respondError maps a service error onto the HTTP surface. The error kind is
// the machine-readable code; the business layer decides the kind, this layer
// only translates it.
func respondError(c *gin.Context, err error) {
	c.JSON(apperrors.HTTPStatus(err), models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    string(apperrors.KindOf(err)),
			Message: err.Error(),
		},
	})
}

func respondValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		},
	})
}

// parseUUIDParam reads a UUID path parameter; false means a 400 was already
// written.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: "Invalid " + name + ": must be a UUID",
			},
		})
		return uuid.Nil, false
	}
	return id, true
}

func parsePositiveInt(raw string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("must be a positive integer, got %q", raw)
	}
	return v, nil
}

// Page-size bounds for list endpoints, overridden from config at boot.
var (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ConfigurePagination sets the default and maximum page sizes used by
// parsePagination. Non-positive values leave the current bound unchanged.
func ConfigurePagination(defaultSize, maxSize int) {
	if defaultSize > 0 {
		defaultPageSize = defaultSize
	}
	if maxSize > 0 {
		maxPageSize = maxSize
	}
}

func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return page, limit
}

func paginationMeta(page, limit int, total int64) *models.PaginationMeta {
	totalPages := int(total) / limit
	if int(total)%limit != 0 {
		totalPages++
	}
	return &models.PaginationMeta{
		Page:       page,
		Limit:      limit,
		TotalItems: total,
		TotalPages: totalPages,
	}
}
