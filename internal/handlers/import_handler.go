package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/middleware"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/models"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/services"
)

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"`
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity     string                 `json:"entity"`
	Version    string                 `json:"version"`
	Columns    []ImportTemplateColumn `json:"columns"`
	SampleData []map[string]string    `json:"sampleData,omitempty"`
}

// ImportRowError represents an error for a specific row
type ImportRowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Success      bool             `json:"success"`
	TotalRows    int              `json:"totalRows"`
	SuccessCount int              `json:"successCount"`
	FailedCount  int              `json:"failedCount"`
	Errors       []ImportRowError `json:"errors,omitempty"`
	ShipmentID   string           `json:"shipmentId,omitempty"`
}

type ImportHandler struct {
	stock *services.StockService
}

func NewImportHandler(stock *services.StockService) *ImportHandler {
	return &ImportHandler{stock: stock}
}

// ShipmentImportTemplate returns the template for shipment receiving
func ShipmentImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "shipments",
		Version: "1.0",
		Columns: []ImportTemplateColumn{
			{Name: "productId", Description: "Product UUID", Required: true, Type: "string", Example: "7b6a1c1e-0b0e-4f3a-9c2d-1a2b3c4d5e6f"},
			{Name: "storeId", Description: "Receiving store UUID", Required: true, Type: "string", Example: "550e8400-e29b-41d4-a716-446655440000"},
			{Name: "quantity", Description: "Units received (positive)", Required: true, Type: "number", Example: "24"},
			{Name: "storePrice", Description: "Selling price at this store", Required: false, Type: "number", Example: "19.99"},
		},
		SampleData: []map[string]string{
			{
				"productId":  "7b6a1c1e-0b0e-4f3a-9c2d-1a2b3c4d5e6f",
				"storeId":    "550e8400-e29b-41d4-a716-446655440000",
				"quantity":   "24",
				"storePrice": "19.99",
			},
			{
				"productId":  "9c8b7a6d-5e4f-4a3b-8c2d-1f0e9d8c7b6a",
				"storeId":    "550e8400-e29b-41d4-a716-446655440000",
				"quantity":   "12",
				"storePrice": "",
			},
		},
	}
}

// GetShipmentImportTemplate returns the shipment template as JSON, CSV or XLSX
// GET /api/v1/stock/import/template?format=csv|xlsx
func (h *ImportHandler) GetShipmentImportTemplate(c *gin.Context) {
	template := ShipmentImportTemplate()
	format := c.DefaultQuery("format", "json")

	switch format {
	case "csv":
		h.generateCSVTemplate(c, template, "shipments")
	case "xlsx":
		h.generateXLSXTemplate(c, template, "Shipments")
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "template": template})
	}
}

func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template ImportTemplate, entity string) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_import_template.csv", entity))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
	}
	writer.Write(headers)

	for _, sample := range template.SampleData {
		row := make([]string, len(template.Columns))
		for i, col := range template.Columns {
			row[i] = sample[col.Name]
		}
		writer.Write(row)
	}
}

func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template ImportTemplate, sheetName string) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})

	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		headerText := col.Name
		if col.Required {
			headerText = col.Name + " *"
		}
		f.SetCellValue(sheetName, cell, headerText)

		if col.Required {
			f.SetCellStyle(sheetName, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 18)
	}

	for rowIdx, sample := range template.SampleData {
		for colIdx, col := range template.Columns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, sample[col.Name])
		}
	}

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_import_template.xlsx", strings.ToLower(sheetName)))

	f.Write(c.Writer)
}

// ImportShipment receives a shipment file and applies it as one atomic bulk
// receive. Any malformed row rejects the whole file before stock is touched.
// POST /api/v1/stock/import
func (h *ImportHandler) ImportShipment(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID := middleware.GetUserID(c)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "FILE_REQUIRED", Message: "Please upload a CSV or Excel file"},
		})
		return
	}
	defer file.Close()

	validateOnly := c.DefaultPostForm("validateOnly", "false") == "true"

	shipmentID := uuid.New()
	if raw := c.PostForm("shipmentId"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error:   models.Error{Code: "VALIDATION_ERROR", Message: "shipmentId must be a UUID"},
			})
			return
		}
		shipmentID = parsed
	}

	rows, parseErr := h.parseFile(file, header.Filename)
	if parseErr != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "PARSE_ERROR", Message: parseErr.Error()},
		})
		return
	}

	if len(rows) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "EMPTY_FILE", Message: "The file contains no data rows"},
		})
		return
	}

	result := &ImportResult{TotalRows: len(rows), ShipmentID: shipmentID.String()}

	entries := make([]models.BulkReceiveEntry, 0, len(rows))
	for _, row := range rows {
		rowNum, _ := strconv.Atoi(row["_row"])

		productID, err := uuid.Parse(row["productid"])
		if err != nil {
			result.Errors = append(result.Errors, ImportRowError{Row: rowNum, Column: "productId", Code: "INVALID_UUID", Message: "productId must be a UUID"})
			continue
		}
		storeID, err := uuid.Parse(row["storeid"])
		if err != nil {
			result.Errors = append(result.Errors, ImportRowError{Row: rowNum, Column: "storeId", Code: "INVALID_UUID", Message: "storeId must be a UUID"})
			continue
		}
		quantity, err := strconv.Atoi(row["quantity"])
		if err != nil || quantity <= 0 {
			result.Errors = append(result.Errors, ImportRowError{Row: rowNum, Column: "quantity", Code: "INVALID_QUANTITY", Message: "quantity must be a positive integer"})
			continue
		}

		entry := models.BulkReceiveEntry{
			ProductID: productID,
			StoreID:   storeID,
			Quantity:  quantity,
		}
		if raw := row["storeprice"]; raw != "" {
			price, err := strconv.ParseFloat(raw, 64)
			if err != nil || price < 0 {
				result.Errors = append(result.Errors, ImportRowError{Row: rowNum, Column: "storePrice", Code: "INVALID_PRICE", Message: "storePrice must be a non-negative number"})
				continue
			}
			entry.StorePrice = &price
		}
		entries = append(entries, entry)
	}

	result.FailedCount = len(result.Errors)
	if result.FailedCount > 0 {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}

	if validateOnly {
		result.Success = true
		result.SuccessCount = len(entries)
		c.JSON(http.StatusOK, result)
		return
	}

	if _, err := h.stock.BulkReceive(c.Request.Context(), tenantID, entries, shipmentID, userID); err != nil {
		respondError(c, err)
		return
	}

	result.Success = true
	result.SuccessCount = len(entries)
	c.JSON(http.StatusOK, result)
}

func (h *ImportHandler) parseFile(file io.Reader, filename string) ([]map[string]string, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return h.parseCSV(file)
	} else if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		return h.parseXLSX(file)
	}
	return nil, fmt.Errorf("only CSV and XLSX files are supported")
}

func (h *ImportHandler) parseCSV(file io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(file)

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	for i := range headers {
		headers[i] = strings.TrimSpace(strings.ToLower(headers[i]))
		headers[i] = strings.TrimSuffix(headers[i], " *")
	}

	var rows []map[string]string
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading line %d: %w", lineNum+1, err)
		}

		row := make(map[string]string)
		for i, value := range record {
			if i < len(headers) {
				row[headers[i]] = strings.TrimSpace(value)
			}
		}
		row["_row"] = strconv.Itoa(lineNum + 1)
		rows = append(rows, row)
		lineNum++
	}

	return rows, nil
}

func (h *ImportHandler) parseXLSX(file io.Reader) ([]map[string]string, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}

	sheetName := sheets[0]
	excelRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	if len(excelRows) < 2 {
		return nil, fmt.Errorf("file must have a header row and at least one data row")
	}

	headers := excelRows[0]
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.ToLower(headers[i]))
		headers[i] = strings.TrimSuffix(headers[i], " *")
	}

	var rows []map[string]string
	for rowIdx, excelRow := range excelRows[1:] {
		row := make(map[string]string)
		for i, value := range excelRow {
			if i < len(headers) {
				row[headers[i]] = strings.TrimSpace(value)
			}
		}
		row["_row"] = strconv.Itoa(rowIdx + 2)
		rows = append(rows, row)
	}

	return rows, nil
}
