package clients

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StaffClient defines the interface for communicating with staff-service
type StaffClient interface {
	// GetEmployee fetches an employee by ID; a nil employee means it does
	// not exist
	GetEmployee(employeeID string, tenantID string) (*Employee, error)
}

// Employee represents the staff fields the sales workflow needs
type Employee struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	StoreID string `json:"storeId"`
	Active  bool   `json:"active"`
}

type employeeResponse struct {
	Success bool     `json:"success"`
	Data    Employee `json:"data"`
}

type staffClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewStaffClient creates a new staff service client
func NewStaffClient(baseURL string) StaffClient {
	return &staffClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *staffClient) GetEmployee(employeeID string, tenantID string) (*Employee, error) {
	url := fmt.Sprintf("%s/api/v1/staff/%s", c.baseURL, employeeID)
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("staff service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var empResp employeeResponse
	if err := json.NewDecoder(resp.Body).Decode(&empResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &empResp.Data, nil
}
