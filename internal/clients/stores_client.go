package clients

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StoresClient defines the interface for communicating with stores-service
type StoresClient interface {
	// GetStore fetches a store by ID; a nil store means it does not exist
	GetStore(storeID string, tenantID string) (*Store, error)
	// ListStores fetches all stores for a tenant (used to decorate
	// availability results with names and main-store ordering)
	ListStores(tenantID string) ([]Store, error)
}

// Store represents the store fields the inventory engine needs
type Store struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsMainStore bool   `json:"isMainStore"`
}

type storeResponse struct {
	Success bool  `json:"success"`
	Data    Store `json:"data"`
}

type storeListResponse struct {
	Success bool    `json:"success"`
	Data    []Store `json:"data"`
}

type storesClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewStoresClient creates a new stores service client
func NewStoresClient(baseURL string) StoresClient {
	return &storesClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *storesClient) GetStore(storeID string, tenantID string) (*Store, error) {
	url := fmt.Sprintf("%s/api/v1/stores/%s", c.baseURL, storeID)
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
		return nil, fmt.Errorf("stores service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var storeResp storeResponse
	if err := json.NewDecoder(resp.Body).Decode(&storeResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &storeResp.Data, nil
}

func (c *storesClient) ListStores(tenantID string) ([]Store, error) {
	url := fmt.Sprintf("%s/api/v1/stores", c.baseURL)
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

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("stores service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var listResp storeListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return listResp.Data, nil
}
