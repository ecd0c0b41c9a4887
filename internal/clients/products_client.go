package clients

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProductsClient defines the interface for communicating with products-service
type ProductsClient interface {
	// GetProduct fetches a product by ID; a nil product means it does not exist
	GetProduct(productID string, tenantID string) (*Product, error)
}

// Product represents the product fields the inventory engine needs
type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	SKU  string `json:"sku,omitempty"`
}

type productResponse struct {
	Success bool    `json:"success"`
	Data    Product `json:"data"`
}

type productsClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewProductsClient creates a new products service client
func NewProductsClient(baseURL string) ProductsClient {
	return &productsClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetProduct fetches product details from products-service
func (c *productsClient) GetProduct(productID string, tenantID string) (*Product, error) {
	url := fmt.Sprintf("%s/api/v1/products/%s", c.baseURL, productID)
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
		return nil, fmt.Errorf("products service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var productResp productResponse
	if err := json.NewDecoder(resp.Body).Decode(&productResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &productResp.Data, nil
}
