package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ActivityClient is the fire-and-forget activity log sink. Failures are the
// caller's to log; they must never abort the transaction that produced the
// entry.
type ActivityClient interface {
	Record(entry ActivityEntry, tenantID string) error
}

// ActivityEntry is one audit-trail line for the activity feed
type ActivityEntry struct {
	Action     string  `json:"action"`
	EntityType string  `json:"entityType"`
	EntityID   string  `json:"entityId"`
	ActorID    string  `json:"actorId"`
	Details    *string `json:"details,omitempty"`
}

type activityClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewActivityClient creates a new activity log client
func NewActivityClient(baseURL string) ActivityClient {
	return &activityClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *activityClient) Record(entry ActivityEntry, tenantID string) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/activities", c.baseURL)
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("activity service returned status %d", resp.StatusCode)
	}

	return nil
}
