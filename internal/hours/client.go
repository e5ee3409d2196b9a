package hours

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"controller-eligibility-backend/config"
)

// Client fetches a controller's accumulated control-time hours, keyed by
// rating-tier bucket ("s1", "c3", ...). An empty map is a valid response
// meaning the service had no data for the controller.
type Client interface {
	Fetch(ctx context.Context, cid int64) (map[string]float64, error)
}

// apiResponse models the hours service's response envelope.
type apiResponse struct {
	Code int                `json:"code"`
	Data map[string]float64 `json:"data"`
}

// HTTPClient talks to the external hours-reporting service.
type HTTPClient struct {
	baseURL string
	headers map[string]string
	client  *http.Client
}

// NewHTTPClient creates a client for the configured hours service.
func NewHTTPClient(cfg *config.HoursConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		headers: cfg.Headers,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Fetch retrieves the hours buckets for one controller.
func (c *HTTPClient) Fetch(ctx context.Context, cid int64) (map[string]float64, error) {
	url := fmt.Sprintf("%s/controllers/%d/hours", c.baseURL, cid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hours response: %w", err)
	}
	if apiResp.Code != 0 {
		return nil, fmt.Errorf("hours service returned non-zero application code: %d", apiResp.Code)
	}

	return apiResp.Data, nil
}
