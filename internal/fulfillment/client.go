// Package fulfillment calls the downstream fulfillment collaborator.
package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client triggers fulfillment for a paid order.
type Client interface {
	FulfillOrder(ctx context.Context, orderID string) error
}

// HTTPClient POSTs to the collaborator's fulfill-order endpoint. The response
// body is discarded; callers only care whether the call landed.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) FulfillOrder(ctx context.Context, orderID string) error {
	b, _ := json.Marshal(map[string]any{"orderId": orderID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fulfill-order", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fulfillment status %d", resp.StatusCode)
	}
	return nil
}
