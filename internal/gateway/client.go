package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotConfigured is returned by client constructors and calls when no
// secret key is available. Callers treat it as a fatal precondition failure.
var ErrNotConfigured = errors.New("payment gateway not configured")

// Client is the slice of the gateway API the reconciliation engine needs.
type Client interface {
	RetrieveSession(ctx context.Context, id string) (*Session, error)
	RetrievePaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
	ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error)
}

// HTTPClient talks to the gateway REST API with a bearer secret key.
type HTTPClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

const defaultBaseURL = "https://api.stripe.com/v1"

// NewHTTPClient builds a gateway client. An empty secret key is rejected so
// misconfiguration surfaces before the first run rather than as a 401.
func NewHTTPClient(baseURL, secretKey string) (*HTTPClient, error) {
	if secretKey == "" {
		return nil, ErrNotConfigured
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// RetrieveSession fetches a checkout session with its payment intent and the
// intent's charges expanded in one round trip.
func (c *HTTPClient) RetrieveSession(ctx context.Context, id string) (*Session, error) {
	q := url.Values{}
	q.Add("expand[]", "payment_intent")
	q.Add("expand[]", "payment_intent.latest_charge")
	var s Session
	if err := c.get(ctx, "/checkout/sessions/"+url.PathEscape(id), q, &s); err != nil {
		return nil, fmt.Errorf("retrieve session %s: %w", id, err)
	}
	return &s, nil
}

// RetrievePaymentIntent fetches a payment intent with its latest charge
// expanded.
func (c *HTTPClient) RetrievePaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	q := url.Values{}
	q.Add("expand[]", "latest_charge")
	var pi PaymentIntent
	if err := c.get(ctx, "/payment_intents/"+url.PathEscape(id), q, &pi); err != nil {
		return nil, fmt.Errorf("retrieve payment intent %s: %w", id, err)
	}
	return &pi, nil
}

// ListLineItems fetches a session's line items with product objects expanded.
func (c *HTTPClient) ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error) {
	q := url.Values{}
	q.Add("expand[]", "data.price.product")
	q.Add("limit", "100")
	var page struct {
		Data []LineItem `json:"data"`
	}
	if err := c.get(ctx, "/checkout/sessions/"+url.PathEscape(sessionID)+"/line_items", q, &page); err != nil {
		return nil, fmt.Errorf("list line items for %s: %w", sessionID, err)
	}
	return page.Data, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
