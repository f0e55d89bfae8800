// Package store is a thin client for the content API of the document store
// that backs the back office. Documents are addressed by string ids; a draft
// working copy of a document coexists with the published copy under a
// "drafts." prefixed id.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotFound is returned when a query matches no document.
var ErrNotFound = errors.New("document not found")

// Store is the surface the reconciliation engine depends on.
type Store interface {
	QueryOne(ctx context.Context, query string, params map[string]any, out any) error
	QueryAll(ctx context.Context, query string, params map[string]any, out any) error
	Create(ctx context.Context, doc any) (string, error)
	Patch(ctx context.Context, id string, fields map[string]any) error
	PatchFirstSuccessful(ctx context.Context, ids []string, fields map[string]any) (string, error)
}

// Client talks to the store's HTTP content API.
type Client struct {
	baseURL    string
	dataset    string
	token      string
	httpClient *http.Client
}

// NewClient builds a store client for one dataset.
func NewClient(baseURL, dataset, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		dataset:    dataset,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// QueryOne runs a query expected to yield a single document and decodes it
// into out. A null result maps to ErrNotFound.
func (c *Client) QueryOne(ctx context.Context, query string, params map[string]any, out any) error {
	raw, err := c.query(ctx, query, params)
	if err != nil {
		return err
	}
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return ErrNotFound
	}
	return json.Unmarshal(raw, out)
}

// QueryAll runs a query and decodes the (possibly empty) result list into out.
func (c *Client) QueryAll(ctx context.Context, query string, params map[string]any, out any) error {
	raw, err := c.query(ctx, query, params)
	if err != nil {
		return err
	}
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) query(ctx context.Context, query string, params map[string]any) (json.RawMessage, error) {
	payload := map[string]any{"query": query}
	if len(params) > 0 {
		payload["params"] = params
	}
	var result struct {
		Result json.RawMessage `json:"result"`
	}
	if err := c.post(ctx, "/data/query/"+c.dataset, payload, &result); err != nil {
		return nil, fmt.Errorf("store query: %w", err)
	}
	return result.Result, nil
}

// Create submits a create mutation and returns the id of the new document.
func (c *Client) Create(ctx context.Context, doc any) (string, error) {
	var result struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	payload := map[string]any{
		"mutations": []map[string]any{{"create": doc}},
		"returnIds": true,
	}
	if err := c.post(ctx, "/data/mutate/"+c.dataset, payload, &result); err != nil {
		return "", fmt.Errorf("store create: %w", err)
	}
	if len(result.Results) == 0 {
		return "", fmt.Errorf("store create: no result id returned")
	}
	return result.Results[0].ID, nil
}

// Patch submits a set-fields mutation against one document id. Patching a
// nonexistent id is an error.
func (c *Client) Patch(ctx context.Context, id string, fields map[string]any) error {
	payload := map[string]any{
		"mutations": []map[string]any{
			{"patch": map[string]any{"id": id, "set": fields}},
		},
	}
	var result struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := c.post(ctx, "/data/mutate/"+c.dataset, payload, &result); err != nil {
		return fmt.Errorf("store patch %s: %w", id, err)
	}
	return nil
}

// PatchFirstSuccessful applies the same set-fields patch to each candidate id
// in order and stops at the first one that succeeds, returning that id.
// It exists for the draft/published duality: only one variant of a logical
// document usually exists, and the caller does not know which.
func (c *Client) PatchFirstSuccessful(ctx context.Context, ids []string, fields map[string]any) (string, error) {
	var lastErr error
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := c.Patch(ctx, id, fields); err != nil {
			lastErr = err
			continue
		}
		return id, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no candidate ids")
	}
	return "", lastErr
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
