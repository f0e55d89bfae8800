package fulfillment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFulfillOrderPostsOrderID(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL + "/")
	require.NoError(t, c.FulfillOrder(context.Background(), "order.1"))
	assert.Equal(t, "/fulfill-order", gotPath)
	assert.Equal(t, "order.1", gotBody["orderId"])
}

func TestFulfillOrderNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	err := c.FulfillOrder(context.Background(), "order.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
