package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercedesk/backoffice/internal/gateway"
)

func TestNormalizeLineItemProductWins(t *testing.T) {
	item := normalizeLineItem(sessionLineItems()[0])
	assert.Equal(t, "Canvas Tote", item.Name)
	assert.Equal(t, "TOTE-01", item.SKU)
	assert.Equal(t, "prod_1", item.CatalogRef)
	assert.Equal(t, int64(3), item.Quantity)
	require.NotNil(t, item.UnitPrice)
	assert.Equal(t, 19.99, *item.UnitPrice)
	assert.Equal(t, []string{"bags", "accessories"}, item.Categories)
}

func TestNormalizeLineItemFallsBackToLineMetadata(t *testing.T) {
	item := normalizeLineItem(gateway.LineItem{
		Description: "Mystery Box",
		Quantity:    1,
		Metadata:    map[string]string{"sku": "BOX-99"},
	})
	assert.Equal(t, "Mystery Box", item.Name)
	assert.Equal(t, "BOX-99", item.SKU)
	assert.Nil(t, item.UnitPrice)
	assert.Empty(t, item.CatalogRef)
}

func TestSplitCategories(t *testing.T) {
	assert.Equal(t, []string{"bags", "accessories"}, splitCategories(map[string]string{"categories": "bags, accessories"}))
	assert.Equal(t, []string{"bags"}, splitCategories(map[string]string{"category": "bags"}))
	assert.Nil(t, splitCategories(map[string]string{}))
	assert.Nil(t, splitCategories(map[string]string{"categories": " , "}))
}
