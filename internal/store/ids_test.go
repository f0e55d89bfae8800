package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDraftPublishedIDs(t *testing.T) {
	assert.Equal(t, "inv1", PublishedID("drafts.inv1"))
	assert.Equal(t, "inv1", PublishedID("inv1"))
	assert.Equal(t, "drafts.inv1", DraftID("inv1"))
	assert.Equal(t, "drafts.inv1", DraftID("drafts.inv1"))
}

func TestAliasIDsCanonicalFirst(t *testing.T) {
	assert.Equal(t, []string{"inv1", "drafts.inv1"}, AliasIDs("inv1"))
	assert.Equal(t, []string{"drafts.inv1", "inv1"}, AliasIDs("drafts.inv1"))
	assert.Nil(t, AliasIDs(""))
}
