package store

import "strings"

const draftPrefix = "drafts."

// PublishedID strips the draft prefix, if any.
func PublishedID(id string) string {
	return strings.TrimPrefix(id, draftPrefix)
}

// DraftID adds the draft prefix, if missing.
func DraftID(id string) string {
	if strings.HasPrefix(id, draftPrefix) {
		return id
	}
	return draftPrefix + id
}

// AliasIDs returns the id as given plus its draft/published counterpart,
// canonical form first. Patches that must land on whichever variant exists
// should be attempted against both, in order.
func AliasIDs(id string) []string {
	if id == "" {
		return nil
	}
	if strings.HasPrefix(id, draftPrefix) {
		return []string{id, PublishedID(id)}
	}
	return []string{id, DraftID(id)}
}
