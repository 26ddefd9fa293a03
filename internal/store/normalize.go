package store

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ItemKey is the comparison key for item names: NFC-normalized, trimmed and
// lower-cased. Purchase history is matched on this key, never on item ids.
func ItemKey(name string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(name)))
}

// NormalizeEmail trims and lower-cases an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
