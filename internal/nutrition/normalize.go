package nutrition

import "strings"

// NormalizeKey maps a free-text food name to the key used by the cache and
// the dish knowledge base. Only case and surrounding whitespace are folded.
func NormalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
