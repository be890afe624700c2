// README: Crop-name matching policy: trimmed, case-insensitive equality everywhere.
package types

import "strings"

// NormalizeCrop is the canonical crop form stored alongside listings and demands.
func NormalizeCrop(crop string) string {
	return strings.ToLower(strings.TrimSpace(crop))
}

// CropMatches is the single crop policy used by pool filters, scoring and queries.
// "Tomato" matches "tomato " but not "cherry tomato".
func CropMatches(a, b string) bool {
	na, nb := NormalizeCrop(a), NormalizeCrop(b)
	return na != "" && na == nb
}
