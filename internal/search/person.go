package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var personNormalizer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizePersonName folds case and strips diacritics so that a
// labeled face "Soňa" matches a query for "sona".
func normalizePersonName(name string) string {
	folded, _, err := transform.String(personNormalizer, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// personsMatch reports whether any wanted person appears among the
// labeled persons, after normalization.
func personsMatch(labeled, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	have := make(map[string]bool, len(labeled))
	for _, p := range labeled {
		have[normalizePersonName(p)] = true
	}
	for _, w := range wanted {
		if have[normalizePersonName(w)] {
			return true
		}
	}
	return false
}
