package search

import (
	"sort"
	"strings"
)

// koreanSuffixes are administrative suffixes stripped during location
// name normalization, longest first so 광역시 wins over 시.
var koreanSuffixes = []string{
	"특별자치도", "특별자치시", "광역시", "특별시", "자치도", "자치시", "도", "시", "군", "구",
}

// NormalizeLocationName produces matching variants of a Korean place
// name: the name itself, the suffix-stripped base, and the base with
// 시 and 도 re-attached. 제주도 yields {제주도, 제주, 제주시}.
func NormalizeLocationName(name string) []string {
	seen := map[string]bool{name: true}
	variants := []string{name}

	base := name
	for _, suffix := range koreanSuffixes {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			base = strings.TrimSuffix(name, suffix)
			if !seen[base] {
				seen[base] = true
				variants = append(variants, base)
			}
			break
		}
	}

	if base != name {
		for _, suffix := range []string{"시", "도"} {
			v := base + suffix
			if !seen[v] {
				seen[v] = true
				variants = append(variants, v)
			}
		}
	}

	return variants
}

// locationVariants expands the first two location names into their
// deduplicated variant set, sorted for stable queries.
func locationVariants(names []string) []string {
	if len(names) > 2 {
		names = names[:2]
	}

	seen := make(map[string]bool)
	var all []string
	for _, name := range names {
		for _, v := range NormalizeLocationName(name) {
			if !seen[v] {
				seen[v] = true
				all = append(all, v)
			}
		}
	}
	sort.Strings(all)
	return all
}
