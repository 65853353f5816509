package catalog

import "strings"

// CategoryShelfLife is the inferred classification for an item code.
type CategoryShelfLife struct {
	Category      string
	ShelfLifeDays int
}

// prefixRules maps item-code prefixes to category and shelf-life policy.
// Longest prefix wins. The table is static configuration carried over from
// the supplier's code scheme.
var prefixRules = []struct {
	prefix string
	rule   CategoryShelfLife
}{
	{"OGB", CategoryShelfLife{Category: "BREAD", ShelfLifeDays: 4}},
	{"OGC", CategoryShelfLife{Category: "CAKE", ShelfLifeDays: 3}},
	{"OGK", CategoryShelfLife{Category: "COOKIES", ShelfLifeDays: 30}},
	{"OGR", CategoryShelfLife{Category: "RUSK", ShelfLifeDays: 60}},
	{"OGS", CategoryShelfLife{Category: "SAVOURY", ShelfLifeDays: 2}},
	{"OGD", CategoryShelfLife{Category: "DECORATION", ShelfLifeDays: 0}},
	{"OG", CategoryShelfLife{Category: "BAKERY", ShelfLifeDays: 5}},
}

// InferCategoryAndShelfLife classifies an item code by its prefix.
// Unknown prefixes fall back to a non-perishable GENERAL entry.
func InferCategoryAndShelfLife(itemCode string) CategoryShelfLife {
	code := strings.ToUpper(strings.TrimSpace(itemCode))
	best := CategoryShelfLife{Category: "GENERAL", ShelfLifeDays: 0}
	bestLen := 0
	for _, r := range prefixRules {
		if strings.HasPrefix(code, r.prefix) && len(r.prefix) > bestLen {
			best = r.rule
			bestLen = len(r.prefix)
		}
	}
	return best
}
