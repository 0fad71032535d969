package table

import (
	"slices"
	"strings"

	"github.com/teranos/dirsvc/directory"
)

// ParseSortKeys splits the raw sort argument into property keys.
// Duplicate keys are dropped since a repeated key can never break a tie.
func ParseSortKeys(raw string) []string {
	keys := splitList(raw)
	if len(keys) == 0 {
		return nil
	}
	return dedupe(keys)
}

// SortEntities returns a copy of entities stably ordered by the given property keys.
// Values compare byte-wise. An entity without a key sorts before one that has
// it; when both lack it the next key decides. With no keys the input order is kept.
func SortEntities(entities []directory.Entity, keys []string) []directory.Entity {
	sorted := slices.Clone(entities)
	if len(keys) == 0 || len(sorted) < 2 {
		return sorted
	}
	slices.SortStableFunc(sorted, func(a, b directory.Entity) int {
		return compareByKeys(a, b, keys)
	})
	return sorted
}

func compareByKeys(a, b directory.Entity, keys []string) int {
	for _, key := range keys {
		av, aok := a.Property(key)
		bv, bok := b.Property(key)
		switch {
		case !aok && !bok:
			continue
		case !aok:
			return -1
		case !bok:
			return 1
		}
		if c := strings.Compare(av, bv); c != 0 {
			return c
		}
	}
	return 0
}
