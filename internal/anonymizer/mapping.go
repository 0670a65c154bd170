package anonymizer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/veridian-group/compliance-cli/internal/model"
)

// nextIndexCache tracks the next free placeholder index per entity type. It is
// seeded once from an existing mapping at construction, so numbering stays
// correct even when the mapping was accumulated across several earlier runs.
type nextIndexCache map[string]int

// seedIndexCache parses the trailing index out of every placeholder already
// present in the mapping and records max+1 per entity type.
func seedIndexCache(mapping model.EntityMapping) nextIndexCache {
	cache := make(nextIndexCache, len(mapping))
	for entityType, pairs := range mapping {
		next := 1
		for _, placeholder := range pairs {
			if idx, ok := parsePlaceholderIndex(entityType, placeholder); ok && idx >= next {
				next = idx + 1
			}
		}
		cache[entityType] = next
	}
	return cache
}

// allocate returns the placeholder for (entityType, original), reusing the
// existing one when present and minting the next index otherwise. The mapping
// is mutated in place.
func (c nextIndexCache) allocate(mapping model.EntityMapping, entityType, original string) string {
	pairs, ok := mapping[entityType]
	if !ok {
		pairs = make(map[string]string)
		mapping[entityType] = pairs
	}
	if placeholder, ok := pairs[original]; ok {
		return placeholder
	}

	next, ok := c[entityType]
	if !ok || next < 1 {
		next = 1
	}
	placeholder := fmt.Sprintf("<%s_%d>", entityType, next)
	pairs[original] = placeholder
	c[entityType] = next + 1
	return placeholder
}

// parsePlaceholderIndex extracts N from "<TYPE_N>".
func parsePlaceholderIndex(entityType, placeholder string) (int, bool) {
	prefix := "<" + entityType + "_"
	if !strings.HasPrefix(placeholder, prefix) || !strings.HasSuffix(placeholder, ">") {
		return 0, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(placeholder, prefix), ">")
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 1 {
		return 0, false
	}
	return idx, true
}

// Deanonymize replaces every placeholder occurrence in text with its original
// value. Text without placeholders is returned unchanged.
func Deanonymize(text string, mapping model.EntityMapping) string {
	if len(mapping) == 0 {
		return text
	}
	var pairs []string
	for _, byOriginal := range mapping {
		for original, placeholder := range byOriginal {
			pairs = append(pairs, placeholder, original)
		}
	}
	if len(pairs) == 0 {
		return text
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
