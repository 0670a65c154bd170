package anonymizer

import (
	"regexp"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Entity types produced by the built-in detectors.
const (
	EntityTaxID       = "TAX_ID"
	EntityPhone       = "PHONE"
	EntityMoney       = "MONEY"
	EntityDate        = "DATE"
	EntityEmail       = "EMAIL"
	EntityPostalCode  = "POSTAL_CODE"
	EntityInstitution = "INSTITUTION"
)

// Match is one detected identifier occurrence.
type Match struct {
	EntityType string
	Text       string
}

// Detector finds personally-identifiable substrings in a chunk of text.
// Implementations must be safe for concurrent use; Detect must not mutate
// detector state.
type Detector interface {
	Detect(text string) ([]Match, error)
}

// regexDetector matches one entity type with a compiled pattern.
type regexDetector struct {
	entityType string
	pattern    *regexp.Regexp
}

func (d *regexDetector) Detect(text string) ([]Match, error) {
	found := d.pattern.FindAllString(text, -1)
	matches := make([]Match, 0, len(found))
	for _, f := range found {
		matches = append(matches, Match{EntityType: d.entityType, Text: f})
	}
	return matches, nil
}

var (
	// Registered company tax IDs (00.000.000/0000-00) and personal tax IDs
	// (000.000.000-00), with or without punctuation.
	taxIDPattern = regexp.MustCompile(`\b\d{2}\.?\d{3}\.?\d{3}/\d{4}-?\d{2}\b|\b\d{3}\.\d{3}\.\d{3}-\d{2}\b`)

	phonePattern = regexp.MustCompile(`(?:\+\d{1,3}\s?)?(?:\(\d{2,3}\)\s?)?\d{4,5}[-\s]\d{4}\b`)

	moneyPattern = regexp.MustCompile(`(?:R\$|US\$|\$|€)\s?\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2})?`)

	datePattern = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b|\b\d{4}-\d{2}-\d{2}\b`)

	emailPattern = regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)

	postalPattern = regexp.MustCompile(`\b\d{5}-\d{3}\b`)
)

// DefaultDetectors returns the structured-identifier detectors plus a
// deny-list detector for the given institution names.
func DefaultDetectors(institutions []string) []Detector {
	detectors := []Detector{
		&regexDetector{entityType: EntityTaxID, pattern: taxIDPattern},
		&regexDetector{entityType: EntityEmail, pattern: emailPattern},
		&regexDetector{entityType: EntityPhone, pattern: phonePattern},
		&regexDetector{entityType: EntityMoney, pattern: moneyPattern},
		&regexDetector{entityType: EntityDate, pattern: datePattern},
		&regexDetector{entityType: EntityPostalCode, pattern: postalPattern},
	}
	if len(institutions) > 0 {
		detectors = append(detectors, NewDenyListDetector(institutions))
	}
	return detectors
}

// denyListDetector matches known institution names case- and
// diacritic-insensitively, returning the original spelling from the text.
type denyListDetector struct {
	folded [][]rune
}

// NewDenyListDetector builds a deny-list detector for the given names.
func NewDenyListDetector(names []string) Detector {
	d := &denyListDetector{}
	for _, n := range names {
		if f := foldRunes(n); len(f) > 0 {
			d.folded = append(d.folded, f)
		}
	}
	return d
}

func (d *denyListDetector) Detect(text string) ([]Match, error) {
	original := []rune(text)
	haystack := foldRunes(text)

	var matches []Match
	for _, name := range d.folded {
		for start := 0; start+len(name) <= len(haystack); start++ {
			if !runesEqual(haystack[start:start+len(name)], name) {
				continue
			}
			matches = append(matches, Match{
				EntityType: EntityInstitution,
				Text:       string(original[start : start+len(name)]),
			})
			start += len(name) - 1
		}
	}
	return matches, nil
}

// foldRunes lowercases text and strips combining marks, preserving the rune
// count so folded offsets map back to the original text.
func foldRunes(s string) []rune {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		base := r
		for _, d := range norm.NFD.String(string(r)) {
			if !unicode.Is(unicode.Mn, d) {
				base = d
				break
			}
		}
		out = append(out, unicode.ToLower(base))
	}
	return out
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
