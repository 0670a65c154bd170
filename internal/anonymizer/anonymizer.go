// Package anonymizer pseudonymizes personally-identifiable fragments in
// document chunks with consistent, reversible placeholders.
package anonymizer

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridian-group/compliance-cli/internal/model"
)

// Anonymizer replaces detected identifiers with placeholders, keeping a
// cumulative mapping so the same original value always maps to the same
// placeholder within one processing session. One Anonymizer serves exactly
// one pipeline run; it must not be shared across concurrent releases.
type Anonymizer struct {
	detectors []Detector
	mapping   model.EntityMapping
	next      nextIndexCache
}

// New creates an Anonymizer. A non-nil seed mapping continues placeholder
// numbering from an earlier session instead of starting at 1.
func New(detectors []Detector, seed model.EntityMapping) *Anonymizer {
	if seed == nil {
		seed = make(model.EntityMapping)
	}
	return &Anonymizer{
		detectors: detectors,
		mapping:   seed,
		next:      seedIndexCache(seed),
	}
}

// Mapping returns the cumulative entity mapping accumulated so far.
func (a *Anonymizer) Mapping() model.EntityMapping {
	return a.mapping
}

// AnonymizeChunks substitutes placeholders into every chunk's content and
// stamps the per-chunk sub-mapping and the anonymized flag. A detector
// failure on one chunk leaves that chunk un-anonymized and flagged; the rest
// of the batch continues.
func (a *Anonymizer) AnonymizeChunks(chunks []model.Chunk) []model.Chunk {
	for i := range chunks {
		if err := a.anonymizeChunk(&chunks[i]); err != nil {
			chunks[i].Anonymized = false
			zap.L().Warn("anonymizer: chunk left un-anonymized",
				zap.String("chunk_id", chunks[i].ID),
				zap.Error(err),
			)
		}
	}
	return chunks
}

func (a *Anonymizer) anonymizeChunk(chunk *model.Chunk) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("anonymizer: detector panic on chunk %s: %v", chunk.ID, r)
		}
	}()

	var matches []Match
	for _, d := range a.detectors {
		found, detectErr := d.Detect(chunk.Content)
		if detectErr != nil {
			return eris.Wrapf(detectErr, "anonymizer: detect chunk %s", chunk.ID)
		}
		matches = append(matches, found...)
	}

	subMapping := make(map[string]string)
	content := chunk.Content
	for _, m := range matches {
		placeholder := a.next.allocate(a.mapping, m.EntityType, m.Text)
		content = strings.ReplaceAll(content, m.Text, placeholder)
		subMapping[m.Text] = placeholder
	}

	chunk.Content = content
	chunk.Anonymized = true
	if len(subMapping) > 0 {
		chunk.Mapping = subMapping
	}
	return nil
}
