package evaluator

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/veridian-group/compliance-cli/internal/model"
)

// fallbackFeedback is stored verbatim when a model response cannot be parsed.
const fallbackFeedback = "Could not generate feedback for this criterion."

// fallbackEvaluation is the substitute result for one failed batch item.
func fallbackEvaluation() model.BranchEvaluation {
	return model.BranchEvaluation{
		Feedback:  fallbackFeedback,
		Fulfilled: false,
		Score:     0,
	}
}

// parseEvaluation decodes the model's JSON answer. Scores outside [0,10] are
// clamped rather than rejected.
func parseEvaluation(text string) (model.BranchEvaluation, error) {
	var raw struct {
		Feedback  string  `json:"feedback"`
		Fulfilled bool    `json:"fulfilled"`
		Score     float64 `json:"score"`
	}
	cleaned := stripCodeFence(text)
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return model.BranchEvaluation{}, eris.Wrap(err, "evaluator: decode model answer")
	}
	if strings.TrimSpace(raw.Feedback) == "" {
		return model.BranchEvaluation{}, eris.New("evaluator: model answer has empty feedback")
	}

	if raw.Score < 0 {
		raw.Score = 0
	}
	if raw.Score > 10 {
		raw.Score = 10
	}
	return model.BranchEvaluation{
		Feedback:  strings.TrimSpace(raw.Feedback),
		Fulfilled: raw.Fulfilled,
		Score:     raw.Score,
	}, nil
}

// stripCodeFence removes a surrounding markdown code fence, which models
// sometimes add despite instructions.
func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 && !strings.HasPrefix(s, "{") {
		s = s[idx+1:] // drop a language tag like "json"
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// mappingFromChunks rebuilds the entity mapping covering the given chunks
// from their per-chunk sub-mappings. The entity type is recovered from the
// placeholder shape <TYPE_N>.
func mappingFromChunks(chunks []model.Chunk) model.EntityMapping {
	out := make(model.EntityMapping)
	for _, ch := range chunks {
		for original, placeholder := range ch.Mapping {
			entityType, ok := placeholderType(placeholder)
			if !ok {
				continue
			}
			pairs, ok := out[entityType]
			if !ok {
				pairs = make(map[string]string)
				out[entityType] = pairs
			}
			pairs[original] = placeholder
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// placeholderType extracts TYPE from "<TYPE_N>".
func placeholderType(placeholder string) (string, bool) {
	if !strings.HasPrefix(placeholder, "<") || !strings.HasSuffix(placeholder, ">") {
		return "", false
	}
	inner := placeholder[1 : len(placeholder)-1]
	idx := strings.LastIndex(inner, "_")
	if idx <= 0 {
		return "", false
	}
	return inner[:idx], true
}
