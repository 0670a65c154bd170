package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-group/compliance-cli/internal/model"
)

func TestParseEvaluation(t *testing.T) {
	eval, err := parseEvaluation(`{"feedback": "Reserve disclosure is present in section 4.", "fulfilled": true, "score": 8.5}`)
	require.NoError(t, err)
	assert.Equal(t, "Reserve disclosure is present in section 4.", eval.Feedback)
	assert.True(t, eval.Fulfilled)
	assert.Equal(t, 8.5, eval.Score)
}

func TestParseEvaluationStripsCodeFence(t *testing.T) {
	text := "```json\n{\"feedback\": \"Not found in the document.\", \"fulfilled\": false, \"score\": 0}\n```"
	eval, err := parseEvaluation(text)
	require.NoError(t, err)
	assert.Equal(t, "Not found in the document.", eval.Feedback)
	assert.False(t, eval.Fulfilled)
}

func TestParseEvaluationClampsScore(t *testing.T) {
	eval, err := parseEvaluation(`{"feedback": "ok", "fulfilled": true, "score": 14}`)
	require.NoError(t, err)
	assert.Equal(t, 10.0, eval.Score)

	eval, err = parseEvaluation(`{"feedback": "ok", "fulfilled": false, "score": -3}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, eval.Score)
}

func TestParseEvaluationRejectsGarbage(t *testing.T) {
	_, err := parseEvaluation("I believe the document complies.")
	assert.Error(t, err)

	_, err = parseEvaluation(`{"fulfilled": true, "score": 5}`)
	assert.Error(t, err, "empty feedback must be rejected")
}

func TestFallbackEvaluation(t *testing.T) {
	eval := fallbackEvaluation()
	assert.Equal(t, fallbackFeedback, eval.Feedback)
	assert.False(t, eval.Fulfilled)
	assert.Equal(t, 0.0, eval.Score)
}

func TestPlaceholderType(t *testing.T) {
	typ, ok := placeholderType("<EMAIL_3>")
	require.True(t, ok)
	assert.Equal(t, "EMAIL", typ)

	typ, ok = placeholderType("<TAX_ID_12>")
	require.True(t, ok)
	assert.Equal(t, "TAX_ID", typ)

	_, ok = placeholderType("plain text")
	assert.False(t, ok)
	_, ok = placeholderType("<NOUNDERSCORE>")
	assert.False(t, ok)
}

func TestMappingFromChunks(t *testing.T) {
	chunks := []model.Chunk{
		{ID: "doc:000000", Mapping: map[string]string{
			"12.345.678/0001-00": "<TAX_ID_1>",
			"ana@example.com":    "<EMAIL_1>",
		}},
		{ID: "doc:000001", Mapping: map[string]string{
			"12.345.678/0001-00": "<TAX_ID_1>",
			"bob@example.com":    "<EMAIL_2>",
		}},
	}

	mapping := mappingFromChunks(chunks)
	require.Len(t, mapping, 2)
	assert.Equal(t, "<TAX_ID_1>", mapping["TAX_ID"]["12.345.678/0001-00"])
	assert.Equal(t, "<EMAIL_1>", mapping["EMAIL"]["ana@example.com"])
	assert.Equal(t, "<EMAIL_2>", mapping["EMAIL"]["bob@example.com"])
}

func TestMappingFromChunksEmpty(t *testing.T) {
	assert.Nil(t, mappingFromChunks([]model.Chunk{{ID: "doc:000000"}}))
}
