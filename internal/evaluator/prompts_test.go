package evaluator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-group/compliance-cli/internal/model"
)

func testView() branchView {
	return branchView{
		AppliedBranchID: "ab-1",
		Branch: model.AppliedBranch{
			ID:          "ab-1",
			Title:       "Quarterly capital report",
			Description: "Capital adequacy figures each quarter",
		},
		Taxonomy: model.AppliedTaxonomy{
			ID:      "at-1",
			Title:   "Periodic reporting",
			Sources: []model.AppliedSource{{Name: "Circular 3.978"}},
		},
		Typification: model.AppliedTypification{
			ID:      "atyp-1",
			Name:    "Disclosure obligations",
			Sources: []model.AppliedSource{{Name: "Resolution 4.966"}, {Name: "Circular 3.978"}},
		},
	}
}

func TestBuildEvalPrompt(t *testing.T) {
	chunks := []model.Chunk{
		{Index: 2, Total: 10, Content: "Capital reserves are reported quarterly."},
		{Index: 3, Total: 10, Content: "Figures follow the <TAX_ID_1> consolidated basis."},
	}

	prompt := buildEvalPrompt(testView(), chunks)
	assert.Contains(t, prompt, "Criterion: Quarterly capital report")
	assert.Contains(t, prompt, "Category: Periodic reporting")
	assert.Contains(t, prompt, "Area: Disclosure obligations")
	assert.Contains(t, prompt, "Resolution 4.966; Circular 3.978")
	assert.Contains(t, prompt, "[excerpt 3/10]")
	assert.Contains(t, prompt, "[excerpt 4/10]")
	assert.Contains(t, prompt, "<TAX_ID_1>")
}

func TestBuildEvalPromptDedupesSourceNames(t *testing.T) {
	prompt := buildEvalPrompt(testView(), nil)
	assert.Equal(t, 1, strings.Count(prompt, "Circular 3.978"))
}

func TestBuildEvalPromptEmptyContext(t *testing.T) {
	prompt := buildEvalPrompt(testView(), nil)
	assert.Contains(t, prompt, "no relevant excerpts were found")
}

func TestSummaryBranchesPicksExtremes(t *testing.T) {
	all := []scoredBranch{
		{Title: "a", Eval: model.BranchEvaluation{Score: 5}},
		{Title: "b", Eval: model.BranchEvaluation{Score: 9}},
		{Title: "c", Eval: model.BranchEvaluation{Score: 1}},
		{Title: "d", Eval: model.BranchEvaluation{Score: 7}},
		{Title: "e", Eval: model.BranchEvaluation{Score: 3}},
		{Title: "f", Eval: model.BranchEvaluation{Score: 2}},
	}

	picked := summaryBranches(all)
	require.Len(t, picked, 4)
	titles := []string{picked[0].Title, picked[1].Title, picked[2].Title, picked[3].Title}
	assert.Equal(t, []string{"b", "d", "f", "c"}, titles)
}

func TestSummaryBranchesSmallSet(t *testing.T) {
	all := []scoredBranch{
		{Title: "a", Eval: model.BranchEvaluation{Score: 5}},
		{Title: "b", Eval: model.BranchEvaluation{Score: 9}},
	}
	assert.Equal(t, all, summaryBranches(all))
}

func TestBuildSummaryPrompt(t *testing.T) {
	prompt := buildSummaryPrompt([]scoredBranch{
		{Title: "Quarterly capital report", Eval: model.BranchEvaluation{Score: 8, Fulfilled: true, Feedback: "Present."}},
	})
	assert.Contains(t, prompt, "Quarterly capital report")
	assert.Contains(t, prompt, "score 8.0")
	assert.Contains(t, prompt, "fulfilled=true")
}
