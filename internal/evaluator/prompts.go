package evaluator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/veridian-group/compliance-cli/internal/model"
)

const evalSystemPrompt = `You are a regulatory compliance analyst. You receive one compliance criterion and excerpts from a regulated institution's document. Judge whether the document fulfills the criterion, justifying your answer only from the excerpts provided. If the excerpts do not cover the criterion, say the topic was not found in the document. Respond with a single JSON object and nothing else:
{"feedback": "<your assessment in 2-4 sentences>", "fulfilled": <true|false>, "score": <0-10>}`

const summarySystemPrompt = `You write one short factual paragraph summarizing a compliance evaluation. Use plain declarative sentences. Do not use adjectives or qualifiers. State which criteria were fulfilled and which were not.`

// branchView is everything the prompt needs to know about one applied branch.
type branchView struct {
	AppliedBranchID string
	Branch          model.AppliedBranch
	Taxonomy        model.AppliedTaxonomy
	Typification    model.AppliedTypification
}

// queryContext adapts the applied nodes to the live-tree shape the retriever
// builds its query from.
func (v branchView) queryContext() model.BranchContext {
	return model.BranchContext{
		Branch: model.Branch{
			ID:          v.Branch.ID,
			Title:       v.Branch.Title,
			Description: v.Branch.Description,
		},
		Taxonomy: model.Taxonomy{
			ID:          v.Taxonomy.ID,
			Title:       v.Taxonomy.Title,
			Description: v.Taxonomy.Description,
		},
		Typification: model.Typification{
			ID:   v.Typification.ID,
			Name: v.Typification.Name,
		},
	}
}

func (v branchView) sourceNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, src := range append(v.Typification.Sources, v.Taxonomy.Sources...) {
		if src.Name == "" || seen[src.Name] {
			continue
		}
		seen[src.Name] = true
		names = append(names, src.Name)
	}
	return names
}

// buildEvalPrompt renders the user message for one branch. Chunks must
// already be in ascending document order.
func buildEvalPrompt(v branchView, chunks []model.Chunk) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Criterion: %s\n", v.Branch.Title)
	if v.Branch.Description != "" {
		fmt.Fprintf(&b, "Criterion detail: %s\n", v.Branch.Description)
	}
	fmt.Fprintf(&b, "Category: %s\n", v.Taxonomy.Title)
	fmt.Fprintf(&b, "Area: %s\n", v.Typification.Name)
	if names := v.sourceNames(); len(names) > 0 {
		fmt.Fprintf(&b, "Normative sources: %s\n", strings.Join(names, "; "))
	}

	b.WriteString("\nDocument excerpts, in document order:\n")
	if len(chunks) == 0 {
		b.WriteString("(no relevant excerpts were found in the document)\n")
	}
	for _, ch := range chunks {
		fmt.Fprintf(&b, "\n[excerpt %d/%d]\n%s\n", ch.Index+1, ch.Total, ch.Content)
	}

	b.WriteString("\nJudge the criterion against these excerpts and answer with the JSON object only.")
	return b.String()
}

// scoredBranch pairs a branch title with its evaluation for the summary.
type scoredBranch struct {
	Title string
	Eval  model.BranchEvaluation
}

// summaryBranches picks the top-2 and bottom-2 scoring branches. With four
// or fewer branches everything is included once.
func summaryBranches(all []scoredBranch) []scoredBranch {
	if len(all) <= 4 {
		return all
	}
	sorted := make([]scoredBranch, len(all))
	copy(sorted, all)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Eval.Score > sorted[b].Eval.Score })

	picked := append([]scoredBranch{}, sorted[:2]...)
	picked = append(picked, sorted[len(sorted)-2:]...)
	return picked
}

// buildSummaryPrompt renders the user message for the release summary.
func buildSummaryPrompt(branches []scoredBranch) string {
	var b strings.Builder
	b.WriteString("Evaluation highlights (best and worst scoring criteria):\n")
	for _, sb := range branches {
		fmt.Fprintf(&b, "\n- %s (score %.1f, fulfilled=%t): %s\n", sb.Title, sb.Eval.Score, sb.Eval.Fulfilled, sb.Eval.Feedback)
	}
	b.WriteString("\nWrite one paragraph summarizing the document's compliance based on these results.")
	return b.String()
}
