package model

import "time"

// EntityMapping records, per entity type, which original text maps to which
// placeholder. It is scoped to one pipeline run and persisted with each
// branch evaluation so feedback can be de-anonymized for display later.
type EntityMapping map[string]map[string]string

// Clone returns a deep copy of the mapping.
func (m EntityMapping) Clone() EntityMapping {
	out := make(EntityMapping, len(m))
	for entityType, pairs := range m {
		cp := make(map[string]string, len(pairs))
		for orig, placeholder := range pairs {
			cp[orig] = placeholder
		}
		out[entityType] = cp
	}
	return out
}

// BranchEvaluation is the model-produced result for one applied branch.
type BranchEvaluation struct {
	Feedback  string        `json:"feedback"`
	Fulfilled bool          `json:"fulfilled"`
	Score     float64       `json:"score"`
	Mapping   EntityMapping `json:"mapping,omitempty"`
}

// AppliedSource is a source copied into a release's applied tree.
type AppliedSource struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	OriginalID  *string `json:"original_id,omitempty"`
}

// AppliedTypification is the frozen copy of a typification for one release.
// OriginalID is nil when the live typification was removed after the copy.
type AppliedTypification struct {
	ID         string          `json:"id"`
	ReleaseID  string          `json:"release_id"`
	Name       string          `json:"name"`
	OriginalID *string         `json:"original_id,omitempty"`
	Sources    []AppliedSource `json:"sources,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AppliedTaxonomy is the frozen copy of a taxonomy under an applied
// typification.
type AppliedTaxonomy struct {
	ID                    string          `json:"id"`
	AppliedTypificationID string          `json:"applied_typification_id"`
	Title                 string          `json:"title"`
	Description           string          `json:"description,omitempty"`
	OriginalID            *string         `json:"original_id,omitempty"`
	Sources               []AppliedSource `json:"sources,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

// AppliedBranch is the frozen copy of a branch, carrying the evaluation
// result once the release has been scored.
type AppliedBranch struct {
	ID                string            `json:"id"`
	AppliedTaxonomyID string            `json:"applied_taxonomy_id"`
	Title             string            `json:"title"`
	Description       string            `json:"description,omitempty"`
	OriginalID        *string           `json:"original_id,omitempty"`
	Evaluation        *BranchEvaluation `json:"evaluation,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// AppliedTree is the fully materialized snapshot for one release.
type AppliedTree struct {
	ReleaseID     string
	Typifications []AppliedTypification
	Taxonomies    []AppliedTaxonomy
	Branches      []AppliedBranch
}
