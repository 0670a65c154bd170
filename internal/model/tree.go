package model

// Source is a normative reference (law, regulation, internal policy) attached
// to typifications and taxonomies.
type Source struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Typification is the root level of the live compliance tree.
type Typification struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Sources []Source `json:"sources,omitempty"`
}

// Taxonomy groups branches under a typification.
type Taxonomy struct {
	ID             string   `json:"id"`
	TypificationID string   `json:"typification_id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Sources        []Source `json:"sources,omitempty"`
}

// Branch is the leaf compliance criterion. Each branch receives one
// feedback/fulfilled/score triple per evaluated release.
type Branch struct {
	ID          string `json:"id"`
	TaxonomyID  string `json:"taxonomy_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// BranchContext carries a branch together with its enclosing taxonomy and
// typification, resolved once so pipeline stages do not re-query the tree.
type BranchContext struct {
	Branch       Branch
	Taxonomy     Taxonomy
	Typification Typification
}
