// Package registry imports the live criteria tree from the Notion databases
// the compliance team maintains, and loads the institution deny-list used by
// the anonymizer.
package registry

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridian-group/compliance-cli/internal/config"
	"github.com/veridian-group/compliance-cli/internal/model"
	"github.com/veridian-group/compliance-cli/internal/store"
	"github.com/veridian-group/compliance-cli/pkg/notion"
)

// Tree is the full imported criteria hierarchy.
type Tree struct {
	Typifications []model.Typification
	Taxonomies    []model.Taxonomy
	Branches      []model.Branch
}

// Importer reads the criteria databases.
type Importer struct {
	client notion.Client
	cfg    config.NotionConfig
}

// NewImporter creates an Importer for the configured databases.
func NewImporter(client notion.Client, cfg config.NotionConfig) *Importer {
	return &Importer{client: client, cfg: cfg}
}

// LoadTree imports all active typifications, taxonomies, and branches.
// Malformed pages are skipped with a warning; orphaned taxonomies and
// branches (parent missing or inactive) are dropped.
func (im *Importer) LoadTree(ctx context.Context) (*Tree, error) {
	typs, err := im.loadTypifications(ctx)
	if err != nil {
		return nil, err
	}
	typIDs := make(map[string]bool, len(typs))
	for _, typ := range typs {
		typIDs[typ.ID] = true
	}

	taxes, err := im.loadTaxonomies(ctx, typIDs)
	if err != nil {
		return nil, err
	}
	taxIDs := make(map[string]bool, len(taxes))
	for _, tax := range taxes {
		taxIDs[tax.ID] = true
	}

	branches, err := im.loadBranches(ctx, taxIDs)
	if err != nil {
		return nil, err
	}

	zap.L().Info("criteria tree imported",
		zap.Int("typifications", len(typs)),
		zap.Int("taxonomies", len(taxes)),
		zap.Int("branches", len(branches)),
	)
	return &Tree{Typifications: typs, Taxonomies: taxes, Branches: branches}, nil
}

// Sync imports the tree and upserts it into the store.
func (im *Importer) Sync(ctx context.Context, st store.Store) (*Tree, error) {
	tree, err := im.LoadTree(ctx)
	if err != nil {
		return nil, err
	}
	if err := UpsertTree(ctx, st, tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// UpsertTree writes an imported tree into the store.
func UpsertTree(ctx context.Context, st store.Store, tree *Tree) error {
	for _, typ := range tree.Typifications {
		if err := st.UpsertTypification(ctx, typ); err != nil {
			return eris.Wrapf(err, "registry: upsert typification %s", typ.ID)
		}
	}
	for _, tax := range tree.Taxonomies {
		if err := st.UpsertTaxonomy(ctx, tax); err != nil {
			return eris.Wrapf(err, "registry: upsert taxonomy %s", tax.ID)
		}
	}
	for _, br := range tree.Branches {
		if err := st.UpsertBranch(ctx, br); err != nil {
			return eris.Wrapf(err, "registry: upsert branch %s", br.ID)
		}
	}
	return nil
}

// LoadInstitutions returns the institution names for the anonymizer
// deny-list.
func (im *Importer) LoadInstitutions(ctx context.Context) ([]string, error) {
	pages, err := notion.QueryActive(ctx, im.client, im.cfg.InstitutionDB)
	if err != nil {
		return nil, eris.Wrap(err, "registry: load institutions")
	}

	var names []string
	for _, p := range pages {
		if name := titleText(p, "Name"); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func (im *Importer) loadTypifications(ctx context.Context) ([]model.Typification, error) {
	pages, err := notion.QueryActive(ctx, im.client, im.cfg.TypificationDB)
	if err != nil {
		return nil, eris.Wrap(err, "registry: load typifications")
	}

	var out []model.Typification
	for _, p := range pages {
		typ := model.Typification{
			ID:      string(p.ID),
			Name:    titleText(p, "Name"),
			Sources: sources(p, "Sources"),
		}
		if typ.Name == "" {
			zap.L().Warn("registry: skipping typification without name",
				zap.String("page_id", string(p.ID)),
			)
			continue
		}
		out = append(out, typ)
	}
	return out, nil
}

func (im *Importer) loadTaxonomies(ctx context.Context, typIDs map[string]bool) ([]model.Taxonomy, error) {
	pages, err := notion.QueryActive(ctx, im.client, im.cfg.TaxonomyDB)
	if err != nil {
		return nil, eris.Wrap(err, "registry: load taxonomies")
	}

	var out []model.Taxonomy
	for _, p := range pages {
		tax := model.Taxonomy{
			ID:             string(p.ID),
			TypificationID: firstRelation(p, "Typification"),
			Title:          titleText(p, "Title"),
			Description:    richText(p, "Description"),
			Sources:        sources(p, "Sources"),
		}
		if tax.Title == "" || !typIDs[tax.TypificationID] {
			zap.L().Warn("registry: skipping taxonomy",
				zap.String("page_id", string(p.ID)),
				zap.String("typification_id", tax.TypificationID),
			)
			continue
		}
		out = append(out, tax)
	}
	return out, nil
}

func (im *Importer) loadBranches(ctx context.Context, taxIDs map[string]bool) ([]model.Branch, error) {
	pages, err := notion.QueryActive(ctx, im.client, im.cfg.BranchDB)
	if err != nil {
		return nil, eris.Wrap(err, "registry: load branches")
	}

	var out []model.Branch
	for _, p := range pages {
		br := model.Branch{
			ID:          string(p.ID),
			TaxonomyID:  firstRelation(p, "Taxonomy"),
			Title:       titleText(p, "Title"),
			Description: richText(p, "Description"),
		}
		if br.Title == "" || !taxIDs[br.TaxonomyID] {
			zap.L().Warn("registry: skipping branch",
				zap.String("page_id", string(p.ID)),
				zap.String("taxonomy_id", br.TaxonomyID),
			)
			continue
		}
		out = append(out, br)
	}
	return out, nil
}

// titleText extracts the plain text of a title property.
func titleText(p notionapi.Page, name string) string {
	if prop, ok := p.Properties[name]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			return plainText(tp.Title)
		}
	}
	return ""
}

// richText extracts the plain text of a rich_text property.
func richText(p notionapi.Page, name string) string {
	if prop, ok := p.Properties[name]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			return plainText(rtp.RichText)
		}
	}
	return ""
}

// firstRelation returns the first related page ID of a relation property.
func firstRelation(p notionapi.Page, name string) string {
	if prop, ok := p.Properties[name]; ok {
		if rp, ok := prop.(*notionapi.RelationProperty); ok && len(rp.Relation) > 0 {
			return string(rp.Relation[0].ID)
		}
	}
	return ""
}

// sources maps a multi_select property to normative sources, one per
// selected option.
func sources(p notionapi.Page, name string) []model.Source {
	prop, ok := p.Properties[name]
	if !ok {
		return nil
	}
	msp, ok := prop.(*notionapi.MultiSelectProperty)
	if !ok {
		return nil
	}

	var out []model.Source
	for _, opt := range msp.MultiSelect {
		if opt.Name == "" {
			continue
		}
		out = append(out, model.Source{
			ID:   string(opt.ID),
			Name: opt.Name,
		})
	}
	return out
}

func plainText(rts []notionapi.RichText) string {
	var s string
	for _, rt := range rts {
		s += rt.PlainText
	}
	return s
}
