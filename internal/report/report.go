// Package report exports a release's evaluation results as a spreadsheet.
package report

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/veridian-group/compliance-cli/internal/anonymizer"
	"github.com/veridian-group/compliance-cli/internal/model"
	"github.com/veridian-group/compliance-cli/internal/store"
)

var resultHeader = []string{"Area", "Category", "Criterion", "Fulfilled", "Score", "Feedback"}

// Exporter renders evaluation reports.
type Exporter struct {
	store store.Store
}

// NewExporter creates an Exporter backed by the given store.
func NewExporter(st store.Store) *Exporter {
	return &Exporter{store: st}
}

// Export writes the applied tree of one release to an XLSX file at path.
// Feedback is de-anonymized using the mapping stored with each evaluation.
func (e *Exporter) Export(ctx context.Context, releaseID, path string) error {
	release, err := e.store.GetRelease(ctx, releaseID)
	if err != nil {
		return err
	}
	tree, err := e.store.GetAppliedTree(ctx, releaseID)
	if err != nil {
		return err
	}
	if len(tree.Branches) == 0 {
		return eris.Errorf("report: release %s has no applied tree", releaseID)
	}

	f := xlsx.NewFile()
	if err := writeSummarySheet(f, release); err != nil {
		return err
	}
	if err := writeResultsSheet(f, tree); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}

	zap.L().Info("report exported",
		zap.String("release_id", releaseID),
		zap.String("path", path),
		zap.Int("branches", len(tree.Branches)),
	)
	return nil
}

func writeSummarySheet(f *xlsx.File, release *model.Release) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}

	addPair(sheet, "Release", release.ID)
	addPair(sheet, "Document", release.DocumentID)
	addPair(sheet, "Created", release.CreatedAt.Format("2006-01-02 15:04"))
	addPair(sheet, "Summary", release.Description)
	return nil
}

func writeResultsSheet(f *xlsx.File, tree *model.AppliedTree) error {
	sheet, err := f.AddSheet("Evaluation")
	if err != nil {
		return eris.Wrap(err, "report: add evaluation sheet")
	}

	header := sheet.AddRow()
	for _, h := range resultHeader {
		header.AddCell().SetString(h)
	}

	taxByID := make(map[string]model.AppliedTaxonomy, len(tree.Taxonomies))
	for _, tax := range tree.Taxonomies {
		taxByID[tax.ID] = tax
	}
	typByID := make(map[string]model.AppliedTypification, len(tree.Typifications))
	for _, typ := range tree.Typifications {
		typByID[typ.ID] = typ
	}

	for _, br := range tree.Branches {
		tax := taxByID[br.AppliedTaxonomyID]
		row := sheet.AddRow()
		row.AddCell().SetString(typByID[tax.AppliedTypificationID].Name)
		row.AddCell().SetString(tax.Title)
		row.AddCell().SetString(br.Title)

		if br.Evaluation == nil {
			row.AddCell().SetString("")
			row.AddCell().SetString("")
			row.AddCell().SetString("not evaluated")
			continue
		}
		row.AddCell().SetBool(br.Evaluation.Fulfilled)
		row.AddCell().SetFloat(br.Evaluation.Score)
		row.AddCell().SetString(anonymizer.Deanonymize(br.Evaluation.Feedback, br.Evaluation.Mapping))
	}
	return nil
}

func addPair(sheet *xlsx.Sheet, key, value string) {
	row := sheet.AddRow()
	row.AddCell().SetString(key)
	row.AddCell().SetString(value)
}
