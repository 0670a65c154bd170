package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/veridian-group/compliance-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// single-shot CLI runs where a Postgres instance is not available.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS releases (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	file_path   TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	deleted_at  DATETIME
);

CREATE TABLE IF NOT EXISTS run_states (
	release_id  TEXT PRIMARY KEY REFERENCES releases(id),
	test_run_id TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'PENDING',
	progress    TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS typifications (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	sources TEXT
);

CREATE TABLE IF NOT EXISTS taxonomies (
	id              TEXT PRIMARY KEY,
	typification_id TEXT NOT NULL REFERENCES typifications(id),
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	sources         TEXT
);

CREATE TABLE IF NOT EXISTS branches (
	id          TEXT PRIMARY KEY,
	taxonomy_id TEXT NOT NULL REFERENCES taxonomies(id),
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS applied_typifications (
	id          TEXT PRIMARY KEY,
	release_id  TEXT NOT NULL REFERENCES releases(id),
	name        TEXT NOT NULL,
	original_id TEXT,
	sources     TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (release_id, original_id)
);

CREATE TABLE IF NOT EXISTS applied_taxonomies (
	id                      TEXT PRIMARY KEY,
	applied_typification_id TEXT NOT NULL REFERENCES applied_typifications(id),
	title                   TEXT NOT NULL,
	description             TEXT NOT NULL DEFAULT '',
	original_id             TEXT,
	sources                 TEXT,
	created_at              DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS applied_branches (
	id                  TEXT PRIMARY KEY,
	applied_taxonomy_id TEXT NOT NULL REFERENCES applied_taxonomies(id),
	title               TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	original_id         TEXT,
	evaluation          TEXT,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	release_id TEXT,
	action     TEXT NOT NULL,
	detail     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_releases_document ON releases(document_id);
CREATE INDEX IF NOT EXISTS idx_taxonomies_typification ON taxonomies(typification_id);
CREATE INDEX IF NOT EXISTS idx_branches_taxonomy ON branches(taxonomy_id);
CREATE INDEX IF NOT EXISTS idx_applied_typ_release ON applied_typifications(release_id);
CREATE INDEX IF NOT EXISTS idx_applied_tax_parent ON applied_taxonomies(applied_typification_id);
CREATE INDEX IF NOT EXISTS idx_applied_branch_parent ON applied_branches(applied_taxonomy_id);
CREATE INDEX IF NOT EXISTS idx_audit_release ON audit_log(release_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRelease(ctx context.Context, documentID, filePath string) (*model.Release, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO releases (id, document_id, file_path, created_at) VALUES (?, ?, ?, ?)`,
		id, documentID, filePath, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert release")
	}

	return &model.Release{
		ID:         id,
		DocumentID: documentID,
		FilePath:   filePath,
		CreatedAt:  now,
	}, nil
}

func (s *SQLiteStore) GetRelease(ctx context.Context, id string) (*model.Release, error) {
	var r model.Release
	var deletedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, file_path, description, created_at, deleted_at FROM releases WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.DocumentID, &r.FilePath, &r.Description, &r.CreatedAt, &deletedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get release %s", id)
	}
	if deletedAt.Valid {
		r.DeletedAt = &deletedAt.Time
	}
	return &r, nil
}

func (s *SQLiteStore) ListReleases(ctx context.Context, filter ReleaseFilter) ([]model.Release, error) {
	query := `SELECT id, document_id, file_path, description, created_at, deleted_at FROM releases WHERE 1=1`
	var args []any

	if filter.DocumentID != "" {
		query += ` AND document_id = ?`
		args = append(args, filter.DocumentID)
	}
	if !filter.IncludeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list releases")
	}
	defer rows.Close()

	var releases []model.Release
	for rows.Next() {
		var r model.Release
		var deletedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.FilePath, &r.Description, &r.CreatedAt, &deletedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan release")
		}
		if deletedAt.Valid {
			r.DeletedAt = &deletedAt.Time
		}
		releases = append(releases, r)
	}
	return releases, eris.Wrap(rows.Err(), "sqlite: list releases iterate")
}

func (s *SQLiteStore) SetReleaseDescription(ctx context.Context, id, description string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE releases SET description = ? WHERE id = ?`,
		description, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set release description %s", id)
	}
	return checkRowsAffected(res, "release", id)
}

func (s *SQLiteStore) SoftDeleteRelease(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE releases SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: soft delete release %s", id)
	}
	return checkRowsAffected(res, "release", id)
}

func (s *SQLiteStore) UpsertRunState(ctx context.Context, state model.RunState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_states (release_id, test_run_id, status, progress, error, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (release_id) DO UPDATE SET
		   test_run_id = excluded.test_run_id, status = excluded.status,
		   progress = excluded.progress, error = excluded.error, updated_at = excluded.updated_at`,
		state.ReleaseID, state.TestRunID, string(state.Status), state.Progress, state.Error, state.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert run state %s", state.ReleaseID)
}

func (s *SQLiteStore) GetRunState(ctx context.Context, releaseID string) (*model.RunState, error) {
	var st model.RunState
	err := s.db.QueryRowContext(ctx,
		`SELECT release_id, test_run_id, status, progress, error, updated_at FROM run_states WHERE release_id = ?`,
		releaseID,
	).Scan(&st.ReleaseID, &st.TestRunID, &st.Status, &st.Progress, &st.Error, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run state %s", releaseID)
	}
	return &st, nil
}

func (s *SQLiteStore) UpsertTypification(ctx context.Context, t model.Typification) error {
	sourcesJSON, err := json.Marshal(t.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal typification sources")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO typifications (id, name, sources) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, sources = excluded.sources`,
		t.ID, t.Name, string(sourcesJSON),
	)
	return eris.Wrapf(err, "sqlite: upsert typification %s", t.ID)
}

func (s *SQLiteStore) UpsertTaxonomy(ctx context.Context, t model.Taxonomy) error {
	sourcesJSON, err := json.Marshal(t.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal taxonomy sources")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO taxonomies (id, typification_id, title, description, sources) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET typification_id = excluded.typification_id,
		   title = excluded.title, description = excluded.description, sources = excluded.sources`,
		t.ID, t.TypificationID, t.Title, t.Description, string(sourcesJSON),
	)
	return eris.Wrapf(err, "sqlite: upsert taxonomy %s", t.ID)
}

func (s *SQLiteStore) UpsertBranch(ctx context.Context, b model.Branch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO branches (id, taxonomy_id, title, description) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET taxonomy_id = excluded.taxonomy_id,
		   title = excluded.title, description = excluded.description`,
		b.ID, b.TaxonomyID, b.Title, b.Description,
	)
	return eris.Wrapf(err, "sqlite: upsert branch %s", b.ID)
}

func (s *SQLiteStore) ListBranchContexts(ctx context.Context) ([]model.BranchContext, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.taxonomy_id, b.title, b.description,
		       t.id, t.typification_id, t.title, t.description, t.sources,
		       ty.id, ty.name, ty.sources
		FROM branches b
		JOIN taxonomies t ON t.id = b.taxonomy_id
		JOIN typifications ty ON ty.id = t.typification_id
		ORDER BY ty.id, t.id, b.id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list branch contexts")
	}
	defer rows.Close()

	var out []model.BranchContext
	for rows.Next() {
		var bc model.BranchContext
		var taxSources, typSources sql.NullString
		if err := rows.Scan(
			&bc.Branch.ID, &bc.Branch.TaxonomyID, &bc.Branch.Title, &bc.Branch.Description,
			&bc.Taxonomy.ID, &bc.Taxonomy.TypificationID, &bc.Taxonomy.Title, &bc.Taxonomy.Description, &taxSources,
			&bc.Typification.ID, &bc.Typification.Name, &typSources,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan branch context")
		}
		if taxSources.Valid && taxSources.String != "" {
			if err := json.Unmarshal([]byte(taxSources.String), &bc.Taxonomy.Sources); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal taxonomy sources")
			}
		}
		if typSources.Valid && typSources.String != "" {
			if err := json.Unmarshal([]byte(typSources.String), &bc.Typification.Sources); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal typification sources")
			}
		}
		out = append(out, bc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list branch contexts iterate")
}

func (s *SQLiteStore) GetAppliedTypificationByOriginal(ctx context.Context, releaseID, originalID string) (*model.AppliedTypification, error) {
	var at model.AppliedTypification
	var sourcesJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, release_id, name, original_id, sources, created_at
		 FROM applied_typifications WHERE release_id = ? AND original_id = ?`,
		releaseID, originalID,
	).Scan(&at.ID, &at.ReleaseID, &at.Name, &at.OriginalID, &sourcesJSON, &at.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get applied typification")
	}
	if sourcesJSON.Valid && sourcesJSON.String != "" {
		if err := json.Unmarshal([]byte(sourcesJSON.String), &at.Sources); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal applied sources")
		}
	}
	return &at, nil
}

func (s *SQLiteStore) InsertAppliedTypification(ctx context.Context, at model.AppliedTypification) error {
	sourcesJSON, err := json.Marshal(at.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal applied sources")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO applied_typifications (id, release_id, name, original_id, sources, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		at.ID, at.ReleaseID, at.Name, at.OriginalID, string(sourcesJSON), at.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert applied typification %s", at.ID)
}

func (s *SQLiteStore) GetAppliedTaxonomyByOriginal(ctx context.Context, releaseID, originalID string) (*model.AppliedTaxonomy, error) {
	var at model.AppliedTaxonomy
	var sourcesJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT t.id, t.applied_typification_id, t.title, t.description, t.original_id, t.sources, t.created_at
		 FROM applied_taxonomies t
		 JOIN applied_typifications ty ON ty.id = t.applied_typification_id
		 WHERE ty.release_id = ? AND t.original_id = ?`,
		releaseID, originalID,
	).Scan(&at.ID, &at.AppliedTypificationID, &at.Title, &at.Description, &at.OriginalID, &sourcesJSON, &at.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get applied taxonomy")
	}
	if sourcesJSON.Valid && sourcesJSON.String != "" {
		if err := json.Unmarshal([]byte(sourcesJSON.String), &at.Sources); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal applied sources")
		}
	}
	return &at, nil
}

func (s *SQLiteStore) InsertAppliedTaxonomy(ctx context.Context, at model.AppliedTaxonomy) error {
	sourcesJSON, err := json.Marshal(at.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal applied sources")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO applied_taxonomies (id, applied_typification_id, title, description, original_id, sources, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		at.ID, at.AppliedTypificationID, at.Title, at.Description, at.OriginalID, string(sourcesJSON), at.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert applied taxonomy %s", at.ID)
}

func (s *SQLiteStore) GetAppliedBranchByOriginal(ctx context.Context, releaseID, originalID string) (*model.AppliedBranch, error) {
	var ab model.AppliedBranch
	err := s.db.QueryRowContext(ctx,
		`SELECT b.id, b.applied_taxonomy_id, b.title, b.description, b.original_id, b.created_at
		 FROM applied_branches b
		 JOIN applied_taxonomies t ON t.id = b.applied_taxonomy_id
		 JOIN applied_typifications ty ON ty.id = t.applied_typification_id
		 WHERE ty.release_id = ? AND b.original_id = ?`,
		releaseID, originalID,
	).Scan(&ab.ID, &ab.AppliedTaxonomyID, &ab.Title, &ab.Description, &ab.OriginalID, &ab.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get applied branch")
	}
	return &ab, nil
}

func (s *SQLiteStore) InsertAppliedBranch(ctx context.Context, ab model.AppliedBranch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO applied_branches (id, applied_taxonomy_id, title, description, original_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ab.ID, ab.AppliedTaxonomyID, ab.Title, ab.Description, ab.OriginalID, ab.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert applied branch %s", ab.ID)
}

func (s *SQLiteStore) SetBranchEvaluation(ctx context.Context, appliedBranchID string, eval model.BranchEvaluation) error {
	evalJSON, err := json.Marshal(eval)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evaluation")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE applied_branches SET evaluation = ? WHERE id = ?`,
		string(evalJSON), appliedBranchID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set branch evaluation %s", appliedBranchID)
	}
	return checkRowsAffected(res, "applied branch", appliedBranchID)
}

func (s *SQLiteStore) GetAppliedTree(ctx context.Context, releaseID string) (*model.AppliedTree, error) {
	tree := &model.AppliedTree{ReleaseID: releaseID}

	typRows, err := s.db.QueryContext(ctx,
		`SELECT id, release_id, name, original_id, sources, created_at
		 FROM applied_typifications WHERE release_id = ? ORDER BY created_at, id`,
		releaseID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query applied typifications")
	}
	defer typRows.Close()
	for typRows.Next() {
		var at model.AppliedTypification
		var sourcesJSON sql.NullString
		if err := typRows.Scan(&at.ID, &at.ReleaseID, &at.Name, &at.OriginalID, &sourcesJSON, &at.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan applied typification")
		}
		if sourcesJSON.Valid && sourcesJSON.String != "" {
			if err := json.Unmarshal([]byte(sourcesJSON.String), &at.Sources); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal applied sources")
			}
		}
		tree.Typifications = append(tree.Typifications, at)
	}
	if err := typRows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: applied typifications iterate")
	}

	taxRows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.applied_typification_id, t.title, t.description, t.original_id, t.sources, t.created_at
		 FROM applied_taxonomies t
		 JOIN applied_typifications ty ON ty.id = t.applied_typification_id
		 WHERE ty.release_id = ? ORDER BY t.created_at, t.id`,
		releaseID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query applied taxonomies")
	}
	defer taxRows.Close()
	for taxRows.Next() {
		var at model.AppliedTaxonomy
		var sourcesJSON sql.NullString
		if err := taxRows.Scan(&at.ID, &at.AppliedTypificationID, &at.Title, &at.Description, &at.OriginalID, &sourcesJSON, &at.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan applied taxonomy")
		}
		if sourcesJSON.Valid && sourcesJSON.String != "" {
			if err := json.Unmarshal([]byte(sourcesJSON.String), &at.Sources); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal applied sources")
			}
		}
		tree.Taxonomies = append(tree.Taxonomies, at)
	}
	if err := taxRows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: applied taxonomies iterate")
	}

	branchRows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.applied_taxonomy_id, b.title, b.description, b.original_id, b.evaluation, b.created_at
		 FROM applied_branches b
		 JOIN applied_taxonomies t ON t.id = b.applied_taxonomy_id
		 JOIN applied_typifications ty ON ty.id = t.applied_typification_id
		 WHERE ty.release_id = ? ORDER BY b.created_at, b.id`,
		releaseID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query applied branches")
	}
	defer branchRows.Close()
	for branchRows.Next() {
		var ab model.AppliedBranch
		var evalJSON sql.NullString
		if err := branchRows.Scan(&ab.ID, &ab.AppliedTaxonomyID, &ab.Title, &ab.Description, &ab.OriginalID, &evalJSON, &ab.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan applied branch")
		}
		if evalJSON.Valid && evalJSON.String != "" {
			ab.Evaluation = &model.BranchEvaluation{}
			if err := json.Unmarshal([]byte(evalJSON.String), ab.Evaluation); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal evaluation")
			}
		}
		tree.Branches = append(tree.Branches, ab)
	}
	return tree, eris.Wrap(branchRows.Err(), "sqlite: applied branches iterate")
}

func (s *SQLiteStore) AppendAudit(ctx context.Context, event model.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	detailJSON, err := json.Marshal(event.Detail)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit detail")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, release_id, action, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		event.ID, event.ReleaseID, event.Action, string(detailJSON), event.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert audit event")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
