package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/veridian-group/compliance-cli/internal/db"
	"github.com/veridian-group/compliance-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_release":        `SELECT id, document_id, file_path, description, created_at, deleted_at FROM releases WHERE id = $1`,
	"upsert_run_state":   `INSERT INTO run_states (release_id, test_run_id, status, progress, error, updated_at) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (release_id) DO UPDATE SET test_run_id = $2, status = $3, progress = $4, error = $5, updated_at = $6`,
	"get_run_state":      `SELECT release_id, test_run_id, status, progress, error, updated_at FROM run_states WHERE release_id = $1`,
	"get_applied_typ":    `SELECT id, release_id, name, original_id, sources, created_at FROM applied_typifications WHERE release_id = $1 AND original_id = $2`,
	"set_branch_eval":    `UPDATE applied_branches SET evaluation = $1 WHERE id = $2`,
	"insert_audit_event": `INSERT INTO audit_log (id, release_id, action, detail, created_at) VALUES ($1, $2, $3, $4, $5)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for bulk helpers.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS releases (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	document_id TEXT NOT NULL,
	file_path   TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS run_states (
	release_id  TEXT PRIMARY KEY REFERENCES releases(id),
	test_run_id TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'PENDING',
	progress    TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS typifications (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	sources JSONB
);

CREATE TABLE IF NOT EXISTS taxonomies (
	id              TEXT PRIMARY KEY,
	typification_id TEXT NOT NULL REFERENCES typifications(id),
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	sources         JSONB
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
	sources     JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (release_id, original_id)
);

CREATE TABLE IF NOT EXISTS applied_taxonomies (
	id                      TEXT PRIMARY KEY,
	applied_typification_id TEXT NOT NULL REFERENCES applied_typifications(id),
	title                   TEXT NOT NULL,
	description             TEXT NOT NULL DEFAULT '',
	original_id             TEXT,
	sources                 JSONB,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS applied_branches (
	id                  TEXT PRIMARY KEY,
	applied_taxonomy_id TEXT NOT NULL REFERENCES applied_taxonomies(id),
	title               TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	original_id         TEXT,
	evaluation          JSONB,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	release_id TEXT,
	action     TEXT NOT NULL,
	detail     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_releases_document ON releases(document_id);
CREATE INDEX IF NOT EXISTS idx_taxonomies_typification ON taxonomies(typification_id);
CREATE INDEX IF NOT EXISTS idx_branches_taxonomy ON branches(taxonomy_id);
CREATE INDEX IF NOT EXISTS idx_applied_typ_release ON applied_typifications(release_id);
CREATE INDEX IF NOT EXISTS idx_applied_tax_parent ON applied_taxonomies(applied_typification_id);
CREATE INDEX IF NOT EXISTS idx_applied_branch_parent ON applied_branches(applied_taxonomy_id);
CREATE INDEX IF NOT EXISTS idx_audit_release ON audit_log(release_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRelease(ctx context.Context, documentID, filePath string) (*model.Release, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO releases (id, document_id, file_path, created_at) VALUES ($1, $2, $3, $4)`,
		id, documentID, filePath, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert release")
	}

	return &model.Release{
		ID:         id,
		DocumentID: documentID,
		FilePath:   filePath,
		CreatedAt:  now,
	}, nil
}

func (s *PostgresStore) GetRelease(ctx context.Context, id string) (*model.Release, error) {
	var r model.Release
	err := s.pool.QueryRow(ctx,
		`SELECT id, document_id, file_path, description, created_at, deleted_at FROM releases WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.DocumentID, &r.FilePath, &r.Description, &r.CreatedAt, &r.DeletedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get release %s", id)
	}
	return &r, nil
}

func (s *PostgresStore) ListReleases(ctx context.Context, filter ReleaseFilter) ([]model.Release, error) {
	query := `SELECT id, document_id, file_path, description, created_at, deleted_at FROM releases WHERE true`
	args := []any{}
	argIdx := 1

	if filter.DocumentID != "" {
		query += fmt.Sprintf(` AND document_id = $%d`, argIdx)
		args = append(args, filter.DocumentID)
		argIdx++
	}
	if !filter.IncludeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list releases")
	}
	defer rows.Close()

	var releases []model.Release
	for rows.Next() {
		var r model.Release
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.FilePath, &r.Description, &r.CreatedAt, &r.DeletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan release")
		}
		releases = append(releases, r)
	}
	return releases, eris.Wrap(rows.Err(), "postgres: list releases iterate")
}

func (s *PostgresStore) SetReleaseDescription(ctx context.Context, id, description string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE releases SET description = $1 WHERE id = $2`,
		description, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set release description %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("release not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) SoftDeleteRelease(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE releases SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: soft delete release %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("release not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) UpsertRunState(ctx context.Context, state model.RunState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	err := db.UpsertRow(ctx, s.pool, "run_states",
		[]string{"release_id", "test_run_id", "status", "progress", "error", "updated_at"},
		[]string{"release_id"},
		[]any{state.ReleaseID, state.TestRunID, string(state.Status), state.Progress, state.Error, state.UpdatedAt},
	)
	return eris.Wrapf(err, "postgres: upsert run state %s", state.ReleaseID)
}

func (s *PostgresStore) GetRunState(ctx context.Context, releaseID string) (*model.RunState, error) {
	var st model.RunState
	err := s.pool.QueryRow(ctx,
		`SELECT release_id, test_run_id, status, progress, error, updated_at FROM run_states WHERE release_id = $1`,
		releaseID,
	).Scan(&st.ReleaseID, &st.TestRunID, &st.Status, &st.Progress, &st.Error, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get run state %s", releaseID)
	}
	return &st, nil
}

func (s *PostgresStore) UpsertTypification(ctx context.Context, t model.Typification) error {
	sourcesJSON, err := json.Marshal(t.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal typification sources")
	}
	err = db.UpsertRow(ctx, s.pool, "typifications",
		[]string{"id", "name", "sources"}, []string{"id"},
		[]any{t.ID, t.Name, sourcesJSON},
	)
	return eris.Wrapf(err, "postgres: upsert typification %s", t.ID)
}

func (s *PostgresStore) UpsertTaxonomy(ctx context.Context, t model.Taxonomy) error {
	sourcesJSON, err := json.Marshal(t.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal taxonomy sources")
	}
	err = db.UpsertRow(ctx, s.pool, "taxonomies",
		[]string{"id", "typification_id", "title", "description", "sources"}, []string{"id"},
		[]any{t.ID, t.TypificationID, t.Title, t.Description, sourcesJSON},
	)
	return eris.Wrapf(err, "postgres: upsert taxonomy %s", t.ID)
}

func (s *PostgresStore) UpsertBranch(ctx context.Context, b model.Branch) error {
	err := db.UpsertRow(ctx, s.pool, "branches",
		[]string{"id", "taxonomy_id", "title", "description"}, []string{"id"},
		[]any{b.ID, b.TaxonomyID, b.Title, b.Description},
	)
	return eris.Wrapf(err, "postgres: upsert branch %s", b.ID)
}

func (s *PostgresStore) ListBranchContexts(ctx context.Context) ([]model.BranchContext, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.id, b.taxonomy_id, b.title, b.description,
		       t.id, t.typification_id, t.title, t.description, t.sources,
		       ty.id, ty.name, ty.sources
		FROM branches b
		JOIN taxonomies t ON t.id = b.taxonomy_id
		JOIN typifications ty ON ty.id = t.typification_id
		ORDER BY ty.id, t.id, b.id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list branch contexts")
	}
	defer rows.Close()

	var out []model.BranchContext
	for rows.Next() {
		var bc model.BranchContext
		var taxSources, typSources []byte
		if err := rows.Scan(
			&bc.Branch.ID, &bc.Branch.TaxonomyID, &bc.Branch.Title, &bc.Branch.Description,
			&bc.Taxonomy.ID, &bc.Taxonomy.TypificationID, &bc.Taxonomy.Title, &bc.Taxonomy.Description, &taxSources,
			&bc.Typification.ID, &bc.Typification.Name, &typSources,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan branch context")
		}
		if len(taxSources) > 0 {
			if err := json.Unmarshal(taxSources, &bc.Taxonomy.Sources); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal taxonomy sources")
			}
		}
		if len(typSources) > 0 {
			if err := json.Unmarshal(typSources, &bc.Typification.Sources); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal typification sources")
			}
		}
		out = append(out, bc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list branch contexts iterate")
}

func (s *PostgresStore) GetAppliedTypificationByOriginal(ctx context.Context, releaseID, originalID string) (*model.AppliedTypification, error) {
	var at model.AppliedTypification
	var sourcesJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, release_id, name, original_id, sources, created_at
		 FROM applied_typifications WHERE release_id = $1 AND original_id = $2`,
		releaseID, originalID,
	).Scan(&at.ID, &at.ReleaseID, &at.Name, &at.OriginalID, &sourcesJSON, &at.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get applied typification")
	}
	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &at.Sources); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal applied sources")
		}
	}
	return &at, nil
}

func (s *PostgresStore) InsertAppliedTypification(ctx context.Context, at model.AppliedTypification) error {
	sourcesJSON, err := json.Marshal(at.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal applied sources")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO applied_typifications (id, release_id, name, original_id, sources, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		at.ID, at.ReleaseID, at.Name, at.OriginalID, sourcesJSON, at.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert applied typification %s", at.ID)
}

func (s *PostgresStore) GetAppliedTaxonomyByOriginal(ctx context.Context, releaseID, originalID string) (*model.AppliedTaxonomy, error) {
	var at model.AppliedTaxonomy
	var sourcesJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT t.id, t.applied_typification_id, t.title, t.description, t.original_id, t.sources, t.created_at
		 FROM applied_taxonomies t
		 JOIN applied_typifications ty ON ty.id = t.applied_typification_id
		 WHERE ty.release_id = $1 AND t.original_id = $2`,
		releaseID, originalID,
	).Scan(&at.ID, &at.AppliedTypificationID, &at.Title, &at.Description, &at.OriginalID, &sourcesJSON, &at.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get applied taxonomy")
	}
	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &at.Sources); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal applied sources")
		}
	}
	return &at, nil
}

func (s *PostgresStore) InsertAppliedTaxonomy(ctx context.Context, at model.AppliedTaxonomy) error {
	sourcesJSON, err := json.Marshal(at.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal applied sources")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO applied_taxonomies (id, applied_typification_id, title, description, original_id, sources, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		at.ID, at.AppliedTypificationID, at.Title, at.Description, at.OriginalID, sourcesJSON, at.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert applied taxonomy %s", at.ID)
}

func (s *PostgresStore) GetAppliedBranchByOriginal(ctx context.Context, releaseID, originalID string) (*model.AppliedBranch, error) {
	var ab model.AppliedBranch
	err := s.pool.QueryRow(ctx,
		`SELECT b.id, b.applied_taxonomy_id, b.title, b.description, b.original_id, b.created_at
		 FROM applied_branches b
		 JOIN applied_taxonomies t ON t.id = b.applied_taxonomy_id
		 JOIN applied_typifications ty ON ty.id = t.applied_typification_id
		 WHERE ty.release_id = $1 AND b.original_id = $2`,
		releaseID, originalID,
	).Scan(&ab.ID, &ab.AppliedTaxonomyID, &ab.Title, &ab.Description, &ab.OriginalID, &ab.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get applied branch")
	}
	return &ab, nil
}

func (s *PostgresStore) InsertAppliedBranch(ctx context.Context, ab model.AppliedBranch) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO applied_branches (id, applied_taxonomy_id, title, description, original_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ab.ID, ab.AppliedTaxonomyID, ab.Title, ab.Description, ab.OriginalID, ab.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert applied branch %s", ab.ID)
}

func (s *PostgresStore) SetBranchEvaluation(ctx context.Context, appliedBranchID string, eval model.BranchEvaluation) error {
	evalJSON, err := json.Marshal(eval)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evaluation")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE applied_branches SET evaluation = $1 WHERE id = $2`,
		evalJSON, appliedBranchID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set branch evaluation %s", appliedBranchID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("applied branch not found: %s", appliedBranchID)
	}
	return nil
}

func (s *PostgresStore) GetAppliedTree(ctx context.Context, releaseID string) (*model.AppliedTree, error) {
	tree := &model.AppliedTree{ReleaseID: releaseID}

	typRows, err := s.pool.Query(ctx,
		`SELECT id, release_id, name, original_id, sources, created_at
		 FROM applied_typifications WHERE release_id = $1 ORDER BY created_at, id`,
		releaseID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query applied typifications")
	}
	defer typRows.Close()
	for typRows.Next() {
		var at model.AppliedTypification
		var sourcesJSON []byte
		if err := typRows.Scan(&at.ID, &at.ReleaseID, &at.Name, &at.OriginalID, &sourcesJSON, &at.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan applied typification")
		}
		if len(sourcesJSON) > 0 {
			if err := json.Unmarshal(sourcesJSON, &at.Sources); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal applied sources")
			}
		}
		tree.Typifications = append(tree.Typifications, at)
	}
	if err := typRows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: applied typifications iterate")
	}

	taxRows, err := s.pool.Query(ctx,
		`SELECT t.id, t.applied_typification_id, t.title, t.description, t.original_id, t.sources, t.created_at
		 FROM applied_taxonomies t
		 JOIN applied_typifications ty ON ty.id = t.applied_typification_id
		 WHERE ty.release_id = $1 ORDER BY t.created_at, t.id`,
		releaseID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query applied taxonomies")
	}
	defer taxRows.Close()
	for taxRows.Next() {
		var at model.AppliedTaxonomy
		var sourcesJSON []byte
		if err := taxRows.Scan(&at.ID, &at.AppliedTypificationID, &at.Title, &at.Description, &at.OriginalID, &sourcesJSON, &at.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan applied taxonomy")
		}
		if len(sourcesJSON) > 0 {
			if err := json.Unmarshal(sourcesJSON, &at.Sources); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal applied sources")
			}
		}
		tree.Taxonomies = append(tree.Taxonomies, at)
	}
	if err := taxRows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: applied taxonomies iterate")
	}

	branchRows, err := s.pool.Query(ctx,
		`SELECT b.id, b.applied_taxonomy_id, b.title, b.description, b.original_id, b.evaluation, b.created_at
		 FROM applied_branches b
		 JOIN applied_taxonomies t ON t.id = b.applied_taxonomy_id
		 JOIN applied_typifications ty ON ty.id = t.applied_typification_id
		 WHERE ty.release_id = $1 ORDER BY b.created_at, b.id`,
		releaseID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query applied branches")
	}
	defer branchRows.Close()
	for branchRows.Next() {
		var ab model.AppliedBranch
		var evalJSON []byte
		if err := branchRows.Scan(&ab.ID, &ab.AppliedTaxonomyID, &ab.Title, &ab.Description, &ab.OriginalID, &evalJSON, &ab.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan applied branch")
		}
		if len(evalJSON) > 0 {
			ab.Evaluation = &model.BranchEvaluation{}
			if err := json.Unmarshal(evalJSON, ab.Evaluation); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal evaluation")
			}
		}
		tree.Branches = append(tree.Branches, ab)
	}
	return tree, eris.Wrap(branchRows.Err(), "postgres: applied branches iterate")
}

func (s *PostgresStore) AppendAudit(ctx context.Context, event model.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	detailJSON, err := json.Marshal(event.Detail)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal audit detail")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_log (id, release_id, action, detail, created_at) VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.ReleaseID, event.Action, detailJSON, event.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert audit event")
}
