package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-group/compliance-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresGetRelease_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, document_id, file_path, description, created_at, deleted_at FROM releases WHERE id = \$1`).
		WithArgs("missing-release").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRelease(context.Background(), "missing-release")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get release")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRunState_NotFoundReturnsNil(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT release_id, test_run_id, status, progress, error, updated_at FROM run_states`).
		WithArgs("rel-1").
		WillReturnError(pgx.ErrNoRows)

	st, err := s.GetRunState(context.Background(), "rel-1")
	require.NoError(t, err)
	assert.Nil(t, st)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertRunState(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO "run_states"`).
		WithArgs("rel-1", "", "PROCESSING", "embedding chunks", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertRunState(context.Background(), model.RunState{
		ReleaseID: "rel-1",
		Status:    model.RunStatusProcessing,
		Progress:  "embedding chunks",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetBranchEvaluation_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE applied_branches SET evaluation = \$1 WHERE id = \$2`).
		WithArgs(pgxmock.AnyArg(), "abr-missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetBranchEvaluation(context.Background(), "abr-missing", model.BranchEvaluation{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetAppliedTypificationByOriginal_NotFoundReturnsNil(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, release_id, name, original_id, sources, created_at`).
		WithArgs("rel-1", "typ-1").
		WillReturnError(pgx.ErrNoRows)

	at, err := s.GetAppliedTypificationByOriginal(context.Background(), "rel-1", "typ-1")
	require.NoError(t, err)
	assert.Nil(t, at)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSoftDeleteRelease_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE releases SET deleted_at = \$1 WHERE id = \$2 AND deleted_at IS NULL`).
		WithArgs(pgxmock.AnyArg(), "rel-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SoftDeleteRelease(context.Background(), "rel-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListReleases_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "document_id", "file_path", "description", "created_at", "deleted_at"}).
		AddRow("rel-1", "doc-1", "/a.pdf", "", now, nil)

	mock.ExpectQuery(`SELECT id, document_id, file_path, description, created_at, deleted_at FROM releases WHERE true AND document_id = \$1 AND deleted_at IS NULL ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("doc-1", 100).
		WillReturnRows(rows)

	list, err := s.ListReleases(context.Background(), ReleaseFilter{DocumentID: "doc-1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "rel-1", list[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendAudit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(pgxmock.AnyArg(), "rel-1", "pipeline.started", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.AppendAudit(context.Background(), model.AuditEvent{
		ReleaseID: "rel-1",
		Action:    "pipeline.started",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
