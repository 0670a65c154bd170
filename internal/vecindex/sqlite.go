package vecindex

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridian-group/compliance-cli/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunk_vectors (
	id         TEXT PRIMARY KEY,
	source_id  TEXT NOT NULL,
	idx        INTEGER NOT NULL,
	total      INTEGER NOT NULL,
	content    TEXT NOT NULL,
	anonymized INTEGER NOT NULL DEFAULT 0,
	mapping    TEXT NOT NULL DEFAULT '',
	embedding  BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunk_vectors_source ON chunk_vectors(source_id, idx);
`

// SQLiteIndex stores chunk embeddings in a SQLite database and searches
// them with sqlite-vec's vec_distance_cosine.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex opens (and migrates) a SQLite-backed vector index at path.
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, eris.Wrap(err, "vecindex: open sqlite")
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "vecindex: migrate schema")
	}
	return &SQLiteIndex{db: db}, nil
}

func (s *SQLiteIndex) AddChunks(ctx context.Context, chunks []model.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return eris.Errorf("vecindex: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "vecindex: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunk_vectors (id, source_id, idx, total, content, anonymized, mapping, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			anonymized = excluded.anonymized,
			mapping = excluded.mapping,
			embedding = excluded.embedding,
			total = excluded.total`)
	if err != nil {
		return eris.Wrap(err, "vecindex: prepare insert")
	}
	defer stmt.Close()

	for i, ch := range chunks {
		mapping, err := encodeMapping(ch.Mapping)
		if err != nil {
			return eris.Wrap(err, "vecindex: encode mapping for chunk "+ch.ID)
		}
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.SourceID, ch.Index, ch.Total, ch.Content,
			ch.Anonymized, mapping,
			encodeVector(embeddings[i]),
		); err != nil {
			return eris.Wrap(err, "vecindex: insert chunk "+ch.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "vecindex: commit")
	}
	zap.L().Debug("indexed chunks",
		zap.Int("count", len(chunks)),
	)
	return nil
}

func (s *SQLiteIndex) Search(ctx context.Context, sourceID string, query []float32, k int) ([]model.Chunk, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, idx, total, content, anonymized, mapping,
		       vec_distance_cosine(embedding, ?) AS distance
		FROM chunk_vectors
		WHERE source_id = ?
		ORDER BY distance ASC
		LIMIT ?`, encodeVector(query), sourceID, k)
	if err != nil {
		return nil, eris.Wrap(err, "vecindex: similarity search")
	}
	defer rows.Close()

	var chunks []model.Chunk
	for rows.Next() {
		var distance float64
		ch, err := scanChunk(rows, &distance)
		if err != nil {
			return nil, eris.Wrap(err, "vecindex: scan search row")
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

func (s *SQLiteIndex) ChunksInRange(ctx context.Context, sourceID string, lo, hi int) ([]model.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, idx, total, content, anonymized, mapping
		FROM chunk_vectors
		WHERE source_id = ? AND idx BETWEEN ? AND ?
		ORDER BY idx ASC`, sourceID, lo, hi)
	if err != nil {
		return nil, eris.Wrap(err, "vecindex: range query")
	}
	defer rows.Close()

	var chunks []model.Chunk
	for rows.Next() {
		ch, err := scanChunk(rows, nil)
		if err != nil {
			return nil, eris.Wrap(err, "vecindex: scan range row")
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// scanChunk reads one chunk_vectors row. distance, when non-nil, consumes the
// trailing similarity column. Neighbor ids are positional, so they are
// rebuilt from the index instead of being stored.
func scanChunk(rows *sql.Rows, distance *float64) (model.Chunk, error) {
	var ch model.Chunk
	var mapping string

	dest := []any{&ch.ID, &ch.SourceID, &ch.Index, &ch.Total, &ch.Content, &ch.Anonymized, &mapping}
	if distance != nil {
		dest = append(dest, distance)
	}
	if err := rows.Scan(dest...); err != nil {
		return model.Chunk{}, err
	}

	m, err := decodeMapping(mapping)
	if err != nil {
		return model.Chunk{}, err
	}
	ch.Mapping = m

	if ch.Index > 0 {
		ch.PrevID = model.ChunkID(ch.SourceID, ch.Index-1)
	}
	if ch.Index < ch.Total-1 {
		ch.NextID = model.ChunkID(ch.SourceID, ch.Index+1)
	}
	return ch, nil
}

func encodeMapping(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMapping(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SQLiteIndex) Count(ctx context.Context, sourceID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunk_vectors WHERE source_id = ?`, sourceID,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "vecindex: count")
	}
	return n, nil
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}
