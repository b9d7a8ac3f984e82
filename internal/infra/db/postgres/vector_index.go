package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/bryanwahyu/scriptsage/internal/domain/embedding"
	"github.com/bryanwahyu/scriptsage/internal/domain/similarity"
)

// VectorIndex answers k-NN queries with pgvector's cosine operator
// (`<=>`). The server-side index keeps query latency sub-linear in
// corpus size, unlike the in-memory scan used for dev mode.
type VectorIndex struct {
	db *sql.DB
}

func NewVectorIndex(db *sql.DB) *VectorIndex {
	return &VectorIndex{db: db}
}

// EnsureSchema creates the extension, table and ANN index.
func (ix *VectorIndex) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS script_embeddings (
  artifact_id VARCHAR(128) NOT NULL PRIMARY KEY,
  embedding   vector(%d) NOT NULL
);`, embedding.Dimension),
		`CREATE INDEX IF NOT EXISTS idx_script_embeddings_cosine
ON script_embeddings USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);`,
	}
	for _, q := range stmts {
		if _, err := ix.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (ix *VectorIndex) Upsert(ctx context.Context, artifactID string, vec embedding.Vector) error {
	if err := vec.Validate(); err != nil {
		return err
	}
	const q = `
INSERT INTO script_embeddings (artifact_id, embedding)
VALUES ($1, $2::vector)
ON CONFLICT (artifact_id) DO UPDATE SET embedding=EXCLUDED.embedding;`
	_, err := ix.db.ExecContext(ctx, q, artifactID, vectorLiteral(vec))
	return err
}

func (ix *VectorIndex) Query(ctx context.Context, vec embedding.Vector, k int, excludeIDs []string) ([]similarity.Neighbor, error) {
	if err := vec.Validate(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	// Secondary order on artifact_id keeps equal-distance results stable.
	const q = `
SELECT artifact_id, embedding <=> $1::vector AS distance
FROM script_embeddings
WHERE NOT (artifact_id = ANY($2))
ORDER BY distance, artifact_id
LIMIT $3;`
	rows, err := ix.db.QueryContext(ctx, q, vectorLiteral(vec), excludeParam(excludeIDs), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []similarity.Neighbor
	for rows.Next() {
		var n similarity.Neighbor
		if err := rows.Scan(&n.ArtifactID, &n.Distance); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (ix *VectorIndex) Remove(ctx context.Context, artifactID string) error {
	_, err := ix.db.ExecContext(ctx, `DELETE FROM script_embeddings WHERE artifact_id=$1;`, artifactID)
	return err
}

// excludeParam renders excludeIDs for the ANY() predicate. A nil slice
// must become the empty array literal: ANY(NULL) nulls the predicate
// out and drops every row, while ANY('{}') excludes nothing.
func excludeParam(ids []string) pq.StringArray {
	if ids == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(ids)
}

// vectorLiteral renders a vector in pgvector's text form: [0.1,0.2,...].
func vectorLiteral(vec embedding.Vector) string {
	var b strings.Builder
	b.Grow(len(vec) * 10)
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
