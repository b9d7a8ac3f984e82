package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bryanwahyu/scriptsage/internal/domain/analysis"
	"github.com/bryanwahyu/scriptsage/internal/domain/cache"
	"github.com/bryanwahyu/scriptsage/internal/domain/embedding"
	"github.com/bryanwahyu/scriptsage/internal/domain/fingerprint"
)

// CacheRepository persists dedup entries in embedded SQLite. Reserve
// relies on INSERT OR IGNORE against the primary key.
type CacheRepository struct {
	db *sql.DB
}

func NewCacheRepository(db *sql.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// EnsureSchema creates the cache tables when they do not exist yet.
func (r *CacheRepository) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS script_cache (
  fingerprint    TEXT NOT NULL PRIMARY KEY,
  analysis_json  TEXT NULL,
  embedding_json TEXT NULL,
  created_at     TIMESTAMP NOT NULL,
  updated_at     TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS script_cache_artifacts (
  fingerprint TEXT NOT NULL,
  artifact_id TEXT NOT NULL,
  linked_at   TIMESTAMP NOT NULL,
  PRIMARY KEY (fingerprint, artifact_id)
);
CREATE INDEX IF NOT EXISTS idx_cache_artifact ON script_cache_artifacts (artifact_id);`
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *CacheRepository) Lookup(ctx context.Context, fp fingerprint.Fingerprint) (*cache.Entry, error) {
	const q = `
SELECT fingerprint, analysis_json, embedding_json, created_at, updated_at
FROM script_cache
WHERE fingerprint=?;`
	row := r.db.QueryRowContext(ctx, q, string(fp))
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	if entry.ArtifactIDs, err = r.artifactIDs(ctx, fp); err != nil {
		return nil, storeErr(err)
	}
	return entry, nil
}

// Reserve inserts an empty entry with INSERT OR IGNORE; the row count
// tells whether this call created it.
func (r *CacheRepository) Reserve(ctx context.Context, fp fingerprint.Fingerprint) (*cache.Entry, bool, error) {
	const q = `
INSERT OR IGNORE INTO script_cache (fingerprint, created_at, updated_at)
VALUES (?,?,?);`
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, q, string(fp), now, now)
	if err != nil {
		return nil, false, storeErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, storeErr(err)
	}
	entry, err := r.Lookup(ctx, fp)
	if err != nil {
		return nil, false, err
	}
	return entry, n == 1, nil
}

func (r *CacheRepository) AttachAnalysis(ctx context.Context, fp fingerprint.Fingerprint, resl *analysis.Result) error {
	raw, err := json.Marshal(resl)
	if err != nil {
		return err
	}
	const q = `UPDATE script_cache SET analysis_json=?, updated_at=? WHERE fingerprint=?;`
	return r.exec(ctx, q, string(raw), time.Now().UTC(), string(fp))
}

func (r *CacheRepository) AttachEmbedding(ctx context.Context, fp fingerprint.Fingerprint, vec embedding.Vector) error {
	if err := vec.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	const q = `UPDATE script_cache SET embedding_json=?, updated_at=? WHERE fingerprint=?;`
	return r.exec(ctx, q, string(raw), time.Now().UTC(), string(fp))
}

func (r *CacheRepository) LinkArtifact(ctx context.Context, fp fingerprint.Fingerprint, artifactID string) error {
	const q = `
INSERT OR IGNORE INTO script_cache_artifacts (fingerprint, artifact_id, linked_at)
VALUES (?,?,?);`
	return r.exec(ctx, q, string(fp), artifactID, time.Now().UTC())
}

func (r *CacheRepository) FingerprintByArtifact(ctx context.Context, artifactID string) (fingerprint.Fingerprint, error) {
	const q = `SELECT fingerprint FROM script_cache_artifacts WHERE artifact_id=? LIMIT 1;`
	var fp string
	err := r.db.QueryRowContext(ctx, q, artifactID).Scan(&fp)
	if err == sql.ErrNoRows {
		return "", cache.ErrNotFound
	}
	if err != nil {
		return "", storeErr(err)
	}
	return fingerprint.Fingerprint(fp), nil
}

func (r *CacheRepository) artifactIDs(ctx context.Context, fp fingerprint.Fingerprint) ([]string, error) {
	const q = `
SELECT artifact_id FROM script_cache_artifacts
WHERE fingerprint=?
ORDER BY linked_at, artifact_id;`
	rows, err := r.db.QueryContext(ctx, q, string(fp))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *CacheRepository) exec(ctx context.Context, q string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return storeErr(err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*cache.Entry, error) {
	var (
		entry        cache.Entry
		fp           string
		analysisJSON sql.NullString
		embeddingRaw sql.NullString
	)
	if err := row.Scan(&fp, &analysisJSON, &embeddingRaw, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return nil, err
	}
	entry.Fingerprint = fingerprint.Fingerprint(fp)
	if analysisJSON.Valid && analysisJSON.String != "" {
		var res analysis.Result
		if err := json.Unmarshal([]byte(analysisJSON.String), &res); err != nil {
			return nil, fmt.Errorf("decode analysis_json: %w", err)
		}
		entry.Analysis = &res
	}
	if embeddingRaw.Valid && embeddingRaw.String != "" {
		var vec embedding.Vector
		if err := json.Unmarshal([]byte(embeddingRaw.String), &vec); err != nil {
			return nil, fmt.Errorf("decode embedding_json: %w", err)
		}
		entry.Embedding = vec
	}
	return &entry, nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", cache.ErrStoreUnavailable, err)
}
