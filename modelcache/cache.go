package modelcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ResolvedArtifact records a prior acquisition.Resolve outcome for a
// repo/quantization pair, so a repeat request skips re-listing and
// re-downloading.
type ResolvedArtifact struct {
	RepoID       string
	Quantization string
	FileName     string
	Path         string
	SHA256       string
	ResolvedAt   time.Time
}

// GGUFMetadata records the parsed header of a local GGUF file, keyed by
// its path, so repeated loads skip re-parsing the file.
type GGUFMetadata struct {
	Path            string
	Architecture    string
	Quantization    string
	ParameterCount  uint64
	ContextLength   uint64
	EmbeddingLength uint64
	ChatTemplate    string
	ParsedAt        time.Time
}

// Cache is a SQLite-backed store for acquisition and GGUF-metadata
// results. Writes are synchronous; the cache is sized for a single local
// daemon process, not concurrent writers.
type Cache struct {
	db *sql.DB
}

// Open creates path's parent directory if needed, opens a WAL-mode SQLite
// connection, applies pending migrations via a dedicated connection, and
// returns a Cache ready for use.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("modelcache: create cache directory: %w", err)
		}
	}

	config := DefaultConnectionConfig(path)
	if err := migrateUp(config); err != nil {
		return nil, err
	}

	db, err := newSQLiteConnection(config)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// PutResolvedArtifact upserts the resolution for repoID/quantization.
func (c *Cache) PutResolvedArtifact(ctx context.Context, a ResolvedArtifact) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO resolved_artifacts (repo_id, quantization, file_name, path, sha256)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(repo_id, quantization) DO UPDATE SET
			file_name = excluded.file_name,
			path = excluded.path,
			sha256 = excluded.sha256,
			resolved_at = CURRENT_TIMESTAMP
	`, a.RepoID, a.Quantization, a.FileName, a.Path, a.SHA256)
	if err != nil {
		return fmt.Errorf("modelcache: upsert resolved artifact: %w", err)
	}
	return nil
}

// GetResolvedArtifact returns the cached resolution for repoID/quantization,
// and false if none exists or the file it points to no longer exists on
// disk (a stale cache entry is treated as a miss, not an error).
func (c *Cache) GetResolvedArtifact(ctx context.Context, repoID, quantization string) (ResolvedArtifact, bool, error) {
	var a ResolvedArtifact
	a.RepoID, a.Quantization = repoID, quantization
	row := c.db.QueryRowContext(ctx, `
		SELECT file_name, path, sha256, resolved_at
		FROM resolved_artifacts WHERE repo_id = ? AND quantization = ?
	`, repoID, quantization)
	if err := row.Scan(&a.FileName, &a.Path, &a.SHA256, &a.ResolvedAt); err != nil {
		if err == sql.ErrNoRows {
			return ResolvedArtifact{}, false, nil
		}
		return ResolvedArtifact{}, false, fmt.Errorf("modelcache: get resolved artifact: %w", err)
	}
	if _, err := os.Stat(a.Path); err != nil {
		return ResolvedArtifact{}, false, nil
	}
	return a, true, nil
}

// PutRepoListing caches a repository's file listing as JSON.
func (c *Cache) PutRepoListing(ctx context.Context, repoID string, listing any) error {
	payload, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("modelcache: encode repo listing: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO repo_listings (repo_id, listing_json) VALUES (?, ?)
		ON CONFLICT(repo_id) DO UPDATE SET listing_json = excluded.listing_json, fetched_at = CURRENT_TIMESTAMP
	`, repoID, string(payload))
	if err != nil {
		return fmt.Errorf("modelcache: upsert repo listing: %w", err)
	}
	return nil
}

// GetRepoListing decodes a cached listing into out, reporting false if
// none is cached or it is older than maxAge.
func (c *Cache) GetRepoListing(ctx context.Context, repoID string, maxAge time.Duration, out any) (bool, error) {
	var payload string
	var fetchedAt time.Time
	row := c.db.QueryRowContext(ctx, `SELECT listing_json, fetched_at FROM repo_listings WHERE repo_id = ?`, repoID)
	if err := row.Scan(&payload, &fetchedAt); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("modelcache: get repo listing: %w", err)
	}
	if maxAge > 0 && time.Since(fetchedAt) > maxAge {
		return false, nil
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return false, fmt.Errorf("modelcache: decode repo listing: %w", err)
	}
	return true, nil
}

// PutGGUFMetadata upserts the parsed header for path.
func (c *Cache) PutGGUFMetadata(ctx context.Context, m GGUFMetadata) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO gguf_metadata (path, architecture, quantization, parameter_count, context_length, embedding_length, chat_template)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			architecture = excluded.architecture,
			quantization = excluded.quantization,
			parameter_count = excluded.parameter_count,
			context_length = excluded.context_length,
			embedding_length = excluded.embedding_length,
			chat_template = excluded.chat_template,
			parsed_at = CURRENT_TIMESTAMP
	`, m.Path, m.Architecture, m.Quantization, m.ParameterCount, m.ContextLength, m.EmbeddingLength, m.ChatTemplate)
	if err != nil {
		return fmt.Errorf("modelcache: upsert gguf metadata: %w", err)
	}
	return nil
}

// GetGGUFMetadata returns the cached parse for path, and false if none
// exists or the file's mtime is newer than the cached parse (the file
// changed since it was last parsed).
func (c *Cache) GetGGUFMetadata(ctx context.Context, path string) (GGUFMetadata, bool, error) {
	var m GGUFMetadata
	m.Path = path
	row := c.db.QueryRowContext(ctx, `
		SELECT architecture, quantization, parameter_count, context_length, embedding_length, chat_template, parsed_at
		FROM gguf_metadata WHERE path = ?
	`, path)
	if err := row.Scan(&m.Architecture, &m.Quantization, &m.ParameterCount, &m.ContextLength, &m.EmbeddingLength, &m.ChatTemplate, &m.ParsedAt); err != nil {
		if err == sql.ErrNoRows {
			return GGUFMetadata{}, false, nil
		}
		return GGUFMetadata{}, false, fmt.Errorf("modelcache: get gguf metadata: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return GGUFMetadata{}, false, nil
	}
	if info.ModTime().After(m.ParsedAt) {
		return GGUFMetadata{}, false, nil
	}
	return m, true, nil
}
