// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mesh-intelligence/paper-search/pkg/types"
)

// ResolutionCache memoizes scholar search responses for identical
// (query, filters) keys within a process run, so repeated calls during an
// iterative workflow run (strategy revisions, checkpoint retries) skip a
// network round trip. It is a cache, not durable session state: losing it
// only costs a re-fetch.
type ResolutionCache struct {
	db *sql.DB
}

// NewResolutionCache opens or creates the cache database at path. An
// empty path disables the cache: all lookups miss and all stores are
// silently dropped.
func NewResolutionCache(path string) (*ResolutionCache, error) {
	if path == "" {
		return &ResolutionCache{}, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	c := &ResolutionCache{db: db}
	if err := c.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return c, nil
}

// Close releases the underlying database connection, if any.
func (c *ResolutionCache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *ResolutionCache) createSchema() error {
	_, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS resolved_queries (
		cache_key TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		papers_json TEXT NOT NULL
	)`)
	return err
}

// Key derives a stable cache key from a source name and search
// parameters.
func Key(source, query string, maxResults int, yearFrom, yearTo *int, language string) string {
	payload := fmt.Sprintf("%s|%s|%d|%v|%v|%s", source, query, maxResults, yearFrom, yearTo, language)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Get looks up a cached result set. ok is false on a miss or if the cache
// is disabled; it never returns an error, matching the "degrades to
// pass-through, never raises" cache-failure contract.
func (c *ResolutionCache) Get(key string) (papers []types.RawPaper, ok bool) {
	if c.db == nil {
		return nil, false
	}

	var blob string
	err := c.db.QueryRow(`SELECT papers_json FROM resolved_queries WHERE cache_key = ?`, key).Scan(&blob)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(blob), &papers); err != nil {
		return nil, false
	}
	return papers, true
}

// Put stores a result set under key. Errors are swallowed: a failed write
// degrades to a cache miss on the next lookup, never a propagated error.
func (c *ResolutionCache) Put(key, source string, papers []types.RawPaper) {
	if c.db == nil {
		return
	}
	blob, err := json.Marshal(papers)
	if err != nil {
		return
	}
	c.db.Exec(`INSERT OR REPLACE INTO resolved_queries (cache_key, source, papers_json) VALUES (?, ?, ?)`,
		key, source, string(blob))
}
