// Package cache persists forge refs in a local sqlite database so
// shell completion and repeated updates avoid redundant API calls.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/a-kenji/flake-edit/internal/core/ports/driven"
)

const schema = `
CREATE TABLE IF NOT EXISTS refs (
    host       TEXT NOT NULL,
    owner      TEXT NOT NULL,
    repo       TEXT NOT NULL,
    refs       TEXT NOT NULL,
    fetched_at INTEGER NOT NULL,
    PRIMARY KEY (host, owner, repo)
);
CREATE TABLE IF NOT EXISTS pairs (
    id       TEXT NOT NULL,
    uri      TEXT NOT NULL,
    added_at INTEGER NOT NULL,
    PRIMARY KEY (id, uri)
);
`

var _ driven.RefCache = (*Store)(nil)

// Store is a sqlite-backed ref cache.
type Store struct {
	db *sql.DB
}

// Open creates or opens the cache database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DefaultPath places the cache under the user cache directory.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "flake-edit", "refs.db"), nil
}

// Refs returns the cached refs for a repository, reporting false when
// absent or older than maxAge.
func (s *Store) Refs(host, owner, repo string, maxAge time.Duration) ([]string, bool, error) {
	row := s.db.QueryRow(
		`SELECT refs, fetched_at FROM refs WHERE host = ? AND owner = ? AND repo = ?`,
		host, owner, repo)

	var encoded string
	var fetchedAt int64
	if err := row.Scan(&encoded, &fetchedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache read: %w", err)
	}
	if time.Since(time.Unix(fetchedAt, 0)) > maxAge {
		return nil, false, nil
	}
	var refs []string
	if err := json.Unmarshal([]byte(encoded), &refs); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return refs, true, nil
}

// Store replaces the cached refs for a repository.
func (s *Store) Store(host, owner, repo string, refs []string) error {
	encoded, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO refs (host, owner, repo, refs, fetched_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (host, owner, repo) DO UPDATE
		 SET refs = excluded.refs, fetched_at = excluded.fetched_at`,
		host, owner, repo, string(encoded), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}

// Pair is one remembered id/uri combination, kept for shell
// completion of add and change invocations.
type Pair struct {
	ID  string
	URI string
}

// RememberPair records an id/uri combination. Repeats refresh the
// timestamp so frequently used pairs sort first.
func (s *Store) RememberPair(id, uri string) error {
	_, err := s.db.Exec(
		`INSERT INTO pairs (id, uri, added_at) VALUES (?, ?, ?)
		 ON CONFLICT (id, uri) DO UPDATE SET added_at = excluded.added_at`,
		id, uri, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}

// Pairs lists remembered id/uri combinations, most recent first.
func (s *Store) Pairs() ([]Pair, error) {
	rows, err := s.db.Query(`SELECT id, uri FROM pairs ORDER BY added_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("cache read: %w", err)
	}
	defer rows.Close()

	var pairs []Pair
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.ID, &p.URI); err != nil {
			return nil, fmt.Errorf("cache read: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
