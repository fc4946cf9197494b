package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS embeddings (
	path   TEXT PRIMARY KEY,
	vector TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS hashes (
	path TEXT PRIMARY KEY,
	hash TEXT NOT NULL
);
`

// SQLiteStore keeps the cache in a SQLite database with one table per mapping.
type SQLiteStore struct {
	conn *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cache: mkdir: %w", err)
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cache: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: apply schema: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

// Load reads both tables.
func (s *SQLiteStore) Load() (*Data, error) {
	d := NewData()

	rows, err := s.conn.Query(`SELECT path, vector FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("cache: load embeddings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p, raw string
		if err := rows.Scan(&p, &raw); err != nil {
			return nil, err
		}
		var vec []float32
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			return nil, fmt.Errorf("cache: decode vector for %s: %w", p, err)
		}
		d.Embeddings[p] = vec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hrows, err := s.conn.Query(`SELECT path, hash FROM hashes`)
	if err != nil {
		return nil, fmt.Errorf("cache: load hashes: %w", err)
	}
	defer hrows.Close()
	for hrows.Next() {
		var p, h string
		if err := hrows.Scan(&p, &h); err != nil {
			return nil, err
		}
		d.Hashes[p] = h
	}
	return d, hrows.Err()
}

// Save replaces the contents of both tables within one transaction.
func (s *SQLiteStore) Save(d *Data) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("cache: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM embeddings`); err != nil {
		return fmt.Errorf("cache: clear embeddings: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM hashes`); err != nil {
		return fmt.Errorf("cache: clear hashes: %w", err)
	}

	embStmt, err := tx.Prepare(`INSERT INTO embeddings (path, vector) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("cache: prepare embedding insert: %w", err)
	}
	defer embStmt.Close()
	for p, vec := range d.Embeddings {
		raw, err := json.Marshal(vec)
		if err != nil {
			return fmt.Errorf("cache: encode vector for %s: %w", p, err)
		}
		if _, err := embStmt.Exec(p, string(raw)); err != nil {
			return fmt.Errorf("cache: insert embedding: %w", err)
		}
	}

	hashStmt, err := tx.Prepare(`INSERT INTO hashes (path, hash) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("cache: prepare hash insert: %w", err)
	}
	defer hashStmt.Close()
	for p, h := range d.Hashes {
		if _, err := hashStmt.Exec(p, h); err != nil {
			return fmt.Errorf("cache: insert hash: %w", err)
		}
	}

	return tx.Commit()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
