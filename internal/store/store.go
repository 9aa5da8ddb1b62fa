package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for contents, entities and the
// dependency edges computed over them.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS contents (
  id              BLOB PRIMARY KEY,
  content         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
  path            TEXT PRIMARY KEY,
  language        TEXT NOT NULL,
  content_id      BLOB NOT NULL REFERENCES contents(id),
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS entities (
  id              BLOB PRIMARY KEY,
  parent_id       BLOB,
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  start_row       INTEGER NOT NULL,
  end_row         INTEGER NOT NULL,
  content_id      BLOB NOT NULL REFERENCES contents(id)
);

CREATE TABLE IF NOT EXISTS deps (
  id              INTEGER PRIMARY KEY,
  src             BLOB NOT NULL,
  tgt             BLOB NOT NULL,
  kind            TEXT NOT NULL,
  row             INTEGER NOT NULL,
  commit_id       TEXT
);

CREATE TABLE IF NOT EXISTS file_deps (
  id              INTEGER PRIMARY KEY,
  src_file        TEXT NOT NULL,
  src_content     BLOB NOT NULL,
  src_row         INTEGER NOT NULL,
  src_col         INTEGER,
  src_byte        INTEGER,
  tgt_file        TEXT NOT NULL,
  tgt_content     BLOB NOT NULL,
  tgt_row         INTEGER NOT NULL,
  tgt_col         INTEGER,
  tgt_byte        INTEGER,
  kind            TEXT NOT NULL,
  commit_id       TEXT
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_language ON files(language);
CREATE INDEX IF NOT EXISTS idx_entities_content ON entities(content_id);
CREATE INDEX IF NOT EXISTS idx_entities_parent ON entities(parent_id);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);
CREATE INDEX IF NOT EXISTS idx_deps_src ON deps(src);
CREATE INDEX IF NOT EXISTS idx_deps_tgt ON deps(tgt);
CREATE INDEX IF NOT EXISTS idx_deps_kind ON deps(kind);
CREATE INDEX IF NOT EXISTS idx_file_deps_src ON file_deps(src_file);
CREATE INDEX IF NOT EXISTS idx_file_deps_commit ON file_deps(commit_id);
`

// SetMetadata stores value under key, replacing any previous value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}

// GetMetadata returns the value stored under key, or "" if none.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %q: %w", key, err)
	}
	return value, nil
}
