package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/FreeworkEarth/neodepends/internal/core"
	"github.com/FreeworkEarth/neodepends/internal/overrides"
)

// --- Content operations ---

// InsertContent stores content under its ContentId. Storing the same content
// twice is a no-op.
func (s *Store) InsertContent(content string) (core.ContentId, error) {
	id := core.ContentIdOf(content)
	if _, err := s.db.Exec("INSERT OR IGNORE INTO contents (id, content) VALUES (?, ?)", id.Bytes(), content); err != nil {
		return id, fmt.Errorf("insert content: %w", err)
	}
	return id, nil
}

// Read implements overrides.ContentReader.
func (s *Store) Read(id core.ContentId) (string, error) {
	var content string
	err := s.db.QueryRow("SELECT content FROM contents WHERE id = ?", id.Bytes()).Scan(&content)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s", overrides.ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", overrides.ErrRead, id, err)
	}
	return content, nil
}

var _ overrides.ContentReader = (*Store)(nil)

// --- File operations ---

// File records which content a path held when it was last indexed.
type File struct {
	Path        string
	Language    string
	ContentId   core.ContentId
	LastIndexed time.Time
}

// UpsertFile records f, replacing the previous record for its path.
func (s *Store) UpsertFile(f *File) error {
	_, err := s.db.Exec(
		`INSERT INTO files (path, language, content_id, last_indexed) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET language = excluded.language,
		   content_id = excluded.content_id, last_indexed = excluded.last_indexed`,
		f.Path, f.Language, f.ContentId.Bytes(), f.LastIndexed,
	)
	if err != nil {
		return fmt.Errorf("upsert file %q: %w", f.Path, err)
	}
	return nil
}

func scanFile(sc scanner) (*File, error) {
	f := &File{}
	var cid []byte
	var indexed sql.NullTime
	if err := sc.Scan(&f.Path, &f.Language, &cid, &indexed); err != nil {
		return nil, err
	}
	id, err := core.ContentIdFromBytes(cid)
	if err != nil {
		return nil, err
	}
	f.ContentId = id
	f.LastIndexed = indexed.Time
	return f, nil
}

// FileByPath returns the file recorded for path, or nil if none.
func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow(
		"SELECT path, language, content_id, last_indexed FROM files WHERE path = ?", path,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// FilesByLanguage returns the files of language, ordered by path.
func (s *Store) FilesByLanguage(language string) ([]*File, error) {
	return s.queryFiles("SELECT path, language, content_id, last_indexed FROM files WHERE language = ? ORDER BY path", language)
}

// Files returns every recorded file, ordered by path.
func (s *Store) Files() ([]*File, error) {
	return s.queryFiles("SELECT path, language, content_id, last_indexed FROM files ORDER BY path")
}

func (s *Store) queryFiles(query string, args ...any) ([]*File, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
