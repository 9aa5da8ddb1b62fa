package store

import (
	"database/sql"
	"fmt"

	"github.com/FreeworkEarth/neodepends/internal/core"
)

// --- Entity operations ---

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertEntity(ex execer, e *core.Entity) error {
	var parent any
	if e.ParentId != nil {
		parent = e.ParentId.Bytes()
	}
	_, err := ex.Exec(
		`INSERT OR REPLACE INTO entities (id, parent_id, name, kind, start_row, end_row, content_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Id.Bytes(), parent, e.Name, string(e.Kind), e.StartRow, e.EndRow, e.ContentId.Bytes(),
	)
	return err
}

// InsertEntity stores e, replacing any entity with the same id. The entity's
// content must already be stored.
func (s *Store) InsertEntity(e *core.Entity) error {
	if err := insertEntity(s.db, e); err != nil {
		return fmt.Errorf("insert entity %q: %w", e.Name, err)
	}
	return nil
}

func scanEntity(sc scanner) (core.Entity, error) {
	var (
		e               core.Entity
		id, parent, cid []byte
		kind            string
	)
	if err := sc.Scan(&id, &parent, &e.Name, &kind, &e.StartRow, &e.EndRow, &cid); err != nil {
		return e, err
	}
	var err error
	if e.Id, err = core.EntityIdFromBytes(id); err != nil {
		return e, err
	}
	if parent != nil {
		p, err := core.EntityIdFromBytes(parent)
		if err != nil {
			return e, err
		}
		e.ParentId = &p
	}
	if e.Kind, err = core.ParseEntityKind(kind); err != nil {
		return e, err
	}
	e.ContentId, err = core.ContentIdFromBytes(cid)
	return e, err
}

// Entities returns every stored entity in insertion order.
func (s *Store) Entities() ([]core.Entity, error) {
	return s.queryEntities("SELECT id, parent_id, name, kind, start_row, end_row, content_id FROM entities ORDER BY rowid")
}

// EntitiesByContent returns the entities of one file's content.
func (s *Store) EntitiesByContent(id core.ContentId) ([]core.Entity, error) {
	return s.queryEntities(
		"SELECT id, parent_id, name, kind, start_row, end_row, content_id FROM entities WHERE content_id = ? ORDER BY rowid",
		id.Bytes(),
	)
}

func (s *Store) queryEntities(query string, args ...any) ([]core.Entity, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()
	var out []core.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
