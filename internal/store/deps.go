package store

import (
	"database/sql"
	"fmt"

	"github.com/FreeworkEarth/neodepends/internal/core"
)

// --- Entity dep operations ---

func insertDep(ex execer, d *core.EntityDep) error {
	_, err := ex.Exec(
		"INSERT INTO deps (src, tgt, kind, row, commit_id) VALUES (?, ?, ?, ?, ?)",
		d.Src.Bytes(), d.Tgt.Bytes(), string(d.Kind), d.Position.Row(), commitArg(d.CommitId),
	)
	return err
}

// InsertDep stores one entity-level dependency.
func (s *Store) InsertDep(d *core.EntityDep) error {
	if err := insertDep(s.db, d); err != nil {
		return fmt.Errorf("insert dep: %w", err)
	}
	return nil
}

// InsertDeps stores deps in a single transaction.
func (s *Store) InsertDeps(deps []core.EntityDep) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("insert deps: begin: %w", err)
	}
	defer tx.Rollback()
	for i := range deps {
		if err := insertDep(tx, &deps[i]); err != nil {
			return fmt.Errorf("insert deps: %w", err)
		}
	}
	return tx.Commit()
}

func scanDep(sc scanner) (core.EntityDep, error) {
	var (
		d        core.EntityDep
		src, tgt []byte
		kind     string
		row      int
		commit   sql.NullString
	)
	if err := sc.Scan(&src, &tgt, &kind, &row, &commit); err != nil {
		return d, err
	}
	var err error
	if d.Src, err = core.EntityIdFromBytes(src); err != nil {
		return d, err
	}
	if d.Tgt, err = core.EntityIdFromBytes(tgt); err != nil {
		return d, err
	}
	if d.Kind, err = core.ParseDepKind(kind); err != nil {
		return d, err
	}
	d.Position = core.Row(row)
	d.CommitId = commitFrom(commit)
	return d, nil
}

// Deps returns every stored entity dep in insertion order.
func (s *Store) Deps() ([]core.EntityDep, error) {
	return s.queryDeps("SELECT src, tgt, kind, row, commit_id FROM deps ORDER BY id")
}

// DepsByKind returns the stored deps of the given kinds.
func (s *Store) DepsByKind(kinds ...core.DepKind) ([]core.EntityDep, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	args := make([]any, len(kinds))
	for i, k := range kinds {
		args[i] = string(k)
	}
	return s.queryDeps(
		"SELECT src, tgt, kind, row, commit_id FROM deps WHERE kind IN ("+placeholderList(len(kinds))+") ORDER BY id",
		args...,
	)
}

// HasDep reports whether an edge src→tgt of kind is stored.
func (s *Store) HasDep(src, tgt core.EntityId, kind core.DepKind) (bool, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM deps WHERE src = ? AND tgt = ? AND kind = ?",
		src.Bytes(), tgt.Bytes(), string(kind),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has dep: %w", err)
	}
	return n > 0, nil
}

// DeleteDepsByKind removes the stored deps of kind for commit.
func (s *Store) DeleteDepsByKind(kind core.DepKind, commit core.PseudoCommitId) error {
	clause, args := commitClause("commit_id", commit)
	args = append([]any{string(kind)}, args...)
	if _, err := s.db.Exec("DELETE FROM deps WHERE kind = ? AND "+clause, args...); err != nil {
		return fmt.Errorf("delete deps: %w", err)
	}
	return nil
}

func (s *Store) queryDeps(query string, args ...any) ([]core.EntityDep, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query deps: %w", err)
	}
	defer rows.Close()
	var out []core.EntityDep
	for rows.Next() {
		d, err := scanDep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dep: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// --- File dep operations ---

// InsertFileDeps stores deps in a single transaction.
func (s *Store) InsertFileDeps(deps []core.FileDep) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("insert file deps: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO file_deps (src_file, src_content, src_row, src_col, src_byte,
			tgt_file, tgt_content, tgt_row, tgt_col, tgt_byte, kind, commit_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("insert file deps: prepare: %w", err)
	}
	defer stmt.Close()

	for _, d := range deps {
		sr, sc, sb := positionArgs(d.Src.Position)
		tr, tc, tb := positionArgs(d.Tgt.Position)
		_, err := stmt.Exec(
			d.Src.File.Filename, d.Src.File.ContentId.Bytes(), sr, sc, sb,
			d.Tgt.File.Filename, d.Tgt.File.ContentId.Bytes(), tr, tc, tb,
			string(d.Kind), commitArg(d.CommitId),
		)
		if err != nil {
			return fmt.Errorf("insert file dep %s -> %s: %w", d.Src.File, d.Tgt.File, err)
		}
	}
	return tx.Commit()
}

func scanFileDep(sc scanner) (core.FileDep, error) {
	var (
		d                core.FileDep
		srcFile, tgtFile string
		srcCid, tgtCid   []byte
		srcRow, tgtRow   int
		srcCol, srcByte  sql.NullInt64
		tgtCol, tgtByte  sql.NullInt64
		kind             string
		commit           sql.NullString
	)
	err := sc.Scan(&srcFile, &srcCid, &srcRow, &srcCol, &srcByte,
		&tgtFile, &tgtCid, &tgtRow, &tgtCol, &tgtByte, &kind, &commit)
	if err != nil {
		return d, err
	}
	sid, err := core.ContentIdFromBytes(srcCid)
	if err != nil {
		return d, err
	}
	tid, err := core.ContentIdFromBytes(tgtCid)
	if err != nil {
		return d, err
	}
	if d.Kind, err = core.ParseDepKind(kind); err != nil {
		return d, err
	}
	d.Src = core.FileEndpoint{File: core.FileKey{Filename: srcFile, ContentId: sid}, Position: positionFrom(srcRow, srcCol, srcByte)}
	d.Tgt = core.FileEndpoint{File: core.FileKey{Filename: tgtFile, ContentId: tid}, Position: positionFrom(tgtRow, tgtCol, tgtByte)}
	d.Position = d.Src.Position
	d.CommitId = commitFrom(commit)
	return d, nil
}

// FileDeps returns the file deps stored for commit in insertion order.
func (s *Store) FileDeps(commit core.PseudoCommitId) ([]core.FileDep, error) {
	clause, args := commitClause("commit_id", commit)
	rows, err := s.db.Query(
		`SELECT src_file, src_content, src_row, src_col, src_byte,
			tgt_file, tgt_content, tgt_row, tgt_col, tgt_byte, kind, commit_id
		 FROM file_deps WHERE `+clause+` ORDER BY id`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("file deps: %w", err)
	}
	defer rows.Close()
	var out []core.FileDep
	for rows.Next() {
		d, err := scanFileDep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file dep: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteFileDeps removes every file dep stored for commit.
func (s *Store) DeleteFileDeps(commit core.PseudoCommitId) error {
	clause, args := commitClause("commit_id", commit)
	if _, err := s.db.Exec("DELETE FROM file_deps WHERE "+clause, args...); err != nil {
		return fmt.Errorf("delete file deps: %w", err)
	}
	return nil
}
