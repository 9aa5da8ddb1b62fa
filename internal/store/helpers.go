package store

import (
	"database/sql"
	"strings"

	"github.com/FreeworkEarth/neodepends/internal/core"
)

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// commitArg stores the working directory as NULL.
func commitArg(c core.PseudoCommitId) any {
	if c.IsWorkDir() {
		return nil
	}
	return c.CommitId()
}

func commitFrom(ns sql.NullString) core.PseudoCommitId {
	if !ns.Valid {
		return core.WorkDir()
	}
	return core.Commit(ns.String)
}

// commitClause returns a WHERE fragment matching c, with its args.
func commitClause(column string, c core.PseudoCommitId) (string, []any) {
	if c.IsWorkDir() {
		return column + " IS NULL", nil
	}
	return column + " = ?", []any{c.CommitId()}
}

// positionArgs splits a partial position into row, column and byte
// columns; column and byte are NULL for a row-only position.
func positionArgs(p core.PartialPosition) (int, any, any) {
	col, ok := p.Column()
	if !ok {
		return p.Row(), nil, nil
	}
	b, _ := p.Byte()
	return p.Row(), col, b
}

func positionFrom(row int, col, b sql.NullInt64) core.PartialPosition {
	if !col.Valid || !b.Valid {
		return core.Row(row)
	}
	return core.Whole(core.Position{Row: row, Column: int(col.Int64), Byte: int(b.Int64)})
}

type scanner interface{ Scan(...any) error }
