// Package core holds the data model shared by resolution, classification and
// override detection.
package core

import (
	"fmt"
	"strconv"
)

// DepKind is the closed set of dependency kinds.
type DepKind string

const (
	Import   DepKind = "Import"
	Extend   DepKind = "Extend"
	Call     DepKind = "Call"
	Create   DepKind = "Create"
	Use      DepKind = "Use"
	Override DepKind = "Override"
)

// DepKinds lists every DepKind in declaration order.
var DepKinds = []DepKind{Import, Extend, Call, Create, Use, Override}

// ParseDepKind converts a stored or user-supplied name to a DepKind.
func ParseDepKind(s string) (DepKind, error) {
	for _, k := range DepKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown dep kind %q", s)
}

// Position is a fully-specified source location. Row and Column are
// zero-based; Byte is the absolute byte offset into the file.
type Position struct {
	Row    int
	Column int
	Byte   int
}

// PartialPosition is either a bare row or a whole Position.
type PartialPosition struct {
	whole bool
	pos   Position
}

// Row returns a PartialPosition that only knows its row.
func Row(row int) PartialPosition {
	return PartialPosition{pos: Position{Row: row}}
}

// Whole returns a PartialPosition carrying a complete Position.
func Whole(p Position) PartialPosition {
	return PartialPosition{whole: true, pos: p}
}

// Row returns the zero-based row.
func (p PartialPosition) Row() int {
	return p.pos.Row
}

// Byte returns the byte offset, if known.
func (p PartialPosition) Byte() (int, bool) {
	if !p.whole {
		return 0, false
	}
	return p.pos.Byte, true
}

// Column returns the column, if known.
func (p PartialPosition) Column() (int, bool) {
	if !p.whole {
		return 0, false
	}
	return p.pos.Column, true
}

// IsWhole reports whether the position carries a column and byte offset.
func (p PartialPosition) IsWhole() bool {
	return p.whole
}

// Position returns the underlying Position. Column and Byte are zero for a
// row-only position.
func (p PartialPosition) Position() Position {
	return p.pos
}

func (p PartialPosition) String() string {
	if !p.whole {
		return strconv.Itoa(p.pos.Row + 1)
	}
	return fmt.Sprintf("%d:%d", p.pos.Row+1, p.pos.Column+1)
}

// Less orders positions by row, then byte.
func (p PartialPosition) Less(o PartialPosition) bool {
	if p.pos.Row != o.pos.Row {
		return p.pos.Row < o.pos.Row
	}
	return p.pos.Byte < o.pos.Byte
}

// PseudoCommitId marks which snapshot a batch of edges belongs to: either a
// commit or the working directory.
type PseudoCommitId struct {
	commit string
}

// WorkDir is the revision marker for uncommitted working state.
func WorkDir() PseudoCommitId {
	return PseudoCommitId{}
}

// Commit is the revision marker for a specific commit.
func Commit(id string) PseudoCommitId {
	return PseudoCommitId{commit: id}
}

// IsWorkDir reports whether the marker refers to the working directory.
func (c PseudoCommitId) IsWorkDir() bool {
	return c.commit == ""
}

// CommitId returns the commit id, or "" for the working directory.
func (c PseudoCommitId) CommitId() string {
	return c.commit
}

func (c PseudoCommitId) String() string {
	if c.commit == "" {
		return "WORKDIR"
	}
	return c.commit
}

// Dep is a typed edge between two endpoints.
type Dep[E any] struct {
	Src      E
	Tgt      E
	Kind     DepKind
	Position PartialPosition
	CommitId PseudoCommitId
}

// NewDep builds a Dep.
func NewDep[E any](src, tgt E, kind DepKind, position PartialPosition, commit PseudoCommitId) Dep[E] {
	return Dep[E]{Src: src, Tgt: tgt, Kind: kind, Position: position, CommitId: commit}
}

// FileEndpoint is one end of a file-level edge.
type FileEndpoint struct {
	File     FileKey
	Position PartialPosition
}

// FileDep is an edge between positions in two files.
type FileDep = Dep[FileEndpoint]

// EntityDep is an edge between two entities.
type EntityDep = Dep[EntityId]
