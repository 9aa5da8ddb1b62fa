package resolution

import (
	"github.com/FreeworkEarth/neodepends/internal/core"
)

// entityIndex finds the entity enclosing a row of a file's content.
type entityIndex struct {
	byContent map[core.ContentId][]*core.Entity
	files     map[core.ContentId]*core.Entity
}

func newEntityIndex(entities []core.Entity) *entityIndex {
	idx := &entityIndex{
		byContent: make(map[core.ContentId][]*core.Entity),
		files:     make(map[core.ContentId]*core.Entity),
	}
	for i := range entities {
		e := &entities[i]
		if e.Kind == core.FileKind {
			idx.files[e.ContentId] = e
			continue
		}
		idx.byContent[e.ContentId] = append(idx.byContent[e.ContentId], e)
	}
	return idx
}

// innermost returns the narrowest entity containing row, falling back to
// the file entity. Among equally narrow entities the later one wins.
func (idx *entityIndex) innermost(content core.ContentId, row int) (core.EntityId, bool) {
	var best *core.Entity
	for _, e := range idx.byContent[content] {
		if !e.Contains(row) {
			continue
		}
		if best == nil || e.EndRow-e.StartRow <= best.EndRow-best.StartRow {
			best = e
		}
	}
	if best == nil {
		best = idx.files[content]
	}
	if best == nil {
		return core.EntityId{}, false
	}
	return best.Id, true
}

type liftKey struct {
	src, tgt core.EntityId
	kind     core.DepKind
	row      int
}

// LiftDeps maps file-level deps onto the entities that enclose their
// endpoints. Deps whose endpoints land on the same entity are dropped, as
// are duplicates of (source, target, kind, row). Endpoints in content with
// no entities are skipped.
func LiftDeps(entities []core.Entity, deps []core.FileDep) []core.EntityDep {
	idx := newEntityIndex(entities)
	seen := make(map[liftKey]bool)
	var out []core.EntityDep
	for _, d := range deps {
		src, ok := idx.innermost(d.Src.File.ContentId, d.Src.Position.Row())
		if !ok {
			continue
		}
		tgt, ok := idx.innermost(d.Tgt.File.ContentId, d.Tgt.Position.Row())
		if !ok || src == tgt {
			continue
		}
		key := liftKey{src: src, tgt: tgt, kind: d.Kind, row: d.Position.Row()}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, core.NewDep(src, tgt, d.Kind, core.Row(d.Position.Row()), d.CommitId))
	}
	return out
}
