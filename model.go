package neodepends

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/FreeworkEarth/neodepends/internal/core"
)

// ModelEntity is the interchange form of an entity. ContentId may be left
// empty when File names an indexed file.
type ModelEntity struct {
	Id        string `json:"id"`
	ParentId  string `json:"parent_id,omitempty"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	File      string `json:"file,omitempty"`
	ContentId string `json:"content_id,omitempty"`
	StartRow  int    `json:"start_row"`
	EndRow    int    `json:"end_row"`
}

// ModelDep is the interchange form of an entity dep. An empty Commit means
// the working directory.
type ModelDep struct {
	Src    string `json:"src"`
	Tgt    string `json:"tgt"`
	Kind   string `json:"kind"`
	Row    int    `json:"row"`
	Commit string `json:"commit,omitempty"`
}

// Model is the entity/dep set produced by an external extractor.
type Model struct {
	Entities []ModelEntity `json:"entities"`
	Deps     []ModelDep    `json:"deps"`
}

// ImportModel reads a JSON Model from r and stores its entities and deps. It
// returns how many of each were stored.
func (e *Engine) ImportModel(ctx context.Context, r io.Reader) (entities, deps int, err error) {
	_, span := tracer.Start(ctx, "neodepends.Engine.ImportModel")
	defer span.End()

	var m Model
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return 0, 0, fmt.Errorf("neodepends: decode model: %w", err)
	}

	for i := range m.Entities {
		ent, err := e.toEntity(&m.Entities[i])
		if err != nil {
			return entities, 0, fmt.Errorf("neodepends: entity %q: %w", m.Entities[i].Name, err)
		}
		if err := e.store.InsertEntity(&ent); err != nil {
			return entities, 0, fmt.Errorf("neodepends: %w", err)
		}
		entities++
	}

	converted := make([]core.EntityDep, 0, len(m.Deps))
	for _, md := range m.Deps {
		d, err := toDep(md)
		if err != nil {
			return entities, 0, fmt.Errorf("neodepends: dep %s -> %s: %w", md.Src, md.Tgt, err)
		}
		converted = append(converted, d)
	}
	if err := e.store.InsertDeps(converted); err != nil {
		return entities, 0, fmt.Errorf("neodepends: %w", err)
	}
	e.logger.Info("model.imported", "entities", entities, "deps", len(converted))
	return entities, len(converted), nil
}

func (e *Engine) toEntity(me *ModelEntity) (core.Entity, error) {
	var out core.Entity
	id, err := core.ParseEntityId(me.Id)
	if err != nil {
		return out, err
	}
	kind, err := core.ParseEntityKind(me.Kind)
	if err != nil {
		return out, err
	}
	out = core.Entity{Id: id, Name: me.Name, Kind: kind, StartRow: me.StartRow, EndRow: me.EndRow}

	if me.ParentId != "" {
		p, err := core.ParseEntityId(me.ParentId)
		if err != nil {
			return out, fmt.Errorf("parent: %w", err)
		}
		out.ParentId = &p
	}

	switch {
	case me.ContentId != "":
		if out.ContentId, err = core.ParseContentId(me.ContentId); err != nil {
			return out, err
		}
	case me.File != "":
		f, err := e.store.FileByPath(me.File)
		if err != nil {
			return out, err
		}
		if f == nil {
			return out, fmt.Errorf("file %q is not indexed", me.File)
		}
		out.ContentId = f.ContentId
	default:
		return out, fmt.Errorf("needs a content_id or an indexed file")
	}
	return out, nil
}

func toDep(md ModelDep) (core.EntityDep, error) {
	var out core.EntityDep
	src, err := core.ParseEntityId(md.Src)
	if err != nil {
		return out, err
	}
	tgt, err := core.ParseEntityId(md.Tgt)
	if err != nil {
		return out, err
	}
	kind, err := core.ParseDepKind(md.Kind)
	if err != nil {
		return out, err
	}
	commit := core.WorkDir()
	if md.Commit != "" {
		commit = core.Commit(md.Commit)
	}
	return core.NewDep(src, tgt, kind, core.Row(md.Row), commit), nil
}

// EntityDeps returns the stored entity deps of the given kinds, or all of
// them when none are given.
func (e *Engine) EntityDeps(kinds ...core.DepKind) ([]core.EntityDep, error) {
	if len(kinds) == 0 {
		return e.store.Deps()
	}
	return e.store.DepsByKind(kinds...)
}
