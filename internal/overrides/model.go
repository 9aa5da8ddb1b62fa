package overrides

import (
	"sort"

	"github.com/FreeworkEarth/neodepends/internal/core"
	"github.com/FreeworkEarth/neodepends/internal/lang"
)

// model indexes the entity set for override detection. Lookups by name
// return the last-registered entity of that name.
type model struct {
	byId     map[core.EntityId]*core.Entity
	files    []*core.Entity
	classes  []*core.Entity
	methods  map[core.EntityId]map[string]*core.Entity
	byFile   map[core.EntityId]map[string]*core.Entity
	byName   map[string]*core.Entity
	parents  map[core.EntityId][]core.EntityId
	hasBases map[core.EntityId]bool
}

func isClass(e *core.Entity) bool {
	return e.Kind == core.ClassKind || e.Kind == core.InterfaceKind
}

func isMethod(e *core.Entity) bool {
	return e.Kind == core.MethodKind || e.Kind == core.FunctionKind
}

func newModel(entities []core.Entity, deps []core.EntityDep) *model {
	m := &model{
		byId:     make(map[core.EntityId]*core.Entity, len(entities)),
		methods:  make(map[core.EntityId]map[string]*core.Entity),
		byFile:   make(map[core.EntityId]map[string]*core.Entity),
		byName:   make(map[string]*core.Entity),
		parents:  make(map[core.EntityId][]core.EntityId),
		hasBases: make(map[core.EntityId]bool),
	}
	for i := range entities {
		e := &entities[i]
		m.byId[e.Id] = e
		switch {
		case e.Kind == core.FileKind:
			m.files = append(m.files, e)
		case isClass(e):
			m.classes = append(m.classes, e)
			m.byName[e.Name] = e
		}
	}
	for _, c := range m.classes {
		f := m.fileOf(c)
		if f == nil {
			continue
		}
		if m.byFile[f.Id] == nil {
			m.byFile[f.Id] = make(map[string]*core.Entity)
		}
		m.byFile[f.Id][c.Name] = c
	}
	for i := range entities {
		e := &entities[i]
		if !isMethod(e) || e.ParentId == nil {
			continue
		}
		parent := m.byId[*e.ParentId]
		if parent == nil || !isClass(parent) {
			continue
		}
		if m.methods[parent.Id] == nil {
			m.methods[parent.Id] = make(map[string]*core.Entity)
		}
		m.methods[parent.Id][e.Name] = e
	}
	for _, d := range deps {
		if d.Kind != core.Extend {
			continue
		}
		src, tgt := m.byId[d.Src], m.byId[d.Tgt]
		if src == nil || tgt == nil || !isClass(src) || !isClass(tgt) {
			continue
		}
		m.parents[d.Src] = append(m.parents[d.Src], d.Tgt)
		m.hasBases[d.Src] = true
	}

	sort.Slice(m.files, func(i, j int) bool { return lessId(m.files[i].Id, m.files[j].Id) })
	sort.Slice(m.classes, func(i, j int) bool { return lessId(m.classes[i].Id, m.classes[j].Id) })
	return m
}

func lessId(a, b core.EntityId) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// ancestors returns every class reachable from start over Extend edges in
// depth-first preorder. start itself is never included and cycles end the
// walk.
func (m *model) ancestors(start core.EntityId) []core.EntityId {
	visited := map[core.EntityId]bool{start: true}
	var out []core.EntityId

	var stack []core.EntityId
	push := func(id core.EntityId) {
		ps := m.parents[id]
		for i := len(ps) - 1; i >= 0; i-- {
			stack = append(stack, ps[i])
		}
	}
	push(start)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		out = append(out, id)
		push(id)
	}
	return out
}

// method returns the method named name owned by class, if any.
func (m *model) method(class core.EntityId, name string) *core.Entity {
	return m.methods[class][name]
}

// classInFile returns the class named name declared in the File entity file.
func (m *model) classInFile(file core.EntityId, name string) *core.Entity {
	return m.byFile[file][name]
}

// fileOf follows e's parent chain up to its File entity. Broken or cyclic
// chains yield nil.
func (m *model) fileOf(e *core.Entity) *core.Entity {
	seen := make(map[core.EntityId]bool)
	for e != nil && !seen[e.Id] {
		if e.Kind == core.FileKind {
			return e
		}
		seen[e.Id] = true
		if e.ParentId == nil {
			return nil
		}
		e = m.byId[*e.ParentId]
	}
	return nil
}

// fileLang returns the language of a File entity, judged by its name.
func fileLang(f *core.Entity) (lang.Lang, bool) {
	return lang.ForFile(f.Name)
}
