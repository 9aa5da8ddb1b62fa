package overrides

import (
	"github.com/FreeworkEarth/neodepends/internal/core"
	"github.com/FreeworkEarth/neodepends/internal/lang"
)

// InferExtends derives Extend edges from the base lists of Python classes.
// A base resolves to a class of that name in the same file first, then to
// any class of that name. ABC is ignored. Classes that already have Extend
// edges in deps are left alone.
func InferExtends(entities []core.Entity, deps []core.EntityDep, reader ContentReader, opts ...Option) []core.EntityDep {
	o := buildOptions(opts)
	m := newModel(entities, deps)

	type edge struct{ src, tgt core.EntityId }
	seen := make(map[edge]bool)
	var out []core.EntityDep
	for _, f := range m.files {
		if l, ok := fileLang(f); !ok || l != lang.Python {
			continue
		}
		src, ok := readFile(reader, f, o.logger)
		if !ok {
			continue
		}
		pairs, err := pythonBases([]byte(src))
		if err != nil {
			o.logger.Debug("overrides.bases.failed", "file", f.Name, "err", err)
			continue
		}
		for _, p := range pairs {
			if p.name == "ABC" {
				continue
			}
			cls := m.classInFile(f.Id, p.class)
			if cls == nil || m.hasBases[cls.Id] {
				continue
			}
			base := m.classInFile(f.Id, p.name)
			if base == nil {
				base = m.byName[p.name]
			}
			if base == nil || base.Id == cls.Id {
				continue
			}
			e := edge{src: cls.Id, tgt: base.Id}
			if seen[e] {
				continue
			}
			seen[e] = true
			out = append(out, core.NewDep(cls.Id, base.Id, core.Extend, core.Row(cls.StartRow), core.WorkDir()))
		}
	}
	return out
}
