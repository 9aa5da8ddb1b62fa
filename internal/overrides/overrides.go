// Package overrides derives Override edges between methods from the
// inheritance closure of their classes: Python methods overriding an
// @abstractmethod, and Java methods annotated @Override.
package overrides

import (
	"log/slog"
	"sort"

	"github.com/FreeworkEarth/neodepends/internal/core"
	"github.com/FreeworkEarth/neodepends/internal/lang"
	"github.com/FreeworkEarth/neodepends/internal/metrics"
)

type options struct {
	notImplemented bool
	logger         *slog.Logger
}

// Option configures DetectOverrides and InferExtends.
type Option func(*options)

// WithNotImplementedAbstract makes Python methods whose body raises
// NotImplementedError count as abstract.
func WithNotImplementedAbstract(on bool) Option {
	return func(o *options) { o.notImplemented = on }
}

// WithLogger sets the logger used for skipped files.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type pairKey struct {
	child, ancestor core.EntityId
}

// detector accumulates Override edges, each (child, ancestor) pair once.
type detector struct {
	m    *model
	seen map[pairKey]bool
	out  []core.EntityDep
}

func (d *detector) emit(l lang.Lang, child, ancestor *core.Entity) {
	if child.Id == ancestor.Id {
		return
	}
	key := pairKey{child: child.Id, ancestor: ancestor.Id}
	if d.seen[key] {
		return
	}
	d.seen[key] = true
	d.out = append(d.out, core.NewDep(child.Id, ancestor.Id, core.Override, core.Row(0), core.WorkDir()))
	metrics.OverrideEdges.WithLabelValues(string(l)).Inc()
}

// DetectOverrides returns the Override edges implied by entities, their
// Extend deps and the content of their files. Files whose content cannot be
// read are skipped. The result is deterministic for a given input.
func DetectOverrides(entities []core.Entity, deps []core.EntityDep, reader ContentReader, opts ...Option) []core.EntityDep {
	o := buildOptions(opts)
	d := &detector{m: newModel(entities, deps), seen: make(map[pairKey]bool)}

	abstract := d.discoverAbstract(reader, o)
	for _, cls := range d.m.classes {
		for _, anc := range d.m.ancestors(cls.Id) {
			for name := range abstract[anc] {
				child := d.m.method(cls.Id, name)
				parent := d.m.method(anc, name)
				if child != nil && parent != nil {
					d.emit(lang.Python, child, parent)
				}
			}
		}
	}
	// Abstract names come out of a map.
	sort.Slice(d.out, func(i, j int) bool {
		if d.out[i].Src != d.out[j].Src {
			return lessId(d.out[i].Src, d.out[j].Src)
		}
		return lessId(d.out[i].Tgt, d.out[j].Tgt)
	})

	d.linkAnnotated(reader, o)
	return d.out
}

// discoverAbstract maps each Python class to the names of its abstract
// methods. A name counts only when the class entity owns a method of that
// name.
func (d *detector) discoverAbstract(reader ContentReader, o options) map[core.EntityId]map[string]bool {
	abstract := make(map[core.EntityId]map[string]bool)
	for _, f := range d.m.files {
		if l, ok := fileLang(f); !ok || l != lang.Python {
			continue
		}
		src, ok := readFile(reader, f, o.logger)
		if !ok {
			continue
		}
		pairs, err := pythonAbstractMethods([]byte(src), o.notImplemented)
		if err != nil {
			o.logger.Debug("overrides.discover.failed", "file", f.Name, "err", err)
			continue
		}
		for _, p := range pairs {
			cls := d.m.classInFile(f.Id, p.class)
			if cls == nil || d.m.method(cls.Id, p.name) == nil {
				continue
			}
			if abstract[cls.Id] == nil {
				abstract[cls.Id] = make(map[string]bool)
			}
			abstract[cls.Id][p.name] = true
		}
	}
	return abstract
}

// linkAnnotated links each @Override method to the first ancestor, in
// closure order, that defines a method of the same name.
func (d *detector) linkAnnotated(reader ContentReader, o options) {
	for _, f := range d.m.files {
		if l, ok := fileLang(f); !ok || l != lang.Java {
			continue
		}
		src, ok := readFile(reader, f, o.logger)
		if !ok {
			continue
		}
		pairs, err := javaOverrideMethods([]byte(src))
		if err != nil {
			o.logger.Debug("overrides.discover.failed", "file", f.Name, "err", err)
			continue
		}
		for _, p := range pairs {
			cls := d.m.classInFile(f.Id, p.class)
			if cls == nil {
				continue
			}
			child := d.m.method(cls.Id, p.name)
			if child == nil {
				continue
			}
			for _, anc := range d.m.ancestors(cls.Id) {
				if parent := d.m.method(anc, p.name); parent != nil {
					d.emit(lang.Java, child, parent)
					break
				}
			}
		}
	}
}

func readFile(reader ContentReader, f *core.Entity, logger *slog.Logger) (string, bool) {
	src, err := reader.Read(f.ContentId)
	if err != nil {
		logger.Debug("overrides.read.failed", "file", f.Name, "err", err)
		metrics.ContentReadFailures.Inc()
		return "", false
	}
	return src, true
}
