package stackgraph

import (
	"fmt"
	"sort"
)

// FileGraph is the built, immutable result for one file: its local graph and
// the partial paths found in it. It is safe to share between goroutines.
type FileGraph struct {
	File  string
	Graph *Graph
	Paths []PartialPath
}

// BuildFileGraph reduces a finished local graph to a FileGraph.
func BuildFileGraph(file string, g *Graph, cfg Config) *FileGraph {
	return &FileGraph{File: file, Graph: g, Paths: FindMinimalPartialPaths(g, cfg)}
}

// Database merges the graphs and partial paths of many files so they can be
// stitched together. A Database is built for one resolution and discarded.
type Database struct {
	graph *Graph
	files map[string]bool
	paths []PartialPath

	// rootPaths indexes paths starting at the root by the first symbol they
	// require; paths with no precondition are keyed by "".
	rootPaths map[string][]int
}

// NewDatabase returns an empty Database.
func NewDatabase() *Database {
	return &Database{
		graph:     NewGraph(),
		files:     make(map[string]bool),
		rootPaths: make(map[string][]int),
	}
}

// Graph returns the merged graph.
func (db *Database) Graph() *Graph {
	return db.graph
}

// PathCount returns the number of loaded partial paths.
func (db *Database) PathCount() int {
	return len(db.paths)
}

// Add loads a file's graph and paths, remapping node handles into the
// merged arena. The root is shared by all files.
func (db *Database) Add(fg *FileGraph) error {
	if db.files[fg.File] {
		return fmt.Errorf("stackgraph: file %s already loaded", fg.File)
	}
	db.files[fg.File] = true

	base := Handle(len(db.graph.nodes))
	remap := func(h Handle) Handle {
		if h == RootHandle {
			return RootHandle
		}
		return base + h - 1
	}

	src := fg.Graph
	for i := 1; i < len(src.nodes); i++ {
		db.graph.nodes = append(db.graph.nodes, src.nodes[i])
		db.graph.edges = append(db.graph.edges, nil)
	}
	for i, out := range src.edges {
		from := remap(Handle(i))
		for _, to := range out {
			db.graph.edges[from] = append(db.graph.edges[from], remap(to))
		}
	}

	for _, p := range fg.Paths {
		p.Start = remap(p.Start)
		p.End = remap(p.End)
		idx := len(db.paths)
		db.paths = append(db.paths, p)
		if p.Start == RootHandle {
			key := ""
			if len(p.Pre) > 0 {
				key = p.Pre[0]
			}
			db.rootPaths[key] = append(db.rootPaths[key], idx)
		}
	}
	return nil
}

// Resolution is one complete path from a reference to a definition.
type Resolution struct {
	Reference  Handle
	Definition Handle
}

type stitchState struct {
	path  PartialPath
	joins int
}

// Stitch runs a forward search from every reference in the database,
// concatenating partial paths at the root until they complete. Every
// reachable definition is reported once per reference, ordered by
// reference then definition handle.
func (db *Database) Stitch(cfg Config) []Resolution {
	cfg = cfg.withDefaults()

	seeds := make(map[Handle][]PartialPath)
	for _, p := range db.paths {
		if p.Start != RootHandle && db.graph.Node(p.Start).IsReference && len(p.Pre) == 0 {
			seeds[p.Start] = append(seeds[p.Start], p)
		}
	}
	refs := make([]Handle, 0, len(seeds))
	for h := range seeds {
		refs = append(refs, h)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })

	var out []Resolution
	for _, ref := range refs {
		for _, def := range db.stitchFrom(seeds[ref], cfg) {
			out = append(out, Resolution{Reference: ref, Definition: def})
		}
	}
	return out
}

func (db *Database) stitchFrom(seeds []PartialPath, cfg Config) []Handle {
	found := make(map[Handle]bool)
	seen := make(map[string]bool)
	var queue []stitchState
	for _, p := range seeds {
		key := p.stateKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		queue = append(queue, stitchState{path: p})
	}

	for work := 0; len(queue) > 0 && work < cfg.MaxWork; work++ {
		st := queue[0]
		queue = queue[1:]
		p := st.path

		if p.IsComplete(db.graph) {
			found[p.End] = true
			continue
		}
		if p.End != RootHandle || st.joins >= cfg.MaxStitchDepth {
			continue
		}

		for _, idx := range db.candidates(p) {
			r, ok := Concat(p, db.paths[idx])
			if !ok || len(r.Pre) > 0 {
				continue
			}
			if len(r.Post) > cfg.MaxStackDepth {
				continue
			}
			key := r.stateKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			queue = append(queue, stitchState{path: r, joins: st.joins + 1})
		}
	}

	defs := make([]Handle, 0, len(found))
	for h := range found {
		defs = append(defs, h)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i] < defs[j] })
	return defs
}

// candidates returns root paths whose precondition could match p's
// outgoing stack.
func (db *Database) candidates(p PartialPath) []int {
	idx := db.rootPaths[""]
	if len(p.Post) > 0 {
		idx = append(idx[:len(idx):len(idx)], db.rootPaths[p.Post[0]]...)
	}
	return idx
}
