package stackgraph

import "strconv"

// Config bounds the path searches. Every search terminates even on cyclic
// graphs; these limits keep pathological inputs cheap.
type Config struct {
	// MaxPathLength caps the edges in one file-local partial path.
	MaxPathLength int `yaml:"max_path_length"`
	// MaxStackDepth caps either symbol stack of any path.
	MaxStackDepth int `yaml:"max_stack_depth"`
	// MaxStitchDepth caps how many partial paths one stitched path joins.
	MaxStitchDepth int `yaml:"max_stitch_depth"`
	// MaxWork caps the paths explored from a single seed.
	MaxWork int `yaml:"max_work"`
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxPathLength:  256,
		MaxStackDepth:  32,
		MaxStitchDepth: 24,
		MaxWork:        20000,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxPathLength <= 0 {
		c.MaxPathLength = d.MaxPathLength
	}
	if c.MaxStackDepth <= 0 {
		c.MaxStackDepth = d.MaxStackDepth
	}
	if c.MaxStitchDepth <= 0 {
		c.MaxStitchDepth = d.MaxStitchDepth
	}
	if c.MaxWork <= 0 {
		c.MaxWork = d.MaxWork
	}
	return c
}

// FindMinimalPartialPaths enumerates the partial paths of a single file's
// graph that other files can stitch against. Seeds are every reference and
// the root. A path is recorded when it reaches the root or a definition with
// an empty outgoing stack. Paths leaving the file through the root stop
// there; joining across files is the stitcher's job.
func FindMinimalPartialPaths(g *Graph, cfg Config) []PartialPath {
	cfg = cfg.withDefaults()
	var out []PartialPath
	emitted := make(map[string]bool)
	emit := func(p PartialPath) {
		key := pathKey(p)
		if emitted[key] {
			return
		}
		emitted[key] = true
		out = append(out, p)
	}

	seeds := append([]Handle{RootHandle}, g.References()...)
	for _, seed := range seeds {
		searchFrom(g, seed, cfg, emit)
	}
	return out
}

func searchFrom(g *Graph, seed Handle, cfg Config, emit func(PartialPath)) {
	start, ok := startingAt(g, seed)
	if !ok {
		return
	}
	fromReference := g.Node(seed).IsReference

	queue := []PartialPath{start}
	seen := map[string]bool{start.stateKey(): true}
	for work := 0; len(queue) > 0 && work < cfg.MaxWork; work++ {
		p := queue[0]
		queue = queue[1:]

		for _, next := range g.Edges(p.End) {
			q, ok := p.extend(g, next)
			if !ok {
				continue
			}
			if q.Length > cfg.MaxPathLength ||
				len(q.Pre) > cfg.MaxStackDepth || len(q.Post) > cfg.MaxStackDepth {
				continue
			}
			// A reference starts with an empty stack, so it can never
			// satisfy a precondition.
			if fromReference && len(q.Pre) > 0 {
				continue
			}
			key := q.stateKey()
			if seen[key] {
				continue
			}
			seen[key] = true

			if next == RootHandle {
				emit(q)
				continue
			}
			if g.Node(next).IsDefinition && len(q.Post) == 0 {
				emit(q)
			}
			queue = append(queue, q)
		}
	}
}

func pathKey(p PartialPath) string {
	return strconv.Itoa(int(p.Start)) + ">" + p.stateKey()
}
