package runtime

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/FreeworkEarth/neodepends/internal/lang"
	"github.com/FreeworkEarth/neodepends/internal/stackgraph"
)

// BuildGraph parses content, runs the language's graph script over the
// syntax tree and reduces the emitted graph to its minimal partial paths.
//
// The script sees these globals besides the standard ones:
//
//	root          the tree's root Node
//	file_path     filename as given
//	module_path   dotted module segments derived from the filename
//	package_path  module_path without its last segment, or module_path
//	              itself for package initialisers
//	root_node, scope_node, push_node, pop_node, edge
func (r *Runtime) BuildGraph(ctx context.Context, l lang.Lang, filename string, content []byte) (*stackgraph.Graph, error) {
	grammar, ok := l.Grammar()
	if !ok {
		return nil, fmt.Errorf("runtime: no grammar for %s", l)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("runtime: parsing %s: %w", filename, err)
	}
	defer tree.Close()
	r.sources.store(tree, content, grammar)
	defer r.sources.forget(tree)

	root, err := object.NewProxy(tree.RootNode())
	if err != nil {
		return nil, fmt.Errorf("runtime: proxy root of %s: %w", filename, err)
	}

	module, pkg := modulePath(l, filename)
	b := newGraphBuilder(filename)
	extras := b.globals()
	extras["root"] = root
	extras["file_path"] = object.NewString(filename)
	extras["module_path"] = stringList(module)
	extras["package_path"] = stringList(pkg)

	if err := r.RunScript(ctx, GraphScriptPath(string(l)), extras); err != nil {
		return nil, err
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.graph, nil
}

// modulePath derives a file's module and package segments. Only Python
// names modules after files; other languages declare them in source.
func modulePath(l lang.Lang, filename string) (module, pkg []string) {
	if l != lang.Python {
		return nil, nil
	}
	p := strings.TrimSuffix(path.Clean(strings.ReplaceAll(filename, "\\", "/")), ".py")
	p = strings.TrimPrefix(p, "./")
	for _, seg := range strings.Split(p, "/") {
		if seg != "" && seg != "." {
			module = append(module, seg)
		}
	}
	if n := len(module); n > 0 && module[n-1] == "__init__" {
		module = module[:n-1]
		return module, module
	}
	if len(module) == 0 {
		return nil, nil
	}
	return module, module[:len(module)-1]
}

func stringList(items []string) *object.List {
	objs := make([]object.Object, len(items))
	for i, s := range items {
		objs[i] = object.NewString(s)
	}
	return object.NewList(objs)
}
