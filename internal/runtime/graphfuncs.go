package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/FreeworkEarth/neodepends/internal/core"
	"github.com/FreeworkEarth/neodepends/internal/stackgraph"
)

// graphBuilder collects the nodes and edges a graph script emits for one
// file. Handles cross the script boundary as plain integers; -1 stands for
// "no node" and is ignored by edge so scripts need not check it.
type graphBuilder struct {
	file  string
	graph *stackgraph.Graph
	err   error
}

func newGraphBuilder(file string) *graphBuilder {
	return &graphBuilder{file: file, graph: stackgraph.NewGraph()}
}

func (b *graphBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// globals returns the graph-construction host functions.
func (b *graphBuilder) globals() map[string]any {
	return map[string]any{
		"root_node":  b.rootNodeFn(),
		"scope_node": b.scopeNodeFn(),
		"push_node":  b.symbolNodeFn("push_node", b.graph.AddPush),
		"pop_node":   b.symbolNodeFn("pop_node", b.graph.AddPop),
		"edge":       b.edgeFn(),
	}
}

// root_node() → int
func (b *graphBuilder) rootNodeFn() *object.Builtin {
	return object.NewBuiltin("root_node", func(ctx context.Context, args ...object.Object) object.Object {
		return object.NewInt(int64(stackgraph.RootHandle))
	})
}

// scope_node() → int
func (b *graphBuilder) scopeNodeFn() *object.Builtin {
	return object.NewBuiltin("scope_node", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("scope_node", 0, len(args))
		}
		return object.NewInt(int64(b.graph.AddScope(b.file)))
	})
}

// push_node(symbol, node_or_nil) → int
// pop_node(symbol, node_or_nil) → int
//
// Passing a syntax node makes the push a reference or the pop a definition,
// located at the node's start.
func (b *graphBuilder) symbolNodeFn(name string, add func(file, symbol string, span *core.Position) stackgraph.Handle) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError(name, 2, len(args))
		}
		sym, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("%s: symbol must be a string, got %s", name, args[0].Type())
		}
		var span *core.Position
		if args[1] != object.Nil {
			node, errObj := nodeArg(name, args[1])
			if errObj != nil {
				return errObj
			}
			span = nodePosition(node)
		}
		return object.NewInt(int64(add(b.file, sym.Value(), span)))
	})
}

// edge(from, to) → nil
func (b *graphBuilder) edgeFn() *object.Builtin {
	return object.NewBuiltin("edge", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("edge", 2, len(args))
		}
		from, ok := args[0].(*object.Int)
		if !ok {
			return object.Errorf("edge: from must be an int, got %s", args[0].Type())
		}
		to, ok := args[1].(*object.Int)
		if !ok {
			return object.Errorf("edge: to must be an int, got %s", args[1].Type())
		}
		if from.Value() < 0 || to.Value() < 0 || from.Value() == to.Value() {
			return object.Nil
		}
		if err := b.graph.AddEdge(stackgraph.Handle(from.Value()), stackgraph.Handle(to.Value())); err != nil {
			b.fail(fmt.Errorf("runtime: %s: %w", b.file, err))
		}
		return object.Nil
	})
}

func nodePosition(n *sitter.Node) *core.Position {
	pt := n.StartPoint()
	return &core.Position{Row: int(pt.Row), Column: int(pt.Column), Byte: int(n.StartByte())}
}
