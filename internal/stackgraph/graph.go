// Package stackgraph implements name resolution over stack graphs: per-file
// graphs of scope, push and pop nodes whose paths manipulate a symbol stack.
//
// Each file's graph is built independently and reduced to a minimal set of
// partial paths. Files only meet at the shared root node, so resolving a
// batch means loading every file's graph and paths into a Database and
// stitching partial paths end to end until references reach definitions.
package stackgraph

import (
	"fmt"

	"github.com/FreeworkEarth/neodepends/internal/core"
)

// Handle indexes a node within a Graph.
type Handle int32

// RootHandle is the root node present in every graph.
const RootHandle Handle = 0

// NodeKind distinguishes node behavior during path traversal.
type NodeKind uint8

const (
	RootNode NodeKind = iota
	ScopeNode
	PushNode
	PopNode
)

func (k NodeKind) String() string {
	switch k {
	case RootNode:
		return "root"
	case ScopeNode:
		return "scope"
	case PushNode:
		return "push"
	case PopNode:
		return "pop"
	default:
		return fmt.Sprintf("NodeKind(%d)", k)
	}
}

// Node is one vertex in a stack graph.
//
// A reference is a push node tied to a syntax location; a definition is a pop
// node tied to a syntax location. Other push and pop nodes only shape the
// symbol stack.
type Node struct {
	Kind         NodeKind
	Symbol       string
	IsReference  bool
	IsDefinition bool
	File         string
	Span         core.Position
	HasSpan      bool
}

// Graph is an arena of nodes with integer handles and adjacency lists.
type Graph struct {
	nodes []Node
	edges [][]Handle
}

// NewGraph returns a graph containing only the root node.
func NewGraph() *Graph {
	return &Graph{
		nodes: []Node{{Kind: RootNode}},
		edges: [][]Handle{nil},
	}
}

// Len returns the number of nodes, including the root.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node returns the node for h. The returned pointer must not be modified
// once the graph is shared.
func (g *Graph) Node(h Handle) *Node {
	return &g.nodes[h]
}

// Edges returns the outgoing edges of h.
func (g *Graph) Edges(h Handle) []Handle {
	return g.edges[h]
}

// EdgeCount returns the total number of edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, out := range g.edges {
		n += len(out)
	}
	return n
}

// AddScope adds an internal scope node.
func (g *Graph) AddScope(file string) Handle {
	return g.add(Node{Kind: ScopeNode, File: file})
}

// AddPush adds a push node. When span is non-nil the node is a reference
// located at span.
func (g *Graph) AddPush(file, symbol string, span *core.Position) Handle {
	n := Node{Kind: PushNode, Symbol: symbol, File: file}
	if span != nil {
		n.IsReference = true
		n.Span = *span
		n.HasSpan = true
	}
	return g.add(n)
}

// AddPop adds a pop node. When span is non-nil the node is a definition
// located at span.
func (g *Graph) AddPop(file, symbol string, span *core.Position) Handle {
	n := Node{Kind: PopNode, Symbol: symbol, File: file}
	if span != nil {
		n.IsDefinition = true
		n.Span = *span
		n.HasSpan = true
	}
	return g.add(n)
}

func (g *Graph) add(n Node) Handle {
	g.nodes = append(g.nodes, n)
	g.edges = append(g.edges, nil)
	return Handle(len(g.nodes) - 1)
}

// AddEdge connects from to to. Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to Handle) error {
	if !g.valid(from) || !g.valid(to) {
		return fmt.Errorf("stackgraph: edge %d -> %d out of range (%d nodes)", from, to, len(g.nodes))
	}
	if from == to {
		return fmt.Errorf("stackgraph: self edge on node %d", from)
	}
	for _, h := range g.edges[from] {
		if h == to {
			return nil
		}
	}
	g.edges[from] = append(g.edges[from], to)
	return nil
}

func (g *Graph) valid(h Handle) bool {
	return h >= 0 && int(h) < len(g.nodes)
}

// References returns the handles of every reference node in order.
func (g *Graph) References() []Handle {
	var refs []Handle
	for i := range g.nodes {
		if g.nodes[i].IsReference {
			refs = append(refs, Handle(i))
		}
	}
	return refs
}
