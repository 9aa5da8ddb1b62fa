// Package classify upgrades resolved references from the generic Use kind to
// a semantic kind by inspecting the syntax around each endpoint.
package classify

import (
	"context"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FreeworkEarth/neodepends/internal/core"
	"github.com/FreeworkEarth/neodepends/internal/lang"
)

var tracer = otel.Tracer("neodepends.classify")

// Site is one endpoint of a resolved reference.
type Site struct {
	Filename string
	Content  string
	Byte     int
}

type parsed struct {
	tree *sitter.Tree
	src  []byte
}

// Classifier classifies resolved references. Each file is parsed at most
// once; trees are kept until Close. A Classifier is safe for concurrent use
// but is meant to live for a single resolution.
type Classifier struct {
	mu    sync.Mutex
	trees map[string]*parsed
}

// New returns an empty Classifier.
func New() *Classifier {
	return &Classifier{trees: make(map[string]*parsed)}
}

// Close releases every cached tree.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, p := range c.trees {
		if p.tree != nil {
			p.tree.Close()
		}
		delete(c.trees, name)
	}
}

// Classify picks the kind of the dependency from src (the reference) to tgt
// (its definition). Languages without rules, and files that fail to parse,
// yield Use.
func (c *Classifier) Classify(ctx context.Context, l lang.Lang, src, tgt Site) core.DepKind {
	_, span := tracer.Start(ctx, "classify.Classifier.Classify",
		trace.WithAttributes(
			attribute.String("lang", string(l)),
			attribute.String("src", src.Filename),
		))
	defer span.End()

	switch l {
	case lang.Python:
		return c.classifyPython(ctx, src, tgt)
	case lang.Java:
		return c.classifyJava(ctx, src)
	default:
		return core.Use
	}
}

func (c *Classifier) classifyPython(ctx context.Context, src, tgt Site) core.DepKind {
	sp, ok := c.parse(ctx, lang.Python, src)
	if !ok {
		return core.Use
	}
	tp, ok := c.parse(ctx, lang.Python, tgt)
	if !ok {
		return core.Use
	}
	node := nodeAtByte(sp.tree.RootNode(), src.Byte)

	if hasAncestor(node, "import_statement", "import_from_statement") {
		return core.Import
	}
	if inClassBases(node) {
		return core.Extend
	}
	if inIsinstanceArgs(node, sp.src) {
		return core.Use
	}
	if call := nearestAncestor(node, "call"); call != nil && covers(call.ChildByFieldName("function"), src.Byte) {
		if isPythonClassName(nodeAtByte(tp.tree.RootNode(), tgt.Byte), tgt.Byte) {
			return core.Create
		}
		return core.Call
	}
	return core.Use
}

func (c *Classifier) classifyJava(ctx context.Context, src Site) core.DepKind {
	sp, ok := c.parse(ctx, lang.Java, src)
	if !ok {
		return core.Use
	}
	node := nodeAtByte(sp.tree.RootNode(), src.Byte)

	if hasAncestor(node, "import_declaration") {
		return core.Import
	}
	if hasAncestor(node, "superclass", "super_interfaces", "extends_interfaces") {
		return core.Extend
	}
	for n := node; n != nil; n = n.Parent() {
		p := n.Parent()
		if p == nil {
			break
		}
		switch p.Type() {
		case "object_creation_expression":
			if covers(p.ChildByFieldName("type"), src.Byte) {
				return core.Create
			}
		case "method_invocation":
			if covers(p.ChildByFieldName("name"), src.Byte) {
				return core.Call
			}
		}
	}
	return core.Use
}

func (c *Classifier) parse(ctx context.Context, l lang.Lang, s Site) (*parsed, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.trees[s.Filename]; ok {
		return p, p.tree != nil
	}

	p := &parsed{src: []byte(s.Content)}
	c.trees[s.Filename] = p

	grammar, ok := l.Grammar()
	if !ok {
		return p, false
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(ctx, nil, p.src)
	if err != nil {
		return p, false
	}
	p.tree = tree
	return p, true
}

// nodeAtByte returns the smallest node covering [b, b+1), or root when none
// does.
func nodeAtByte(root *sitter.Node, b int) *sitter.Node {
	if !covers(root, b) {
		return root
	}
	node := root
	for {
		var next *sitter.Node
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child != nil && covers(child, b) {
				next = child
				break
			}
		}
		if next == nil {
			return node
		}
		node = next
	}
}

func covers(n *sitter.Node, b int) bool {
	if n == nil {
		return false
	}
	return int(n.StartByte()) <= b && b < int(n.EndByte())
}

func hasAncestor(n *sitter.Node, types ...string) bool {
	return nearestAncestor(n, types...) != nil
}

// nearestAncestor returns n or its closest ancestor of one of types.
func nearestAncestor(n *sitter.Node, types ...string) *sitter.Node {
	for ; n != nil; n = n.Parent() {
		t := n.Type()
		for _, want := range types {
			if t == want {
				return n
			}
		}
	}
	return nil
}

func inClassBases(n *sitter.Node) bool {
	for ; n != nil; n = n.Parent() {
		if n.Type() != "argument_list" {
			continue
		}
		if p := n.Parent(); p != nil && p.Type() == "class_definition" {
			return true
		}
	}
	return false
}

func inIsinstanceArgs(n *sitter.Node, src []byte) bool {
	for ; n != nil; n = n.Parent() {
		if n.Type() != "argument_list" {
			continue
		}
		call := n.Parent()
		if call == nil || call.Type() != "call" {
			continue
		}
		fn := call.ChildByFieldName("function")
		if fn != nil && fn.Type() == "identifier" && fn.Content(src) == "isinstance" {
			return true
		}
	}
	return false
}

// isPythonClassName reports whether b is the start of the name of the class
// or function definition enclosing n, and that definition is a class. Other
// targets inside a class body, such as a module definition at byte 0, are
// not classes.
func isPythonClassName(n *sitter.Node, b int) bool {
	d := nearestAncestor(n, "class_definition", "function_definition")
	if d == nil || d.Type() != "class_definition" {
		return false
	}
	name := d.ChildByFieldName("name")
	return name != nil && int(name.StartByte()) == b
}
