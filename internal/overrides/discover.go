package overrides

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/FreeworkEarth/neodepends/internal/lang"
)

// memberPair is a name (a method or a base) found in a named class.
type memberPair struct {
	class string
	name  string
}

const pythonAbstractQuery = `
(class_definition
  name: (identifier) @class
  body: (block
    (decorated_definition
      (decorator) @dec
      definition: (function_definition name: (identifier) @method))))
`

const pythonNotImplementedQuery = `
(class_definition
  name: (identifier) @class
  body: (block
    (function_definition
      name: (identifier) @method
      body: (block (raise_statement) @raise))))

(class_definition
  name: (identifier) @class
  body: (block
    (decorated_definition
      definition: (function_definition
        name: (identifier) @method
        body: (block (raise_statement) @raise)))))
`

const javaOverrideQuery = `
(class_declaration
  name: (identifier) @class
  body: (class_body
    (method_declaration
      (modifiers (marker_annotation name: (_) @ann))
      name: (identifier) @method)))

(interface_declaration
  name: (identifier) @class
  body: (interface_body
    (method_declaration
      (modifiers (marker_annotation name: (_) @ann))
      name: (identifier) @method)))

(enum_declaration
  name: (identifier) @class
  body: (enum_body
    (enum_body_declarations
      (method_declaration
        (modifiers (marker_annotation name: (_) @ann))
        name: (identifier) @method))))
`

const pythonBasesQuery = `
(class_definition
  name: (identifier) @class
  superclasses: (argument_list) @bases)
`

// parseSource parses src with l's grammar.
func parseSource(l lang.Lang, src []byte) (*sitter.Tree, *sitter.Language, error) {
	grammar, ok := l.Grammar()
	if !ok {
		return nil, nil, fmt.Errorf("overrides: no grammar for %s", l)
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, nil, fmt.Errorf("overrides: parse: %w", err)
	}
	return tree, grammar, nil
}

// eachMatch runs pattern over the tree and calls fn with each match's
// captures by name.
func eachMatch(tree *sitter.Tree, grammar *sitter.Language, pattern string, fn func(caps map[string]*sitter.Node)) error {
	q, err := sitter.NewQuery([]byte(pattern), grammar)
	if err != nil {
		return fmt.Errorf("overrides: query: %w", err)
	}
	defer q.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, tree.RootNode())
	for {
		m, ok := cursor.NextMatch()
		if !ok {
			return nil
		}
		caps := make(map[string]*sitter.Node, len(m.Captures))
		for _, c := range m.Captures {
			caps[q.CaptureNameForId(c.Index)] = c.Node
		}
		fn(caps)
	}
}

// isAbstractDecorator matches @abstractmethod and @<x>.abstractmethod.
func isAbstractDecorator(dec *sitter.Node, src []byte) bool {
	if dec.NamedChildCount() == 0 {
		return false
	}
	expr := dec.NamedChild(0)
	switch expr.Type() {
	case "identifier":
		return expr.Content(src) == "abstractmethod"
	case "attribute":
		attr := expr.ChildByFieldName("attribute")
		return attr != nil && attr.Content(src) == "abstractmethod"
	}
	return false
}

// pythonAbstractMethods returns the (class, method) pairs of a Python file
// whose methods are marked abstract. With notImplemented, methods whose body
// raises NotImplementedError count as well.
func pythonAbstractMethods(src []byte, notImplemented bool) ([]memberPair, error) {
	tree, grammar, err := parseSource(lang.Python, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var out []memberPair
	err = eachMatch(tree, grammar, pythonAbstractQuery, func(caps map[string]*sitter.Node) {
		if isAbstractDecorator(caps["dec"], src) {
			out = append(out, memberPair{class: caps["class"].Content(src), name: caps["method"].Content(src)})
		}
	})
	if err != nil || !notImplemented {
		return out, err
	}
	err = eachMatch(tree, grammar, pythonNotImplementedQuery, func(caps map[string]*sitter.Node) {
		if strings.Contains(caps["raise"].Content(src), "NotImplementedError") {
			out = append(out, memberPair{class: caps["class"].Content(src), name: caps["method"].Content(src)})
		}
	})
	return out, err
}

// javaOverrideMethods returns the (class, method) pairs of a Java file whose
// methods carry @Override.
func javaOverrideMethods(src []byte) ([]memberPair, error) {
	tree, grammar, err := parseSource(lang.Java, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var out []memberPair
	err = eachMatch(tree, grammar, javaOverrideQuery, func(caps map[string]*sitter.Node) {
		ann := caps["ann"].Content(src)
		if ann == "Override" || ann == "java.lang.Override" {
			out = append(out, memberPair{class: caps["class"].Content(src), name: caps["method"].Content(src)})
		}
	})
	return out, err
}

// pythonBases returns the (class, base name) pairs of a Python file. Dotted
// bases contribute their last segment; keyword arguments are skipped.
func pythonBases(src []byte) ([]memberPair, error) {
	tree, grammar, err := parseSource(lang.Python, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var out []memberPair
	err = eachMatch(tree, grammar, pythonBasesQuery, func(caps map[string]*sitter.Node) {
		class := caps["class"].Content(src)
		bases := caps["bases"]
		for i := 0; i < int(bases.NamedChildCount()); i++ {
			b := bases.NamedChild(i)
			switch b.Type() {
			case "identifier":
				out = append(out, memberPair{class: class, name: b.Content(src)})
			case "attribute":
				if attr := b.ChildByFieldName("attribute"); attr != nil {
					out = append(out, memberPair{class: class, name: attr.Content(src)})
				}
			}
		}
	})
	return out, err
}
