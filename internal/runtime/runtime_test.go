package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreeworkEarth/neodepends/internal/lang"
	"github.com/FreeworkEarth/neodepends/internal/stackgraph"
	"github.com/FreeworkEarth/neodepends/scripts"
)

const pySource = `import os

class Greeter:
    def greet(self, name):
        return "hello " + name

def add(a, b):
    return a + b
`

// parsePython parses src and registers it in rt's source store, returning
// the proxied root node for use as a script global.
func parsePython(t *testing.T, rt *Runtime, src string) object.Object {
	t.Helper()

	grammar, ok := lang.Python.Grammar()
	require.True(t, ok)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(src))
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	rt.sources.store(tree, []byte(src), grammar)
	t.Cleanup(func() { rt.sources.forget(tree) })

	root, err := object.NewProxy(tree.RootNode())
	require.NoError(t, err)
	return root
}

// --- Host function tests ---

func TestRunSource_NodeTextAndChild(t *testing.T) {
	rt := NewRuntime("")
	root := parsePython(t, rt, pySource)

	script := `
kids := named_children(root)
assert(len(kids) == 3, 'expected 3 top-level statements, got {len(kids)}')
cls := kids[1]
assert(cls.Type() == "class_definition", 'got {cls.Type()}')
name := node_child(cls, "name")
assert(node_text(name) == "Greeter", 'got {node_text(name)}')
missing := node_child(name, "body")
assert(missing == nil, 'expected nil for absent field')
`
	require.NoError(t, rt.RunSource(context.Background(), script, map[string]any{"root": root}))
}

func TestRunSource_NodeKeyIdentifiesNodes(t *testing.T) {
	rt := NewRuntime("")
	root := parsePython(t, rt, pySource)

	script := `
kids := named_children(root)
a := node_key(kids[2])
b := node_key(named_children(root)[2])
assert(a == b, 'keys differ for the same node: {a} {b}')
assert(a != node_key(kids[1]), 'distinct nodes share a key')
`
	require.NoError(t, rt.RunSource(context.Background(), script, map[string]any{"root": root}))
}

func TestRunSource_Query(t *testing.T) {
	rt := NewRuntime("")
	root := parsePython(t, rt, pySource)

	script := `
matches := query("(function_definition name: (identifier) @name)", root)
assert(len(matches) == 2, 'expected 2 matches, got {len(matches)}')
assert(node_text(matches[0]["name"]) == "greet", 'got {node_text(matches[0]["name"])}')
assert(node_text(matches[1]["name"]) == "add", 'got {node_text(matches[1]["name"])}')
`
	require.NoError(t, rt.RunSource(context.Background(), script, map[string]any{"root": root}))
}

func TestRunSource_QueryInvalidPattern(t *testing.T) {
	rt := NewRuntime("")
	root := parsePython(t, rt, pySource)

	err := rt.RunSource(context.Background(), `query("(not_a_node", root)`, map[string]any{"root": root})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestRunSource_ParseSrc(t *testing.T) {
	rt := NewRuntime("")

	script := `
tree := parse_src("x = 1\n", "python")
r := tree.RootNode()
assert(r.Type() == "module", 'got {r.Type()}')
assert(node_text(r) == "x = 1\n", 'unexpected text')
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_ParseSrcUnknownLanguage(t *testing.T) {
	rt := NewRuntime("")
	err := rt.RunSource(context.Background(), `parse_src("x", "cobol")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported language")
}

func TestSourceStore_Forget(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")
	grammar, _ := lang.Python.Grammar()

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(context.Background(), nil, []byte("x = 1\n"))
	require.NoError(t, err)
	defer tree.Close()

	rt.sources.store(tree, []byte("x = 1\n"), grammar)
	_, ok := rt.sources.sourceForNode(tree.RootNode())
	require.True(t, ok)

	rt.sources.forget(tree)
	_, ok = rt.sources.sourceForNode(tree.RootNode())
	assert.False(t, ok)
}

// --- Script loading tests ---

func TestLoadScript_FromDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	content := `x := 42`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(content), 0o644))

	rt := NewRuntime(dir)
	got, err := rt.LoadScript("test.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.True(t, rt.HasScript("test.risor"))
	assert.False(t, rt.HasScript("missing.risor"))
}

func TestLoadScript_FromFS(t *testing.T) {
	t.Parallel()

	content := `x := 42`
	mapFS := fstest.MapFS{
		"graph/python.risor": &fstest.MapFile{Data: []byte(content)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("graph/python.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// Absolute-style path should be resolved within the FS.
	got, err = rt.LoadScript("/graph/python.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = rt.LoadScript("graph/java.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestRunScript_MissingFile(t *testing.T) {
	rt := NewRuntime(t.TempDir())
	require.Error(t, rt.RunScript(context.Background(), "nonexistent.risor", nil))
}

func TestGraphScriptPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "graph/python.risor", GraphScriptPath("python"))
}

func TestEmbeddedScriptsPresent(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("", WithRuntimeFS(scripts.FS))
	assert.True(t, rt.HasScript(GraphScriptPath(string(lang.Python))))
	assert.True(t, rt.HasScript(GraphScriptPath(string(lang.Java))))
}

func TestImport_GlobalsAvailableInImportedModules(t *testing.T) {
	mapFS := fstest.MapFS{
		"helper.risor": &fstest.MapFile{Data: []byte(`
func do_log(msg) {
	log.Info(msg)
}
`)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))

	script := `
import helper
helper.do_log("test message")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

// --- Graph construction tests ---

func TestRunSource_GraphBuilder(t *testing.T) {
	rt := NewRuntime("")
	root := parsePython(t, rt, pySource)
	b := newGraphBuilder("a.py")
	extras := b.globals()
	extras["root"] = root

	script := `
r := root_node()
s := scope_node()
name := node_child(named_children(root)[1], "name")
d := pop_node(node_text(name), name)
p := push_node("x", nil)
edge(r, s)
edge(s, d)
edge(p, -1)
`
	require.NoError(t, rt.RunSource(context.Background(), script, extras))
	require.NoError(t, b.err)

	g := b.graph
	assert.Equal(t, 4, g.Len())
	assert.Equal(t, 2, g.EdgeCount())
	def := g.Node(2)
	assert.True(t, def.IsDefinition)
	assert.Equal(t, "Greeter", def.Symbol)
	assert.Equal(t, 2, def.Span.Row)
	assert.Equal(t, 6, def.Span.Column)
	assert.False(t, g.Node(3).IsReference)
}

func TestRunSource_GraphBuilderRecordsBadEdge(t *testing.T) {
	rt := NewRuntime("")
	b := newGraphBuilder("a.py")
	require.NoError(t, rt.RunSource(context.Background(), `edge(0, 42)`, b.globals()))
	assert.Error(t, b.err)
}

func TestModulePath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		file   string
		module []string
		pkg    []string
	}{
		{"a.py", []string{"a"}, []string{}},
		{"pkg/mod.py", []string{"pkg", "mod"}, []string{"pkg"}},
		{"pkg/__init__.py", []string{"pkg"}, []string{"pkg"}},
		{"./pkg/sub/x.py", []string{"pkg", "sub", "x"}, []string{"pkg", "sub"}},
		{`win\pkg\y.py`, []string{"win", "pkg", "y"}, []string{"win", "pkg"}},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			t.Parallel()
			module, pkg := modulePath(lang.Python, tt.file)
			assert.Equal(t, tt.module, module)
			assert.ElementsMatch(t, tt.pkg, pkg)
		})
	}

	module, pkg := modulePath(lang.Java, "com/x/Dog.java")
	assert.Nil(t, module)
	assert.Nil(t, pkg)
}

// resolved builds every file with the embedded scripts, stitches them and
// returns "file:symbol" of reference -> definition.
func resolved(t *testing.T, l lang.Lang, files map[string]string) map[string][]string {
	t.Helper()
	rt := NewRuntime("", WithRuntimeFS(scripts.FS))
	db := stackgraph.NewDatabase()
	for name, src := range files {
		g, err := rt.BuildGraph(context.Background(), l, name, []byte(src))
		require.NoError(t, err, name)
		require.NoError(t, db.Add(stackgraph.BuildFileGraph(name, g, stackgraph.DefaultConfig())))
	}
	out := map[string][]string{}
	merged := db.Graph()
	for _, r := range db.Stitch(stackgraph.DefaultConfig()) {
		ref := merged.Node(r.Reference)
		def := merged.Node(r.Definition)
		key := ref.File + ":" + ref.Symbol
		out[key] = append(out[key], def.File+":"+def.Symbol)
	}
	return out
}

func TestBuildGraph_PythonCrossFile(t *testing.T) {
	got := resolved(t, lang.Python, map[string]string{
		"animals.py": `class Animal:
    def speak(self):
        pass
`,
		"app.py": `from animals import Animal

class Dog(Animal):
    def run(self):
        self.speak()

d = Dog()
d.speak()
`,
	})

	assert.Contains(t, got["app.py:Animal"], "animals.py:Animal")
	assert.Contains(t, got["app.py:animals"], "animals.py:animals")
	assert.Contains(t, got["app.py:Dog"], "app.py:Dog")
	assert.Contains(t, got["app.py:speak"], "animals.py:speak")
	assert.Contains(t, got["app.py:d"], "app.py:d")
}

func TestBuildGraph_PythonModuleImport(t *testing.T) {
	got := resolved(t, lang.Python, map[string]string{
		"pkg/__init__.py": "",
		"pkg/util.py": `def helper():
    return 1
`,
		"main.py": `import pkg.util

pkg.util.helper()
`,
	})

	assert.Contains(t, got["main.py:util"], "pkg/util.py:util")
	assert.Contains(t, got["main.py:pkg"], "pkg/__init__.py:pkg")
	assert.Contains(t, got["main.py:helper"], "pkg/util.py:helper")
}

func TestBuildGraph_PythonRelativeImport(t *testing.T) {
	got := resolved(t, lang.Python, map[string]string{
		"pkg/base.py": `class Base:
    pass
`,
		"pkg/impl.py": `from .base import Base

class Impl(Base):
    pass
`,
	})

	assert.Contains(t, got["pkg/impl.py:Base"], "pkg/base.py:Base")
}

func TestBuildGraph_PythonUnresolvedNamesDropped(t *testing.T) {
	got := resolved(t, lang.Python, map[string]string{
		"a.py": `print(undefined_name)
`,
	})
	assert.Empty(t, got["a.py:undefined_name"])
	assert.Empty(t, got["a.py:print"])
}

func TestBuildGraph_JavaSamePackage(t *testing.T) {
	got := resolved(t, lang.Java, map[string]string{
		"com/x/Animal.java": `package com.x;

public class Animal {
    public void speak() {}
}
`,
		"com/x/Dog.java": `package com.x;

public class Dog extends Animal {
    public void run() {
        speak();
    }
}
`,
	})

	assert.Contains(t, got["com/x/Dog.java:Animal"], "com/x/Animal.java:Animal")
	assert.Contains(t, got["com/x/Dog.java:speak"], "com/x/Animal.java:speak")
}

func TestBuildGraph_JavaImport(t *testing.T) {
	got := resolved(t, lang.Java, map[string]string{
		"com/a/Service.java": `package com.a;

public class Service {
    public void handle() {}
}
`,
		"com/b/Client.java": `package com.b;

import com.a.Service;

public class Client {
    private Service service = new Service();

    void call() {
        service.handle();
    }
}
`,
	})

	assert.Contains(t, got["com/b/Client.java:Service"], "com/a/Service.java:Service")
	assert.Contains(t, got["com/b/Client.java:handle"], "com/a/Service.java:handle")
}

func TestBuildGraph_NoGrammar(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("", WithRuntimeFS(scripts.FS))
	_, err := rt.BuildGraph(context.Background(), lang.Lang("cobol"), "x.cbl", nil)
	require.Error(t, err)
}

func TestBuildGraph_NoScript(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("", WithRuntimeFS(fstest.MapFS{}))
	_, err := rt.BuildGraph(context.Background(), lang.Go, "main.go", []byte("package main\n"))
	require.Error(t, err)
}
