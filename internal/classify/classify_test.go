package classify

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreeworkEarth/neodepends/internal/core"
	"github.com/FreeworkEarth/neodepends/internal/lang"
)

const pySrc = `import os
from animals import Animal

class Dog(Animal):
    pass

def helper():
    return 1

d = Dog()
helper()
isinstance(d, Dog)
print(d)
`

// at returns the byte offset of the n-th (zero-based) occurrence of needle.
func at(t *testing.T, src, needle string, n int) int {
	t.Helper()
	off := 0
	for i := 0; ; i++ {
		idx := strings.Index(src[off:], needle)
		require.GreaterOrEqual(t, idx, 0, "occurrence %d of %q", n, needle)
		if i == n {
			return off + idx
		}
		off += idx + len(needle)
	}
}

func TestClassify_Python(t *testing.T) {
	t.Parallel()
	c := New()
	defer c.Close()
	ctx := context.Background()

	site := func(b int) Site { return Site{Filename: "app.py", Content: pySrc, Byte: b} }
	dogDef := site(at(t, pySrc, "Dog", 0))
	helperDef := site(at(t, pySrc, "helper", 0))

	tests := []struct {
		name string
		src  Site
		tgt  Site
		want core.DepKind
	}{
		{"import", site(at(t, pySrc, "Animal", 0)), dogDef, core.Import},
		{"plain import", site(at(t, pySrc, "os", 0)), dogDef, core.Import},
		{"base class", site(at(t, pySrc, "Animal", 1)), dogDef, core.Extend},
		{"construct class", site(at(t, pySrc, "Dog", 1)), dogDef, core.Create},
		{"call function", site(at(t, pySrc, "helper", 1)), helperDef, core.Call},
		{"isinstance argument", site(at(t, pySrc, "Dog", 2)), dogDef, core.Use},
		{"call argument", site(at(t, pySrc, "d)", 0)), site(at(t, pySrc, "d =", 0)), core.Use},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(ctx, lang.Python, tt.src, tt.tgt))
		})
	}
}

func TestClassify_PythonParsesEachFileOnce(t *testing.T) {
	t.Parallel()
	c := New()
	defer c.Close()

	src := Site{Filename: "app.py", Content: pySrc, Byte: at(t, pySrc, "Dog", 1)}
	tgt := Site{Filename: "app.py", Content: pySrc, Byte: at(t, pySrc, "Dog", 0)}
	assert.Equal(t, core.Create, c.Classify(context.Background(), lang.Python, src, tgt))

	first := c.trees["app.py"]
	require.NotNil(t, first)
	c.Classify(context.Background(), lang.Python, src, tgt)
	assert.Same(t, first, c.trees["app.py"])
	assert.Len(t, c.trees, 1)
}

const libSrc = `class Dog:
    pass

def helper():
    return 1
`

func TestClassify_PythonCreateNeedsClassName(t *testing.T) {
	t.Parallel()
	c := New()
	defer c.Close()
	ctx := context.Background()

	app := "import lib\nlib.helper()\nlib.Dog()\n"
	src := Site{Filename: "app.py", Content: app, Byte: at(t, app, "lib", 1)}
	lib := func(b int) Site { return Site{Filename: "lib.py", Content: libSrc, Byte: b} }

	tests := []struct {
		name string
		tgt  Site
		want core.DepKind
	}{
		{"module definition at byte 0", lib(0), core.Call},
		{"inside class body", lib(at(t, libSrc, "pass", 0)), core.Call},
		{"class name", lib(at(t, libSrc, "Dog", 0)), core.Create},
		{"function name", lib(at(t, libSrc, "helper", 0)), core.Call},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(ctx, lang.Python, src, tt.tgt))
		})
	}
}

const javaSrc = `package com.x;

import com.a.Animal;

public class Dog extends Animal implements Pet {
    void run() {
        Animal a = new Animal();
        a.speak();
    }
}
`

func TestClassify_Java(t *testing.T) {
	t.Parallel()
	c := New()
	defer c.Close()
	ctx := context.Background()

	site := func(b int) Site { return Site{Filename: "Dog.java", Content: javaSrc, Byte: b} }
	tgt := site(0)

	tests := []struct {
		name string
		src  Site
		want core.DepKind
	}{
		{"import", site(at(t, javaSrc, "Animal", 0)), core.Import},
		{"extends", site(at(t, javaSrc, "Animal", 1)), core.Extend},
		{"implements", site(at(t, javaSrc, "Pet", 0)), core.Extend},
		{"local type", site(at(t, javaSrc, "Animal", 2)), core.Use},
		{"new", site(at(t, javaSrc, "Animal", 3)), core.Create},
		{"invocation", site(at(t, javaSrc, "speak", 0)), core.Call},
		{"invocation receiver", site(at(t, javaSrc, "a.speak", 0)), core.Use},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(ctx, lang.Java, tt.src, tgt))
		})
	}
}

func TestClassify_OtherLanguagesUse(t *testing.T) {
	t.Parallel()
	c := New()
	defer c.Close()
	s := Site{Filename: "main.go", Content: "package main\n", Byte: 0}
	assert.Equal(t, core.Use, c.Classify(context.Background(), lang.Go, s, s))
}

func TestNodeAtByte_OutOfRangeFallsBackToRoot(t *testing.T) {
	t.Parallel()
	c := New()
	defer c.Close()
	p, ok := c.parse(context.Background(), lang.Python, Site{Filename: "a.py", Content: "x = 1\n"})
	require.True(t, ok)
	root := p.tree.RootNode()
	assert.Equal(t, root, nodeAtByte(root, 1000))
	assert.Equal(t, "identifier", nodeAtByte(root, 0).Type())
}
