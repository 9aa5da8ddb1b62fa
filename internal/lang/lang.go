// Package lang maps filenames to the closed set of supported languages and
// their tree-sitter grammars.
package lang

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Lang is a canonical language name.
type Lang string

const (
	Python     Lang = "python"
	Java       Lang = "java"
	Go         Lang = "go"
	JavaScript Lang = "javascript"
	TypeScript Lang = "typescript"
	Rust       Lang = "rust"
	C          Lang = "c"
	Cpp        Lang = "cpp"
	Ruby       Lang = "ruby"
)

// All lists every supported language.
var All = []Lang{Python, Java, Go, JavaScript, TypeScript, Rust, C, Cpp, Ruby}

var extToLang = map[string]Lang{
	".py":   Python,
	".java": Java,
	".go":   Go,
	".js":   JavaScript,
	".jsx":  JavaScript,
	".ts":   TypeScript,
	".tsx":  TypeScript,
	".rs":   Rust,
	".c":    C,
	".h":    C,
	".cpp":  Cpp,
	".cc":   Cpp,
	".cxx":  Cpp,
	".hpp":  Cpp,
	".rb":   Ruby,
}

// Grammars are lazily initialized on first use.
var (
	grammars     map[Lang]*sitter.Language
	grammarsOnce sync.Once
)

func initGrammars() {
	grammarsOnce.Do(func() {
		grammars = map[Lang]*sitter.Language{
			Python:     python.GetLanguage(),
			Java:       java.GetLanguage(),
			Go:         golang.GetLanguage(),
			JavaScript: javascript.GetLanguage(),
			TypeScript: ts.GetLanguage(),
			Rust:       rust.GetLanguage(),
			C:          c.GetLanguage(),
			Cpp:        cpp.GetLanguage(),
			Ruby:       ruby.GetLanguage(),
		}
	})
}

// ForFile returns the language for a path based on its extension.
func ForFile(path string) (Lang, bool) {
	l, ok := extToLang[strings.ToLower(filepath.Ext(path))]
	return l, ok
}

// Parse converts a user-supplied name to a Lang.
func Parse(s string) (Lang, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, l := range All {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown language %q", s)
}

// Grammar returns the tree-sitter language for l.
func (l Lang) Grammar() (*sitter.Language, bool) {
	initGrammars()
	g, ok := grammars[l]
	return g, ok
}

func (l Lang) String() string {
	return string(l)
}
