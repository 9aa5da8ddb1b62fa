package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForFile(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path string
		want Lang
		ok   bool
	}{
		{"tts/ticket.py", Python, true},
		{"src/Dog.java", Java, true},
		{"main.go", Go, true},
		{"App.TSX", TypeScript, true},
		{"README.md", "", false},
		{"Makefile", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			got, ok := ForFile(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGrammar_AllLanguages(t *testing.T) {
	t.Parallel()
	for _, l := range All {
		g, ok := l.Grammar()
		require.True(t, ok, "grammar for %s", l)
		assert.NotNil(t, g)
	}
	_, ok := Lang("cobol").Grammar()
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	t.Parallel()
	l, err := Parse(" Python ")
	require.NoError(t, err)
	assert.Equal(t, Python, l)

	_, err = Parse("cobol")
	assert.Error(t, err)
}
