package overrides

import (
	"errors"
	"fmt"

	"github.com/FreeworkEarth/neodepends/internal/core"
)

var (
	// ErrNotFound is wrapped by readers when no content has the given id.
	ErrNotFound = errors.New("overrides: content not found")
	// ErrRead is wrapped by readers when stored content cannot be loaded.
	ErrRead = errors.New("overrides: content read failed")
)

// ContentReader loads file content by its content id.
type ContentReader interface {
	Read(id core.ContentId) (string, error)
}

// MapReader is an in-memory ContentReader.
type MapReader map[core.ContentId]string

// Read implements ContentReader.
func (m MapReader) Read(id core.ContentId) (string, error) {
	s, ok := m[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}
