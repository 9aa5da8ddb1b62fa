package store

import "github.com/FreeworkEarth/neodepends/internal/core"

// DataStore is the interface for indexing-phase writes. Both Store (direct
// SQLite) and BatchedStore (in-memory buffering for parallel indexing)
// implement it.
type DataStore interface {
	InsertContent(content string) (core.ContentId, error)
	UpsertFile(f *File) error
	InsertEntity(e *core.Entity) error

	// Read sees content written through the same DataStore.
	Read(id core.ContentId) (string, error)
}

var (
	_ DataStore = (*Store)(nil)
	_ DataStore = (*BatchedStore)(nil)
)
