package store

import (
	"fmt"
	"sync"

	"github.com/FreeworkEarth/neodepends/internal/core"
)

// BatchedStore buffers indexing writes in memory so parallel workers never
// contend for the SQLite write lock. CommitBatch flushes the buffer in one
// transaction.
//
// Thread safety: the mutex protects slice appends. Reads are passed through
// to the underlying Store together with anything buffered.
type BatchedStore struct {
	store *Store
	mu    sync.Mutex

	Contents map[core.ContentId]string
	Files    []File
	Entities []core.Entity
}

// NewBatchedStore creates a BatchedStore backed by the given Store for reads.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{store: s, Contents: make(map[core.ContentId]string)}
}

// InsertContent buffers content and returns its id.
func (b *BatchedStore) InsertContent(content string) (core.ContentId, error) {
	id := core.ContentIdOf(content)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Contents[id] = content
	return id, nil
}

// UpsertFile buffers a file record.
func (b *BatchedStore) UpsertFile(f *File) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Files = append(b.Files, *f)
	return nil
}

// InsertEntity buffers an entity.
func (b *BatchedStore) InsertEntity(e *core.Entity) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Entities = append(b.Entities, *e)
	return nil
}

// Read returns buffered content first, then stored content.
func (b *BatchedStore) Read(id core.ContentId) (string, error) {
	b.mu.Lock()
	content, ok := b.Contents[id]
	b.mu.Unlock()
	if ok {
		return content, nil
	}
	return b.store.Read(id)
}

// Len returns the number of buffered writes.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Contents) + len(b.Files) + len(b.Entities)
}

// CommitBatch writes everything buffered in batch within a single
// transaction and empties the batch. Contents go first so that files and
// entities can reference them.
func (s *Store) CommitBatch(batch *BatchedStore) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	for id, content := range batch.Contents {
		if _, err := tx.Exec("INSERT OR IGNORE INTO contents (id, content) VALUES (?, ?)", id.Bytes(), content); err != nil {
			return fmt.Errorf("commit batch: content %s: %w", id, err)
		}
	}
	for _, f := range batch.Files {
		_, err := tx.Exec(
			`INSERT INTO files (path, language, content_id, last_indexed) VALUES (?, ?, ?, ?)
			 ON CONFLICT(path) DO UPDATE SET language = excluded.language,
			   content_id = excluded.content_id, last_indexed = excluded.last_indexed`,
			f.Path, f.Language, f.ContentId.Bytes(), f.LastIndexed,
		)
		if err != nil {
			return fmt.Errorf("commit batch: file %q: %w", f.Path, err)
		}
	}
	for i := range batch.Entities {
		if err := insertEntity(tx, &batch.Entities[i]); err != nil {
			return fmt.Errorf("commit batch: entity %q: %w", batch.Entities[i].Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	batch.Contents = make(map[core.ContentId]string)
	batch.Files = nil
	batch.Entities = nil
	return nil
}
