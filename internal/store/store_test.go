package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreeworkEarth/neodepends/internal/core"
	"github.com/FreeworkEarth/neodepends/internal/overrides"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// insertTestEntity stores content plus one entity over it.
func insertTestEntity(t *testing.T, s *Store, content, name string, kind core.EntityKind, parent *core.EntityId) core.Entity {
	t.Helper()
	cid, err := s.InsertContent(content)
	require.NoError(t, err)
	e := core.Entity{Id: core.NewEntityId(content, name), ParentId: parent, Name: name, Kind: kind, ContentId: cid, StartRow: 1, EndRow: 4}
	require.NoError(t, s.InsertEntity(&e))
	return e
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"contents", "files", "entities", "deps", "file_deps", "metadata"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestMetadata(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.GetMetadata("scripts_hash")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMetadata("scripts_hash", "a"))
	require.NoError(t, s.SetMetadata("scripts_hash", "b"))
	v, err = s.GetMetadata("scripts_hash")
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

// =============================================================================
// Contents & files
// =============================================================================

func TestContent_InsertAndRead(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	id, err := s.InsertContent("print(1)\n")
	require.NoError(t, err)
	assert.Equal(t, core.ContentIdOf("print(1)\n"), id)

	again, err := s.InsertContent("print(1)\n")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	got, err := s.Read(id)
	require.NoError(t, err)
	assert.Equal(t, "print(1)\n", got)
}

func TestContent_ReadMissing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, err := s.Read(core.ContentIdOf("nope"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, overrides.ErrNotFound))
}

func TestFiles_UpsertAndQuery(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	v1, err := s.InsertContent("a = 1")
	require.NoError(t, err)
	v2, err := s.InsertContent("a = 2")
	require.NoError(t, err)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.UpsertFile(&File{Path: "b.py", Language: "python", ContentId: v1, LastIndexed: now}))
	require.NoError(t, s.UpsertFile(&File{Path: "a.py", Language: "python", ContentId: v1, LastIndexed: now}))
	require.NoError(t, s.UpsertFile(&File{Path: "a.py", Language: "python", ContentId: v2, LastIndexed: now}))
	require.NoError(t, s.UpsertFile(&File{Path: "A.java", Language: "java", ContentId: v1, LastIndexed: now}))

	f, err := s.FileByPath("a.py")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, v2, f.ContentId)

	missing, err := s.FileByPath("zzz.py")
	require.NoError(t, err)
	assert.Nil(t, missing)

	py, err := s.FilesByLanguage("python")
	require.NoError(t, err)
	require.Len(t, py, 2)
	assert.Equal(t, "a.py", py[0].Path)
	assert.Equal(t, "b.py", py[1].Path)

	all, err := s.Files()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// =============================================================================
// Entities
// =============================================================================

func TestEntities_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	file := insertTestEntity(t, s, "class A: pass", "a.py", core.FileKind, nil)
	cls := insertTestEntity(t, s, "class A: pass", "A", core.ClassKind, ptr(file.Id))

	got, err := s.Entities()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, file, got[0])
	assert.Equal(t, cls, got[1])
	require.NotNil(t, got[1].ParentId)
	assert.Equal(t, file.Id, *got[1].ParentId)

	byContent, err := s.EntitiesByContent(file.ContentId)
	require.NoError(t, err)
	assert.Len(t, byContent, 2)
}

func TestEntities_RequireContent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	e := core.Entity{Id: core.NewEntityId("x"), Name: "x", Kind: core.FileKind, ContentId: core.ContentIdOf("never stored")}
	assert.Error(t, s.InsertEntity(&e))
}

// =============================================================================
// Deps
// =============================================================================

func TestDeps_InsertAndQuery(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a, b, c := core.NewEntityId("a"), core.NewEntityId("b"), core.NewEntityId("c")

	require.NoError(t, s.InsertDep(ptr(core.NewDep(a, b, core.Extend, core.Row(3), core.WorkDir()))))
	require.NoError(t, s.InsertDeps([]core.EntityDep{
		core.NewDep(b, c, core.Call, core.Row(7), core.Commit("abc")),
		core.NewDep(a, c, core.Override, core.Row(0), core.WorkDir()),
	}))

	all, err := s.Deps()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, core.NewDep(a, b, core.Extend, core.Row(3), core.WorkDir()), all[0])
	assert.Equal(t, core.NewDep(b, c, core.Call, core.Row(7), core.Commit("abc")), all[1])

	ext, err := s.DepsByKind(core.Extend, core.Override)
	require.NoError(t, err)
	assert.Len(t, ext, 2)

	none, err := s.DepsByKind()
	require.NoError(t, err)
	assert.Empty(t, none)

	ok, err := s.HasDep(a, c, core.Override)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.HasDep(c, a, core.Override)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.DeleteDepsByKind(core.Override, core.WorkDir()))
	ok, err = s.HasDep(a, c, core.Override)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileDeps_RoundTripAndDelete(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	src := core.FileKeyOf("app.py", "x")
	tgt := core.FileKeyOf("lib.py", "y")
	whole := core.Whole(core.Position{Row: 2, Column: 4, Byte: 30})

	work := core.NewDep(
		core.FileEndpoint{File: src, Position: whole},
		core.FileEndpoint{File: tgt, Position: core.Whole(core.Position{Row: 0, Column: 6, Byte: 6})},
		core.Create, whole, core.WorkDir(),
	)
	committed := core.NewDep(
		core.FileEndpoint{File: src, Position: core.Row(5)},
		core.FileEndpoint{File: tgt, Position: core.Row(1)},
		core.Use, core.Row(5), core.Commit("abc"),
	)
	require.NoError(t, s.InsertFileDeps([]core.FileDep{work, committed}))

	got, err := s.FileDeps(core.WorkDir())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, work, got[0])

	got, err = s.FileDeps(core.Commit("abc"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, committed, got[0])
	assert.False(t, got[0].Src.Position.IsWhole())

	require.NoError(t, s.DeleteFileDeps(core.WorkDir()))
	got, err = s.FileDeps(core.WorkDir())
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = s.FileDeps(core.Commit("abc"))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
