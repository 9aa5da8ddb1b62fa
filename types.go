package neodepends

import (
	"github.com/FreeworkEarth/neodepends/internal/core"
	"github.com/FreeworkEarth/neodepends/internal/store"
)

// Public aliases for the internal model types that appear in the Engine API.

type Store = store.Store
type File = store.File
type Entity = core.Entity
type EntityId = core.EntityId
type ContentId = core.ContentId
type DepKind = core.DepKind
type FileDep = core.FileDep
type EntityDep = core.EntityDep
