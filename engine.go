package neodepends

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FreeworkEarth/neodepends/internal/core"
	"github.com/FreeworkEarth/neodepends/internal/lang"
	"github.com/FreeworkEarth/neodepends/internal/overrides"
	"github.com/FreeworkEarth/neodepends/internal/resolution"
	"github.com/FreeworkEarth/neodepends/internal/runtime"
	"github.com/FreeworkEarth/neodepends/internal/stackgraph"
	"github.com/FreeworkEarth/neodepends/internal/store"
	"github.com/FreeworkEarth/neodepends/scripts"
)

var tracer = otel.Tracer("neodepends")

// Engine orchestrates the neodepends pipeline: file discovery, content
// storage, cross-file resolution, lifting onto entities and override
// detection.
type Engine struct {
	store      *store.Store
	runtime    *runtime.Runtime
	factory    *resolution.Factory
	scriptsDir string
	scriptsFS  fs.FS
	languages  map[lang.Lang]bool // nil means every supported language
	parallel   int
	commit     core.PseudoCommitId
	mode       resolution.ClassifyMode
	stitch     stackgraph.Config
	logger     *slog.Logger

	notImplementedAbstract bool
	inferExtends           bool

	mu        sync.Mutex
	resolvers map[lang.Lang]resolution.Resolver
}

// Option configures an Engine.
type Option func(*Engine)

// WithCommit marks every edge the Engine produces with commit. An empty id
// means the working directory.
func WithCommit(id string) Option {
	return func(e *Engine) {
		if id == "" {
			e.commit = core.WorkDir()
		} else {
			e.commit = core.Commit(id)
		}
	}
}

// WithClassifyMode selects how resolved references are typed.
func WithClassifyMode(m resolution.ClassifyMode) Option {
	return func(e *Engine) { e.mode = m }
}

// WithLanguages restricts which languages the Engine will process.
func WithLanguages(languages ...lang.Lang) Option {
	return func(e *Engine) {
		if len(languages) == 0 {
			e.languages = nil
			return
		}
		e.languages = make(map[lang.Lang]bool, len(languages))
		for _, l := range languages {
			e.languages[l] = true
		}
	}
}

// WithParallel caps how many files are read and built at once. Values below
// one select the number of CPUs.
func WithParallel(n int) Option {
	return func(e *Engine) { e.parallel = n }
}

// WithScriptsDir loads graph scripts from dir on disk instead of the
// embedded copies.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scriptsDir = dir
		e.scriptsFS = nil
	}
}

// WithScriptsFS loads graph scripts from fsys.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) { e.scriptsFS = fsys }
}

// WithStitchConfig sets the path search limits.
func WithStitchConfig(cfg stackgraph.Config) Option {
	return func(e *Engine) { e.stitch = cfg }
}

// WithLogger sets the Engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithNotImplementedAbstract makes Python methods raising
// NotImplementedError count as abstract during override detection.
func WithNotImplementedAbstract(on bool) Option {
	return func(e *Engine) { e.notImplementedAbstract = on }
}

// WithInferExtends derives Python Extend edges from class base lists when the
// stored model has none.
func WithInferExtends(on bool) Option {
	return func(e *Engine) { e.inferExtends = on }
}

// New creates an Engine backed by a SQLite database at dbPath. Graph scripts
// come from the embedded set unless WithScriptsDir or WithScriptsFS is given.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("neodepends: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("neodepends: migrate: %w", err)
	}

	e := &Engine{
		store:     s,
		scriptsFS: scripts.FS,
		commit:    core.WorkDir(),
		mode:      resolution.AST,
		stitch:    stackgraph.DefaultConfig(),
		logger:    slog.Default(),
		resolvers: make(map[lang.Lang]resolution.Resolver),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.parallel < 1 {
		e.parallel = goruntime.NumCPU()
	}

	rtOpts := []runtime.RuntimeOption{runtime.WithLogger(e.logger)}
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.scriptsFS))
	}
	e.runtime = runtime.NewRuntime(e.scriptsDir, rtOpts...)
	e.factory = resolution.NewFactory(e.runtime,
		resolution.WithClassifyMode(e.mode),
		resolution.WithStitchConfig(e.stitch),
		resolution.WithLogger(e.logger),
	)
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Commit returns the revision marker the Engine stamps on its edges.
func (e *Engine) Commit() core.PseudoCommitId {
	return e.commit
}

// scriptsHash hashes every graph script so a database built with older
// rules can be detected.
func (e *Engine) scriptsHash() string {
	var paths []string
	if e.scriptsFS != nil {
		fs.WalkDir(e.scriptsFS, ".", func(p string, d fs.DirEntry, err error) error {
			if err == nil && !d.IsDir() && strings.HasSuffix(p, ".risor") {
				paths = append(paths, p)
			}
			return nil
		})
	} else if e.scriptsDir != "" {
		filepath.WalkDir(e.scriptsDir, func(p string, d fs.DirEntry, err error) error {
			if err == nil && !d.IsDir() && strings.HasSuffix(p, ".risor") {
				rel, _ := filepath.Rel(e.scriptsDir, p)
				paths = append(paths, rel)
			}
			return nil
		})
	}
	sort.Strings(paths)

	h := xxh3.New()
	for _, p := range paths {
		src, err := e.runtime.LoadScript(p)
		if err != nil {
			continue
		}
		h.WriteString(p)
		h.WriteString(src)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// ScriptsChanged reports whether the graph scripts differ from those that
// produced the stored file deps. A database that was never resolved counts
// as changed.
func (e *Engine) ScriptsChanged() bool {
	stored, err := e.store.GetMetadata("scripts_hash")
	if err != nil || stored == "" {
		return true
	}
	return stored != e.scriptsHash()
}

func (e *Engine) wants(l lang.Lang) bool {
	if !resolution.Supports(l) {
		return false
	}
	return e.languages == nil || e.languages[l]
}

// resolver returns the open batch for l, creating it on first use.
func (e *Engine) resolver(l lang.Lang) resolution.Resolver {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.resolvers[l]
	if !ok {
		r, _ = e.factory.TryCreate(e.commit, l)
		e.resolvers[l] = r
	}
	return r
}

// skipDirs lists directories excluded from the fallback walk.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// IndexDirectory discovers the files under root and indexes them with names
// relative to root. Inside a git work tree git ls-files is used so ignored
// files are skipped; otherwise the tree is walked, skipping hidden
// directories, node_modules, vendor and __pycache__.
func (e *Engine) IndexDirectory(ctx context.Context, root string) error {
	paths, err := e.gitListFiles(root)
	if err != nil {
		paths, err = e.walkListFiles(root)
		if err != nil {
			return err
		}
	}
	return e.indexFiles(ctx, root, paths)
}

// IndexFiles indexes the given paths, naming each file by its path.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) error {
	return e.indexFiles(ctx, "", paths)
}

// indexFiles reads files in parallel, buffers their contents and records for
// a single commit, and registers each with its language's resolver. Errors on
// individual files are collected; the remaining files are still indexed.
func (e *Engine) indexFiles(ctx context.Context, root string, paths []string) error {
	batch := store.NewBatchedStore(e.store)

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)
	for _, p := range paths {
		l, ok := lang.ForFile(p)
		if !ok || !e.wants(l) {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := e.indexFile(gctx, batch, root, p, l); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("index %s: %w", p, err))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("neodepends: %w", err)
	}

	if err := e.store.CommitBatch(batch); err != nil {
		return fmt.Errorf("neodepends: %w", err)
	}
	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
		return fmt.Errorf("neodepends: indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

func (e *Engine) indexFile(ctx context.Context, batch store.DataStore, root, p string, l lang.Lang) error {
	content, err := os.ReadFile(p)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	name := fileName(root, p)
	cid, err := batch.InsertContent(string(content))
	if err != nil {
		return err
	}
	if err := batch.UpsertFile(&store.File{Path: name, Language: string(l), ContentId: cid, LastIndexed: time.Now()}); err != nil {
		return err
	}
	e.resolver(l).AddFile(ctx, name, string(content))
	return nil
}

// fileName is the name a file is resolved under: relative to root with
// forward slashes.
func fileName(root, p string) string {
	if root != "" {
		if rel, err := filepath.Rel(root, p); err == nil {
			p = rel
		}
	}
	return filepath.ToSlash(filepath.Clean(p))
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under root, filtered to supported languages.
func (e *Engine) gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		abs := filepath.Join(root, line)
		if l, ok := lang.ForFile(abs); ok && e.wants(l) {
			paths = append(paths, abs)
		}
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem, used when git is
// not available.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if p != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if l, ok := lang.ForFile(p); ok && e.wants(l) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("neodepends: walk directory: %w", err)
	}
	return paths, nil
}

// loadStored registers every stored file with its resolver. Resolve uses it
// when nothing was indexed in this session.
func (e *Engine) loadStored(ctx context.Context) error {
	files, err := e.store.Files()
	if err != nil {
		return fmt.Errorf("neodepends: %w", err)
	}
	for _, f := range files {
		l, err := lang.Parse(f.Language)
		if err != nil || !e.wants(l) {
			continue
		}
		content, err := e.store.Read(f.ContentId)
		if err != nil {
			e.logger.Warn("resolve.content.missing", "file", f.Path, "err", err)
			continue
		}
		e.resolver(l).AddFile(ctx, f.Path, content)
	}
	return nil
}

// Resolve resolves every open language batch, replaces the stored file deps
// for the Engine's commit with the result and returns it. Batches are closed
// afterwards; the graph cache is kept.
func (e *Engine) Resolve(ctx context.Context) ([]core.FileDep, error) {
	ctx, span := tracer.Start(ctx, "neodepends.Engine.Resolve",
		trace.WithAttributes(attribute.String("commit", e.commit.String())))
	defer span.End()

	deps, err := e.resolve(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("deps", len(deps)))
	return deps, nil
}

func (e *Engine) resolve(ctx context.Context) ([]core.FileDep, error) {
	e.mu.Lock()
	empty := len(e.resolvers) == 0
	e.mu.Unlock()
	if empty {
		if err := e.loadStored(ctx); err != nil {
			return nil, err
		}
	}

	e.mu.Lock()
	batches := e.resolvers
	e.resolvers = make(map[lang.Lang]resolution.Resolver)
	e.mu.Unlock()

	langs := make([]lang.Lang, 0, len(batches))
	for l := range batches {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })

	var all []core.FileDep
	for _, l := range langs {
		deps, err := batches[l].Resolve(ctx)
		if err != nil {
			return nil, fmt.Errorf("neodepends: resolve %s: %w", l, err)
		}
		all = append(all, deps...)
	}

	if err := e.store.DeleteFileDeps(e.commit); err != nil {
		return nil, fmt.Errorf("neodepends: %w", err)
	}
	if err := e.store.InsertFileDeps(all); err != nil {
		return nil, fmt.Errorf("neodepends: %w", err)
	}
	if err := e.store.SetMetadata("scripts_hash", e.scriptsHash()); err != nil {
		return nil, fmt.Errorf("neodepends: %w", err)
	}
	return all, nil
}

// liftedKinds are the kinds LiftAndStore replaces.
var liftedKinds = []core.DepKind{core.Import, core.Extend, core.Call, core.Create, core.Use}

// LiftAndStore lifts the stored file deps of the Engine's commit onto the
// stored entities and replaces the commit's non-Override entity deps with
// the result. It returns the number of deps stored.
func (e *Engine) LiftAndStore(ctx context.Context) (int, error) {
	_, span := tracer.Start(ctx, "neodepends.Engine.LiftAndStore")
	defer span.End()

	entities, err := e.store.Entities()
	if err != nil {
		return 0, fmt.Errorf("neodepends: %w", err)
	}
	fileDeps, err := e.store.FileDeps(e.commit)
	if err != nil {
		return 0, fmt.Errorf("neodepends: %w", err)
	}
	lifted := resolution.LiftDeps(entities, fileDeps)

	for _, k := range liftedKinds {
		if err := e.store.DeleteDepsByKind(k, e.commit); err != nil {
			return 0, fmt.Errorf("neodepends: %w", err)
		}
	}
	if err := e.store.InsertDeps(lifted); err != nil {
		return 0, fmt.Errorf("neodepends: %w", err)
	}
	span.SetAttributes(attribute.Int("deps", len(lifted)))
	e.logger.Info("lift.done", "file_deps", len(fileDeps), "entity_deps", len(lifted))
	return len(lifted), nil
}

// DetectOverrides derives Override edges from the stored entities and deps
// and stores those not already present. With WithInferExtends, Python
// Extend edges are first inferred from class base lists when none are
// stored. It returns the number of new Override edges.
func (e *Engine) DetectOverrides(ctx context.Context) (int, error) {
	_, span := tracer.Start(ctx, "neodepends.Engine.DetectOverrides")
	defer span.End()

	n, err := e.detectOverrides()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Int("overrides", n))
	return n, nil
}

func (e *Engine) detectOverrides() (int, error) {
	entities, err := e.store.Entities()
	if err != nil {
		return 0, fmt.Errorf("neodepends: %w", err)
	}
	deps, err := e.store.Deps()
	if err != nil {
		return 0, fmt.Errorf("neodepends: %w", err)
	}
	opts := []overrides.Option{
		overrides.WithNotImplementedAbstract(e.notImplementedAbstract),
		overrides.WithLogger(e.logger),
	}

	if e.inferExtends && !hasKind(deps, core.Extend) {
		inferred := overrides.InferExtends(entities, deps, e.store, opts...)
		if err := e.store.InsertDeps(inferred); err != nil {
			return 0, fmt.Errorf("neodepends: %w", err)
		}
		deps = append(deps, inferred...)
		e.logger.Info("overrides.extends.inferred", "count", len(inferred))
	}

	found := overrides.DetectOverrides(entities, deps, e.store, opts...)
	var fresh []core.EntityDep
	for _, d := range found {
		exists, err := e.store.HasDep(d.Src, d.Tgt, core.Override)
		if err != nil {
			return 0, fmt.Errorf("neodepends: %w", err)
		}
		if !exists {
			fresh = append(fresh, d)
		}
	}
	if err := e.store.InsertDeps(fresh); err != nil {
		return 0, fmt.Errorf("neodepends: %w", err)
	}
	e.logger.Info("overrides.done", "found", len(found), "stored", len(fresh))
	return len(fresh), nil
}

func hasKind(deps []core.EntityDep, kind core.DepKind) bool {
	for _, d := range deps {
		if d.Kind == kind {
			return true
		}
	}
	return false
}
