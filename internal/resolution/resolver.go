// Package resolution resolves references across files by stitching the
// per-file stack graphs of a batch, and lifts the resulting file-level edges
// onto entities.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FreeworkEarth/neodepends/internal/classify"
	"github.com/FreeworkEarth/neodepends/internal/core"
	"github.com/FreeworkEarth/neodepends/internal/lang"
	"github.com/FreeworkEarth/neodepends/internal/metrics"
	"github.com/FreeworkEarth/neodepends/internal/stackgraph"
)

var tracer = otel.Tracer("neodepends.resolution")

// ErrDuplicateFilename is returned by Resolve when a batch holds two files
// with the same name and different content.
var ErrDuplicateFilename = errors.New("resolution: duplicate filename with different content")

// Resolver collects a batch of files and resolves the references between
// them.
type Resolver interface {
	// AddFile registers a file with the batch, building its graph if the
	// content has not been seen before. Registering the same file twice has
	// no effect.
	AddFile(ctx context.Context, filename, content string)
	// Resolve stitches the batch and returns its file-level dependencies in
	// sorted order.
	Resolve(ctx context.Context) ([]core.FileDep, error)
}

// GraphBuilder builds the local stack graph of one file.
type GraphBuilder interface {
	BuildGraph(ctx context.Context, l lang.Lang, filename string, content []byte) (*stackgraph.Graph, error)
}

// StackGraphsResolver is the Resolver for languages with stack graph rules.
type StackGraphsResolver struct {
	lang    lang.Lang
	commit  core.PseudoCommitId
	mode    ClassifyMode
	cfg     stackgraph.Config
	cache   *Cache
	builder GraphBuilder
	logger  *slog.Logger

	mu    sync.Mutex
	batch []core.FileKey
	seen  map[core.FileKey]bool
}

var _ Resolver = (*StackGraphsResolver)(nil)

// NewStackGraphsResolver returns an empty batch for l backed by cache.
func NewStackGraphsResolver(l lang.Lang, commit core.PseudoCommitId, cache *Cache, builder GraphBuilder, opts ...Option) *StackGraphsResolver {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &StackGraphsResolver{
		lang:    l,
		commit:  commit,
		mode:    o.mode,
		cfg:     o.cfg,
		cache:   cache,
		builder: builder,
		logger:  o.logger,
		seen:    make(map[core.FileKey]bool),
	}
}

// AddFile implements Resolver. A build interrupted by ctx leaves the file
// out of the batch and out of the cache.
func (r *StackGraphsResolver) AddFile(ctx context.Context, filename, content string) {
	key := core.FileKeyOf(filename, content)
	if _, err := r.cache.GetOrBuild(key, func() (*Entry, error) {
		return r.build(ctx, key, content)
	}); err != nil {
		r.logger.Warn("graph.build.interrupted", "file", filename, "lang", r.lang, "err", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.seen[key] {
		r.seen[key] = true
		r.batch = append(r.batch, key)
	}
}

// build returns a nil entry when the file cannot be turned into a graph;
// such files simply contribute nothing to resolution. It returns an error
// only when ctx ended during the build.
func (r *StackGraphsResolver) build(ctx context.Context, key core.FileKey, content string) (*Entry, error) {
	start := time.Now()
	defer func() {
		metrics.GraphBuildDuration.WithLabelValues(string(r.lang)).Observe(time.Since(start).Seconds())
	}()

	g, err := r.builder.BuildGraph(ctx, r.lang, key.Filename, []byte(content))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logger.Debug("graph.build.failed", "file", key.Filename, "lang", r.lang, "err", err)
		metrics.GraphBuildFailures.WithLabelValues(string(r.lang)).Inc()
		return nil, nil
	}
	return &Entry{
		Key:     key,
		Lang:    r.lang,
		Content: content,
		Graph:   stackgraph.BuildFileGraph(key.Filename, g, r.cfg),
	}, nil
}

// Resolve implements Resolver.
func (r *StackGraphsResolver) Resolve(ctx context.Context) ([]core.FileDep, error) {
	ctx, span := tracer.Start(ctx, "resolution.StackGraphsResolver.Resolve",
		trace.WithAttributes(attribute.String("lang", string(r.lang))))
	defer span.End()
	start := time.Now()

	deps, err := r.resolve(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.ResolveDuration.WithLabelValues(string(r.lang)).Observe(time.Since(start).Seconds())
	for _, d := range deps {
		metrics.ResolvedDeps.WithLabelValues(string(r.lang), string(d.Kind)).Inc()
	}
	span.SetAttributes(attribute.Int("deps", len(deps)))
	r.logger.Info("resolve.done", "lang", r.lang, "files", len(r.batch), "deps", len(deps))
	return deps, nil
}

func (r *StackGraphsResolver) resolve(ctx context.Context) ([]core.FileDep, error) {
	r.mu.Lock()
	batch := append([]core.FileKey(nil), r.batch...)
	r.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool {
		if batch[i].Filename != batch[j].Filename {
			return batch[i].Filename < batch[j].Filename
		}
		return batch[i].ContentId.String() < batch[j].ContentId.String()
	})
	for i := 1; i < len(batch); i++ {
		if batch[i].Filename == batch[i-1].Filename {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFilename, batch[i].Filename)
		}
	}

	db := stackgraph.NewDatabase()
	entries := make(map[string]*Entry, len(batch))
	for _, key := range batch {
		e, _ := r.cache.Get(key)
		if e == nil {
			continue
		}
		if err := db.Add(e.Graph); err != nil {
			return nil, fmt.Errorf("resolution: %w", err)
		}
		entries[key.Filename] = e
	}

	var cl *classify.Classifier
	if r.mode == AST {
		cl = classify.New()
		defer cl.Close()
	}

	g := db.Graph()
	resolutions := db.Stitch(r.cfg)
	deps := make([]core.FileDep, 0, len(resolutions))
	for _, res := range resolutions {
		ref, def := g.Node(res.Reference), g.Node(res.Definition)
		srcEntry, tgtEntry := entries[ref.File], entries[def.File]
		if srcEntry == nil || tgtEntry == nil {
			continue
		}

		srcPos, tgtPos := core.Whole(ref.Span), core.Whole(def.Span)
		kind := core.Use
		if cl != nil {
			kind = cl.Classify(ctx, r.lang,
				classify.Site{Filename: ref.File, Content: srcEntry.Content, Byte: ref.Span.Byte},
				classify.Site{Filename: def.File, Content: tgtEntry.Content, Byte: def.Span.Byte},
			)
		}
		deps = append(deps, core.NewDep(
			core.FileEndpoint{File: srcEntry.Key, Position: srcPos},
			core.FileEndpoint{File: tgtEntry.Key, Position: tgtPos},
			kind, srcPos, r.commit,
		))
	}

	SortFileDeps(deps)
	return deps, nil
}

// SortFileDeps orders deps by source file and byte, then target file and
// byte, then kind.
func SortFileDeps(deps []core.FileDep) {
	sort.SliceStable(deps, func(i, j int) bool {
		a, b := deps[i], deps[j]
		if a.Src.File.Filename != b.Src.File.Filename {
			return a.Src.File.Filename < b.Src.File.Filename
		}
		if ab, bb := a.Src.Position.Position().Byte, b.Src.Position.Position().Byte; ab != bb {
			return ab < bb
		}
		if a.Tgt.File.Filename != b.Tgt.File.Filename {
			return a.Tgt.File.Filename < b.Tgt.File.Filename
		}
		if ab, bb := a.Tgt.Position.Position().Byte, b.Tgt.Position.Position().Byte; ab != bb {
			return ab < bb
		}
		return a.Kind < b.Kind
	})
}
