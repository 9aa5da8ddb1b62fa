package resolution

import (
	"log/slog"

	"github.com/FreeworkEarth/neodepends/internal/core"
	"github.com/FreeworkEarth/neodepends/internal/lang"
	"github.com/FreeworkEarth/neodepends/internal/stackgraph"
)

type options struct {
	mode   ClassifyMode
	cfg    stackgraph.Config
	logger *slog.Logger
}

func defaultOptions() options {
	return options{mode: AST, cfg: stackgraph.DefaultConfig(), logger: slog.Default()}
}

// Option configures resolvers.
type Option func(*options)

// WithClassifyMode sets how resolved references are typed.
func WithClassifyMode(m ClassifyMode) Option {
	return func(o *options) { o.mode = m }
}

// WithStitchConfig sets the search limits.
func WithStitchConfig(cfg stackgraph.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the logger for build failures and resolution summaries.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Factory creates resolvers that share one cache, so content registered in
// one batch is never rebuilt for another.
type Factory struct {
	cache   *Cache
	builder GraphBuilder
	opts    []Option
}

// NewFactory returns a Factory whose resolvers build graphs with builder.
func NewFactory(builder GraphBuilder, opts ...Option) *Factory {
	return &Factory{cache: NewCache(), builder: builder, opts: opts}
}

// Cache returns the shared cache.
func (f *Factory) Cache() *Cache {
	return f.cache
}

// Supports reports whether l has stack graph rules.
func Supports(l lang.Lang) bool {
	return l == lang.Python || l == lang.Java
}

// TryCreate returns a new, empty resolver for l, or false when l has no
// stack graph rules.
func (f *Factory) TryCreate(commit core.PseudoCommitId, l lang.Lang) (Resolver, bool) {
	if !Supports(l) {
		return nil, false
	}
	return NewStackGraphsResolver(l, commit, f.cache, f.builder, f.opts...), true
}
