// Package metrics registers the Prometheus collectors shared by the
// resolution, classification and override passes.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

var (
	// CacheLookups counts graph cache lookups by result (hit, miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neodepends_graph_cache_lookups_total",
		Help: "Graph cache lookups by result",
	}, []string{"result"})

	// GraphBuildFailures counts local graph builds that produced no graph.
	GraphBuildFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neodepends_graph_build_failures_total",
		Help: "Local graph builds that failed, by language",
	}, []string{"lang"})

	// GraphBuildDuration observes local graph build time.
	GraphBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "neodepends_graph_build_duration_seconds",
		Help:    "Time spent building one file's stack graph and partial paths",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"lang"})

	// ResolveDuration observes Resolve calls.
	ResolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "neodepends_resolve_duration_seconds",
		Help:    "Time spent stitching and classifying one batch",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"lang"})

	// ResolvedDeps counts file deps produced by Resolve, by kind.
	ResolvedDeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neodepends_resolved_deps_total",
		Help: "File-level dependencies produced by resolution",
	}, []string{"lang", "kind"})

	// OverrideEdges counts Override edges emitted, by language idiom.
	OverrideEdges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neodepends_override_edges_total",
		Help: "Override edges emitted by the override detector",
	}, []string{"lang"})

	// ContentReadFailures counts files skipped by override discovery.
	ContentReadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "neodepends_content_read_failures_total",
		Help: "Files skipped during override discovery because content could not be read",
	})
)

// WriteText writes every metric in g in the Prometheus text exposition
// format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
