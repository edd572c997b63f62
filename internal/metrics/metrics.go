// Package metrics records extraction and retrieval counters in a private
// Prometheus registry that can be dumped to a text file after a run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "placematch"

// Recorder collects run metrics. It implements retrieval.Observer, and
// Set returns a gallery.Observer for one image set.
type Recorder struct {
	registry *prometheus.Registry

	imagesExtracted *prometheus.CounterVec
	imagesSkipped   *prometheus.CounterVec
	imagesCached    *prometheus.CounterVec
	comparisons     prometheus.Counter
	queries         *prometheus.CounterVec
	queryLatency    prometheus.Histogram
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.imagesExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gallery",
			Name:      "images_extracted_total",
			Help:      "Images whose features were extracted",
		},
		[]string{"set"},
	)

	r.imagesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gallery",
			Name:      "images_skipped_total",
			Help:      "Images skipped because they could not be opened or decoded",
		},
		[]string{"set"},
	)

	r.imagesCached = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gallery",
			Name:      "images_cached_total",
			Help:      "Images whose features were loaded from the feature cache",
		},
		[]string{"set"},
	)

	r.comparisons = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "comparisons_total",
			Help:      "Query-database pairs scored",
		},
	)

	r.queries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "queries_total",
			Help:      "Queries processed, by outcome",
		},
		[]string{"outcome"},
	)

	r.queryLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "query_duration_seconds",
			Help:      "Time to scan the database for one query",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	r.registry.MustRegister(r.imagesExtracted, r.imagesSkipped, r.imagesCached, r.comparisons, r.queries, r.queryLatency)
	return r
}

// ObserveQuery records one finished query.
func (r *Recorder) ObserveQuery(elapsed time.Duration, comparisons int, found bool) {
	r.queryLatency.Observe(elapsed.Seconds())
	r.comparisons.Add(float64(comparisons))
	if found {
		r.queries.WithLabelValues("match").Inc()
	} else {
		r.queries.WithLabelValues("no_match").Inc()
	}
}

// Set returns an observer that counts images under the given set label
// (query or database).
func (r *Recorder) Set(name string) *SetObserver {
	return &SetObserver{
		extracted: r.imagesExtracted.WithLabelValues(name),
		skipped:   r.imagesSkipped.WithLabelValues(name),
		cached:    r.imagesCached.WithLabelValues(name),
	}
}

// WriteFile writes all metrics in the Prometheus text format.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// SetObserver counts extracted, skipped and cached images for one set.
type SetObserver struct {
	extracted prometheus.Counter
	skipped   prometheus.Counter
	cached    prometheus.Counter
}

func (s *SetObserver) ImageExtracted()    { s.extracted.Inc() }
func (s *SetObserver) ImageSkipped()      { s.skipped.Inc() }
func (s *SetObserver) ImagesCached(n int) { s.cached.Add(float64(n)) }
