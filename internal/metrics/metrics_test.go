package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveQuery(t *testing.T) {
	r := New()
	r.ObserveQuery(20*time.Millisecond, 10, true)
	r.ObserveQuery(5*time.Millisecond, 10, false)
	r.ObserveQuery(5*time.Millisecond, 10, true)

	assert.InDelta(t, 30, testutil.ToFloat64(r.comparisons), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(r.queries.WithLabelValues("match")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(r.queries.WithLabelValues("no_match")), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(r.queryLatency))
}

func TestSetObserver(t *testing.T) {
	r := New()
	q := r.Set("query")
	d := r.Set("database")

	q.ImageExtracted()
	q.ImageSkipped()
	d.ImageExtracted()
	d.ImageExtracted()
	d.ImagesCached(5)

	assert.InDelta(t, 1, testutil.ToFloat64(r.imagesExtracted.WithLabelValues("query")), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(r.imagesExtracted.WithLabelValues("database")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(r.imagesSkipped.WithLabelValues("query")), 1e-9)
	assert.InDelta(t, 5, testutil.ToFloat64(r.imagesCached.WithLabelValues("database")), 1e-9)
	assert.InDelta(t, 0, testutil.ToFloat64(r.imagesCached.WithLabelValues("query")), 1e-9)
}

func TestWriteFile(t *testing.T) {
	r := New()
	r.Set("database").ImageExtracted()
	r.ObserveQuery(time.Millisecond, 3, true)

	path := filepath.Join(t.TempDir(), "placematch.prom")
	require.NoError(t, r.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `placematch_gallery_images_extracted_total{set="database"} 1`)
	assert.Contains(t, string(data), "placematch_retrieval_comparisons_total 3")
	assert.Contains(t, string(data), "placematch_retrieval_query_duration_seconds_bucket")
}
