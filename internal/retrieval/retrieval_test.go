package retrieval

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/placematch/internal/features"
	"github.com/kozaktomas/placematch/internal/imagery"
	"github.com/kozaktomas/placematch/internal/matching"
)

func syntheticRecord(id, name string, descs ...features.Descriptor) *features.Record {
	kps := make([]features.Keypoint, len(descs))
	for i := range kps {
		kps[i] = features.Keypoint{X: 10, Y: 10}
	}
	return &features.Record{ID: id, Name: name, Width: 100, Height: 100, Keypoints: kps, Descriptors: descs}
}

func texturedImage(seed int64, width, height int) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for by := 0; by < height; by += 16 {
		for bx := 0; bx < width; bx += 16 {
			c := color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255}
			for y := by; y < min(by+16, height); y++ {
				for x := bx; x < min(bx+16, width); x++ {
					img.Set(x, y, c)
				}
			}
		}
	}
	return img
}

func reencodeJPEG(t *testing.T, img image.Image) *imagery.Raster {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode failed: %v", err)
	}
	raster, err := imagery.DecodeBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}
	return raster
}

type countingObserver struct {
	mu          sync.Mutex
	queries     int
	comparisons int
	misses      int
}

func (o *countingObserver) ObserveQuery(_ time.Duration, comparisons int, found bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queries++
	o.comparisons += comparisons
	if !found {
		o.misses++
	}
}

func TestRetrieveTieBreaksByDatabaseID(t *testing.T) {
	desc := features.Descriptor{0xABCD}
	q := syntheticRecord("q00001", "q00001.jpg", desc)
	db := []*features.Record{
		syntheticRecord("d00002", "d00002.jpg", desc),
		syntheticRecord("d00001", "d00001.jpg", desc),
	}

	results, err := New(matching.DefaultPipeline(), Options{}).Retrieve(context.Background(), []*features.Record{q}, db)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].DatabaseID != "d00001" {
		t.Errorf("tie should go to the lower database id, got %s", results[0].DatabaseID)
	}
}

func TestRetrieveEmptyDatabase(t *testing.T) {
	queries := []*features.Record{
		syntheticRecord("b", "b.jpg", features.Descriptor{1}),
		syntheticRecord("a", "a.jpg", features.Descriptor{2}),
	}

	results, err := New(matching.DefaultPipeline(), Options{Workers: 2}).Retrieve(context.Background(), queries, nil)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected one result per query, got %d", len(results))
	}
	for _, r := range results {
		if r.Found || r.DatabaseName != "" {
			t.Errorf("empty database should give no match, got %+v", r)
		}
	}
	if results[0].QueryName != "a.jpg" || results[1].QueryName != "b.jpg" {
		t.Errorf("results should be ordered by query name, got %s, %s", results[0].QueryName, results[1].QueryName)
	}
}

func TestRetrieveNoDescriptors(t *testing.T) {
	q := syntheticRecord("q", "q.jpg")
	db := []*features.Record{syntheticRecord("d", "d.jpg", features.Descriptor{1})}

	res := New(matching.DefaultPipeline(), Options{}).Best(q, db)
	if res.Found {
		t.Errorf("query without descriptors should not match, got %+v", res)
	}
	if res.QueryID != "q" {
		t.Errorf("result should carry the query id, got %q", res.QueryID)
	}
}

func TestRetrieveDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	randomRecord := func(id string) *features.Record {
		descs := make([]features.Descriptor, 20)
		for i := range descs {
			descs[i] = features.Descriptor{rng.Uint64(), rng.Uint64(), rng.Uint64(), rng.Uint64()}
		}
		return syntheticRecord(id, id+".jpg", descs...)
	}

	var queries, db []*features.Record
	for i := 0; i < 6; i++ {
		queries = append(queries, randomRecord(string(rune('a'+i))))
	}
	for i := 0; i < 10; i++ {
		db = append(db, randomRecord(string(rune('k'+i))))
	}

	first, err := New(matching.DefaultPipeline(), Options{Workers: 1}).Retrieve(context.Background(), queries, db)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	second, err := New(matching.DefaultPipeline(), Options{Workers: 4}).Retrieve(context.Background(), queries, db)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("results should not depend on worker count")
	}
}

func TestRetrieveProgressAndObserver(t *testing.T) {
	queries := []*features.Record{
		syntheticRecord("a", "a.jpg", features.Descriptor{1}),
		syntheticRecord("b", "b.jpg", features.Descriptor{2}),
		syntheticRecord("c", "c.jpg"),
	}
	db := []*features.Record{
		syntheticRecord("x", "x.jpg", features.Descriptor{1}),
		syntheticRecord("y", "y.jpg", features.Descriptor{2}),
	}

	var mu sync.Mutex
	maxDone := 0
	obs := &countingObserver{}
	engine := New(matching.DefaultPipeline(), Options{
		Workers:  2,
		Observer: obs,
		OnProgress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			if total != 3 {
				t.Errorf("progress total = %d; want 3", total)
			}
			maxDone = max(maxDone, done)
		},
	})

	if _, err := engine.Retrieve(context.Background(), queries, db); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if maxDone != 3 {
		t.Errorf("progress should reach 3, got %d", maxDone)
	}
	if obs.queries != 3 || obs.comparisons != 6 || obs.misses != 1 {
		t.Errorf("observer saw %+v; want 3 queries, 6 comparisons, 1 miss", obs)
	}
}

func TestRetrieveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	queries := []*features.Record{syntheticRecord("a", "a.jpg", features.Descriptor{1})}
	_, err := New(matching.DefaultPipeline(), Options{}).Retrieve(ctx, queries, queries)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context should stop retrieval, got %v", err)
	}
}

func TestRetrieveReencodedTwin(t *testing.T) {
	ext := features.NewExtractor(features.DefaultConfig())

	var db []*features.Record
	var originals []image.Image
	for i, id := range []string{"000101", "000102", "000103", "000104"} {
		img := texturedImage(int64(i+1), 192, 144)
		originals = append(originals, img)
		rec, err := ext.Extract(id, id+".png", imagery.NewRaster(img))
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		db = append(db, rec)
	}

	query, err := ext.Extract("900102", "900102.jpg", reencodeJPEG(t, originals[1]))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if query.Len() == 0 {
		t.Fatal("query should have keypoints")
	}

	results, err := New(matching.DefaultPipeline(), Options{}).Retrieve(context.Background(), []*features.Record{query}, db)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if !results[0].Found || results[0].DatabaseName != "000102.png" {
		t.Errorf("re-encoded query should retrieve its twin, got %+v", results[0])
	}
}
