// Package retrieval finds, for every query record, the database record with
// the lowest pair score.
package retrieval

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/placematch/internal/features"
	"github.com/kozaktomas/placematch/internal/matching"
)

// Result is the top-1 answer for one query. When no database record produced
// a defined score, Found is false, the database fields are empty and Score
// is zero.
type Result struct {
	QueryID      string  `json:"query_id"`
	QueryName    string  `json:"query_name"`
	DatabaseID   string  `json:"database_id,omitempty"`
	DatabaseName string  `json:"database_name,omitempty"`
	Score        float64 `json:"score"`
	Matches      int     `json:"matches"`
	Found        bool    `json:"found"`
}

// Observer receives per-query timing, for example to feed metrics.
type Observer interface {
	ObserveQuery(elapsed time.Duration, comparisons int, found bool)
}

// Options configures an Engine.
type Options struct {
	// Workers bounds concurrently processed queries (<= 0 uses GOMAXPROCS).
	Workers int

	// OnProgress is called after each finished query with the number of
	// finished queries so far. It may be called from several goroutines.
	OnProgress func(done, total int)

	// Observer, when set, is notified after each finished query.
	Observer Observer
}

// Engine scans the whole database for each query.
type Engine struct {
	pipeline *matching.Pipeline
	opts     Options
}

// New creates an engine that compares pairs with pipeline.
func New(pipeline *matching.Pipeline, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{pipeline: pipeline, opts: opts}
}

// Retrieve returns exactly one Result per query, ordered by query name. The
// database is shared read-only between workers. Cancelling ctx stops the batch
// and returns the context error.
func (e *Engine) Retrieve(ctx context.Context, queries, database []*features.Record) ([]Result, error) {
	db := sortedByID(database)
	qs := slices.Clone(queries)
	slices.SortStableFunc(qs, func(a, b *features.Record) int {
		return cmp.Compare(a.Name, b.Name)
	})

	results := make([]Result, len(qs))
	var done atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, q := range qs {
		i, q := i, q
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			results[i] = e.best(q, db)
			if e.opts.Observer != nil {
				e.opts.Observer.ObserveQuery(time.Since(start), len(db), results[i].Found)
			}
			if e.opts.OnProgress != nil {
				e.opts.OnProgress(int(done.Add(1)), len(qs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("retrieval cancelled: %w", err)
	}
	return results, nil
}

// Best scans database for the record that best matches q.
func (e *Engine) Best(q *features.Record, database []*features.Record) Result {
	return e.best(q, sortedByID(database))
}

// best expects db sorted by ID then name, so a strictly lower score is the
// only way a later record can win and ties keep the lower ID.
func (e *Engine) best(q *features.Record, db []*features.Record) Result {
	res := Result{QueryID: q.ID, QueryName: q.Name, Score: math.Inf(1)}
	for _, d := range db {
		c := e.pipeline.Compare(q, d, q.Width)
		if c.Err != nil {
			continue
		}
		if c.Score < res.Score {
			res.DatabaseID = d.ID
			res.DatabaseName = d.Name
			res.Score = c.Score
			res.Matches = c.Matches
			res.Found = true
		}
	}
	if !res.Found {
		res.Score = 0
	}
	return res
}

func sortedByID(database []*features.Record) []*features.Record {
	db := slices.Clone(database)
	slices.SortStableFunc(db, func(a, b *features.Record) int {
		if c := cmp.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return db
}
