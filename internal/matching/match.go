// Package matching pairs descriptors between two images, discards
// geometrically implausible pairs and scores what remains.
package matching

import (
	"cmp"
	"slices"

	"github.com/kozaktomas/placematch/internal/features"
)

// Correspondence links descriptor QueryIdx of the query record to descriptor
// DBIdx of the database record.
type Correspondence struct {
	QueryIdx int
	DBIdx    int
	Distance int
}

// Config controls descriptor matching.
type Config struct {
	// CrossCheck keeps a pair only when each descriptor is the other's
	// nearest neighbour.
	CrossCheck bool `yaml:"cross_check" json:"cross_check"`

	// MaxDistance drops pairs farther apart than this many bits (0 = no limit).
	MaxDistance int `yaml:"max_distance" json:"max_distance"`
}

// DefaultConfig returns mutual nearest-neighbour matching without a distance cap.
func DefaultConfig() Config {
	return Config{CrossCheck: true}
}

// Matcher finds nearest-neighbour correspondences between two records.
type Matcher struct {
	cfg Config
}

// NewMatcher creates a matcher with the given settings.
func NewMatcher(cfg Config) *Matcher {
	return &Matcher{cfg: cfg}
}

// Match returns correspondences sorted by distance, then query index. Each
// query descriptor appears at most once. An empty slice is returned when
// either record has no descriptors.
func (m *Matcher) Match(q, d *features.Record) []Correspondence {
	if q.Len() == 0 || d.Len() == 0 {
		return []Correspondence{}
	}

	qd, dd := q.Descriptors, d.Descriptors

	// Best database index per query descriptor and best query index per
	// database descriptor, lowest index winning ties.
	bestForQuery := make([]int, len(qd))
	distForQuery := make([]int, len(qd))
	bestForDB := make([]int, len(dd))
	distForDB := make([]int, len(dd))
	for j := range dd {
		bestForDB[j] = -1
		distForDB[j] = features.DescriptorBits + 1
	}

	for i := range qd {
		best, bestDist := -1, features.DescriptorBits+1
		for j := range dd {
			dist := features.Distance(qd[i], dd[j])
			if dist < bestDist {
				best, bestDist = j, dist
			}
			if dist < distForDB[j] {
				bestForDB[j], distForDB[j] = i, dist
			}
		}
		bestForQuery[i], distForQuery[i] = best, bestDist
	}

	out := make([]Correspondence, 0, len(qd))
	for i, j := range bestForQuery {
		if m.cfg.CrossCheck && bestForDB[j] != i {
			continue
		}
		if m.cfg.MaxDistance > 0 && distForQuery[i] > m.cfg.MaxDistance {
			continue
		}
		out = append(out, Correspondence{QueryIdx: i, DBIdx: j, Distance: distForQuery[i]})
	}

	slices.SortFunc(out, func(a, b Correspondence) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.QueryIdx, b.QueryIdx)
	})
	return out
}
