package matching

import (
	"errors"
	"math"

	"github.com/kozaktomas/placematch/internal/features"
)

// DefaultAlpha is the exponent applied to the correspondence count.
const DefaultAlpha = 1.5

// ErrUndefined is returned when there is nothing to score.
var ErrUndefined = errors.New("score undefined for an empty match set")

// Score sums correspondence distances and divides by count^alpha, so more
// matches at the same total distance score lower (better). An empty set
// yields +Inf and ErrUndefined.
func Score(matches []Correspondence, alpha float64) (float64, error) {
	if len(matches) == 0 {
		return math.Inf(1), ErrUndefined
	}
	total := 0
	for _, m := range matches {
		total += m.Distance
	}
	return float64(total) / math.Pow(float64(len(matches)), alpha), nil
}

// Pipeline runs match, filter and score for one image pair.
type Pipeline struct {
	Matcher *Matcher
	Filter  Filter
	Alpha   float64
}

// DefaultPipeline wires the default matcher, filter and alpha.
func DefaultPipeline() *Pipeline {
	return &Pipeline{
		Matcher: NewMatcher(DefaultConfig()),
		Filter:  DefaultFilter(),
		Alpha:   DefaultAlpha,
	}
}

// Comparison is the outcome of scoring one query against one database record.
type Comparison struct {
	Score   float64
	Matches int
	Err     error
}

// Compare scores d as a candidate for q. width splits both frames into
// halves for the filter.
func (p *Pipeline) Compare(q, d *features.Record, width int) Comparison {
	filtered := p.Filter.Apply(p.Matcher.Match(q, d), q, d, width)
	score, err := Score(filtered, p.Alpha)
	return Comparison{Score: score, Matches: len(filtered), Err: err}
}
