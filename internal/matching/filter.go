package matching

import (
	"math"

	"github.com/kozaktomas/placematch/internal/features"
)

// DefaultMaxAngleDiff is the largest keypoint orientation difference, in
// degrees, between two matched keypoints.
const DefaultMaxAngleDiff = 15

// Filter rejects correspondences whose keypoints disagree in orientation or
// lie on opposite halves of the frame.
type Filter struct {
	MaxAngleDiff float64
}

// DefaultFilter returns a filter with the standard orientation tolerance.
func DefaultFilter() Filter {
	return Filter{MaxAngleDiff: DefaultMaxAngleDiff}
}

// Apply returns the correspondences that pass both tests, in their original
// order. width is the image width used to split both frames into halves.
func (f Filter) Apply(matches []Correspondence, q, d *features.Record, width int) []Correspondence {
	out := make([]Correspondence, 0, len(matches))
	half := float64(width / 2)
	for _, m := range matches {
		kq := q.Keypoints[m.QueryIdx]
		kd := d.Keypoints[m.DBIdx]
		if AngleDiff(kq.Angle, kd.Angle) > f.MaxAngleDiff {
			continue
		}
		if !SameSide(kq.X, kd.X, half) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// AngleDiff returns the smallest difference between two angles in degrees,
// always within [0,180].
func AngleDiff(a, b float64) float64 {
	diff := math.Mod(math.Abs(a-b), 360)
	return math.Min(diff, 360-diff)
}

// SameSide reports whether both x coordinates fall on the same side of half.
// A coordinate equal to half counts as the left side.
func SameSide(xq, xd, half float64) bool {
	return (xq > half) == (xd > half)
}
