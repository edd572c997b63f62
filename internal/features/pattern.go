package features

import (
	"math"
	"math/rand"
)

// testPair is one binary intensity comparison, in patch coordinates relative
// to the keypoint before rotation.
type testPair struct {
	x1, y1, x2, y2 float64
}

// newPattern draws DescriptorBits point pairs from an isotropic Gaussian
// (sigma = patch size / 5) restricted to the disk of radius radius-1, so any
// rotation of a pair still lands inside the patch.
func newPattern(seed int64, radius int) []testPair {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible pattern, not security
	sigma := float64(2*radius+1) / 5
	limit := float64(radius - 1)

	sample := func() (float64, float64) {
		for {
			x := math.Round(rng.NormFloat64() * sigma)
			y := math.Round(rng.NormFloat64() * sigma)
			if x*x+y*y <= limit*limit {
				return x, y
			}
		}
	}

	pattern := make([]testPair, DescriptorBits)
	for i := range pattern {
		for {
			x1, y1 := sample()
			x2, y2 := sample()
			if x1 == x2 && y1 == y2 {
				continue
			}
			pattern[i] = testPair{x1: x1, y1: y1, x2: x2, y2: y2}
			break
		}
	}
	return pattern
}

// diskExtent returns, for each row offset dy in [0,radius], the largest dx
// with dx*dx+dy*dy <= radius*radius.
func diskExtent(radius int) []int {
	extent := make([]int, radius+1)
	r2 := radius * radius
	for dy := 0; dy <= radius; dy++ {
		dx := 0
		for (dx+1)*(dx+1)+dy*dy <= r2 {
			dx++
		}
		extent[dy] = dx
	}
	return extent
}
