package features

import (
	"image"
)

// fastArc is the number of contiguous circle pixels that must all be brighter
// or all darker than the centre (FAST-9).
const fastArc = 9

// fastCircle is the Bresenham circle of radius 3, clockwise from the top.
var fastCircle = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1},
	{3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1},
	{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// corner is a FAST detection in raster coordinates.
type corner struct {
	x, y  int
	score int
}

// detectFAST runs the FAST-9 segment test over gray, applies 3x3 non-maximum
// suppression on the corner score and drops corners closer than border to an
// edge. Corners are returned in raster order.
func detectFAST(gray *image.Gray, threshold, border int) []corner {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	border = max(border, 3)
	if w <= 2*border || h <= 2*border {
		return nil
	}

	stride := gray.Stride
	pix := gray.Pix

	var offsets [16]int
	for i, o := range fastCircle {
		offsets[i] = o[1]*stride + o[0]
	}

	scores := make([]int, w*h)
	for y := 3; y < h-3; y++ {
		row := y * stride
		for x := 3; x < w-3; x++ {
			scores[y*w+x] = fastScore(pix, row+x, &offsets, threshold)
		}
	}

	var corners []corner
	for y := border; y < h-border; y++ {
		for x := border; x < w-border; x++ {
			s := scores[y*w+x]
			if s == 0 || !isLocalMax(scores, w, x, y, s) {
				continue
			}
			corners = append(corners, corner{x: x, y: y, score: s})
		}
	}
	return corners
}

// fastScore returns 0 when the pixel at idx is not a FAST corner, otherwise
// the larger of the summed bright and dark excesses over the threshold.
func fastScore(pix []uint8, idx int, offsets *[16]int, threshold int) int {
	p := int(pix[idx])
	hi, lo := p+threshold, p-threshold

	// Any 9-arc covers at least two of the four compass pixels.
	brighter, darker := 0, 0
	for _, k := range [4]int{0, 4, 8, 12} {
		v := int(pix[idx+offsets[k]])
		if v > hi {
			brighter++
		} else if v < lo {
			darker++
		}
	}
	if brighter < 2 && darker < 2 {
		return 0
	}

	var state [16]int8
	brightSum, darkSum := 0, 0
	for k := 0; k < 16; k++ {
		v := int(pix[idx+offsets[k]])
		switch {
		case v > hi:
			state[k] = 1
			brightSum += v - hi
		case v < lo:
			state[k] = -1
			darkSum += lo - v
		}
	}

	if !hasArc(&state) {
		return 0
	}
	return max(brightSum, darkSum, 1)
}

// hasArc reports whether state contains fastArc consecutive equal non-zero
// entries, wrapping around the circle.
func hasArc(state *[16]int8) bool {
	run := 0
	var prev int8
	for i := 0; i < 16+fastArc-1; i++ {
		s := state[i%16]
		if s != 0 && s == prev {
			run++
		} else if s != 0 {
			run = 1
		} else {
			run = 0
		}
		prev = s
		if run >= fastArc {
			return true
		}
	}
	return false
}

// isLocalMax keeps the first of equal neighbours in raster order so plateaus
// yield exactly one corner.
func isLocalMax(scores []int, w, x, y, s int) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := scores[(y+dy)*w+x+dx]
			earlier := dy < 0 || (dy == 0 && dx < 0)
			if earlier && n >= s {
				return false
			}
			if !earlier && n > s {
				return false
			}
		}
	}
	return true
}
