// Package features extracts oriented keypoints and 256-bit binary
// descriptors from a single image channel.
package features

import (
	"github.com/steakknife/hamming"
)

// DescriptorWords is the number of 64-bit words in a Descriptor.
const DescriptorWords = 4

// DescriptorBits is the descriptor length in bits.
const DescriptorBits = DescriptorWords * 64

// Keypoint is a salient image location with its dominant orientation.
type Keypoint struct {
	X        float64 // column in original image pixels
	Y        float64 // row in original image pixels
	Angle    float64 // degrees in [0,360)
	Response float64 // Harris corner response used for ranking
}

// Descriptor is a binary encoding of the local appearance around a keypoint.
type Descriptor [DescriptorWords]uint64

// Distance returns the number of mismatching bits between two descriptors.
func Distance(a, b Descriptor) int {
	d := 0
	for i := range a {
		d += hamming.CountBitsUint64(a[i] ^ b[i])
	}
	return d
}

// Record holds everything extracted from one image. Keypoints[i] is described
// by Descriptors[i]. A Record is never modified after extraction.
type Record struct {
	ID          string
	Name        string
	Width       int
	Height      int
	Keypoints   []Keypoint
	Descriptors []Descriptor
}

// Len returns the number of keypoints.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Keypoints)
}
