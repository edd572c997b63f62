package features

import (
	"cmp"
	"errors"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"slices"

	"github.com/disintegration/imaging"

	"github.com/kozaktomas/placematch/internal/imagery"
)

// harrisRadius is the half-size of the Harris structure tensor window (7x7).
const harrisRadius = 3

// ErrNoImage is returned when Extract is called without pixels.
var ErrNoImage = errors.New("no image to extract from")

// Extractor computes oriented FAST keypoints with rotated BRIEF descriptors.
// It is safe for concurrent use.
type Extractor struct {
	cfg     Config
	err     error
	pattern []testPair
	extent  []int
}

// NewExtractor prepares the sampling pattern for cfg. An invalid cfg is
// reported by every subsequent Extract call.
func NewExtractor(cfg Config) *Extractor {
	e := &Extractor{cfg: cfg}
	if err := cfg.Validate(); err != nil {
		e.err = fmt.Errorf("invalid extractor config: %w", err)
		return e
	}
	e.pattern = newPattern(cfg.Seed, cfg.PatchRadius)
	e.extent = diskExtent(cfg.PatchRadius)
	return e
}

// Config returns the settings the extractor was built with.
func (e *Extractor) Config() Config { return e.cfg }

// Extract detects keypoints in img and describes them. The returned record
// reports img's own dimensions even when extraction ran on a downscaled copy.
func (e *Extractor) Extract(id, name string, img *imagery.Raster) (*Record, error) {
	if e.err != nil {
		return nil, e.err
	}
	if img == nil {
		return nil, ErrNoImage
	}

	rec := &Record{
		ID:     id,
		Name:   name,
		Width:  img.Width(),
		Height: img.Height(),
	}

	work, factor := img.Fit(e.cfg.MaxDimension)
	gray := work.Channel(e.cfg.Channel)
	border := e.cfg.PatchRadius + 1

	corners := detectFAST(gray, e.cfg.FastThreshold, border)
	if len(corners) == 0 {
		return rec, nil
	}

	ranked := make([]rankedCorner, len(corners))
	for i, c := range corners {
		ranked[i] = rankedCorner{corner: c, response: harrisResponse(gray, c.x, c.y, e.cfg.HarrisK)}
	}
	slices.SortFunc(ranked, func(a, b rankedCorner) int {
		if c := cmp.Compare(b.response, a.response); c != 0 {
			return c
		}
		if c := cmp.Compare(a.y, b.y); c != 0 {
			return c
		}
		return cmp.Compare(a.x, b.x)
	})
	if len(ranked) > e.cfg.MaxFeatures {
		ranked = ranked[:e.cfg.MaxFeatures]
	}

	smooth := e.smoothed(gray)

	rec.Keypoints = make([]Keypoint, len(ranked))
	rec.Descriptors = make([]Descriptor, len(ranked))
	for i, c := range ranked {
		angle := e.orientation(gray, c.x, c.y)
		rec.Keypoints[i] = Keypoint{
			X:        math.Min(float64(c.x)*factor, float64(rec.Width-1)),
			Y:        math.Min(float64(c.y)*factor, float64(rec.Height-1)),
			Angle:    angle,
			Response: c.response,
		}
		rec.Descriptors[i] = e.describe(smooth, c.x, c.y, angle)
	}
	return rec, nil
}

// ExtractFile decodes the image at path and extracts it under id, with the
// base name as Name. Open and decode failures wrap imagery.ErrUnreadable and
// imagery.ErrDecode.
func (e *Extractor) ExtractFile(id, path string) (*Record, error) {
	img, err := imagery.Load(path)
	if err != nil {
		return nil, err
	}
	rec, err := e.Extract(id, filepath.Base(path), img)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", path, err)
	}
	return rec, nil
}

type rankedCorner struct {
	corner
	response float64
}

// harrisResponse evaluates det(M) - k*trace(M)^2 of the structure tensor
// accumulated from central differences over a 7x7 window.
func harrisResponse(gray *image.Gray, x, y int, k float64) float64 {
	pix, stride := gray.Pix, gray.Stride
	var sxx, syy, sxy float64
	for dy := -harrisRadius; dy <= harrisRadius; dy++ {
		row := (y + dy) * stride
		for dx := -harrisRadius; dx <= harrisRadius; dx++ {
			i := row + x + dx
			ix := (float64(pix[i+1]) - float64(pix[i-1])) / 2
			iy := (float64(pix[i+stride]) - float64(pix[i-stride])) / 2
			sxx += ix * ix
			syy += iy * iy
			sxy += ix * iy
		}
	}
	trace := sxx + syy
	return sxx*syy - sxy*sxy - k*trace*trace
}

// orientation returns the direction from the keypoint to the intensity
// centroid of its circular patch, in degrees within [0,360).
func (e *Extractor) orientation(gray *image.Gray, x, y int) float64 {
	pix, stride := gray.Pix, gray.Stride
	var m01, m10 float64
	r := e.cfg.PatchRadius
	for dy := -r; dy <= r; dy++ {
		span := e.extent[abs(dy)]
		row := (y + dy) * stride
		for dx := -span; dx <= span; dx++ {
			v := float64(pix[row+x+dx])
			m10 += float64(dx) * v
			m01 += float64(dy) * v
		}
	}
	return normalizeAngle(math.Atan2(m01, m10) * 180 / math.Pi)
}

// plane is a single 8-bit channel addressed as pix[y*stride+x*step].
type plane struct {
	pix    []uint8
	stride int
	step   int
}

func (p plane) at(x, y int) uint8 { return p.pix[y*p.stride+x*p.step] }

// smoothed returns the Gaussian-blurred channel the binary tests read from.
func (e *Extractor) smoothed(gray *image.Gray) plane {
	if e.cfg.BlurSigma <= 0 {
		return plane{pix: gray.Pix, stride: gray.Stride, step: 1}
	}
	blurred := imaging.Blur(gray, e.cfg.BlurSigma)
	// Gray input yields R == G == B; read R.
	return plane{pix: blurred.Pix, stride: blurred.Stride, step: 4}
}

// describe evaluates the rotated test pattern around (x, y). Bit i is set
// when the first point of pair i is darker than the second.
func (e *Extractor) describe(p plane, x, y int, angle float64) Descriptor {
	sin, cos := math.Sincos(angle * math.Pi / 180)
	var d Descriptor
	for i, t := range e.pattern {
		x1 := x + int(math.Round(t.x1*cos-t.y1*sin))
		y1 := y + int(math.Round(t.x1*sin+t.y1*cos))
		x2 := x + int(math.Round(t.x2*cos-t.y2*sin))
		y2 := y + int(math.Round(t.x2*sin+t.y2*cos))
		if p.at(x1, y1) < p.at(x2, y2) {
			d[i/64] |= 1 << (uint(i) % 64)
		}
	}
	return d
}

// normalizeAngle maps degrees into [0,360).
func normalizeAngle(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
