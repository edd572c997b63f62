// Package imagery decodes image files into rasters that expose single colour
// channels to the feature extractor, independent of the decoding library.
package imagery

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode is returned when a file cannot be parsed into pixel data.
	ErrDecode = errors.New("failed to decode image")

	// ErrUnreadable is returned when an image file cannot be opened.
	ErrUnreadable = errors.New("failed to open image")
)

// Channel selects which plane of an image the extractor works on.
type Channel int

const (
	ChannelRed Channel = iota
	ChannelGreen
	ChannelBlue
	ChannelLuma // ITU-R BT.601 weighted grayscale
)

func (c Channel) String() string {
	switch c {
	case ChannelRed:
		return "red"
	case ChannelGreen:
		return "green"
	case ChannelBlue:
		return "blue"
	case ChannelLuma:
		return "luma"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// ParseChannel converts a channel name (red, green, blue, luma/gray) to a Channel.
func ParseChannel(name string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "red", "r":
		return ChannelRed, nil
	case "green", "g":
		return ChannelGreen, nil
	case "blue", "b":
		return ChannelBlue, nil
	case "luma", "gray", "grey":
		return ChannelLuma, nil
	}
	return 0, fmt.Errorf("unknown channel %q (expected red, green, blue or luma)", name)
}

// Raster is a decoded image with non-premultiplied 8-bit RGBA pixels and a
// zero origin.
type Raster struct {
	pix *image.NRGBA
}

// NewRaster wraps an already decoded image.
func NewRaster(img image.Image) *Raster {
	return &Raster{pix: imaging.Clone(img)}
}

// Width returns the raster width in pixels.
func (r *Raster) Width() int { return r.pix.Rect.Dx() }

// Height returns the raster height in pixels.
func (r *Raster) Height() int { return r.pix.Rect.Dy() }

// Image returns the underlying pixels.
func (r *Raster) Image() *image.NRGBA { return r.pix }

// Channel returns one plane of the raster as an 8-bit grayscale image.
func (r *Raster) Channel(c Channel) *image.Gray {
	w, h := r.Width(), r.Height()
	gray := image.NewGray(image.Rect(0, 0, w, h))
	src := r.pix.Pix
	for i := 0; i < w*h; i++ {
		p := src[4*i : 4*i+4 : 4*i+4]
		switch c {
		case ChannelGreen:
			gray.Pix[i] = p[1]
		case ChannelBlue:
			gray.Pix[i] = p[2]
		case ChannelLuma:
			luma := 0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])
			gray.Pix[i] = uint8(luma + 0.5)
		default:
			gray.Pix[i] = p[0]
		}
	}
	return gray
}

// Fit returns a copy scaled down so that neither side exceeds maxSize, and the
// factor that maps the copy's coordinates back to the original. Rasters that
// already fit (or maxSize <= 0) are returned unchanged with factor 1.
func (r *Raster) Fit(maxSize int) (*Raster, float64) {
	w, h := r.Width(), r.Height()
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return r, 1
	}
	fitted := imaging.Fit(r.pix, maxSize, maxSize, imaging.Lanczos)
	return &Raster{pix: fitted}, float64(w) / float64(fitted.Rect.Dx())
}

// Decode reads an image from rd, applying the EXIF orientation tag so pixel
// coordinates match how the photo is displayed.
func Decode(rd io.Reader) (*Raster, error) {
	img, err := imaging.Decode(rd, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	return NewRaster(img), nil
}

// DecodeBytes decodes an in-memory image.
func DecodeBytes(data []byte) (*Raster, error) {
	return Decode(bytes.NewReader(data))
}

// Load opens and decodes an image file.
func Load(path string) (*Raster, error) {
	f, err := os.Open(path) //nolint:gosec // paths come from the scanned gallery directory
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrUnreadable, path, err)
	}
	defer f.Close()

	raster, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return raster, nil
}
