package imagery

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestParseChannel(t *testing.T) {
	tests := []struct {
		input    string
		expected Channel
		wantErr  bool
	}{
		{"red", ChannelRed, false},
		{"R", ChannelRed, false},
		{"green", ChannelGreen, false},
		{"blue", ChannelBlue, false},
		{"gray", ChannelLuma, false},
		{" Luma ", ChannelLuma, false},
		{"alpha", 0, true},
		{"", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseChannel(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("ParseChannel(%q) should fail", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseChannel(%q) failed: %v", tc.input, err)
			}
			if got != tc.expected {
				t.Errorf("ParseChannel(%q) = %v; want %v", tc.input, got, tc.expected)
			}
		})
	}
}

func TestChannelSelectsPlane(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for x := 0; x < 4; x++ {
		for y := 0; y < 3; y++ {
			img.Set(x, y, color.RGBA{200, 100, 50, 255})
		}
	}
	raster := NewRaster(img)

	if raster.Width() != 4 || raster.Height() != 3 {
		t.Fatalf("raster should be 4x3, got %dx%d", raster.Width(), raster.Height())
	}

	tests := []struct {
		channel  Channel
		expected uint8
	}{
		{ChannelRed, 200},
		{ChannelGreen, 100},
		{ChannelBlue, 50},
		{ChannelLuma, 124}, // 0.299*200 + 0.587*100 + 0.114*50 = 124.2
	}

	for _, tc := range tests {
		t.Run(tc.channel.String(), func(t *testing.T) {
			plane := raster.Channel(tc.channel)
			if plane.Bounds().Dx() != 4 || plane.Bounds().Dy() != 3 {
				t.Fatalf("plane should be 4x3, got %v", plane.Bounds())
			}
			for i, v := range plane.Pix {
				if v != tc.expected {
					t.Fatalf("pixel %d = %d; want %d", i, v, tc.expected)
				}
			}
		})
	}
}

func TestNewRasterNormalizesOrigin(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 20, 30, 25))
	raster := NewRaster(img)

	if raster.Image().Rect.Min != (image.Point{}) {
		t.Errorf("raster origin should be (0,0), got %v", raster.Image().Rect.Min)
	}
	if raster.Width() != 20 || raster.Height() != 5 {
		t.Errorf("raster should be 20x5, got %dx%d", raster.Width(), raster.Height())
	}
}

func TestFit(t *testing.T) {
	raster := NewRaster(image.NewRGBA(image.Rect(0, 0, 400, 200)))

	same, factor := raster.Fit(0)
	if same != raster || factor != 1 {
		t.Error("Fit(0) should return the raster unchanged")
	}

	same, factor = raster.Fit(500)
	if same != raster || factor != 1 {
		t.Error("Fit larger than the raster should return it unchanged")
	}

	small, factor := raster.Fit(100)
	if small.Width() != 100 || small.Height() != 50 {
		t.Errorf("fitted raster should be 100x50, got %dx%d", small.Width(), small.Height())
	}
	if factor != 4 {
		t.Errorf("scale factor should be 4, got %f", factor)
	}
}

func TestDecodeInvalidImage(t *testing.T) {
	_, err := DecodeBytes([]byte("not an image"))
	if err == nil {
		t.Fatal("DecodeBytes should fail for invalid image data")
	}
	if !errors.Is(err, ErrDecode) {
		t.Errorf("error should wrap ErrDecode, got %v", err)
	}
}

func TestDecodeJPEGAndPNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for x := 0; x < 32; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{uint8(x * 8), 0, 0, 255})
		}
	}

	var jpegBuf, pngBuf bytes.Buffer
	if err := jpeg.Encode(&jpegBuf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode failed: %v", err)
	}
	if err := png.Encode(&pngBuf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}

	for name, data := range map[string][]byte{"jpeg": jpegBuf.Bytes(), "png": pngBuf.Bytes()} {
		t.Run(name, func(t *testing.T) {
			raster, err := DecodeBytes(data)
			if err != nil {
				t.Fatalf("DecodeBytes failed: %v", err)
			}
			if raster.Width() != 32 || raster.Height() != 16 {
				t.Errorf("decoded raster should be 32x16, got %dx%d", raster.Width(), raster.Height())
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	if err := os.WriteFile(good, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	bad := filepath.Join(dir, "bad.jpg")
	if err := os.WriteFile(bad, []byte("garbage"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := Load(good); err != nil {
		t.Errorf("Load(good) failed: %v", err)
	}

	_, err := Load(bad)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Load(bad) should wrap ErrDecode, got %v", err)
	}

	_, err = Load(filepath.Join(dir, "missing.jpg"))
	if err == nil {
		t.Error("Load(missing) should fail")
	}
	if errors.Is(err, ErrDecode) {
		t.Error("a missing file is not a decode error")
	}
	if !errors.Is(err, ErrUnreadable) {
		t.Errorf("Load(missing) should wrap ErrUnreadable, got %v", err)
	}
}
