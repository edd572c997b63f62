package features

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/kozaktomas/placematch/internal/imagery"
)

// extractorVersion changes whenever descriptor computation changes in a way
// that invalidates cached records.
const extractorVersion = 1

// Config controls keypoint detection and description. Zero values are not
// valid; start from DefaultConfig.
type Config struct {
	// MaxFeatures caps the number of keypoints kept per image, strongest
	// Harris response first.
	MaxFeatures int

	// FastThreshold is the intensity difference for the FAST segment test.
	FastThreshold int

	// HarrisK is the Harris detector free parameter.
	HarrisK float64

	// PatchRadius is the radius of the orientation and descriptor patch.
	PatchRadius int

	// BlurSigma is the Gaussian sigma applied before binary tests.
	BlurSigma float64

	// Seed fixes the binary test pattern. Descriptors computed with different
	// seeds are not comparable.
	Seed int64

	// Channel is the image plane keypoints are computed from.
	Channel imagery.Channel

	// MaxDimension downsizes larger images before extraction (0 = never).
	MaxDimension int
}

// DefaultConfig returns the extractor settings used by the reference pipeline.
func DefaultConfig() Config {
	return Config{
		MaxFeatures:   500,
		FastThreshold: 20,
		HarrisK:       0.04,
		PatchRadius:   15,
		BlurSigma:     2,
		Seed:          0x5eed,
		Channel:       imagery.ChannelRed,
		MaxDimension:  0,
	}
}

// Validate reports settings the extractor cannot work with.
func (c Config) Validate() error {
	if c.MaxFeatures <= 0 {
		return fmt.Errorf("max features must be positive, got %d", c.MaxFeatures)
	}
	if c.FastThreshold <= 0 || c.FastThreshold > 255 {
		return fmt.Errorf("FAST threshold must be in 1..255, got %d", c.FastThreshold)
	}
	if c.PatchRadius < 4 {
		return fmt.Errorf("patch radius must be at least 4, got %d", c.PatchRadius)
	}
	if c.BlurSigma < 0 {
		return fmt.Errorf("blur sigma must not be negative, got %f", c.BlurSigma)
	}
	if c.MaxDimension < 0 {
		return fmt.Errorf("max dimension must not be negative, got %d", c.MaxDimension)
	}
	return nil
}

// Fingerprint identifies the descriptor space produced by this configuration.
// Records are only comparable when their fingerprints are equal.
func (c Config) Fingerprint() string {
	sum := sha256.Sum256(fmt.Appendf(nil, "v%d|%d|%d|%g|%d|%g|%d|%s|%d",
		extractorVersion, c.MaxFeatures, c.FastThreshold, c.HarrisK, c.PatchRadius,
		c.BlurSigma, c.Seed, c.Channel, c.MaxDimension))
	return hex.EncodeToString(sum[:8])
}
