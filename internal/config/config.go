// Package config assembles run settings from embedded defaults and
// PLACEMATCH_* environment variables.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/placematch/internal/features"
	"github.com/kozaktomas/placematch/internal/imagery"
	"github.com/kozaktomas/placematch/internal/matching"
)

//go:embed defaults.yaml
var defaultsYAML []byte

const envPrefix = "PLACEMATCH_"

type Config struct {
	Workers    int              `yaml:"workers"`
	Extensions []string         `yaml:"extensions"`
	Paths      PathsConfig      `yaml:"paths"`
	Extractor  ExtractorConfig  `yaml:"extractor"`
	Matching   MatchingConfig   `yaml:"matching"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Log        LogConfig        `yaml:"log"`
}

type PathsConfig struct {
	QueryDir    string `yaml:"query_dir"`
	DatabaseDir string `yaml:"database_dir"`
	Output      string `yaml:"output"`       // answer file written by retrieve, read by evaluate
	GroundTruth string `yaml:"ground_truth"` // JSON or YAML evaluation sheet
	CacheDir    string `yaml:"cache_dir"`    // feature cache, disabled when empty
}

type ExtractorConfig struct {
	Features      int     `yaml:"features"`
	FastThreshold int     `yaml:"fast_threshold"`
	HarrisK       float64 `yaml:"harris_k"`
	PatchRadius   int     `yaml:"patch_radius"`
	BlurSigma     float64 `yaml:"blur_sigma"`
	Seed          int64   `yaml:"seed"`
	Channel       string  `yaml:"channel"`
	MaxDimension  int     `yaml:"max_dimension"`
}

type MatchingConfig struct {
	CrossCheck  bool    `yaml:"cross_check"`
	MaxDistance int     `yaml:"max_distance"`
	MaxAngle    float64 `yaml:"max_angle"` // degrees
	Alpha       float64 `yaml:"alpha"`
}

type EvaluationConfig struct {
	Radius float64 `yaml:"radius"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json or pretty
	Source bool   `yaml:"source"`
}

// envInt reads an environment variable and parses it as a non-negative integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(envPrefix + key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat is envInt for non-negative floating point values.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(envPrefix + key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(envPrefix + key)); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(envPrefix + key); s != "" {
		return s
	}
	return defaultVal
}

// Defaults returns the embedded defaults without environment overrides.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

func Load() *Config {
	cfg := Defaults()

	cfg.Workers = envInt("WORKERS", cfg.Workers)
	if exts := os.Getenv(envPrefix + "EXTENSIONS"); exts != "" {
		cfg.Extensions = splitList(exts)
	}

	cfg.Paths.QueryDir = envString("QUERY_DIR", cfg.Paths.QueryDir)
	cfg.Paths.DatabaseDir = envString("DATABASE_DIR", cfg.Paths.DatabaseDir)
	cfg.Paths.Output = envString("OUTPUT", cfg.Paths.Output)
	cfg.Paths.GroundTruth = envString("GROUND_TRUTH", cfg.Paths.GroundTruth)
	cfg.Paths.CacheDir = envString("CACHE_DIR", cfg.Paths.CacheDir)

	cfg.Extractor.Features = envInt("FEATURES", cfg.Extractor.Features)
	cfg.Extractor.Channel = envString("CHANNEL", cfg.Extractor.Channel)
	cfg.Extractor.MaxDimension = envInt("MAX_DIMENSION", cfg.Extractor.MaxDimension)

	cfg.Matching.MaxAngle = envFloat("MAX_ANGLE", cfg.Matching.MaxAngle)
	cfg.Matching.Alpha = envFloat("ALPHA", cfg.Matching.Alpha)

	cfg.Evaluation.Radius = envFloat("RADIUS", cfg.Evaluation.Radius)

	cfg.Log.Level = envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envString("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.Source = envBool("LOG_SOURCE", cfg.Log.Source)

	return cfg
}

// splitList splits a comma separated list and normalizes extensions to start
// with a dot.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		out = append(out, part)
	}
	return out
}

// Warnings lists valid but questionable settings.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Matching.Alpha > 0 && c.Matching.Alpha <= 1 {
		warnings = append(warnings, fmt.Sprintf("alpha %g <= 1 no longer favours images with more matches", c.Matching.Alpha))
	}
	return warnings
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if len(c.Extensions) == 0 {
		errs = append(errs, errors.New("at least one image extension is required"))
	}
	if _, err := c.FeatureConfig(); err != nil {
		errs = append(errs, err)
	}
	if c.Matching.MaxAngle < 0 || c.Matching.MaxAngle > 180 {
		errs = append(errs, fmt.Errorf("max angle must be within 0..180, got %g", c.Matching.MaxAngle))
	}
	if c.Matching.Alpha <= 0 {
		errs = append(errs, fmt.Errorf("alpha must be positive, got %g", c.Matching.Alpha))
	}
	if c.Matching.MaxDistance < 0 || c.Matching.MaxDistance > features.DescriptorBits {
		errs = append(errs, fmt.Errorf("max distance must be within 0..%d, got %d", features.DescriptorBits, c.Matching.MaxDistance))
	}
	if c.Evaluation.Radius < 0 {
		errs = append(errs, fmt.Errorf("radius must not be negative, got %g", c.Evaluation.Radius))
	}
	return errors.Join(errs...)
}

// FeatureConfig converts the extractor section into a features.Config.
func (c *Config) FeatureConfig() (features.Config, error) {
	channel, err := imagery.ParseChannel(c.Extractor.Channel)
	if err != nil {
		return features.Config{}, err
	}
	fc := features.Config{
		MaxFeatures:   c.Extractor.Features,
		FastThreshold: c.Extractor.FastThreshold,
		HarrisK:       c.Extractor.HarrisK,
		PatchRadius:   c.Extractor.PatchRadius,
		BlurSigma:     c.Extractor.BlurSigma,
		Seed:          c.Extractor.Seed,
		Channel:       channel,
		MaxDimension:  c.Extractor.MaxDimension,
	}
	if err := fc.Validate(); err != nil {
		return features.Config{}, err
	}
	return fc, nil
}

// Pipeline builds the match, filter and score pipeline from the matching
// section.
func (c *Config) Pipeline() *matching.Pipeline {
	return &matching.Pipeline{
		Matcher: matching.NewMatcher(matching.Config{
			CrossCheck:  c.Matching.CrossCheck,
			MaxDistance: c.Matching.MaxDistance,
		}),
		Filter: matching.Filter{MaxAngleDiff: c.Matching.MaxAngle},
		Alpha:  c.Matching.Alpha,
	}
}
