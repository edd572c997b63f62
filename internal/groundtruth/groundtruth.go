// Package groundtruth loads the evaluation sheet that maps image ids to
// camera positions.
package groundtruth

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/placematch/internal/constants"
)

var (
	// ErrLookupMiss is returned when the sheet has no entry for a key.
	ErrLookupMiss = errors.New("no ground-truth entry")

	// ErrInvalidPosition is returned for coordinates that are not 2D or 3D.
	ErrInvalidPosition = errors.New("position must have 2 or 3 coordinates")
)

// Role tells whether an id belongs to a query or a database image.
type Role string

const (
	RoleQuery    Role = constants.QuerySet
	RoleDatabase Role = constants.DatabaseSet
)

// Key returns the sheet key for id in this role, e.g. "000123_query".
func (r Role) Key(id string) string { return id + "_" + string(r) }

// Position is a 2D or 3D coordinate in metres.
type Position []float64

// Distance returns the Euclidean distance between two positions of the same
// dimension.
func Distance(a, b Position) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("cannot compare %dD and %dD positions", len(a), len(b))
	}
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Sheet maps keys of the form "{id}_{role}" to positions.
type Sheet struct {
	positions map[string]Position
}

// New builds a sheet from an in-memory map, validating every position.
func New(positions map[string]Position) (*Sheet, error) {
	for key, p := range positions {
		if len(p) != 2 && len(p) != 3 {
			return nil, fmt.Errorf("%s: %w, got %d", key, ErrInvalidPosition, len(p))
		}
	}
	return &Sheet{positions: positions}, nil
}

// Parse decodes a JSON or YAML sheet. YAML is chosen when yamlFormat is true.
func Parse(data []byte, yamlFormat bool) (*Sheet, error) {
	positions := map[string]Position{}
	if yamlFormat {
		if err := yaml.Unmarshal(data, &positions); err != nil {
			return nil, fmt.Errorf("failed to parse YAML sheet: %w", err)
		}
	} else if err := json.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("failed to parse JSON sheet: %w", err)
	}
	return New(positions)
}

// Load reads a sheet file; .yaml and .yml files are parsed as YAML, anything
// else as JSON.
func Load(path string) (*Sheet, error) {
	data, err := os.ReadFile(path) //nolint:gosec // sheet path is user supplied
	if err != nil {
		return nil, fmt.Errorf("failed to read ground truth: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	sheet, err := Parse(data, ext == ".yaml" || ext == ".yml")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sheet, nil
}

// Len returns the number of entries.
func (s *Sheet) Len() int { return len(s.positions) }

// Lookup returns the position recorded for id in role.
func (s *Sheet) Lookup(id string, role Role) (Position, error) {
	key := role.Key(id)
	p, ok := s.positions[key]
	if !ok {
		return nil, fmt.Errorf("%w for %q", ErrLookupMiss, key)
	}
	return p, nil
}
