package gallery

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/placematch/internal/constants"
	"github.com/kozaktomas/placematch/internal/features"
)

const cacheVersion = 1

// FileStamp identifies one source image by name, size and modification time.
type FileStamp struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Metadata stores what is needed to decide whether a cache is stale.
type Metadata struct {
	Version     int         `json:"version"`
	Fingerprint string      `json:"fingerprint"`
	Files       []FileStamp `json:"files"`
	Count       int         `json:"count"`
	BuildTime   time.Time   `json:"build_time"`
	RunID       string      `json:"run_id"`
}

// Stamp collects FileStamps for paths, in the same order.
func Stamp(paths []string) ([]FileStamp, error) {
	stamps := make([]FileStamp, len(paths))
	for i, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		stamps[i] = FileStamp{Name: filepath.Base(p), Size: info.Size(), ModTime: info.ModTime().UTC()}
	}
	return stamps, nil
}

// Cache persists the records of one image folder as a gob file with a JSON
// .meta sidecar.
type Cache struct {
	path string
}

// NewCache returns the cache for sourceDir stored under cacheDir.
func NewCache(cacheDir, sourceDir string) *Cache {
	abs, err := filepath.Abs(sourceDir)
	if err != nil {
		abs = sourceDir
	}
	sum := sha256.Sum256([]byte(abs))
	name := fmt.Sprintf("%s-%s.gob", filepath.Base(abs), hex.EncodeToString(sum[:4]))
	return &Cache{path: filepath.Join(cacheDir, name)}
}

// Path returns the gob file location.
func (c *Cache) Path() string { return c.path }

// Save writes records and metadata. On failure no partial files are left.
func (c *Cache) Save(records []*features.Record, meta Metadata) error {
	if err := os.MkdirAll(filepath.Dir(c.path), constants.DirMode); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	success := false
	defer func() {
		if !success {
			_ = os.Remove(c.path)
			_ = os.Remove(c.path + ".meta")
		}
	}()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(records); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	if err := os.WriteFile(c.path, buf.Bytes(), constants.FileMode); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	meta.Version = cacheVersion
	meta.Count = len(records)
	meta.BuildTime = time.Now().UTC()
	if meta.RunID == "" {
		meta.RunID = uuid.NewString()
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(c.path+".meta", data, constants.FileMode); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	success = true
	return nil
}

// LoadMetadata reads the .meta sidecar.
func (c *Cache) LoadMetadata() (Metadata, error) {
	var meta Metadata
	data, err := os.ReadFile(c.path + ".meta")
	if err != nil {
		return meta, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return meta, nil
}

// LoadRecords decodes the gob file without validating it.
func (c *Cache) LoadRecords() ([]*features.Record, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	var records []*features.Record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode cache file: %w", err)
	}
	return records, nil
}

// Lookup returns the cached records when the cache was built with the same
// extractor fingerprint from exactly the files described by stamps.
func (c *Cache) Lookup(fingerprint string, stamps []FileStamp, log *slog.Logger) ([]*features.Record, bool) {
	meta, err := c.LoadMetadata()
	if err != nil {
		log.Debug("feature cache unavailable", "cache", c.path, "error", err)
		return nil, false
	}
	switch {
	case meta.Version != cacheVersion:
		log.Info("feature cache version changed, rebuilding", "cache", c.path, "version", meta.Version)
		return nil, false
	case meta.Fingerprint != fingerprint:
		log.Info("extractor settings changed, rebuilding feature cache", "cache", c.path)
		return nil, false
	case !slices.EqualFunc(meta.Files, stamps, sameStamp):
		log.Info("images changed, rebuilding feature cache", "cache", c.path)
		return nil, false
	}

	records, err := c.LoadRecords()
	if err != nil {
		log.Warn("feature cache unreadable, rebuilding", "cache", c.path, "error", err)
		return nil, false
	}
	if len(records) != meta.Count {
		log.Warn("feature cache truncated, rebuilding", "cache", c.path, "expected", meta.Count, "got", len(records))
		return nil, false
	}
	return records, true
}

func sameStamp(a, b FileStamp) bool {
	return a.Name == b.Name && a.Size == b.Size && a.ModTime.Equal(b.ModTime)
}
