// Package gallery turns a folder of images into feature records, optionally
// through an on-disk cache.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/kozaktomas/placematch/internal/features"
	"github.com/kozaktomas/placematch/internal/imagery"
)

// IDLength is the number of trailing stem characters that identify an image.
const IDLength = 6

// ErrEmptyGallery is returned when a folder holds no usable image.
var ErrEmptyGallery = errors.New("no usable images")

// DefaultExtensions lists the file extensions loaded when none are configured.
func DefaultExtensions() []string {
	return []string{".jpg", ".jpeg", ".png"}
}

// ImageID returns the last IDLength characters of the file stem after NFC
// normalization. Shorter stems are returned whole.
func ImageID(name string) string {
	base := filepath.Base(name)
	stem := norm.NFC.String(strings.TrimSuffix(base, filepath.Ext(base)))
	runes := []rune(stem)
	if len(runes) <= IDLength {
		return stem
	}
	return string(runes[len(runes)-IDLength:])
}

// Scan lists the regular files in dir whose extension is in exts
// (case-insensitive), sorted by name. Subdirectories are not visited.
func Scan(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	if len(exts) == 0 {
		exts = DefaultExtensions()
	}

	var paths []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if hasExtension(entry.Name(), exts) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

func hasExtension(name string, exts []string) bool {
	ext := filepath.Ext(name)
	for _, want := range exts {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

// Observer is notified as images are processed.
type Observer interface {
	ImageExtracted()
	ImageSkipped()
	ImagesCached(n int)
}

// Options configures Load.
type Options struct {
	// Extensions accepted by Scan (nil uses DefaultExtensions).
	Extensions []string

	// Workers bounds concurrent decodes (<= 0 uses GOMAXPROCS).
	Workers int

	// CacheDir enables the feature cache when non-empty.
	CacheDir string

	// Logger receives per-image warnings (nil uses slog.Default()).
	Logger *slog.Logger

	// OnProgress is called after each image with the number processed so far.
	OnProgress func(done, total int)

	// Observer, when set, counts extracted and skipped images.
	Observer Observer
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Load scans dir and extracts every image. Images that cannot be opened or
// decoded are skipped with a warning. The records are ordered by file name. When no image
// could be extracted, ErrEmptyGallery is returned.
func Load(ctx context.Context, dir string, ext *features.Extractor, opts Options) ([]*features.Record, error) {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions()
	}
	paths, err := Scan(dir, opts.Extensions)
	if err != nil {
		return nil, err
	}

	var cache *Cache
	if opts.CacheDir != "" {
		cache = NewCache(opts.CacheDir, dir)
		stamps, err := Stamp(paths)
		if err != nil {
			return nil, err
		}
		if records, ok := cache.Lookup(ext.Config().Fingerprint(), stamps, opts.logger()); ok {
			opts.logger().Info("loaded features from cache", "dir", dir, "images", len(records), "cache", cache.Path())
			if opts.Observer != nil {
				opts.Observer.ImagesCached(len(records))
			}
			return nonEmpty(dir, opts.Extensions, records)
		}
		records, err := extractAll(ctx, paths, ext, opts)
		if err != nil {
			return nil, err
		}
		if err := cache.Save(records, Metadata{Fingerprint: ext.Config().Fingerprint(), Files: stamps}); err != nil {
			opts.logger().Warn("failed to write feature cache", "cache", cache.Path(), "error", err)
		}
		return nonEmpty(dir, opts.Extensions, records)
	}

	records, err := extractAll(ctx, paths, ext, opts)
	if err != nil {
		return nil, err
	}
	return nonEmpty(dir, opts.Extensions, records)
}

func nonEmpty(dir string, exts []string, records []*features.Record) ([]*features.Record, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w in %s (extensions %s)", ErrEmptyGallery, dir, strings.Join(exts, ", "))
	}
	return records, nil
}

// extractAll decodes and extracts paths in parallel. The result keeps the
// order of paths with skipped images removed.
func extractAll(ctx context.Context, paths []string, ext *features.Extractor, opts Options) ([]*features.Record, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	log := opts.logger()

	records := make([]*features.Record, len(paths))
	var done atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := extractOne(path, ext)
			switch {
			case errors.Is(err, imagery.ErrDecode), errors.Is(err, imagery.ErrUnreadable):
				log.Warn("skipping unreadable image", "path", path, "error", err)
				if opts.Observer != nil {
					opts.Observer.ImageSkipped()
				}
			case err != nil:
				return err
			default:
				records[i] = rec
				if opts.Observer != nil {
					opts.Observer.ImageExtracted()
				}
			}
			if opts.OnProgress != nil {
				opts.OnProgress(int(done.Add(1)), len(paths))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return slices.DeleteFunc(records, func(r *features.Record) bool { return r == nil }), nil
}

func extractOne(path string, ext *features.Extractor) (*features.Record, error) {
	return ext.ExtractFile(ImageID(path), path)
}
