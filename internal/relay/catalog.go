package relay

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Catalog lists the segments currently eligible for consideration.
type Catalog interface {
	// List returns settled segments sorted by ModifiedAt ascending, with Age
	// computed against now.
	List(now time.Time) ([]Segment, error)
}

// FileStore is the filesystem side the pipeline and loop need beyond listing.
type FileStore interface {
	// Remove deletes path. A path that is already gone is not an error.
	Remove(path string) error
	// Exists reports whether path is still present.
	Exists(path string) bool
}

// FSCatalog walks a directory tree for files whose base name matches Pattern.
type FSCatalog struct {
	Root    string
	Pattern string
	// Settle hides files younger than this; they may still be receiving writes.
	Settle time.Duration

	log *slog.Logger
}

// NewFSCatalog returns an FSCatalog rooted at root.
func NewFSCatalog(root, pattern string, settle time.Duration, log *slog.Logger) *FSCatalog {
	return &FSCatalog{Root: root, Pattern: pattern, Settle: settle, log: log}
}

// List implements Catalog.List. Entries that vanish or cannot be stat'ed
// during the walk are skipped; only an unreadable root is an error.
func (c *FSCatalog) List(now time.Time) ([]Segment, error) {
	var segs []Segment
	err := filepath.WalkDir(c.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == c.Root {
				return err
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if ok, _ := filepath.Match(c.Pattern, d.Name()); !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}

		seg := Segment{Path: path, ModifiedAt: info.ModTime(), Age: now.Sub(info.ModTime())}
		if seg.Age < c.Settle {
			if c.log != nil {
				c.log.Debug("segment settling",
					slog.String("path", path),
					slog.Duration("age", seg.Age),
					slog.Duration("settle", c.Settle))
			}
			return nil
		}
		segs = append(segs, seg)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.Root, err)
	}

	sortSegments(segs)
	return segs, nil
}

// Remove implements FileStore.Remove.
func (c *FSCatalog) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Exists implements FileStore.Exists.
func (c *FSCatalog) Exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
