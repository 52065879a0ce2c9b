// Package archive reads and writes zip based document packages and walks zip
// archives with documents inside.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/maruel/natural"
)

var (
	ErrUnsafePath    = errors.New("unsafe path in archive")
	ErrEntryTooLarge = errors.New("archive entry is too large")
)

// WalkFunc is the type of the function called for each file in archive
// visited by Walk. The archive argument contains path to archive passed to
// Walk, the file argument is the zip.File structure for selected entry. If an
// error is returned, processing stops.
type WalkFunc func(archive string, file *zip.File) error

type walkConfig struct {
	prefix  string
	exts    []string
	maxSize uint64
	sorted  bool
}

type WalkOption func(*walkConfig)

// WithPrefix selects entries which names start with prefix (case sensitive).
func WithPrefix(prefix string) WalkOption {
	return func(c *walkConfig) {
		c.prefix = prefix
	}
}

// WithExtensions selects entries with one of the extensions, ignoring case.
func WithExtensions(exts ...string) WalkOption {
	return func(c *walkConfig) {
		c.exts = append(c.exts, exts...)
	}
}

// WithMaxSize stops walk when selected entry claims uncompressed size above
// limit.
func WithMaxSize(limit uint64) WalkOption {
	return func(c *walkConfig) {
		c.maxSize = limit
	}
}

// Sorted visits entries in natural name order instead of archive order.
func Sorted() WalkOption {
	return func(c *walkConfig) {
		c.sorted = true
	}
}

func (c *walkConfig) selected(f *zip.File) bool {
	if f.FileInfo().IsDir() || !strings.HasPrefix(f.Name, c.prefix) {
		return false
	}
	if len(c.exts) == 0 {
		return true
	}
	ext := path.Ext(f.Name)
	return slices.ContainsFunc(c.exts, func(e string) bool { return strings.EqualFold(e, ext) })
}

// Walk calls walkFn for every file in the archive selected by options.
// Archive with entries which could escape extraction directory (absolute
// paths or ".." components) is rejected as a whole.
func Walk(archive string, walkFn WalkFunc, opts ...WalkOption) error {
	cfg := &walkConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	// insecure names are reported below with entry name
	r, err := zip.OpenReader(archive)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return err
	}
	defer r.Close()

	files := make([]*zip.File, 0, len(r.File))
	for _, f := range r.File {
		if !isSafePath(f.Name) {
			return fmt.Errorf("%w: %q", ErrUnsafePath, f.Name)
		}
		if !cfg.selected(f) {
			continue
		}
		if cfg.maxSize > 0 && f.UncompressedSize64 > cfg.maxSize {
			return fmt.Errorf("%w: %q (%d bytes)", ErrEntryTooLarge, f.Name, f.UncompressedSize64)
		}
		files = append(files, f)
	}
	if cfg.sorted {
		slices.SortStableFunc(files, func(a, b *zip.File) int {
			switch {
			case natural.Less(a.Name, b.Name):
				return -1
			case natural.Less(b.Name, a.Name):
				return 1
			}
			return 0
		})
	}

	for _, f := range files {
		if err := walkFn(archive, f); err != nil {
			return err
		}
	}
	return nil
}

func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return false
	}
	return !slices.Contains(strings.Split(strings.ReplaceAll(name, `\`, "/"), "/"), "..")
}
