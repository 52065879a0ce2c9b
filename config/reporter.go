package config

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/multierr"

	"dxc/misc"
)

type ReporterConfig struct {
	Destination string `yaml:"destination" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
}

// Prepare creates initialized empty reporter.
func (conf *ReporterConfig) Prepare() (*Report, error) {

	r := &Report{entries: make(map[string]entry)}

	if f, err := os.Create(conf.Destination); err == nil {
		r.file = f
	} else if f, err = os.CreateTemp("", misc.GetAppName()+"-report.*.zip"); err == nil {
		r.file = f
	} else {
		return nil, fmt.Errorf("unable to create report: %w", err)
	}
	return r, nil
}

type entry struct {
	original string
	actual   string
	stamp    time.Time
	data     []byte
}

// Report accumulates files and data necessary to prepare debug report: logs,
// configuration, intermediate packages, style catalogs and maps.
// NOTE: not to be used concurrently!
type Report struct {
	entries map[string]entry
	// temporary copies made by StoreCopy, removed on Close
	copies []string
	file   *os.File
}

// Close writes report archive and removes temporary copies.
func (r *Report) Close() (err error) {
	if r == nil {
		// no report has been requested
		return nil
	}
	defer func() {
		for _, dir := range r.copies {
			err = multierr.Append(err, os.RemoveAll(dir))
		}
		r.copies = nil
	}()
	if r.file == nil {
		return nil
	}
	defer r.file.Close()
	return r.finalize()
}

// Name returns name of underlying file.
func (r *Report) Name() string {
	if r == nil || r.file == nil {
		return ""
	}
	if n, err := filepath.Abs(r.file.Name()); err == nil {
		return n
	}
	return r.file.Name()
}

// Store remembers path to the file to be put in the final archive later. File
// is read when report is closed.
func (r *Report) Store(name, path string) {
	if r == nil {
		return
	}

	if old, exists := r.entries[name]; exists && old.original != path {
		panic(fmt.Sprintf("Attempt to overwrite file in the report for [%s]: was %s, now %s", name, old.original, path))
	}

	e := entry{
		original: path,
		actual:   path,
	}
	if p, err := filepath.Abs(path); err == nil {
		e.actual = p
	}
	r.entries[name] = e
}

// StoreData saves data to be put in the final archive under requested name.
// Repeated names are versioned with timestamps.
func (r *Report) StoreData(name string, data []byte) {
	if r == nil {
		return
	}

	e := entry{
		data:  data,
		stamp: time.Now(),
	}
	r.entries[r.versioned(name, e.stamp)] = e
}

// StoreCopy makes a copy (at the time of a call) of the file to be put in the
// final archive later. Names are versioned with timestamps to avoid
// collisions, so it is safe to put the same file into report multiple times.
func (r *Report) StoreCopy(name, path string) error {
	if r == nil {
		return nil
	}

	e := entry{
		stamp:    time.Now(),
		original: path,
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("unable to store %s in report: not a regular file", path)
	}

	dir, err := os.MkdirTemp("", misc.GetAppName()+"-r-")
	if err != nil {
		return err
	}
	r.copies = append(r.copies, dir)

	if e.actual, err = copyFile(dir, path, info.ModTime()); err != nil {
		return err
	}
	r.entries[r.versioned(name, e.stamp)] = e
	return nil
}

func (r *Report) versioned(name string, stamp time.Time) string {
	if _, exists := r.entries[name]; exists {
		return fmt.Sprintf("%s-%d", name, stamp.UnixNano())
	}
	return name
}

func copyFile(dir, src string, modTime time.Time) (string, error) {
	dst := filepath.Join(dir, filepath.Base(src))

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	if err := os.Chtimes(dst, modTime, modTime); err != nil {
		return "", err
	}
	return dst, nil
}

// finalize creates the final archive with all previously stored items.
// Files which disappeared by now are silently ignored.
func (r *Report) finalize() error {

	arc := zip.NewWriter(r.file)

	names, manifest := prepareManifest(r.entries)
	if err := saveFile(arc, "MANIFEST", time.Now(), manifest); err != nil {
		return err
	}

	for _, name := range names {
		e := r.entries[name]
		if e.data != nil {
			if err := saveFile(arc, name, e.stamp, bytes.NewReader(e.data)); err != nil {
				return err
			}
			continue
		}

		info, err := os.Stat(e.actual)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		f, err := os.Open(e.actual)
		if err != nil {
			return err
		}
		err = saveFile(arc, name, info.ModTime(), f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return arc.Close()
}

func prepareManifest(entries map[string]entry) ([]string, *bytes.Buffer) {

	now := time.Now()

	buf := new(bytes.Buffer)
	if len(entries) == 0 {
		return nil, buf
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		e := entries[k]
		if e.stamp.IsZero() {
			e.stamp = now
		}
		fmt.Fprintf(buf, "%s\t%s\t%s : %s\n", e.stamp.UTC().Format(time.UnixDate), k, e.original, e.actual)
	}
	return keys, buf
}

func saveFile(dst *zip.Writer, name string, t time.Time, src io.Reader) error {
	w, err := dst.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: t})
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return nil
}
