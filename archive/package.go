package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"

	fixzip "github.com/hidez8891/zip"
)

// ErrMissingPart is returned when required part is absent from the package.
var ErrMissingPart = errors.New("package part is missing")

// MaxPartSize limits uncompressed size of a single package part.
const MaxPartSize = 256 << 20

type part struct {
	name     string
	data     []byte
	modified bool
}

// Package is an in-memory copy of a zip based document package. It is read
// in full on Open, original file is never written to.
type Package struct {
	path  string
	parts []*part
	index map[string]int
}

// Open reads all entries of the package at path.
func Open(path string) (*Package, error) {
	p := &Package{path: path, index: make(map[string]int)}

	err := Walk(path, func(_ string, f *zip.File) error {
		r, err := f.Open()
		if err != nil {
			return fmt.Errorf("unable to open %q: %w", f.Name, err)
		}
		defer r.Close()

		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("unable to read %q: %w", f.Name, err)
		}
		p.index[f.Name] = len(p.parts)
		p.parts = append(p.parts, &part{name: f.Name, data: data})
		return nil
	}, WithMaxSize(MaxPartSize))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Path returns location package was read from.
func (p *Package) Path() string {
	return p.path
}

// Names returns part names in archive order.
func (p *Package) Names() []string {
	names := make([]string, 0, len(p.parts))
	for _, pt := range p.parts {
		names = append(names, pt.name)
	}
	return names
}

// Require checks that all named parts are present.
func (p *Package) Require(names ...string) error {
	for _, name := range names {
		if _, ok := p.index[name]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingPart, name)
		}
	}
	return nil
}

// Part returns content of named part.
func (p *Package) Part(name string) ([]byte, bool) {
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return p.parts[i].data, true
}

// SetPart replaces content of named part, adding it when it does not exist.
func (p *Package) SetPart(name string, data []byte) {
	if i, ok := p.index[name]; ok {
		p.parts[i].data, p.parts[i].modified = data, true
		return
	}
	p.index[name] = len(p.parts)
	p.parts = append(p.parts, &part{name: name, data: data, modified: true})
}

// WriteTo writes package to a new file at path. Unmodified entries are copied
// from the original archive as is (without data descriptors), replaced parts
// are compressed anew. On error partially written file is removed.
func (p *Package) WriteTo(path string) (err error) {
	if path == p.path {
		return fmt.Errorf("refusing to overwrite original package (%s)", path)
	}

	src, err := fixzip.OpenReader(p.path)
	if err != nil {
		return fmt.Errorf("unable to read archive file (%s): %w", p.path, err)
	}
	defer src.Close()

	originals := make(map[string]*fixzip.File, len(src.File))
	for _, f := range src.File {
		originals[f.Name] = f
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", path, err)
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(path)
		}
	}()

	w := fixzip.NewWriter(out)
	for _, pt := range p.parts {
		orig, exists := originals[pt.name]
		if exists && !pt.modified {
			// unset data descriptor flag.
			orig.Flags &= ^fixzip.FlagDataDescriptor
			if err = w.CopyFile(orig); err != nil {
				return fmt.Errorf("unable to copy %q: %w", pt.name, err)
			}
			continue
		}
		var fw io.Writer
		fw, err = w.CreateHeader(&fixzip.FileHeader{
			Name:   pt.name,
			Method: fixzip.Deflate,
		})
		if err != nil {
			return fmt.Errorf("unable to add %q: %w", pt.name, err)
		}
		if _, err = fw.Write(pt.data); err != nil {
			return fmt.Errorf("unable to write %q: %w", pt.name, err)
		}
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("unable to close output archive: %w", err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("unable to finalize output file: %w", err)
	}
	return nil
}
