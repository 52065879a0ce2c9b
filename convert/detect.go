package convert

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
)

// ErrNotPackage is returned when input is not a word-processing document
// package.
var ErrNotPackage = errors.New("input is not a document package")

type inputKind int

const (
	inputUnknown inputKind = iota
	// single document package
	inputPackage
	// plain zip archive which may hold document packages
	inputArchive
)

func (k inputKind) String() string {
	switch k {
	case inputPackage:
		return "package"
	case inputArchive:
		return "archive"
	default:
		return "unknown"
	}
}

// headerSize is what filetype needs to recognize any of its types.
const headerSize = 8192

// classify decides what to do with a file by its content. Packages written by
// some tools do not start with parts filetype looks for, so zip content with
// document extension is treated as a package.
func classify(name string, header []byte) inputKind {
	kind, err := filetype.Match(header)
	if err != nil || kind == filetype.Unknown {
		return inputUnknown
	}
	switch kind {
	case matchers.TypeDocx:
		return inputPackage
	case matchers.TypeZip:
		if strings.EqualFold(filepath.Ext(name), ".docx") {
			return inputPackage
		}
		return inputArchive
	}
	return inputUnknown
}

func detectFile(path string) (inputKind, error) {
	f, err := os.Open(path)
	if err != nil {
		return inputUnknown, err
	}
	defer f.Close()
	return detect(path, f)
}

// isPackageInArchive checks archive entry without extracting it.
func isPackageInArchive(f *zip.File) (bool, error) {
	if !strings.EqualFold(filepath.Ext(f.Name), ".docx") {
		return false, nil
	}
	r, err := f.Open()
	if err != nil {
		return false, err
	}
	defer r.Close()

	kind, err := detect(f.Name, r)
	if err != nil {
		return false, err
	}
	return kind == inputPackage, nil
}

func detect(name string, r io.Reader) (inputKind, error) {
	header := make([]byte, headerSize)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return inputUnknown, err
	}
	return classify(name, header[:n]), nil
}
