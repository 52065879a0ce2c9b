// Package dumputil provides output helpers for docxdump debug tool. It
// operates on *archive.Package and produces part listings, media archives,
// catalog and XML tree dumps.
package dumputil

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"github.com/h2non/filetype"

	"dxc/archive"
	"dxc/utils/debug"
)

// DumpParts writes list of package parts with their sizes and detected
// content types to <stem>-parts.txt.
func DumpParts(pkg *archive.Package, inPath, outDir string, overwrite bool) error {
	tw := debug.NewTreeWriter()
	names := pkg.Names()
	tw.Line(0, "Package %q: %d part(s)", filepath.Base(pkg.Path()), len(names))
	for _, name := range names {
		data, _ := pkg.Part(name)
		tw.Line(1, "%s size[%d] type[%s]", name, len(data), KindFromFiletype(data))
	}
	return WriteOutput(inPath, outDir, "-parts.txt", []byte(tw.String()), overwrite)
}

// DumpXML writes readable tree of XML part to <stem><suffix>.
func DumpXML(pkg *archive.Package, part, inPath, outDir, suffix string, overwrite bool) error {
	data, ok := pkg.Part(part)
	if !ok {
		return fmt.Errorf("%w: %s", archive.ErrMissingPart, part)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("parse %s: %w", part, err)
	}
	tw := debug.NewTreeWriter()
	tw.Element(0, doc.Root())
	return WriteOutput(inPath, outDir, suffix, []byte(tw.String()), overwrite)
}

// DumpMedia writes word/media/* parts into <stem>-media.zip. Entry
// extensions are taken from detected content.
func DumpMedia(pkg *archive.Package, inPath, outDir string, overwrite bool) (retErr error) {
	base := filepath.Base(inPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dir := filepath.Dir(inPath)
	if outDir != "" {
		dir = outDir
	}
	outPath := filepath.Join(dir, stem+"-media.zip")
	if _, err := os.Stat(outPath); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s (use -overwrite)", outPath)
		}
		if err := os.Remove(outPath); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer func() { retErr = errors.Join(retErr, f.Close()) }()

	zw := zip.NewWriter(f)
	defer func() { retErr = errors.Join(retErr, zw.Close()) }()

	usedNames := make(map[string]int)
	written := 0
	for _, name := range pkg.Names() {
		if !strings.HasPrefix(name, "word/media/") {
			continue
		}
		blob, _ := pkg.Part(name)
		if len(blob) == 0 {
			continue
		}

		stem := SanitizeFileComponent(strings.TrimSuffix(path.Base(name), path.Ext(name)))
		ext := ExtFromFiletype(blob)
		entryName := stem + ext
		if count := usedNames[entryName]; count > 0 {
			entryName = stem + fmt.Sprintf("_%d", count+1) + ext
		}
		usedNames[stem+ext]++

		w, err := zw.Create(entryName)
		if err != nil {
			return err
		}
		if _, err := w.Write(blob); err != nil {
			return err
		}
		written++
	}

	_, _ = fmt.Fprintf(os.Stderr, "media: wrote %d file(s) into %s\n", written, outPath)
	return nil
}

// WriteOutput writes data to <stem><suffix> in either the input file's directory or outDir.
func WriteOutput(inPath, outDir, suffix string, data []byte, overwrite bool) error {
	base := filepath.Base(inPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dir := filepath.Dir(inPath)
	if outDir != "" {
		dir = outDir
	}
	outPath := filepath.Join(dir, stem+suffix)

	if _, err := os.Stat(outPath); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s (use -overwrite)", outPath)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", outPath)
	return nil
}

// KindFromFiletype names detected content type, "xml" for markup parts.
func KindFromFiletype(b []byte) string {
	kind, err := filetype.Match(b)
	if err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	if strings.HasPrefix(strings.TrimSpace(strings.TrimPrefix(string(b[:min(len(b), 64)]), "\ufeff")), "<") {
		return "xml"
	}
	return "unknown"
}

// ExtFromFiletype detects the file extension from magic bytes.
func ExtFromFiletype(b []byte) string {
	kind, err := filetype.Match(b)
	if err == nil && kind != filetype.Unknown && kind.Extension != "" {
		return "." + kind.Extension
	}
	return ".bin"
}

// SanitizeFileComponent cleans a string for use in a filename.
func SanitizeFileComponent(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
