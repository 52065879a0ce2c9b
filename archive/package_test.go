package archive

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPackage(t *testing.T, entries map[string]string, order []string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create package: %v", err)
	}
	w := zip.NewWriter(f)
	for _, name := range order {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to create entry %s: %v", name, err)
		}
		if _, err := fw.Write([]byte(entries[name])); err != nil {
			t.Fatalf("Failed to write entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Failed to close package: %v", err)
	}
	return path
}

func readZipEntries(t *testing.T, path string) ([]string, map[string]string) {
	t.Helper()

	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer r.Close()

	var names []string
	contents := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Failed to open entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("Failed to read entry %s: %v", f.Name, err)
		}
		names = append(names, f.Name)
		contents[f.Name] = string(data)
	}
	return names, contents
}

var testEntries = map[string]string{
	"[Content_Types].xml": "<Types/>",
	"word/document.xml":   "<w:document/>",
	"word/styles.xml":     "<w:styles/>",
	"word/media/img.png":  "\x89PNG",
}

var testOrder = []string{"[Content_Types].xml", "word/document.xml", "word/styles.xml", "word/media/img.png"}

func TestPackage_Open(t *testing.T) {
	path := writeTestPackage(t, testEntries, testOrder)

	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if p.Path() != path {
		t.Errorf("Path() = %q, want %q", p.Path(), path)
	}

	names := p.Names()
	if len(names) != len(testOrder) {
		t.Fatalf("Names() returned %d entries, want %d", len(names), len(testOrder))
	}
	for i, name := range testOrder {
		if names[i] != name {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], name)
		}
	}

	data, ok := p.Part("word/styles.xml")
	if !ok {
		t.Fatal("Part(word/styles.xml) not found")
	}
	if string(data) != "<w:styles/>" {
		t.Errorf("Part(word/styles.xml) = %q", data)
	}

	if _, ok := p.Part("word/numbering.xml"); ok {
		t.Error("Part(word/numbering.xml) should not be found")
	}
}

func TestPackage_OpenInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.docx")
	if err := os.WriteFile(path, []byte("not a zip file"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Error("Open() expected error for invalid archive")
	}
}

func TestPackage_Require(t *testing.T) {
	path := writeTestPackage(t, testEntries, testOrder)
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := p.Require("word/document.xml", "word/styles.xml"); err != nil {
		t.Errorf("Require() error = %v", err)
	}

	err = p.Require("word/document.xml", "word/footnotes.xml")
	if !errors.Is(err, ErrMissingPart) {
		t.Errorf("Require() error = %v, want %v", err, ErrMissingPart)
	}
}

func TestPackage_WriteTo(t *testing.T) {
	path := writeTestPackage(t, testEntries, testOrder)
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	p.SetPart("word/styles.xml", []byte("<w:styles>changed</w:styles>"))
	p.SetPart("word/extra.xml", []byte("<extra/>"))

	out := filepath.Join(t.TempDir(), "out.docx")
	if err := p.WriteTo(out); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}

	names, contents := readZipEntries(t, out)
	wantOrder := append(append([]string{}, testOrder...), "word/extra.xml")
	if len(names) != len(wantOrder) {
		t.Fatalf("output has %d entries, want %d", len(names), len(wantOrder))
	}
	for i, name := range wantOrder {
		if names[i] != name {
			t.Errorf("entry[%d] = %q, want %q", i, names[i], name)
		}
	}

	if contents["word/styles.xml"] != "<w:styles>changed</w:styles>" {
		t.Errorf("styles part = %q", contents["word/styles.xml"])
	}
	if contents["word/extra.xml"] != "<extra/>" {
		t.Errorf("extra part = %q", contents["word/extra.xml"])
	}
	if contents["word/document.xml"] != testEntries["word/document.xml"] {
		t.Errorf("document part = %q", contents["word/document.xml"])
	}
	if contents["word/media/img.png"] != testEntries["word/media/img.png"] {
		t.Errorf("media part = %q", contents["word/media/img.png"])
	}

	// source package must stay untouched
	_, original := readZipEntries(t, path)
	if original["word/styles.xml"] != "<w:styles/>" {
		t.Errorf("original styles part modified: %q", original["word/styles.xml"])
	}
}

func TestPackage_WriteToOriginal(t *testing.T) {
	path := writeTestPackage(t, testEntries, testOrder)
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := p.WriteTo(path); err == nil {
		t.Error("WriteTo() expected error when writing over original package")
	}
}

func TestPackage_WriteToBadDestination(t *testing.T) {
	path := writeTestPackage(t, testEntries, testOrder)
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	out := filepath.Join(t.TempDir(), "missing", "out.docx")
	if err := p.WriteTo(out); err == nil {
		t.Error("WriteTo() expected error for non-existent directory")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output file should not exist, stat error = %v", err)
	}
}
