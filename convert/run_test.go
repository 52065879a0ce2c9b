package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cli "github.com/urfave/cli/v3"
)

func TestProcess_NonExistentPath(t *testing.T) {
	ctx, env := setupTestEnv(t)
	if err := process(ctx, "/nonexistent/path.docx", t.TempDir(), env.Log); err == nil {
		t.Error("Expected error for nonexistent path")
	}
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, env := setupTestEnv(t)
	ctx, cancel := context.WithCancel(ctx)
	cancel()

	if err := process(ctx, t.TempDir(), t.TempDir(), env.Log); !errors.Is(err, context.Canceled) {
		t.Errorf("process() error = %v, want context.Canceled", err)
	}
}

func TestProcess_SingleFile(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := writeTestDocx(t, filepath.Join(t.TempDir(), "My Report.docx"), sampleBody)
	dst := t.TempDir()

	if err := process(ctx, src, dst, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	out := filepath.Join(dst, "My Report.html")
	if !strings.Contains(readFile(t, out), `data-source-id="00000001"`) {
		t.Errorf("unexpected output:\n%s", readFile(t, out))
	}
	if env.Converted != 1 || env.Failed != 0 {
		t.Errorf("Converted = %d, Failed = %d", env.Converted, env.Failed)
	}
}

func TestProcess_NotDocument(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(src, []byte("text"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := process(ctx, src, t.TempDir(), env.Log); !errors.Is(err, ErrNotPackage) {
		t.Errorf("process() error = %v, want ErrNotPackage", err)
	}
}

func TestProcess_Directory(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := t.TempDir()
	writeTestDocx(t, filepath.Join(src, "doc10.docx"), sampleBody)
	writeTestDocx(t, filepath.Join(src, "doc2.docx"), sampleBody)
	writeTestDocx(t, filepath.Join(src, "sub", "nested.docx"), sampleBody)
	if err := os.WriteFile(filepath.Join(src, "readme.txt"), []byte("skip me"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	dst := t.TempDir()

	if err := process(ctx, src, dst, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	for _, name := range []string{"doc10.html", "doc2.html", filepath.Join("sub", "nested.html")} {
		if _, err := os.Stat(filepath.Join(dst, name)); err != nil {
			t.Errorf("expected output %s: %v", name, err)
		}
	}
	if env.Converted != 3 {
		t.Errorf("Converted = %d, want 3", env.Converted)
	}
}

func TestProcess_DirectoryNoDirs(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.NoDirs = true
	src := t.TempDir()
	writeTestDocx(t, filepath.Join(src, "sub", "nested.docx"), sampleBody)
	dst := t.TempDir()

	if err := process(ctx, src, dst, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "nested.html")); err != nil {
		t.Errorf("expected flat output: %v", err)
	}
}

func TestProcess_Archive(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := writeZip(t, filepath.Join(t.TempDir(), "docs.zip"),
		zipEntry{"first.docx", docxBytes(t, sampleBody)},
		zipEntry{"inner/second.docx", docxBytes(t, sampleBody)},
		zipEntry{"notes.txt", []byte("skip me")},
	)
	dst := t.TempDir()

	if err := process(ctx, src, dst, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	for _, name := range []string{"first.html", filepath.Join("inner", "second.html")} {
		if _, err := os.Stat(filepath.Join(dst, name)); err != nil {
			t.Errorf("expected output %s: %v", name, err)
		}
	}
	if env.Converted != 2 {
		t.Errorf("Converted = %d, want 2", env.Converted)
	}
}

func TestProcessFile_Overwrite(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := writeTestDocx(t, filepath.Join(t.TempDir(), "doc.docx"), sampleBody)
	dst := t.TempDir()
	out := filepath.Join(dst, "doc.html")
	if err := os.WriteFile(out, []byte("existing"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := processFile(ctx, src, "doc.docx", dst, env.Log); err == nil {
		t.Error("processFile() should refuse to overwrite")
	}
	if readFile(t, out) != "existing" {
		t.Error("existing output was modified")
	}
	if env.Failed != 1 {
		t.Errorf("Failed = %d, want 1", env.Failed)
	}

	env.Overwrite = true
	if err := processFile(ctx, src, "doc.docx", dst, env.Log); err != nil {
		t.Fatalf("processFile() error = %v", err)
	}
	if readFile(t, out) == "existing" {
		t.Error("output was not overwritten")
	}
}

func TestProcessFile_Artifacts(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Cfg.Document.KeepDocx = true
	env.Cfg.Document.SaveStyleMap = true
	src := writeTestDocx(t, filepath.Join(t.TempDir(), "doc.docx"), sampleBody)
	dst := t.TempDir()

	if err := processFile(ctx, src, "doc.docx", dst, env.Log); err != nil {
		t.Fatalf("processFile() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "doc.docx")); err != nil {
		t.Errorf("promoted package was not kept: %v", err)
	}
	if sm := readFile(t, filepath.Join(dst, "doc.stylemap.txt")); !strings.Contains(sm, "p[style-name='BodyHEDmod1'] => p.BodyHEDmod1:fresh\n") {
		t.Errorf("unexpected style map:\n%s", sm)
	}
}

func TestProcessFile_KeepDocxOverSource(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Cfg.Document.KeepDocx = true
	env.NoDirs = true
	dir := t.TempDir()
	src := writeTestDocx(t, filepath.Join(dir, "doc.docx"), sampleBody)

	if err := processFile(ctx, src, "doc.docx", dir, env.Log); err == nil {
		t.Error("processFile() should refuse to replace source package")
	}
}

func newConvertCommand() *cli.Command {
	return &cli.Command{
		Name:   "convert",
		Action: Run,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-map"},
			&cli.BoolFlag{Name: "verbose"},
			&cli.BoolFlag{Name: "sanitize"},
			&cli.BoolFlag{Name: "keep-docx"},
			&cli.BoolFlag{Name: "stylemap"},
			&cli.StringFlag{Name: "css"},
			&cli.BoolFlag{Name: "nodirs"},
			&cli.BoolFlag{Name: "overwrite"},
		},
	}
}

func TestRun(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := writeTestDocx(t, filepath.Join(t.TempDir(), "doc.docx"), sampleBody)
	dst := t.TempDir()

	if err := newConvertCommand().Run(ctx, []string{"convert", "--verbose", "--stylemap", src, dst}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !env.Cfg.Document.PreserveFormatting || !env.Cfg.Document.SaveStyleMap {
		t.Errorf("flags were not applied: %+v", env.Cfg.Document)
	}
	if html := readFile(t, filepath.Join(dst, "doc.html")); !strings.Contains(html, `data-w-type="p"`) {
		t.Errorf("formatting was not preserved:\n%s", html)
	}
	if _, err := os.Stat(filepath.Join(dst, "doc.stylemap.txt")); err != nil {
		t.Errorf("style map was not saved: %v", err)
	}
}

func TestRun_NoMap(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := writeTestDocx(t, filepath.Join(t.TempDir(), "doc.docx"), sampleBody)
	dst := t.TempDir()

	if err := newConvertCommand().Run(ctx, []string{"convert", "--no-map", src, dst}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if env.Cfg.Document.MapStyles {
		t.Error("--no-map was not applied")
	}
	if html := readFile(t, filepath.Join(dst, "doc.html")); strings.Contains(html, "class=") {
		t.Errorf("unexpected classes:\n%s", html)
	}
}

func TestRun_Stylesheet(t *testing.T) {
	ctx, env := setupTestEnv(t)
	dir := t.TempDir()
	src := writeTestDocx(t, filepath.Join(dir, "doc.docx"), sampleBody)
	sheet := filepath.Join(dir, "style.css")
	if err := os.WriteFile(sheet, []byte("p.Body { margin:0 }"), 0644); err != nil {
		t.Fatal(err)
	}
	dst := t.TempDir()

	if err := newConvertCommand().Run(ctx, []string{"convert", "--css", sheet, src, dst}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if env.Stylesheet == nil || env.Cfg.Document.StylesheetPath != sheet {
		t.Fatalf("stylesheet was not loaded: %+v", env.Cfg.Document)
	}
	if html := readFile(t, filepath.Join(dst, "doc.html")); !strings.Contains(html, "<style>p.Body { margin: 0; }\n</style>") {
		t.Errorf("stylesheet was not embedded:\n%s", html)
	}

	ctx, _ = setupTestEnv(t)
	if err := newConvertCommand().Run(ctx, []string{"convert", "--css", filepath.Join(dir, "missing.css"), src, t.TempDir()}); err == nil {
		t.Error("Run() with missing stylesheet should fail")
	}
}

func TestProcessFile_OutputNameTemplate(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Cfg.Document.OutputNameTemplate = `{{ .Creator }}/{{ .Title | default .SourceFile }}`
	core := zipEntry{"docProps/core.xml", []byte(`<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>Quarterly</dc:title><dc:creator>Finance</dc:creator></cp:coreProperties>`)}
	dir := t.TempDir()
	src := writeZip(t, filepath.Join(dir, "doc.docx"), append(docxEntries(sampleBody), core)...)
	plain := writeTestDocx(t, filepath.Join(dir, "plain.docx"), sampleBody)
	dst := t.TempDir()

	log := env.Log
	if err := processFile(ctx, src, "doc.docx", dst, log); err != nil {
		t.Fatalf("processFile() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "Finance", "Quarterly.html")); err != nil {
		t.Errorf("output was not named from metadata: %v", err)
	}

	// no metadata, template falls back to source name
	if err := processFile(ctx, plain, "plain.docx", dst, log); err != nil {
		t.Fatalf("processFile() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "plain.html")); err != nil {
		t.Errorf("unexpected output name for document without metadata: %v", err)
	}
}

func TestRun_Errors(t *testing.T) {
	ctx, _ := setupTestEnv(t)
	if err := newConvertCommand().Run(ctx, []string{"convert"}); err == nil {
		t.Error("Run() without source should fail")
	}

	ctx, _ = setupTestEnv(t)
	bad := writeZip(t, filepath.Join(t.TempDir(), "bad.docx"), zipEntry{"word/document.xml", []byte(testDocumentXML(""))})
	if err := newConvertCommand().Run(ctx, []string{"convert", bad, t.TempDir()}); err == nil {
		t.Error("Run() should fail when nothing was converted")
	}
}
