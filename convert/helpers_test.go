package convert

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"dxc/config"
	"dxc/state"
)

const testStylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>
<w:style w:type="paragraph" w:styleId="Body"><w:name w:val="Body"/><w:basedOn w:val="Normal"/><w:pPr><w:spacing w:after="120"/></w:pPr></w:style>
<w:style w:type="character" w:styleId="Emph"><w:name w:val="Emphasis"/><w:rPr><w:i/></w:rPr></w:style>
</w:styles>`

func testDocumentXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:w14="http://schemas.microsoft.com/office/word/2010/wordml"><w:body>` +
		body + `<w:sectPr/></w:body></w:document>`
}

// sampleBody has styled paragraph with direct formatting on both paragraph
// and run, unstyled paragraph with direct formatting and clean styled
// paragraph.
const sampleBody = `<w:p w14:paraId="00000001"><w:pPr><w:pStyle w:val="Body"/><w:jc w:val="center"/></w:pPr>` +
	`<w:r><w:t xml:space="preserve">Hello </w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>world</w:t></w:r></w:p>` +
	`<w:p w14:paraId="00000002"><w:pPr><w:ind w:left="720"/></w:pPr><w:r><w:t>Indented</w:t></w:r></w:p>` +
	`<w:p w14:paraId="00000003"><w:pPr><w:pStyle w:val="Body"/></w:pPr><w:r><w:rPr><w:rStyle w:val="Emph"/></w:rPr><w:t>Plain</w:t></w:r></w:p>`

type zipEntry struct {
	name string
	data []byte
}

func writeZip(t *testing.T, path string, entries ...zipEntry) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create archive: %v", err)
	}
	w := zip.NewWriter(f)
	for _, e := range entries {
		fw, err := w.Create(e.name)
		if err != nil {
			t.Fatalf("Failed to create %s: %v", e.name, err)
		}
		if _, err := fw.Write(e.data); err != nil {
			t.Fatalf("Failed to write %s: %v", e.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Failed to close archive: %v", err)
	}
	return path
}

func docxEntries(body string) []zipEntry {
	return []zipEntry{
		{"[Content_Types].xml", []byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`)},
		{"word/document.xml", []byte(testDocumentXML(body))},
		{"word/styles.xml", []byte(testStylesXML)},
	}
}

func writeTestDocx(t *testing.T, path, body string) string {
	t.Helper()
	return writeZip(t, path, docxEntries(body)...)
}

func docxBytes(t *testing.T, body string) []byte {
	t.Helper()
	data, err := os.ReadFile(writeTestDocx(t, filepath.Join(t.TempDir(), "tmp.docx"), body))
	if err != nil {
		t.Fatalf("Failed to read package: %v", err)
	}
	return data
}

// setupTestEnv creates a test environment with proper context and logger
func setupTestEnv(t *testing.T) (context.Context, *state.LocalEnv) {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	env.Cfg = cfg
	return ctx, env
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}
