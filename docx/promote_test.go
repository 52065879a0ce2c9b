package docx

import (
	"errors"
	"testing"

	"github.com/beevik/etree"
	"go.uber.org/zap/zaptest"
)

func promote(t *testing.T, body string) (*etree.Document, *etree.Document, *PromoteResult) {
	t.Helper()
	doc := parseXML(t, testDocumentXML(body))
	styles := parseXML(t, testStylesXML)
	res, err := NewPromoter(WithLogger(zaptest.NewLogger(t))).Promote(doc, styles)
	if err != nil {
		t.Fatalf("Promote() error = %v", err)
	}
	return doc, styles, res
}

func TestPromote_NoDirectFormatting(t *testing.T) {
	doc, styles, res := promote(t,
		`<w:p w14:paraId="0EA1567D"><w:pPr><w:pStyle w:val="Body"/></w:pPr><w:r><w:t>text</w:t></w:r></w:p>`)

	if len(res.Synthesized) != 0 {
		t.Errorf("synthesized = %v, want none", res.Synthesized)
	}
	p := paragraphs(doc)[0]
	if got := paragraphStyle(p); got != "Body" {
		t.Errorf("paragraph style = %q, want Body", got)
	}
	if findStyle(styles, MarkerStyleID) == nil {
		t.Error("marker style was not defined")
	}

	runs := p.ChildElements()
	marker := runs[len(runs)-1]
	if runStyle(marker) != MarkerStyleID {
		t.Fatalf("last run style = %q, want marker", runStyle(marker))
	}
	if got := ChildW(marker, "t").Text(); got != "0EA1567D" {
		t.Errorf("marker text = %q, want 0EA1567D", got)
	}
	if res.Markers != 1 {
		t.Errorf("markers = %d, want 1", res.Markers)
	}
}

func TestPromote_ParagraphWithStyle(t *testing.T) {
	doc, styles, res := promote(t,
		`<w:p w14:paraId="00000001"><w:pPr><w:pStyle w:val="Body"/><w:jc w:val="center"/></w:pPr><w:r><w:t>text</w:t></w:r></w:p>`)

	if len(res.Synthesized) != 1 || res.Synthesized[0] != "BodyHEDmod1" {
		t.Fatalf("synthesized = %v, want [BodyHEDmod1]", res.Synthesized)
	}

	p := paragraphs(doc)[0]
	if got := paragraphStyle(p); got != "BodyHEDmod1" {
		t.Errorf("paragraph style = %q, want BodyHEDmod1", got)
	}
	if got := AttrW(ChildW(ChildW(p, "pPr"), "jc"), "val"); got != "center" {
		t.Errorf("direct jc = %q, want center kept on paragraph", got)
	}

	st := findStyle(styles, "BodyHEDmod1")
	if st == nil {
		t.Fatal("synthesized style not found")
	}
	if got := AttrW(st, "type"); got != "paragraph" {
		t.Errorf("type = %q", got)
	}
	if got := AttrW(ChildW(st, "basedOn"), "val"); got != "Body" {
		t.Errorf("basedOn = %q, want Body", got)
	}
	if got := AttrW(ChildW(st, "name"), "val"); got != "BodyHEDmod1" {
		t.Errorf("name = %q, want BodyHEDmod1", got)
	}
	pPr := ChildW(st, "pPr")
	if got := AttrW(ChildW(pPr, "jc"), "val"); got != "center" {
		t.Errorf("jc = %q, want center", got)
	}
	if got := AttrW(ChildW(pPr, "spacing"), "after"); got != "120" {
		t.Errorf("inherited spacing after = %q, want 120", got)
	}

	// original style is untouched
	if got := AttrW(ChildW(ChildW(findStyle(styles, "Body"), "pPr"), "jc"), "val"); got != "left" {
		t.Errorf("original jc = %q, want left", got)
	}
}

func TestPromote_AnonymousRun(t *testing.T) {
	doc, styles, res := promote(t,
		`<w:p w14:paraId="00000001"><w:pPr><w:pStyle w:val="Body"/><w:jc w:val="center"/></w:pPr>`+
			`<w:r><w:rPr><w:b/></w:rPr><w:t>bold</w:t></w:r></w:p>`)

	want := []string{"BodyHEDmod1", "HEDmod2"}
	if len(res.Synthesized) != len(want) {
		t.Fatalf("synthesized = %v, want %v", res.Synthesized, want)
	}
	for i := range want {
		if res.Synthesized[i] != want[i] {
			t.Errorf("synthesized[%d] = %q, want %q", i, res.Synthesized[i], want[i])
		}
	}

	run := ChildW(paragraphs(doc)[0], "r")
	if got := runStyle(run); got != "HEDmod2" {
		t.Errorf("run style = %q, want HEDmod2", got)
	}
	if ChildW(ChildW(run, "rPr"), "b") == nil {
		t.Error("direct bold was removed from run")
	}
	if first := ChildW(run, "rPr").ChildElements()[0]; !IsW(first, "rStyle") {
		t.Error("style reference must be the first run property")
	}

	st := findStyle(styles, "HEDmod2")
	if st == nil {
		t.Fatal("run style not synthesized")
	}
	if AttrW(st, "type") != "character" {
		t.Errorf("type = %q, want character", AttrW(st, "type"))
	}
	if ChildW(st, "basedOn") != nil {
		t.Error("anonymous style must not have basedOn")
	}
	if ChildW(ChildW(st, "rPr"), "b") == nil {
		t.Error("bold was not merged into style")
	}
}

func TestPromote_ParagraphWithoutStyle(t *testing.T) {
	doc, styles, res := promote(t,
		`<w:p w14:paraId="00000002"><w:pPr><w:ind w:left="720"/></w:pPr><w:r><w:t>x</w:t></w:r></w:p>`+
			`<w:p w14:paraId="00000003"><w:r><w:t>plain</w:t></w:r></w:p>`)

	ps := paragraphs(doc)
	if got := paragraphStyle(ps[0]); got != "HEDmod1" {
		t.Errorf("paragraph style = %q, want HEDmod1", got)
	}
	if first := ChildW(ps[0], "pPr").ChildElements()[0]; !IsW(first, "pStyle") {
		t.Error("style reference must be the first paragraph property")
	}
	st := findStyle(styles, "HEDmod1")
	if st == nil || ChildW(ChildW(st, "pPr"), "ind") == nil {
		t.Fatal("anonymous paragraph style not synthesized")
	}

	// unstyled paragraph without direct formatting gets no style, but its
	// identifier is still kept
	if ChildW(ps[1], "pPr") != nil {
		t.Error("plain paragraph got properties")
	}
	runs := ps[1].ChildElements()
	if marker := runs[len(runs)-1]; runStyle(marker) != MarkerStyleID || ChildW(marker, "t").Text() != "00000003" {
		t.Errorf("plain paragraph has no marker")
	}
	if res.Markers != 2 {
		t.Errorf("markers = %d, want 2", res.Markers)
	}
}

func TestPromote_OnlyStyleReferenceIsNotDirectFormatting(t *testing.T) {
	_, _, res := promote(t,
		`<w:p w14:paraId="1"><w:pPr><w:pStyle w:val="Body"/><w:rPr><w:b/></w:rPr></w:pPr>`+
			`<w:r><w:rPr><w:rStyle w:val="Emph"/></w:rPr><w:t>x</w:t></w:r></w:p>`)
	if len(res.Synthesized) != 0 {
		t.Errorf("synthesized = %v, want none", res.Synthesized)
	}
}

func TestPromote_RunsInHyperlinks(t *testing.T) {
	doc, _, res := promote(t,
		`<w:p w14:paraId="1"><w:pPr><w:pStyle w:val="Body"/></w:pPr>`+
			`<w:hyperlink r:id="rId5"><w:r><w:rPr><w:rStyle w:val="Emph"/><w:color w:val="FF0000"/></w:rPr><w:t>link</w:t></w:r></w:hyperlink></w:p>`)
	if len(res.Synthesized) != 1 || res.Synthesized[0] != "EmphHEDmod1" {
		t.Fatalf("synthesized = %v, want [EmphHEDmod1]", res.Synthesized)
	}
	run := ChildW(ChildW(paragraphs(doc)[0], "hyperlink"), "r")
	if got := runStyle(run); got != "EmphHEDmod1" {
		t.Errorf("run style = %q", got)
	}
}

func TestPromote_UniqueIdentifiers(t *testing.T) {
	body := ""
	for range 5 {
		body += `<w:p><w:pPr><w:pStyle w:val="Body"/><w:jc w:val="right"/></w:pPr>` +
			`<w:r><w:rPr><w:i/></w:rPr><w:t>a</w:t></w:r><w:r><w:rPr><w:rStyle w:val="Emph"/><w:u w:val="single"/></w:rPr><w:t>b</w:t></w:r></w:p>`
	}
	_, styles, res := promote(t, body)

	if len(res.Synthesized) != 15 {
		t.Fatalf("synthesized %d styles, want 15", len(res.Synthesized))
	}
	seen := make(map[string]bool)
	original := map[string]bool{"Normal": true, "Body": true, "FrontSalesQuote(fsq)": true, "Emph": true, "TableNormal": true}
	for _, id := range res.Synthesized {
		if seen[id] {
			t.Errorf("duplicate synthesized id %q", id)
		}
		if original[id] {
			t.Errorf("synthesized id %q collides with existing style", id)
		}
		seen[id] = true
		if findStyle(styles, id) == nil {
			t.Errorf("style %q not written to styles part", id)
		}
	}
	if res.Markers != 0 {
		t.Errorf("markers = %d, paragraphs have no identifiers", res.Markers)
	}
	if len(res.Messages) != 5 {
		t.Errorf("messages = %d, want 5", len(res.Messages))
	}
}

func TestPromote_DanglingReference(t *testing.T) {
	doc := parseXML(t, testDocumentXML(`<w:p><w:pPr><w:pStyle w:val="Missing"/><w:jc w:val="center"/></w:pPr></w:p>`))
	_, err := NewPromoter().Promote(doc, parseXML(t, testStylesXML))
	if !errors.Is(err, ErrDanglingStyle) {
		t.Errorf("error = %v, want ErrDanglingStyle", err)
	}
}

func TestPromote_KindMismatch(t *testing.T) {
	doc := parseXML(t, testDocumentXML(`<w:p><w:r><w:rPr><w:rStyle w:val="Body"/><w:b/></w:rPr></w:r></w:p>`))
	_, err := NewPromoter().Promote(doc, parseXML(t, testStylesXML))
	if !errors.Is(err, ErrUnexpectedShape) {
		t.Errorf("error = %v, want ErrUnexpectedShape", err)
	}
}

func TestPromote_ReservedName(t *testing.T) {
	styles := `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:styleId="BodyHEDmod1"><w:name w:val="x"/></w:style></w:styles>`
	_, err := NewPromoter().Promote(parseXML(t, testDocumentXML("")), parseXML(t, styles))
	if !errors.Is(err, ErrReservedName) {
		t.Errorf("error = %v, want ErrReservedName", err)
	}
}

func TestPromote_SharedSequence(t *testing.T) {
	seq := NewSequence()
	seq.Next()
	doc := parseXML(t, testDocumentXML(`<w:p><w:pPr><w:jc w:val="center"/></w:pPr></w:p>`))
	res, err := NewPromoter(WithSequence(seq)).Promote(doc, parseXML(t, testStylesXML))
	if err != nil {
		t.Fatalf("Promote() error = %v", err)
	}
	if res.Synthesized[0] != "HEDmod2" {
		t.Errorf("synthesized = %v, want HEDmod2", res.Synthesized)
	}
}

func TestPromote_CatalogAfterPromotion(t *testing.T) {
	_, styles, _ := promote(t,
		`<w:p w14:paraId="1"><w:pPr><w:pStyle w:val="FrontSalesQuote(fsq)"/><w:spacing w:line="480" w:lineRule="auto"/></w:pPr></w:p>`)

	c, _, err := BuildCatalog(styles)
	if err != nil {
		t.Fatalf("BuildCatalog() error = %v", err)
	}
	rec, ok := c.Get("FrontSalesQuotefsqHEDmod1")
	if !ok {
		t.Fatal("synthesized style missing from catalog")
	}
	if rec.BasedOn != "FrontSalesQuote(fsq)" {
		t.Errorf("basedOn = %q", rec.BasedOn)
	}
	if v, _ := rec.Properties.Get("data-pPr-spacing"); v != "line:480;lineRule:auto;" {
		t.Errorf("spacing = %q", v)
	}
	if v, _ := rec.Properties.Get("data-pPr-ind"); v != "firstLine:720;" {
		t.Errorf("inherited indent = %q", v)
	}
	if _, ok := c.Get(MarkerStyleID); !ok {
		t.Error("marker style missing from catalog")
	}
}
