package docx

import (
	"testing"

	"github.com/beevik/etree"
)

const testStylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:qFormat/></w:style>
<w:style w:type="paragraph" w:styleId="Body"><w:name w:val="Body"/><w:basedOn w:val="Normal"/><w:pPr><w:spacing w:after="120"/><w:jc w:val="left"/></w:pPr><w:rPr><w:rFonts w:ascii="Arial" w:hAnsi="Arial"/></w:rPr></w:style>
<w:style w:type="paragraph" w:customStyle="1" w:styleId="FrontSalesQuote(fsq)"><w:name w:val="Front Sales Quote (fsq)"/><w:pPr><w:ind w:firstLine="720"/></w:pPr></w:style>
<w:style w:type="character" w:styleId="Emph"><w:name w:val="Emphasis"/><w:rPr><w:i/></w:rPr></w:style>
<w:style w:type="table" w:styleId="TableNormal"><w:name w:val="Normal Table"/></w:style>
</w:styles>`

func testDocumentXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:w14="http://schemas.microsoft.com/office/word/2010/wordml" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><w:body>` +
		body + `<w:sectPr/></w:body></w:document>`
}

func parseXML(t *testing.T, data string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(data); err != nil {
		t.Fatalf("parse xml: %v", err)
	}
	return doc
}

func findStyle(doc *etree.Document, id string) *etree.Element {
	for _, el := range doc.Root().ChildElements() {
		if IsW(el, "style") && AttrW(el, "styleId") == id {
			return el
		}
	}
	return nil
}

func paragraphs(doc *etree.Document) []*etree.Element {
	var res []*etree.Element
	Walk(doc.Root(), func(el *etree.Element) bool {
		if IsW(el, "p") {
			res = append(res, el)
		}
		return true
	})
	return res
}

func paragraphStyle(p *etree.Element) string {
	return AttrW(ChildW(ChildW(p, "pPr"), "pStyle"), "val")
}

func runStyle(r *etree.Element) string {
	return AttrW(ChildW(ChildW(r, "rPr"), "rStyle"), "val")
}
