// Package docx implements style aware processing of WordprocessingML parts:
// flattened style catalog, promotion of direct formatting into synthesized
// named styles and generation of style mapping rules for HTML conversion.
package docx

import (
	"strings"

	"github.com/beevik/etree"
)

// Package parts we work with.
const (
	PartDocument     = "word/document.xml"
	PartStyles       = "word/styles.xml"
	PartDocumentRels = "word/_rels/document.xml.rels"
	PartCore         = "docProps/core.xml"
)

const (
	NamespaceW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NamespaceW14 = "http://schemas.microsoft.com/office/word/2010/wordml"
	NamespaceR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

	prefixW   = "w"
	prefixW14 = "w14"
	prefixR   = "r"
)

// IsW reports whether element is WordprocessingML element with given local
// name. Detached elements cannot resolve their namespace, in this case the
// conventional prefix is accepted.
func IsW(el *etree.Element, local string) bool {
	if el == nil || el.Tag != local {
		return false
	}
	return inNamespace(el.Space, el.NamespaceURI(), NamespaceW, prefixW)
}

// ChildW returns first child element with given WordprocessingML local name.
func ChildW(el *etree.Element, local string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if IsW(c, local) {
			return c
		}
	}
	return nil
}

// AttrW returns value of WordprocessingML attribute or empty string.
func AttrW(el *etree.Element, local string) string {
	return attrNS(el, local, NamespaceW, prefixW)
}

// ParagraphID returns stable paragraph identifier (w14:paraId).
func ParagraphID(p *etree.Element) string {
	return attrNS(p, "paraId", NamespaceW14, prefixW14)
}

// RelationshipID returns r:id attribute value.
func RelationshipID(el *etree.Element) string {
	return attrNS(el, "id", NamespaceR, prefixR)
}

// SetAttrW sets (or creates) WordprocessingML attribute using element prefix.
func SetAttrW(el *etree.Element, local, value string) {
	for i := range el.Attr {
		a := &el.Attr[i]
		if a.Key == local && inNamespace(a.Space, a.NamespaceURI(), NamespaceW, prefixW) {
			a.Value = value
			return
		}
	}
	el.CreateAttr(qualify(spaceOf(el), local), value)
}

// OnOff interprets ST_OnOff value of a toggle property element: present
// element without value means on.
func OnOff(el *etree.Element) bool {
	if el == nil {
		return false
	}
	switch strings.ToLower(AttrW(el, "val")) {
	case "0", "false", "off", "none":
		return false
	}
	return true
}

// Walk visits el and all its descendant elements in document order. Returning
// false from fn skips descendants of the visited element.
func Walk(el *etree.Element, fn func(*etree.Element) bool) {
	if el == nil {
		return
	}
	if !fn(el) {
		return
	}
	for _, c := range el.ChildElements() {
		Walk(c, fn)
	}
}

func attrNS(el *etree.Element, local, uri, conventional string) string {
	if el == nil {
		return ""
	}
	for i := range el.Attr {
		a := &el.Attr[i]
		if a.Key == local && inNamespace(a.Space, a.NamespaceURI(), uri, conventional) {
			return a.Value
		}
	}
	return ""
}

func inNamespace(space, resolved, uri, conventional string) bool {
	if resolved != "" {
		return resolved == uri
	}
	return space == conventional
}

// spaceOf returns prefix to use for new WordprocessingML names under el.
func spaceOf(el *etree.Element) string {
	if el != nil && el.Space != "" {
		return el.Space
	}
	return prefixW
}

func qualify(space, local string) string {
	if space == "" {
		return local
	}
	return space + ":" + local
}
