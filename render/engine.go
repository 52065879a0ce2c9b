// Package render converts WordprocessingML body of a document package into
// HTML fragment, assigning HTML elements and classes to paragraphs and runs
// according to style mapping rules. Only flat paragraph/run content is
// supported: tables, images, lists and notes are skipped.
package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"

	"dxc/archive"
	"dxc/common"
	"dxc/docx"
)

// Result is converted HTML with diagnostics collected on the way.
type Result struct {
	HTML     string
	Messages []common.Message
}

// Engine is the built-in conversion engine.
type Engine struct {
	log       *zap.Logger
	normalize bool
}

type Option func(*Engine)

// WithNormalization controls NFC normalization of produced text, on by
// default.
func WithNormalization(on bool) Option {
	return func(e *Engine) {
		e.normalize = on
	}
}

func New(log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{log: log, normalize: true}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	return e
}

// Convert renders document part of the package at path. Style map uses
// "p[style-name='Name'] => p.class:fresh" and "r[style-name='Name'] =>
// span.class" lines. Problems with content are reported as messages, errors
// are returned only when package cannot be read.
func (e *Engine) Convert(ctx context.Context, path, styleMap string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pkg, err := archive.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open package: %w", err)
	}
	if err := pkg.Require(docx.PartDocument); err != nil {
		return nil, err
	}

	doc, err := parsePart(pkg, docx.PartDocument)
	if err != nil {
		return nil, err
	}
	body := docx.ChildW(doc.Root(), "body")
	if body == nil {
		return nil, fmt.Errorf("%w: document part has no body", docx.ErrUnexpectedShape)
	}

	sm, msgs := ParseStyleMap(styleMap)
	c := &converter{
		styles:    make(map[string]styleInfo),
		rels:      make(map[string]string),
		sm:        sm,
		msgs:      msgs,
		seen:      make(map[string]bool),
		normalize: e.normalize,
	}
	if _, ok := pkg.Part(docx.PartStyles); ok {
		styles, err := parsePart(pkg, docx.PartStyles)
		if err != nil {
			return nil, err
		}
		c.loadStyles(styles)
	}
	if _, ok := pkg.Part(docx.PartDocumentRels); ok {
		rels, err := parsePart(pkg, docx.PartDocumentRels)
		if err != nil {
			return nil, err
		}
		c.loadRelationships(rels)
	}

	root := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	for _, el := range body.ChildElements() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.block(root, el)
	}

	var buf bytes.Buffer
	for n := root.FirstChild; n != nil; n = n.NextSibling {
		if err := html.Render(&buf, n); err != nil {
			return nil, fmt.Errorf("unable to render html: %w", err)
		}
	}

	e.log.Debug("Document rendered",
		zap.String("file", path),
		zap.Int("rules", sm.Len()),
		zap.Int("paragraphs", c.paragraphs),
		zap.Int("messages", len(c.msgs)))

	return &Result{HTML: buf.String(), Messages: c.msgs}, nil
}

func parsePart(pkg *archive.Package, name string) (*etree.Document, error) {
	data, _ := pkg.Part(name)
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", name, err)
	}
	return doc, nil
}

type styleInfo struct {
	name string
	typ  string
}

type converter struct {
	styles     map[string]styleInfo
	rels       map[string]string
	sm         *StyleMap
	msgs       []common.Message
	seen       map[string]bool
	normalize  bool
	paragraphs int
}

func (c *converter) loadStyles(doc *etree.Document) {
	root := doc.Root()
	if root == nil {
		return
	}
	for _, el := range root.ChildElements() {
		if !docx.IsW(el, "style") {
			continue
		}
		c.styles[docx.AttrW(el, "styleId")] = styleInfo{
			name: docx.AttrW(docx.ChildW(el, "name"), "val"),
			typ:  docx.AttrW(el, "type"),
		}
	}
}

func (c *converter) loadRelationships(doc *etree.Document) {
	root := doc.Root()
	if root == nil {
		return
	}
	for _, el := range root.ChildElements() {
		if el.Tag != "Relationship" {
			continue
		}
		c.rels[el.SelectAttrValue("Id", "")] = el.SelectAttrValue("Target", "")
	}
}

// warn records message once per conversion.
func (c *converter) warn(format string, args ...any) {
	m := common.Warningf(format, args...)
	if c.seen[m.Text] {
		return
	}
	c.seen[m.Text] = true
	c.msgs = append(c.msgs, m)
}

func (c *converter) text(s string) *html.Node {
	if c.normalize {
		s = norm.NFC.String(s)
	}
	return &html.Node{Type: html.TextNode, Data: s}
}

func (c *converter) block(parent *html.Node, el *etree.Element) {
	switch {
	case docx.IsW(el, "p"):
		c.paragraph(parent, el)
	case docx.IsW(el, "tbl"):
		c.warn("Tables are not supported, table content was skipped")
	case docx.IsW(el, "sdt"):
		if content := docx.ChildW(el, "sdtContent"); content != nil {
			for _, child := range content.ChildElements() {
				c.block(parent, child)
			}
		}
	case docx.IsW(el, "customXml"):
		for _, child := range el.ChildElements() {
			c.block(parent, child)
		}
	}
}

var headingRe = regexp.MustCompile(`(?i)^heading ([1-6])$`)

// paragraphTarget selects HTML element for paragraph style: mapping rule
// first, then built in defaults for headings.
func (c *converter) paragraphTarget(styleID string) (string, string, bool) {
	if styleID == "" {
		return "p", "", true
	}
	st, known := c.styles[styleID]
	if known {
		if r, ok := c.sm.Lookup("p", st.name); ok {
			return r.Element, r.Class, r.Fresh
		}
		if m := headingRe.FindStringSubmatch(st.name); m != nil {
			return "h" + m[1], "", true
		}
		switch st.name {
		case "Title":
			return "h1", "", true
		case "Normal":
			return "p", "", true
		}
	}
	c.warn("Unrecognised paragraph style: '%s' (Style ID: %s)", st.name, styleID)
	return "p", "", true
}

func (c *converter) paragraph(parent *html.Node, p *etree.Element) {
	c.paragraphs++

	styleID := docx.AttrW(docx.ChildW(docx.ChildW(p, "pPr"), "pStyle"), "val")
	tag, class, fresh := c.paragraphTarget(styleID)

	node := newElement(tag, class)
	c.inline(node, p)
	if node.FirstChild == nil {
		return
	}
	if last := parent.LastChild; !fresh && last != nil && sameElement(last, node) {
		moveChildren(last, node)
		return
	}
	parent.AppendChild(node)
}

// Containers whose runs belong to the enclosing paragraph.
var inlineContainers = map[string]bool{
	"ins":        true,
	"moveTo":     true,
	"smartTag":   true,
	"sdt":        true,
	"sdtContent": true,
	"fldSimple":  true,
	"customXml":  true,
	"dir":        true,
	"bdo":        true,
}

func (c *converter) inline(parent *html.Node, el *etree.Element) {
	for _, child := range el.ChildElements() {
		switch {
		case docx.IsW(child, "r"):
			c.run(parent, child)
		case docx.IsW(child, "hyperlink"):
			c.hyperlink(parent, child)
		case docx.IsW(child, child.Tag) && inlineContainers[child.Tag]:
			c.inline(parent, child)
		}
	}
}

func (c *converter) hyperlink(parent *html.Node, el *etree.Element) {
	href := c.rels[docx.RelationshipID(el)]
	if anchor := docx.AttrW(el, "anchor"); anchor != "" {
		href += "#" + anchor
	}
	if href == "" {
		c.inline(parent, el)
		return
	}
	a := &html.Node{Type: html.ElementNode, Data: "a", DataAtom: atom.A, Attr: []html.Attribute{{Key: "href", Val: href}}}
	c.inline(a, el)
	if a.FirstChild != nil {
		parent.AppendChild(a)
	}
}

func (c *converter) runContent(r *etree.Element) []*html.Node {
	var nodes []*html.Node
	for _, el := range r.ChildElements() {
		switch {
		case docx.IsW(el, "t"):
			nodes = append(nodes, c.text(el.Text()))
		case docx.IsW(el, "tab"):
			nodes = append(nodes, c.text("\t"))
		case docx.IsW(el, "br"):
			if typ := docx.AttrW(el, "type"); typ == "page" || typ == "column" {
				continue
			}
			nodes = append(nodes, newElement("br", ""))
		case docx.IsW(el, "cr"):
			nodes = append(nodes, newElement("br", ""))
		case docx.IsW(el, "noBreakHyphen"):
			nodes = append(nodes, c.text("\u2011"))
		case docx.IsW(el, "softHyphen"):
			nodes = append(nodes, c.text("\u00ad"))
		}
	}
	return nodes
}

func (c *converter) run(parent *html.Node, r *etree.Element) {
	nodes := c.runContent(r)
	if len(nodes) == 0 {
		return
	}
	wrap := func(tag, class string) {
		el := newElement(tag, class)
		for _, n := range nodes {
			el.AppendChild(n)
		}
		nodes = []*html.Node{el}
	}

	rPr := docx.ChildW(r, "rPr")
	switch docx.AttrW(docx.ChildW(rPr, "vertAlign"), "val") {
	case "superscript":
		wrap("sup", "")
	case "subscript":
		wrap("sub", "")
	}
	if docx.OnOff(docx.ChildW(rPr, "strike")) || docx.OnOff(docx.ChildW(rPr, "dstrike")) {
		wrap("s", "")
	}
	if docx.OnOff(docx.ChildW(rPr, "i")) {
		wrap("em", "")
	}
	if docx.OnOff(docx.ChildW(rPr, "b")) {
		wrap("strong", "")
	}
	if styleID := docx.AttrW(docx.ChildW(rPr, "rStyle"), "val"); styleID != "" {
		st := c.styles[styleID]
		if rule, ok := c.sm.Lookup("r", st.name); ok && st.name != "" {
			wrap(rule.Element, rule.Class)
		} else {
			c.warn("Unrecognised run style: '%s' (Style ID: %s)", st.name, styleID)
		}
	}

	for _, n := range nodes {
		appendCollapsed(parent, n)
	}
}

func newElement(tag, class string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	if class != "" {
		n.Attr = []html.Attribute{{Key: "class", Val: strings.ReplaceAll(class, ".", " ")}}
	}
	return n
}

func sameElement(a, b *html.Node) bool {
	if a.Type != html.ElementNode || b.Type != html.ElementNode || a.Data != b.Data || len(a.Attr) != len(b.Attr) {
		return false
	}
	for i := range a.Attr {
		if a.Attr[i] != b.Attr[i] {
			return false
		}
	}
	return true
}

// appendCollapsed appends n to parent merging it into the last child when
// both are identical elements or both are text, so formatting of adjacent
// runs does not produce chains of equal elements.
func appendCollapsed(parent, n *html.Node) {
	last := parent.LastChild
	switch {
	case last != nil && last.Type == html.TextNode && n.Type == html.TextNode:
		last.Data += n.Data
	case last != nil && n.DataAtom != atom.Br && n.DataAtom != atom.A && sameElement(last, n):
		moveChildren(last, n)
	default:
		parent.AppendChild(n)
	}
}

func moveChildren(dst, src *html.Node) {
	for c := src.FirstChild; c != nil; {
		next := c.NextSibling
		src.RemoveChild(c)
		appendCollapsed(dst, c)
		c = next
	}
}
