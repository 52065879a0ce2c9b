// Package repair post-processes HTML produced from promoted document package.
// Source identifier markers become data-source-id attributes of their
// parents, synthesized suffixes are removed from class names and, when
// requested, flattened style properties are attached to elements as data
// attributes.
package repair

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/maruel/natural"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"dxc/docx"
)

const (
	// AttrSourceID holds stable identifier of source paragraph.
	AttrSourceID = "data-source-id"
	// Declaration starts every repaired document.
	Declaration = "<?xml version='1.0' encoding='UTF-8' standalone='yes'?>\n"
)

type Options struct {
	// PreserveFormatting attaches flattened properties of matching catalog
	// styles to elements.
	PreserveFormatting bool
	// Sanitize passes input through HTML sanitizer before processing.
	Sanitize bool
	// Stylesheet, when not empty, is embedded into document head.
	Stylesheet string
}

var policy = sync.OnceValue(func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.AllowDataAttributes()
	return p
})

// Repair processes HTML read from r. Catalog is required only when
// formatting is preserved. Output is deterministic for identical input and
// processing own output again does not change it.
func Repair(r io.Reader, c *docx.Catalog, opts Options) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read html: %w", err)
	}
	if opts.PreserveFormatting && c == nil {
		return nil, fmt.Errorf("style catalog is required to preserve formatting")
	}

	data = stripDeclaration(data)
	if opts.Sanitize {
		data = policy().SanitizeBytes(data)
	}

	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to parse html: %w", err)
	}

	recoverMarkers(doc)
	if opts.PreserveFormatting {
		reinject(doc, c)
	}
	stripSuffixes(doc)
	if opts.Stylesheet != "" {
		embedStylesheet(doc, opts.Stylesheet)
	}

	var buf bytes.Buffer
	buf.WriteString(Declaration)
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("unable to render html: %w", err)
	}
	return buf.Bytes(), nil
}

func stripDeclaration(data []byte) []byte {
	data = bytes.TrimLeft(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), " \t\r\n")
	if !bytes.HasPrefix(data, []byte("<?xml")) {
		return data
	}
	if i := bytes.Index(data, []byte("?>")); i >= 0 {
		return bytes.TrimLeft(data[i+2:], " \t\r\n")
	}
	return data
}

// recoverMarkers moves text of every marker element to its parent
// data-source-id attribute and removes marker.
func recoverMarkers(doc *html.Node) {
	var markers []*html.Node
	walk(doc, func(n *html.Node) {
		if hasClass(n, docx.MarkerStyleID) {
			markers = append(markers, n)
		}
	})
	for _, m := range markers {
		parent := m.Parent
		if parent == nil {
			continue
		}
		if id := strings.TrimSpace(textContent(m)); id != "" && parent.Type == html.ElementNode {
			setAttr(parent, AttrSourceID, id)
		}
		parent.RemoveChild(m)
	}
}

// reinject copies flattened properties of catalog styles onto elements
// whose class names them. Catalog values win over attributes already present.
// Elements which already carry style kind attribute were processed before and
// are left alone.
func reinject(doc *html.Node, c *docx.Catalog) {
	walk(doc, func(n *html.Node) {
		if _, done := getAttr(n, docx.KeyType); done {
			return
		}
		class, ok := getAttr(n, "class")
		if !ok {
			return
		}
		for _, token := range strings.Fields(class) {
			rec, ok := c.Get(token)
			if !ok {
				continue
			}
			attrs := rec.DataAttributes()
			keys := make([]string, 0, len(attrs))
			for k := range attrs {
				keys = append(keys, k)
			}
			sort.Sort(natural.StringSlice(keys))
			for _, k := range keys {
				setAttr(n, strings.ToLower(k), attrs[k])
			}
		}
	})
}

// stripSuffixes removes synthesized suffixes from class tokens. Tokens which
// become empty are dropped, element without any class left loses the
// attribute.
func stripSuffixes(doc *html.Node) {
	walk(doc, func(n *html.Node) {
		class, ok := getAttr(n, "class")
		if !ok {
			return
		}
		var tokens []string
		for _, token := range strings.Fields(class) {
			if token = docx.StripSynthesized(token); token != "" {
				tokens = append(tokens, token)
			}
		}
		if len(tokens) == 0 {
			removeAttr(n, "class")
			return
		}
		setAttr(n, "class", strings.Join(tokens, " "))
	})
}

// embedStylesheet appends style element with given text to document head.
// Identical style element left by previous processing is replaced.
func embedStylesheet(doc *html.Node, text string) {
	var head *html.Node
	walk(doc, func(n *html.Node) {
		if head == nil && n.DataAtom == atom.Head {
			head = n
		}
	})
	if head == nil {
		return
	}
	for c := head.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && c.DataAtom == atom.Style && textContent(c) == text {
			head.RemoveChild(c)
		}
		c = next
	}
	style := &html.Node{Type: html.ElementNode, DataAtom: atom.Style, Data: "style"}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	head.AppendChild(style)
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func hasClass(n *html.Node, name string) bool {
	class, ok := getAttr(n, "class")
	if !ok {
		return false
	}
	for _, token := range strings.Fields(class) {
		if token == name {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return b.String()
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}
