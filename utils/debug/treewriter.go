// Package debug has helpers producing readable dumps of internal structures.
package debug

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// TreeWriter accumulates indented lines, two spaces per level.
type TreeWriter struct {
	w *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

func (tw *TreeWriter) String() string {
	return tw.w.String()
}

func (tw *TreeWriter) indent(depth int) {
	tw.w.WriteString(strings.Repeat("  ", max(depth, 0)))
}

func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// TextBlock writes "label: value" with value quoted, empty values are left
// as is.
func (tw *TreeWriter) TextBlock(depth int, label, value string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(encodeText(value))
	tw.w.WriteByte('\n')
}

// Element writes XML subtree, one element per line with its attributes in
// document order. Non blank character data is written as text block.
func (tw *TreeWriter) Element(depth int, el *etree.Element) {
	if el == nil {
		tw.Line(depth, "<nil>")
		return
	}
	tw.indent(depth)
	tw.w.WriteString(el.FullTag())
	for _, a := range el.Attr {
		fmt.Fprintf(tw.w, " %s=%s", a.FullKey(), strconv.Quote(a.Value))
	}
	tw.w.WriteByte('\n')
	for _, tok := range el.Child {
		switch v := tok.(type) {
		case *etree.Element:
			tw.Element(depth+1, v)
		case *etree.CharData:
			if strings.TrimSpace(v.Data) != "" {
				tw.TextBlock(depth+1, "#text", v.Data)
			}
		}
	}
}

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}
