package docx

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/maruel/natural"

	"dxc/common"
	"dxc/utils/debug"
)

// Kind is the kind of named style we are interested in.
type Kind int

const (
	KindParagraph Kind = iota
	KindCharacter
)

// String returns short kind name as it is recorded in data-w-type.
func (k Kind) String() string {
	if k == KindCharacter {
		return "r"
	}
	return "p"
}

// StyleType returns value of w:type attribute for the kind.
func (k Kind) StyleType() string {
	if k == KindCharacter {
		return "character"
	}
	return "paragraph"
}

// Container returns local name of properties element holding formatting of
// the kind.
func (k Kind) Container() string {
	if k == KindCharacter {
		return "rPr"
	}
	return "pPr"
}

// Reserved keys of the flattened properties.
const (
	KeyName = "data-name"
	KeyType = "data-w-type"

	keyPrefix = "data"
)

// Properties is an insertion ordered flattened property bag.
type Properties struct {
	keys   []string
	values map[string]string
}

func newProperties() *Properties {
	return &Properties{values: make(map[string]string)}
}

// Set stores value under key, repeated keys overwrite previous value and keep
// original position.
func (p *Properties) Set(key, value string) {
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

func (p *Properties) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Keys returns keys in insertion order.
func (p *Properties) Keys() []string {
	return slices.Clone(p.keys)
}

func (p *Properties) Len() int {
	return len(p.keys)
}

// StyleRecord is a named style with its formatting flattened.
type StyleRecord struct {
	ID          string
	Kind        Kind
	DisplayName string
	BasedOn     string
	Properties  *Properties
}

// DataAttributes returns all flattened properties including style kind, ready
// to be used as element attributes.
func (r *StyleRecord) DataAttributes() map[string]string {
	res := maps.Clone(r.Properties.values)
	res[KeyType] = r.Kind.String()
	return res
}

// Catalog maps style identifiers to flattened style records, preserving order
// in which styles were defined.
type Catalog struct {
	order   []string
	records map[string]*StyleRecord
}

func newCatalog() *Catalog {
	return &Catalog{records: make(map[string]*StyleRecord)}
}

func (c *Catalog) Len() int {
	return len(c.order)
}

func (c *Catalog) Get(id string) (*StyleRecord, bool) {
	r, ok := c.records[id]
	return r, ok
}

// Records returns style records in definition order.
func (c *Catalog) Records() []*StyleRecord {
	res := make([]*StyleRecord, 0, len(c.order))
	for _, id := range c.order {
		res = append(res, c.records[id])
	}
	return res
}

func (c *Catalog) add(r *StyleRecord) bool {
	_, exists := c.records[r.ID]
	if !exists {
		c.order = append(c.order, r.ID)
	}
	c.records[r.ID] = r
	return !exists
}

// CatalogID converts style identifier as it is used in the package into
// catalog identifier. Parentheses are not allowed in HTML class tokens and are
// dropped from paragraph style identifiers.
func CatalogID(kind Kind, styleID string) string {
	if kind != KindParagraph {
		return styleID
	}
	return strings.NewReplacer("(", "", ")", "").Replace(styleID)
}

// BuildCatalog flattens all paragraph and character style definitions of the
// styles part. Styles without display name are kept, but reported since they
// cannot be mapped by name later.
func BuildCatalog(styles *etree.Document) (*Catalog, []common.Message, error) {
	root := styles.Root()
	if root == nil || !IsW(root, "styles") {
		return nil, nil, fmt.Errorf("%w: styles part has no styles root", ErrUnexpectedShape)
	}

	var msgs []common.Message
	c := newCatalog()
	for _, el := range root.ChildElements() {
		if !IsW(el, "style") {
			continue
		}
		var kind Kind
		switch AttrW(el, "type") {
		case "paragraph":
			kind = KindParagraph
		case "character":
			kind = KindCharacter
		default:
			continue
		}
		styleID := AttrW(el, "styleId")
		if styleID == "" {
			msgs = append(msgs, common.Warningf("%s style without identifier ignored", kind.StyleType()))
			continue
		}
		rec := flattenStyle(kind, CatalogID(kind, styleID), el)
		if rec.DisplayName == "" {
			msgs = append(msgs, common.Warningf("style %q has no display name, it will not be mapped", rec.ID))
		}
		if !c.add(rec) {
			msgs = append(msgs, common.Warningf("style %q defined more than once, last definition wins", rec.ID))
		}
	}
	return c, msgs, nil
}

func flattenStyle(kind Kind, id string, el *etree.Element) *StyleRecord {
	rec := &StyleRecord{
		ID:         id,
		Kind:       kind,
		Properties: newProperties(),
	}

	t := TreeFromElement(el)
	t.Walk(t.Root(), func(n NodeID, path []string) {
		if len(path) == 0 {
			return
		}
		rec.Properties.Set(keyPrefix+"-"+strings.Join(path, "-"), flatValue(t, n))
	})

	if v, ok := rec.Properties.Get(KeyName); ok {
		rec.DisplayName = v
	}
	if n := t.Child(t.Root(), "basedOn"); n != NoNode {
		rec.BasedOn, _ = t.Attr(n, "val")
	}
	return rec
}

// flatValue is "true" for bare markers, w:val value when it is the only
// attribute and "name:value;" pairs sorted by name otherwise. Pure containers
// have empty value.
func flatValue(t *PropertyTree, n NodeID) string {
	attrs := t.Attrs(n)
	children := t.Children(n)
	switch {
	case len(attrs) == 0 && len(children) == 0:
		return "true"
	case len(attrs) == 1 && attrs[0].Key == "val":
		return attrs[0].Value
	case len(attrs) > 0:
		sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })
		var b strings.Builder
		for _, a := range attrs {
			b.WriteString(a.Key)
			b.WriteByte(':')
			b.WriteString(a.Value)
			b.WriteByte(';')
		}
		return b.String()
	default:
		return ""
	}
}

// String returns readable dump of the catalog, for debugging only.
func (c *Catalog) String() string {
	if c == nil {
		return "<nil Catalog>"
	}
	tw := debug.NewTreeWriter()
	tw.Line(0, "Style catalog: %d", c.Len())
	for _, r := range c.Records() {
		tw.Line(1, "Style[%q] type[%s] name[%q] basedOn[%q]", r.ID, r.Kind, r.DisplayName, r.BasedOn)
		keys := r.Properties.Keys()
		sort.Sort(natural.StringSlice(keys))
		for _, k := range keys {
			v, _ := r.Properties.Get(k)
			tw.TextBlock(2, k, v)
		}
	}
	return tw.String()
}
