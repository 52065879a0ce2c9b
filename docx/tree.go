package docx

import (
	"github.com/beevik/etree"

	"dxc/utils/debug"
)

// NodeID addresses a node inside PropertyTree. Handles stay valid for the
// lifetime of the tree, nodes are never removed from the arena.
type NodeID int

// NoNode is returned when requested node does not exist.
const NoNode NodeID = -1

// Attribute is a property node attribute, Space is the namespace prefix.
type Attribute struct {
	Space string
	Key   string
	Value string
}

type propNode struct {
	space    string
	tag      string
	attrs    []Attribute
	children []NodeID
	parent   NodeID
}

// PropertyTree is the unflattened structural form of formatting properties
// used during merge. All nodes are owned by the tree, under any parent there
// is at most one child per property name.
type PropertyTree struct {
	nodes []propNode
}

// NewPropertyTree creates tree with a single root node.
func NewPropertyTree(space, tag string) *PropertyTree {
	return &PropertyTree{nodes: []propNode{{space: space, tag: tag, parent: NoNode}}}
}

// TreeFromElement builds property tree from element. Children with the same
// name are collapsed by merging them in document order.
func TreeFromElement(el *etree.Element) *PropertyTree {
	t := NewPropertyTree(el.Space, el.Tag)
	t.Overlay(t.Root(), el)
	return t
}

func (t *PropertyTree) Root() NodeID {
	return 0
}

// Len returns number of nodes in the tree.
func (t *PropertyTree) Len() int {
	return len(t.nodes)
}

func (t *PropertyTree) Tag(id NodeID) string {
	return t.nodes[id].tag
}

func (t *PropertyTree) Space(id NodeID) string {
	return t.nodes[id].space
}

func (t *PropertyTree) Parent(id NodeID) NodeID {
	return t.nodes[id].parent
}

// Attrs returns copy of node attributes in insertion order.
func (t *PropertyTree) Attrs(id NodeID) []Attribute {
	return append([]Attribute(nil), t.nodes[id].attrs...)
}

// Attr returns value of attribute by its local name.
func (t *PropertyTree) Attr(id NodeID, key string) (string, bool) {
	for _, a := range t.nodes[id].attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr replaces value of existing attribute (matched by local name) or
// adds a new one.
func (t *PropertyTree) SetAttr(id NodeID, space, key, value string) {
	n := &t.nodes[id]
	for i := range n.attrs {
		if n.attrs[i].Key == key {
			n.attrs[i].Value = value
			return
		}
	}
	n.attrs = append(n.attrs, Attribute{Space: space, Key: key, Value: value})
}

func (t *PropertyTree) RemoveAttr(id NodeID, key string) {
	n := &t.nodes[id]
	for i := range n.attrs {
		if n.attrs[i].Key == key {
			n.attrs = append(n.attrs[:i], n.attrs[i+1:]...)
			return
		}
	}
}

// Children returns copy of node children handles in order.
func (t *PropertyTree) Children(id NodeID) []NodeID {
	return append([]NodeID(nil), t.nodes[id].children...)
}

// Child returns handle of the child with given name or NoNode.
func (t *PropertyTree) Child(id NodeID, tag string) NodeID {
	for _, c := range t.nodes[id].children {
		if t.nodes[c].tag == tag {
			return c
		}
	}
	return NoNode
}

// NextSibling returns the node following id under the same parent or NoNode.
func (t *PropertyTree) NextSibling(id NodeID) NodeID {
	p := t.nodes[id].parent
	if p == NoNode {
		return NoNode
	}
	siblings := t.nodes[p].children
	for i, c := range siblings {
		if c == id && i+1 < len(siblings) {
			return siblings[i+1]
		}
	}
	return NoNode
}

// AppendChild adds new empty node as the last child of parent.
func (t *PropertyTree) AppendChild(parent NodeID, space, tag string) NodeID {
	return t.InsertBefore(parent, NoNode, space, tag)
}

// InsertBefore adds new empty node under parent in front of before. When
// before is NoNode or is not a child of parent the node is appended.
func (t *PropertyTree) InsertBefore(parent, before NodeID, space, tag string) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, propNode{space: space, tag: tag, parent: parent})

	p := &t.nodes[parent]
	for i, c := range p.children {
		if c == before {
			p.children = append(p.children[:i], append([]NodeID{id}, p.children[i:]...)...)
			return id
		}
	}
	p.children = append(p.children, id)
	return id
}

// FindOrAppend returns existing child with given name or appends a new one.
func (t *PropertyTree) FindOrAppend(parent NodeID, space, tag string) NodeID {
	if c := t.Child(parent, tag); c != NoNode {
		return c
	}
	return t.AppendChild(parent, space, tag)
}

// Merge merges source property element into target node. If target already
// has a child with the same name source attributes are overlaid on it
// (source values win) and source children are merged recursively using the
// same rule, otherwise source subtree is appended as a new child. Callers
// merge base properties first and overrides last to get override-wins
// semantics.
func (t *PropertyTree) Merge(target NodeID, src *etree.Element) NodeID {
	id := t.FindOrAppend(target, src.Space, src.Tag)
	t.Overlay(id, src)
	return id
}

// Overlay copies attributes of src onto the node itself and merges all
// children of src into it. It is used for property containers (pPr, rPr)
// whose own attributes must be carried over as well.
func (t *PropertyTree) Overlay(id NodeID, src *etree.Element) {
	for _, a := range src.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			continue
		}
		t.SetAttr(id, a.Space, a.Key, a.Value)
	}
	for _, c := range src.ChildElements() {
		t.Merge(id, c)
	}
}

// Walk visits node and its descendants depth first. Path holds local names
// from the first level below the root down to the visited node (empty for
// the root itself).
func (t *PropertyTree) Walk(id NodeID, fn func(id NodeID, path []string)) {
	t.walk(id, nil, fn)
}

func (t *PropertyTree) walk(id NodeID, path []string, fn func(NodeID, []string)) {
	fn(id, path)
	for _, c := range t.nodes[id].children {
		t.walk(c, append(path[:len(path):len(path)], t.nodes[c].tag), fn)
	}
}

// Element serializes the tree back into detached etree element.
func (t *PropertyTree) Element() *etree.Element {
	return t.element(t.Root())
}

func (t *PropertyTree) element(id NodeID) *etree.Element {
	n := &t.nodes[id]
	el := etree.NewElement(qualify(n.space, n.tag))
	for _, a := range n.attrs {
		el.CreateAttr(qualify(a.Space, a.Key), a.Value)
	}
	for _, c := range n.children {
		el.AddChild(t.element(c))
	}
	return el
}

// String returns readable dump of the tree, for debugging only.
func (t *PropertyTree) String() string {
	tw := debug.NewTreeWriter()
	tw.Element(0, t.Element())
	return tw.String()
}
