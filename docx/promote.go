package docx

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"dxc/common"
)

// Property elements which are never treated as direct formatting: style
// references themselves, paragraph mark run properties, section breaks and
// revision records.
var (
	skipParagraphProps = map[string]bool{"pStyle": true, "rPr": true, "sectPr": true, "pPrChange": true}
	skipRunProps       = map[string]bool{"rStyle": true, "rPrChange": true}
)

// PromoteResult describes what promotion did to the package.
type PromoteResult struct {
	Paragraphs  int
	Runs        int
	Markers     int
	Synthesized []string
	Messages    []common.Message
}

// Promoter converts direct formatting of paragraphs and runs into
// synthesized named styles.
type Promoter struct {
	seq *Sequence
	log *zap.Logger
}

type PromoterOption func(*Promoter)

// WithSequence makes promoter use provided sequence for style identifiers.
func WithSequence(seq *Sequence) PromoterOption {
	return func(p *Promoter) {
		p.seq = seq
	}
}

func WithLogger(log *zap.Logger) PromoterOption {
	return func(p *Promoter) {
		p.log = log
	}
}

func NewPromoter(opts ...PromoterOption) *Promoter {
	p := &Promoter{}
	for _, opt := range opts {
		opt(p)
	}
	if p.seq == nil {
		p.seq = NewSequence()
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	return p
}

// styleSet is the mutable view of the styles part during promotion.
type styleSet struct {
	root   *etree.Element
	prefix string
	byID   map[string]*etree.Element
}

// Promote rewrites document and styles parts in place. For every paragraph
// and run carrying direct formatting a new style is synthesized (cloned from
// referenced style or created from scratch), direct formatting is merged into
// it and the element is switched to reference the new style. Direct
// formatting itself stays in place. Every paragraph with a stable identifier
// gets a hidden marker run carrying it.
func (p *Promoter) Promote(document, styles *etree.Document) (*PromoteResult, error) {
	set, err := newStyleSet(styles)
	if err != nil {
		return nil, err
	}

	body := ChildW(document.Root(), "body")
	if document.Root() == nil || !IsW(document.Root(), "document") || body == nil {
		return nil, fmt.Errorf("%w: document part has no body", ErrUnexpectedShape)
	}

	set.addMarkerStyle()

	var paragraphs []*etree.Element
	Walk(body, func(el *etree.Element) bool {
		if IsW(el, "p") {
			paragraphs = append(paragraphs, el)
		}
		return true
	})

	res := &PromoteResult{}
	for _, para := range paragraphs {
		if err := p.promoteParagraph(para, set, res); err != nil {
			return nil, err
		}
	}

	p.log.Debug("Direct formatting promoted",
		zap.Int("paragraphs", res.Paragraphs),
		zap.Int("runs", res.Runs),
		zap.Int("styles", len(res.Synthesized)),
		zap.Int("markers", res.Markers))
	return res, nil
}

func newStyleSet(styles *etree.Document) (*styleSet, error) {
	root := styles.Root()
	if root == nil || !IsW(root, "styles") {
		return nil, fmt.Errorf("%w: styles part has no styles root", ErrUnexpectedShape)
	}
	set := &styleSet{root: root, prefix: spaceOf(root), byID: make(map[string]*etree.Element)}
	for _, el := range root.ChildElements() {
		if !IsW(el, "style") {
			continue
		}
		id := AttrW(el, "styleId")
		if strings.Contains(id, SynthesizedSuffix) || id == MarkerStyleID {
			return nil, fmt.Errorf("%w: %q", ErrReservedName, id)
		}
		set.byID[id] = el
	}
	return set, nil
}

// addMarkerStyle defines hidden character style for source identifier runs.
func (s *styleSet) addMarkerStyle() {
	t := NewPropertyTree(s.prefix, "style")
	root := t.Root()
	t.SetAttr(root, s.prefix, "type", KindCharacter.StyleType())
	t.SetAttr(root, s.prefix, "customStyle", "1")
	t.SetAttr(root, s.prefix, "styleId", MarkerStyleID)
	t.SetAttr(t.AppendChild(root, s.prefix, "name"), s.prefix, "val", MarkerStyleID)
	t.AppendChild(t.AppendChild(root, s.prefix, "rPr"), s.prefix, "vanish")

	el := t.Element()
	s.root.AddChild(el)
	s.byID[MarkerStyleID] = el
}

func (p *Promoter) promoteParagraph(para *etree.Element, set *styleSet, res *PromoteResult) error {
	res.Paragraphs++

	pPr := ChildW(para, "pPr")
	ref, direct := splitProperties(pPr, "pStyle", skipParagraphProps)
	if len(direct) > 0 {
		id, err := p.synthesize(set, KindParagraph, AttrW(ref, "val"), direct)
		if err != nil {
			return fmt.Errorf("paragraph %q: %w", ParagraphID(para), err)
		}
		if ref == nil {
			ref = etree.NewElement(qualify(spaceOf(pPr), "pStyle"))
			pPr.InsertChildAt(0, ref)
		}
		SetAttrW(ref, "val", id)
		res.Synthesized = append(res.Synthesized, id)
	}

	for _, run := range paragraphRuns(para) {
		id, err := p.promoteRun(run, set)
		if err != nil {
			return fmt.Errorf("paragraph %q: %w", ParagraphID(para), err)
		}
		res.Runs++
		if id != "" {
			res.Synthesized = append(res.Synthesized, id)
		}
	}

	srcID := ParagraphID(para)
	if srcID == "" {
		res.Messages = append(res.Messages, common.Infof("paragraph %d has no stable identifier", res.Paragraphs))
		return nil
	}
	para.AddChild(markerRun(spaceOf(para), srcID))
	res.Markers++
	return nil
}

// promoteRun returns identifier of synthesized style or empty string when run
// has no direct formatting.
func (p *Promoter) promoteRun(run *etree.Element, set *styleSet) (string, error) {
	rPr := ChildW(run, "rPr")
	ref, direct := splitProperties(rPr, "rStyle", skipRunProps)
	if len(direct) == 0 {
		return "", nil
	}
	id, err := p.synthesize(set, KindCharacter, AttrW(ref, "val"), direct)
	if err != nil {
		return "", fmt.Errorf("run: %w", err)
	}
	if ref == nil {
		ref = etree.NewElement(qualify(spaceOf(rPr), "rStyle"))
		rPr.InsertChildAt(0, ref)
	}
	SetAttrW(ref, "val", id)
	return id, nil
}

// synthesize creates new style absorbing direct formatting and appends it to
// the styles part. When base is not empty the referenced style is cloned and
// the clone is based on it so formatting not captured here still cascades.
func (p *Promoter) synthesize(set *styleSet, kind Kind, base string, direct []*etree.Element) (string, error) {
	var t *PropertyTree
	if base != "" {
		orig, ok := set.byID[base]
		if !ok {
			return "", fmt.Errorf("%w: %s style %q", ErrDanglingStyle, kind.StyleType(), base)
		}
		if typ := AttrW(orig, "type"); typ != kind.StyleType() {
			return "", fmt.Errorf("%w: style %q is %q, expected %q", ErrUnexpectedShape, base, typ, kind.StyleType())
		}
		t = TreeFromElement(orig)
	} else {
		t = NewPropertyTree(set.prefix, "style")
		t.SetAttr(t.Root(), set.prefix, "type", kind.StyleType())
	}

	id := set.nextID(p.seq, base)
	root := t.Root()
	t.SetAttr(root, set.prefix, "styleId", id)
	t.SetAttr(root, set.prefix, "customStyle", "1")
	t.RemoveAttr(root, "default")

	name := t.Child(root, "name")
	if name == NoNode {
		name = t.InsertBefore(root, firstChild(t, root), set.prefix, "name")
	}
	t.SetAttr(name, set.prefix, "val", id)

	if base != "" {
		basedOn := t.Child(root, "basedOn")
		if basedOn == NoNode {
			basedOn = t.InsertBefore(root, t.NextSibling(name), set.prefix, "basedOn")
		}
		t.SetAttr(basedOn, set.prefix, "val", base)
	}

	container := t.Child(root, kind.Container())
	if container == NoNode {
		before := NoNode
		if kind == KindParagraph {
			before = t.Child(root, "rPr")
		}
		container = t.InsertBefore(root, before, set.prefix, kind.Container())
	}
	for _, el := range direct {
		t.Merge(container, el)
	}

	el := t.Element()
	set.root.AddChild(el)
	set.byID[id] = el

	p.log.Debug("Style synthesized", zap.String("id", id), zap.String("type", kind.StyleType()), zap.String("based_on", base))
	return id, nil
}

// nextID returns synthesized identifier not used by any style.
func (s *styleSet) nextID(seq *Sequence, base string) string {
	for {
		id := SynthesizedID(base, seq.Next())
		if _, taken := s.byID[id]; !taken {
			return id
		}
	}
}

// splitProperties separates style reference from direct formatting elements
// of a properties container.
func splitProperties(container *etree.Element, refName string, skip map[string]bool) (*etree.Element, []*etree.Element) {
	if container == nil {
		return nil, nil
	}
	var (
		ref    *etree.Element
		direct []*etree.Element
	)
	for _, c := range container.ChildElements() {
		switch {
		case IsW(c, refName):
			ref = c
		case skip[c.Tag]:
		default:
			direct = append(direct, c)
		}
	}
	return ref, direct
}

// paragraphRuns returns runs belonging to paragraph, including runs wrapped
// into hyperlinks, smart tags, revision ranges and content controls. Nested
// paragraphs (text boxes) own their runs.
func paragraphRuns(para *etree.Element) []*etree.Element {
	var runs []*etree.Element
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for _, c := range el.ChildElements() {
			switch {
			case IsW(c, "r"):
				runs = append(runs, c)
			case IsW(c, "p"), IsW(c, "pPr"):
			default:
				walk(c)
			}
		}
	}
	walk(para)
	return runs
}

func markerRun(space, srcID string) *etree.Element {
	r := etree.NewElement(qualify(space, "r"))
	rStyle := r.CreateElement(qualify(space, "rPr")).CreateElement(qualify(space, "rStyle"))
	rStyle.CreateAttr(qualify(space, "val"), MarkerStyleID)
	r.CreateElement(qualify(space, "t")).SetText(srcID)
	return r
}

func firstChild(t *PropertyTree, id NodeID) NodeID {
	if children := t.Children(id); len(children) > 0 {
		return children[0]
	}
	return NoNode
}
