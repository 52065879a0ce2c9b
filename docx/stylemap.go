package docx

import (
	"fmt"
	"strings"

	"dxc/common"
)

// Rule selectors.
const (
	SelectorParagraph = "p"
	SelectorRun       = "r"
)

// StyleMapRule tells conversion engine which HTML class to assign to
// paragraphs or runs with given style name.
type StyleMapRule struct {
	Selector    string
	DisplayName string
	Class       string
	// Fresh requests new HTML element per occurrence instead of merging
	// adjacent ones, paragraphs only.
	Fresh bool
}

var nameEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// String formats rule the way conversion engine expects it.
func (r StyleMapRule) String() string {
	name := nameEscaper.Replace(r.DisplayName)
	if r.Selector == SelectorRun {
		return fmt.Sprintf("r[style-name='%s'] => span.%s", name, r.Class)
	}
	s := fmt.Sprintf("p[style-name='%s'] => p.%s", name, r.Class)
	if r.Fresh {
		s += ":fresh"
	}
	return s
}

// MarkerRule maps source identifier marker runs. It is the only rule used
// when style mapping is disabled, so identifiers still survive conversion.
func MarkerRule() StyleMapRule {
	return StyleMapRule{Selector: SelectorRun, DisplayName: MarkerStyleID, Class: MarkerStyleID}
}

// GenerateStyleMap derives mapping rules from catalog in catalog order.
// Styles without display name are skipped and reported.
func GenerateStyleMap(c *Catalog) ([]StyleMapRule, []common.Message, error) {
	if c == nil || c.Len() == 0 {
		return nil, nil, ErrEmptyCatalog
	}

	var (
		rules []StyleMapRule
		msgs  []common.Message
	)
	for _, r := range c.Records() {
		if r.DisplayName == "" {
			msgs = append(msgs, common.Warningf("style %q skipped in style map: no display name", r.ID))
			continue
		}
		switch r.Kind {
		case KindParagraph:
			rules = append(rules, StyleMapRule{Selector: SelectorParagraph, DisplayName: r.DisplayName, Class: r.ID, Fresh: true})
		case KindCharacter:
			rules = append(rules, StyleMapRule{Selector: SelectorRun, DisplayName: r.DisplayName, Class: r.ID})
		}
	}
	return rules, msgs, nil
}

// FormatStyleMap joins rules into style map text, one rule per line.
func FormatStyleMap(rules []StyleMapRule) string {
	lines := make([]string, 0, len(rules))
	for _, r := range rules {
		lines = append(lines, r.String())
	}
	return strings.Join(lines, "\n")
}
