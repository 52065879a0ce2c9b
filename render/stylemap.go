package render

import (
	"bufio"
	"regexp"
	"strings"

	"dxc/common"
)

// Rule is a single parsed style mapping line.
type Rule struct {
	// Selector is "p" for paragraphs or "r" for runs.
	Selector  string
	StyleName string
	// Element is HTML tag name to produce, Class may be empty.
	Element string
	Class   string
	Fresh   bool
}

// StyleMap holds mapping rules indexed by selector and style name. When the
// same style is mapped more than once first rule wins.
type StyleMap struct {
	rules []Rule
	index map[string]int
}

var ruleRe = regexp.MustCompile(`^(p|r)\[style-name='((?:[^'\\]|\\.)*)'\]\s*=>\s*([a-zA-Z][a-zA-Z0-9]*)(?:\.([^\s:]*))?(:fresh)?$`)

var nameUnescaper = strings.NewReplacer(`\\`, `\`, `\'`, `'`)

func ruleKey(selector, name string) string {
	return selector + "\x00" + name
}

// ParseStyleMap parses style map text, one rule per line. Empty lines and
// lines starting with '#' are ignored, malformed lines are reported and
// skipped.
func ParseStyleMap(text string) (*StyleMap, []common.Message) {
	sm := &StyleMap{index: make(map[string]int)}

	var msgs []common.Message
	sc := bufio.NewScanner(strings.NewReader(text))
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := ruleRe.FindStringSubmatch(line)
		if m == nil {
			msgs = append(msgs, common.Warningf("Did not understand this style mapping, so ignored it: %s (line %d)", line, n))
			continue
		}
		r := Rule{
			Selector:  m[1],
			StyleName: nameUnescaper.Replace(m[2]),
			Element:   strings.ToLower(m[3]),
			Class:     m[4],
			Fresh:     m[5] != "",
		}
		if r.Selector == "r" && r.Element != "span" {
			msgs = append(msgs, common.Warningf("Run style mapping must produce span, ignored: %s (line %d)", line, n))
			continue
		}
		key := ruleKey(r.Selector, r.StyleName)
		if _, exists := sm.index[key]; exists {
			continue
		}
		sm.index[key] = len(sm.rules)
		sm.rules = append(sm.rules, r)
	}
	return sm, msgs
}

// Len returns number of distinct rules.
func (sm *StyleMap) Len() int {
	if sm == nil {
		return 0
	}
	return len(sm.rules)
}

// Lookup finds rule for selector and style display name.
func (sm *StyleMap) Lookup(selector, name string) (Rule, bool) {
	if sm == nil {
		return Rule{}, false
	}
	i, ok := sm.index[ruleKey(selector, name)]
	if !ok {
		return Rule{}, false
	}
	return sm.rules[i], true
}
