// Package css reads user stylesheets which are embedded into converted
// documents. Only what is needed to check stylesheet against document styles
// and to write it back in normalized form is kept.
package css

import (
	"slices"
	"strings"

	"github.com/maruel/natural"
)

type Declaration struct {
	Property  string
	Value     string
	Important bool
}

func (d Declaration) String() string {
	if d.Important {
		return d.Property + ": " + d.Value + " !important;"
	}
	return d.Property + ": " + d.Value + ";"
}

// Rule is a single ruleset. Media is empty for top level rules and holds
// query text for rules found inside @media block.
type Rule struct {
	Media        string
	Selectors    []string
	Declarations []Declaration
	// classes referenced by selectors, in order of appearance
	classes []string
}

type Stylesheet struct {
	Imports  []string
	Rules    []Rule
	Warnings []string
}

// Classes returns every class name referenced by rule selectors, without
// duplicates, in natural order.
func (s *Stylesheet) Classes() []string {
	var res []string
	for _, r := range s.Rules {
		for _, c := range r.classes {
			if !slices.Contains(res, c) {
				res = append(res, c)
			}
		}
	}
	slices.SortFunc(res, func(a, b string) int {
		switch {
		case natural.Less(a, b):
			return -1
		case natural.Less(b, a):
			return 1
		}
		return 0
	})
	return res
}

// RulesByClass returns rules with at least one selector referencing class.
func (s *Stylesheet) RulesByClass(class string) []Rule {
	var res []Rule
	for _, r := range s.Rules {
		if slices.Contains(r.classes, class) {
			res = append(res, r)
		}
	}
	return res
}

// String writes stylesheet in normalized form suitable for embedding into
// style element. Consecutive rules of the same media block are grouped.
func (s *Stylesheet) String() string {
	var b strings.Builder
	for _, imp := range s.Imports {
		b.WriteString(`@import url("` + escapeDoubleQuoted(imp) + `");` + "\n")
	}
	for i := 0; i < len(s.Rules); {
		media := s.Rules[i].Media
		indent := ""
		if media != "" {
			b.WriteString("@media " + media + " {\n")
			indent = "  "
		}
		for ; i < len(s.Rules) && s.Rules[i].Media == media; i++ {
			r := s.Rules[i]
			b.WriteString(indent + strings.Join(r.Selectors, ", ") + " {")
			for _, d := range r.Declarations {
				b.WriteString(" " + d.String())
			}
			b.WriteString(" }\n")
		}
		if media != "" {
			b.WriteString("}\n")
		}
	}
	// never let content close the element it is embedded into
	return strings.ReplaceAll(b.String(), "</", `<\/`)
}

func escapeDoubleQuoted(s string) string {
	if !strings.ContainsAny(s, `"\`) {
		return s
	}
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
