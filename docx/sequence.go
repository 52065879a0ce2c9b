package docx

import (
	"regexp"
	"strconv"
)

const (
	// SynthesizedSuffix separates base style name from counter in
	// synthesized style identifiers. It must not appear in real style names.
	SynthesizedSuffix = "HEDmod"
	// MarkerStyleID is the character style of runs carrying source
	// paragraph identifiers.
	MarkerStyleID = "HEDsourceId"
)

var synthesizedRe = regexp.MustCompile(SynthesizedSuffix + `[0-9]+$`)

// Sequence hands out numbers for synthesized style identifiers. Paragraph and
// run styles share one sequence so identifiers never collide across kinds.
// Each conversion owns its own sequence.
type Sequence struct {
	next int
}

// NewSequence returns sequence starting at 1.
func NewSequence() *Sequence {
	return &Sequence{next: 1}
}

func (s *Sequence) Next() int {
	n := s.next
	s.next++
	return n
}

// SynthesizedID forms style identifier from base style name and counter.
// Base is empty for styles synthesized from formatting without named style.
func SynthesizedID(base string, n int) string {
	return base + SynthesizedSuffix + strconv.Itoa(n)
}

// StripSynthesized removes synthesized suffix with trailing counter from a
// class token or style identifier, returning what is left of the base name.
func StripSynthesized(id string) string {
	return synthesizedRe.ReplaceAllString(id, "")
}

// IsSynthesized reports whether id was produced by SynthesizedID.
func IsSynthesized(id string) bool {
	return synthesizedRe.MatchString(id)
}
