package config

import (
	"strings"
	"unicode"
)

const badFileName = "_bad_file_name_"

// CleanFileName removes characters which are not allowed in file names on
// current platform. Control characters and leading dots are always dropped.
func CleanFileName(in string) string {
	out := strings.Map(func(sym rune) rune {
		if unicode.IsControl(sym) || strings.ContainsRune(forbiddenChars, sym) {
			return -1
		}
		return sym
	}, in)
	out = strings.TrimLeft(out, ".")
	out = fixReserved(out)
	if len(strings.TrimSpace(out)) == 0 {
		return badFileName
	}
	return out
}
