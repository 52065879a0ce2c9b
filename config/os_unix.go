//go:build !windows

package config

import (
	"os"

	"golang.org/x/term"
)

const forbiddenChars = string(os.PathSeparator) + string(os.PathListSeparator)

func fixReserved(name string) string {
	return name
}

// EnableColorOutput checks if colorized output is possible. NO_COLOR
// environment variable turns colors off.
func EnableColorOutput(stream *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(stream.Fd()))
}
