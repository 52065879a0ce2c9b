//go:build windows

package config

import (
	"os"
	"strings"

	"golang.org/x/sys/windows"
	"golang.org/x/term"
)

const forbiddenChars = `<>":/\|?*`

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// fixReserved makes sure name could be created: device names are prefixed
// and trailing dots and spaces are removed.
func fixReserved(name string) string {
	name = strings.TrimRight(name, ". ")
	stem, _, _ := strings.Cut(name, ".")
	if reservedNames[strings.ToUpper(stem)] {
		return "_" + name
	}
	return name
}

// EnableColorOutput checks if colorized output is possible and enables VT100
// sequence processing in Windows console (Windows 10 and later).
func EnableColorOutput(stream *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if v := windows.RtlGetVersion(); v == nil || v.MajorVersion < 10 {
		return false
	}
	if !term.IsTerminal(int(stream.Fd())) {
		return false
	}

	var mode uint32
	h := windows.Handle(stream.Fd())
	if err := windows.GetConsoleMode(h, &mode); err != nil {
		return false
	}
	return windows.SetConsoleMode(h, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING) == nil
}
