package config

import (
	"runtime"
	"testing"
)

func TestCleanFileName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report", "report"},
		{"leading dots", "..hidden", "hidden"},
		{"separator", "a/b", "ab"},
		{"control characters", "a\x00b\tc", "abc"},
		{"empty", "", badFileName},
		{"only dots", "...", badFileName},
		{"unicode", "Отчёт", "Отчёт"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanFileName(tt.in); got != tt.want {
				t.Errorf("CleanFileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanFileName_Windows(t *testing.T) {
	if runtime.GOOS != "windows" {
		t.Skip("windows only")
	}
	tests := []struct {
		in   string
		want string
	}{
		{`a<b>c:d"e|f?g*h`, "abcdefgh"},
		{"con", "_con"},
		{"LPT1.txt", "_LPT1.txt"},
		{"name. ", "name"},
	}
	for _, tt := range tests {
		if got := CleanFileName(tt.in); got != tt.want {
			t.Errorf("CleanFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
