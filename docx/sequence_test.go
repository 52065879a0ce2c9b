package docx

import "testing"

func TestSequence(t *testing.T) {
	seq := NewSequence()
	for want := 1; want <= 3; want++ {
		if got := seq.Next(); got != want {
			t.Errorf("Next() = %d, want %d", got, want)
		}
	}
}

func TestStripSynthesized(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BodyHEDmod1", "Body"},
		{"HEDmod2", ""},
		{"Body", "Body"},
		{"BodyHEDmod", "BodyHEDmod"},
		{"HEDmod12x", "HEDmod12x"},
	}
	for _, tt := range tests {
		if got := StripSynthesized(tt.in); got != tt.want {
			t.Errorf("StripSynthesized(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if got := StripSynthesized(StripSynthesized(tt.in)); got != StripSynthesized(tt.in) {
			t.Errorf("StripSynthesized is not idempotent for %q", tt.in)
		}
	}
	if !IsSynthesized(SynthesizedID("Body", 7)) {
		t.Error("SynthesizedID result not recognized")
	}
}
