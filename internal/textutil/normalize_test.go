package textutil

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"lowercases", "Kalki 2898 AD", "kalki 2898 ad"},
		{"collapses punctuation", "Spider-Man: No Way Home!", "spider man no way home"},
		{"strips diacritics", "Amélie à Paris", "amelie a paris"},
		{"trims edges", "  ...Hero?  ", "hero"},
		{"only punctuation", "!!! --- ???", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Jukebox: Full Album (2024)")
	want := []string{"jukebox", "full", "album", "2024"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
	if toks := Tokenize("  "); toks != nil {
		t.Errorf("Tokenize(blank) = %v, want nil", toks)
	}
}
