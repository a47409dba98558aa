package common

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateBody(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		maxLen int
		want   string
	}{
		{"short body untouched", "olá", 100, "olá"},
		{"ascii cut at limit", "abcdef", 3, "abc"},
		{"cut lands on rune boundary", "não há", 3, "nã"},
		{"cut inside rune backs up", "nã", 2, "n"},
		{"empty body", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateBody(tt.body, tt.maxLen)
			if got != tt.want {
				t.Errorf("TruncateBody(%q, %d) = %q, want %q", tt.body, tt.maxLen, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("TruncateBody(%q, %d) produced invalid UTF-8", tt.body, tt.maxLen)
			}
		})
	}
}

func TestTruncateBodyLongPortugueseText(t *testing.T) {
	body := strings.Repeat("preparação ", 50)
	got := TruncateBody(body, 137)
	if len(got) > 137 {
		t.Errorf("len = %d, want <= 137", len(got))
	}
	if !utf8.ValidString(got) {
		t.Error("truncated body is not valid UTF-8")
	}
}
