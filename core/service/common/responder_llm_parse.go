// Package common provides shared utilities for services.
package common

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ExtractJSONBlock strips markdown fences and returns the first balanced
// top-level JSON object from provider output. Anything ambiguous is a parse
// failure, never a best-effort guess.
func ExtractJSONBlock(resp string) (string, error) {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	start := strings.IndexByte(resp, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object in provider output")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(resp); i++ {
		ch := resp[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return resp[start : i+1], nil
				}
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in provider output")
}

// TruncateBody bounds a message body before prompting. The cut backs up to
// a rune boundary so accented text is never split mid-character.
func TruncateBody(body string, maxLen int) string {
	if len(body) <= maxLen {
		return body
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}

// Clamp01 bounds a confidence value to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
