package pacing

import (
	"unicode"
	"unicode/utf8"
)

// Tokenize splits s into alternating runs of whitespace and non-whitespace.
// Concatenating the result yields s. No token is empty.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	var tokens []string
	start := 0
	first, _ := utf8.DecodeRuneInString(s)
	inSpace := unicode.IsSpace(first)

	for i, r := range s {
		if space := unicode.IsSpace(r); space != inSpace {
			tokens = append(tokens, s[start:i])
			start = i
			inSpace = space
		}
	}
	return append(tokens, s[start:])
}
