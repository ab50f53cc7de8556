// Package matcher scores free-text input against knowledge-base patterns and
// picks the best intent.
package matcher

import (
	"regexp"
	"strings"
	"unicode"
)

// nonWord matches anything that is neither an ASCII word character nor
// whitespace.
var nonWord = regexp.MustCompile(`[^\w\s]`)

// Normalize lower-cases text, strips punctuation and symbols, and collapses
// whitespace. Any Unicode space separates words. Normalize(Normalize(s)) ==
// Normalize(s).
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = strings.Map(spaceToBlank, text)
	text = nonWord.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// spaceToBlank maps every space rune, including NBSP, \v and the BOM, to an
// ASCII blank so the strip keeps it as a separator.
func spaceToBlank(r rune) rune {
	if unicode.IsSpace(r) || r == '\uFEFF' {
		return ' '
	}
	return r
}
