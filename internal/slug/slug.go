// Package slug folds free text into lowercase ASCII keys.
package slug

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Make converts s to a hyphenated ASCII slug.
// "Música de Fundo" -> "musica-de-fundo".
// "Twitter/X" -> "twitter-x".
func Make(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = nonAlphanumeric.ReplaceAllString(strings.ToLower(folded), "-")
	return strings.Trim(folded, "-")
}

// HasWord reports whether the slug of s contains any of words as a whole segment.
func HasWord(s string, words ...string) bool {
	parts := strings.Split(Make(s), "-")
	for _, w := range words {
		if slices.Contains(parts, w) {
			return true
		}
	}
	return false
}
