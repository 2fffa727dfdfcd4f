// Package textnorm folds text for matching: lowercase, no diacritics, no punctuation.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases s, folds diacritics to base Latin letters, replaces
// punctuation with spaces and collapses whitespace. It is total and idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	folded := fold(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		switch r {
		case 'đ', 'Đ':
			r = 'd'
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// fold strips combining marks after canonical decomposition.
// A transformer carries state, so a new chain is built per call.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Tokenize returns the words of the normalized text.
func Tokenize(s string) []string {
	return strings.Fields(Normalize(s))
}

// ContainsPhrase reports whether the normalized phrase occurs in normalized
// text on word boundaries. Both arguments must already be normalized.
func ContainsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}
