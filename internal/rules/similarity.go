package rules

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/kotae/pkg/utils"
)

// Comparator scores two normalized strings in [0,1].
type Comparator interface {
	Compare(a, b string) float64
}

// ComparatorFunc adapts a function to Comparator.
type ComparatorFunc func(a, b string) float64

// Compare calls f(a, b).
func (f ComparatorFunc) Compare(a, b string) float64 { return f(a, b) }

// ComparatorByName returns "dice" (the default) or "levenshtein".
func ComparatorByName(name string) Comparator {
	if name == "levenshtein" {
		return ComparatorFunc(LevenshteinSimilarity)
	}
	return ComparatorFunc(DiceCoefficient)
}

// DiceCoefficient is the Sørensen–Dice coefficient over character bigrams,
// ignoring whitespace. Bigrams are counted as a multiset.
func DiceCoefficient(a, b string) float64 {
	a, b = stripSpace(a), stripSpace(b)
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) < 2 || len(rb) < 2 {
		return 0
	}

	bigrams := make(map[[2]rune]int, len(ra)-1)
	for i := 0; i < len(ra)-1; i++ {
		bigrams[[2]rune{ra[i], ra[i+1]}]++
	}
	intersection := 0
	for i := 0; i < len(rb)-1; i++ {
		bg := [2]rune{rb[i], rb[i+1]}
		if bigrams[bg] > 0 {
			bigrams[bg]--
			intersection++
		}
	}
	return 2 * float64(intersection) / float64(len(ra)+len(rb)-2)
}

// LevenshteinSimilarity is 1 - distance/longest length.
func LevenshteinSimilarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(utils.LevenshteinDistance(a, b))/float64(longest)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
