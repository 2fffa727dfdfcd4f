package search

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/textnorm"
)

const ellipsis = "..."

// Snippet returns about maxLen runes of content around the first word that
// matches a query keyword. Matching is accent and case insensitive, so a
// query typed without diacritics still finds "nghỉ phép". Without a match the
// snippet is the start of content.
func Snippet(content, query string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(content) <= maxLen {
		return content
	}
	words := strings.Fields(content)
	keywords := make(map[string]struct{})
	for _, k := range textnorm.Keywords(query) {
		keywords[k] = struct{}{}
	}

	hit := -1
	for i, w := range words {
		if _, ok := keywords[textnorm.Normalize(w)]; ok {
			hit = i
			break
		}
	}

	// Put the match about a third of the way in so some lead-in context shows.
	start := 0
	if hit > 0 {
		start = hit
		budget := maxLen / 3
		for start > 0 {
			budget -= utf8.RuneCountInString(words[start-1]) + 1
			if budget < 0 {
				break
			}
			start--
		}
	}

	var b strings.Builder
	n := 0
	end := start
	for end < len(words) {
		w := words[end]
		size := utf8.RuneCountInString(w)
		if n > 0 && n+1+size > maxLen {
			break
		}
		if n > 0 {
			b.WriteByte(' ')
			n++
		}
		b.WriteString(w)
		n += size
		end++
	}

	out := b.String()
	if start > 0 {
		out = ellipsis + out
	}
	if end < len(words) {
		out += ellipsis
	}
	return out
}
