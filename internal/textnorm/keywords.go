package textnorm

import "unicode/utf8"

// MinKeywordLength is the shortest token kept by Keywords, exclusive.
const MinKeywordLength = 2

// stopwords are normalized Vietnamese and English function words.
var stopwords = map[string]struct{}{
	// vi
	"cua": {}, "nhung": {}, "cac": {}, "cho": {}, "voi": {}, "nao": {}, "nhu": {},
	"duoc": {}, "khong": {}, "toi": {}, "ban": {}, "mot": {}, "nay": {}, "thi": {},
	"the": {}, "trong": {}, "tai": {}, "sao": {}, "bao": {}, "nhieu": {}, "hay": {},
	"hoac": {}, "neu": {}, "khi": {}, "vay": {}, "ung": {}, "minh": {}, "chung": {},
	"lam": {}, "gium": {}, "giup": {}, "xin": {}, "hoi": {}, "con": {}, "cung": {},
	"nhe": {}, "a": {}, "thay": {},
	// en
	"and": {}, "for": {}, "what": {}, "how": {}, "are": {}, "with": {}, "this": {},
	"that": {}, "from": {}, "you": {}, "your": {}, "can": {}, "does": {}, "which": {},
	"who": {}, "why": {}, "when": {}, "where": {}, "about": {}, "have": {}, "has": {},
	"was": {}, "were": {}, "will": {}, "not": {}, "but": {}, "into": {}, "its": {},
}

// IsStopword reports whether a normalized token is a stopword.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// Keywords returns the distinct normalized tokens of s that are longer than
// MinKeywordLength characters and are not stopwords, in order of appearance.
func Keywords(s string) []string {
	tokens := Tokenize(s)
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) <= MinKeywordLength || IsStopword(tok) {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// TokenSet returns the set of normalized tokens in s.
func TokenSet(s string) map[string]struct{} {
	tokens := Tokenize(s)
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}
