package keyword

import (
	"sort"
	"strings"
	"sync"

	"github.com/hyperjump/kotae/internal/textnorm"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Suggestion is a dictionary term close to a query word.
type Suggestion struct {
	Term      string `json:"term"`
	Distance  int    `json:"distance"`
	Frequency int    `json:"frequency"`
}

// Suggester proposes a corrected query from the indexed vocabulary.
type Suggester struct {
	dictionary  TermDictionary
	maxDistance int
	minLength   int

	mu    sync.RWMutex
	terms map[string]int
}

// SuggesterOption configures a Suggester.
type SuggesterOption func(*Suggester)

// WithMaxDistance sets the maximum edit distance for suggestions.
func WithMaxDistance(d int) SuggesterOption {
	return func(s *Suggester) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// NewSuggester creates a Suggester over dict. Words shorter than four runes are never corrected.
func NewSuggester(dict TermDictionary, opts ...SuggesterOption) *Suggester {
	s := &Suggester{dictionary: dict, maxDistance: 2, minLength: 4}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh reloads the vocabulary. Call it after reindexing.
func (s *Suggester) Refresh() error {
	terms, err := s.dictionary.Terms()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.terms = terms
	s.mu.Unlock()
	return nil
}

func (s *Suggester) vocabulary() map[string]int {
	s.mu.RLock()
	terms := s.terms
	s.mu.RUnlock()
	if terms != nil {
		return terms
	}
	if err := s.Refresh(); err != nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.terms
}

// Suggest returns the best replacement for word, preferring smaller distance then higher frequency.
func (s *Suggester) Suggest(word string) (Suggestion, bool) {
	terms := s.vocabulary()
	if _, known := terms[word]; known || len([]rune(word)) < s.minLength {
		return Suggestion{}, false
	}
	var candidates []Suggestion
	for term, freq := range terms {
		if abs(len(term)-len(word)) > s.maxDistance {
			continue
		}
		if d := utils.OSADistance(word, term); d <= s.maxDistance {
			candidates = append(candidates, Suggestion{Term: term, Distance: d, Frequency: freq})
		}
	}
	if len(candidates) == 0 {
		return Suggestion{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.Term < b.Term
	})
	return candidates[0], true
}

// CorrectQuery normalizes query and replaces unknown words. The second result
// reports whether anything changed.
func (s *Suggester) CorrectQuery(query string) (string, bool) {
	words := textnorm.Tokenize(query)
	changed := false
	for i, w := range words {
		if sug, ok := s.Suggest(w); ok {
			words[i] = sug.Term
			changed = true
		}
	}
	return strings.Join(words, " "), changed
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
