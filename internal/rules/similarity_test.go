package rules

import (
	"math"
	"testing"
)

func TestDiceCoefficient(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"a", "b", 0},
		{"night", "nacht", 0.25},
		{"dang ky", "dangky", 1},
		{"healed", "sealed", 0.8},
		{"aaaa", "aa", 0.5},
		{"dang ky hoat dong nhu the nao", "dang ky", 10.0 / 27.0},
	}
	for _, tt := range tests {
		got := DiceCoefficient(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("DiceCoefficient(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLevenshteinSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "abc", 1},
		{"abc", "", 0},
		{"kitten", "sitting", 1 - 3.0/7.0},
	}
	for _, tt := range tests {
		got := LevenshteinSimilarity(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("LevenshteinSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestComparatorByName(t *testing.T) {
	if ComparatorByName("levenshtein").Compare("ab", "ba") != 0 {
		t.Error("levenshtein comparator expected")
	}
	if ComparatorByName("").Compare("dang ky", "dangky") != 1 {
		t.Error("dice comparator expected by default")
	}
}
