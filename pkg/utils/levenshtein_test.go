package utils

import "testing"

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"cat", "bat", 1},
		{"cat", "cart", 1},
		{"kitten", "sitting", 3},
		{"ab", "ba", 2},
		{"đăng", "dang", 2},
	}
	for _, tt := range tests {
		if got := LevenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := LevenshteinDistance(tt.b, tt.a); got != tt.want {
			t.Errorf("LevenshteinDistance not symmetric for (%q, %q)", tt.a, tt.b)
		}
	}
}

func TestOSADistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"ab", "ba", 1},
		{"teh", "the", 1},
		{"recieve", "receive", 1},
		{"kitten", "sitting", 3},
		{"quy dinh", "quy dinh", 0},
	}
	for _, tt := range tests {
		if got := OSADistance(tt.a, tt.b); got != tt.want {
			t.Errorf("OSADistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
