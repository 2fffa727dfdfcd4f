package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnippet_ShortContentUnchanged(t *testing.T) {
	assert.Equal(t, "short text", Snippet("short text", "text", 50))
	assert.Equal(t, "no limit", Snippet("no limit", "x", 0))
}

func TestSnippet_CentersOnMatch(t *testing.T) {
	content := strings.Repeat("filler ", 40) + "Nhân viên được nghỉ phép mười hai ngày mỗi năm. " + strings.Repeat("tail ", 40)
	got := Snippet(content, "nghi phep", 60)

	assert.True(t, strings.HasPrefix(got, ellipsis))
	assert.True(t, strings.HasSuffix(got, ellipsis))
	assert.Contains(t, got, "nghỉ phép")
	assert.LessOrEqual(t, len([]rune(got)), 60+2*len(ellipsis))
}

func TestSnippet_NoMatchTakesStart(t *testing.T) {
	content := "alpha beta gamma delta epsilon zeta eta theta iota kappa"
	got := Snippet(content, "omega", 20)
	assert.Equal(t, "alpha beta gamma"+ellipsis, got)
}

func TestSnippet_MatchAtStart(t *testing.T) {
	content := "Parking is on level two of the east building next to the gym"
	got := Snippet(content, "parking", 25)
	assert.Equal(t, "Parking is on level two"+ellipsis, got)
}
