// Package cli formats answers and search results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

var (
	heading = color.New(color.FgCyan, color.Bold)
	dim     = color.New(color.Faint)
	sources = map[models.Source]*color.Color{
		models.SourceRule:     color.New(color.FgGreen, color.Bold),
		models.SourceRAG:      color.New(color.FgBlue, color.Bold),
		models.SourceFallback: color.New(color.FgYellow, color.Bold),
	}
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes a chatbot answer to w.
func WriteAnswer(w io.Writer, res *models.QueryResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	c, ok := sources[res.Source]
	if !ok {
		c = heading
	}
	c.Fprintf(w, "[%s]", res.Source)
	fmt.Fprintf(w, " confidence %.2f", res.Confidence)
	if res.FallbackReason != models.ReasonNone {
		fmt.Fprintf(w, " (%s)", res.FallbackReason)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "\n%s\n\n", res.Answer)

	var details []string
	if res.MatchedRuleID != "" {
		details = append(details, "rule: "+res.MatchedRuleID)
	}
	if len(res.RetrievedDocumentIDs) > 0 {
		details = append(details, "documents: "+strings.Join(res.RetrievedDocumentIDs, ", "))
	}
	if res.UsedGenerativeModel {
		details = append(details, "generated")
	}
	details = append(details, fmt.Sprintf("%dms", res.ResponseTime.Milliseconds()))
	dim.Fprintln(w, strings.Join(details, " | "))
	return nil
}

// WriteSearchResults writes a search response to w.
func WriteSearchResults(w io.Writer, resp *search.Response, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms\n", resp.Total, resp.TookMS)
	if resp.Suggestion != "" {
		fmt.Fprintf(w, "Did you mean: %s\n", resp.Suggestion)
	}
	fmt.Fprintln(w)
	for _, r := range resp.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		heading.Fprintf(w, "%d. %s", r.Rank, r.Document.Title)
		fmt.Fprintf(w, "  [%s]\n", r.Document.ID)
		dim.Fprintf(w, "score %.4f (keyword %.4f, semantic %.4f) | %s\n",
			r.Score, r.KeywordScore, r.SemanticScore, r.Document.Category)
		snippet := r.Snippet
		if snippet == "" {
			snippet = utils.Truncate(r.Document.Content, 200)
		}
		fmt.Fprintf(w, "\n%s\n\n", snippet)
	}
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
