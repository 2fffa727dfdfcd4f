// Package synthesis turns retrieved documents into an answer.
package synthesis

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/pkg/utils"
)

// NoInformationMessage is returned when no retrieved document is relevant enough to quote.
const NoInformationMessage = "Xin lỗi, tôi không tìm thấy thông tin liên quan đến câu hỏi của bạn trong cơ sở dữ liệu."

// DefaultMaxLength is the default answer length in characters.
const DefaultMaxLength = 2000

const (
	minRelevance     = 0.25
	minKeyword       = 0.2
	minBestRelevance = 0.3
	minBestKeyword   = 0.15
	maxQuoted        = 2
	separator        = "\n\n---\n\n"
)

// Concatenator answers by quoting the best documents verbatim.
type Concatenator struct {
	MaxLength int
}

// Concatenate joins the selected documents as "**title**\ncontent" blocks,
// truncated to MaxLength characters.
func (c Concatenator) Concatenate(docs []retrieval.ScoredDocument) string {
	selected := selectDocuments(docs)
	if len(selected) == 0 {
		return NoInformationMessage
	}
	blocks := make([]string, len(selected))
	for i, sd := range selected {
		blocks[i] = fmt.Sprintf("**%s**\n%s", sd.Document.Title, sd.Document.Content)
	}
	return utils.Truncate(strings.Join(blocks, separator), c.maxLength())
}

// selectDocuments keeps up to two documents that are relevant by score or
// keyword overlap. When none qualifies, the best document is used if it
// clears a slightly higher bar.
func selectDocuments(docs []retrieval.ScoredDocument) []retrieval.ScoredDocument {
	var out []retrieval.ScoredDocument
	for _, sd := range docs {
		if sd.RelevanceScore >= minRelevance || sd.KeywordScore >= minKeyword {
			out = append(out, sd)
			if len(out) == maxQuoted {
				return out
			}
		}
	}
	if len(out) > 0 || len(docs) == 0 {
		return out
	}
	if best := docs[0]; best.RelevanceScore >= minBestRelevance || best.KeywordScore >= minBestKeyword {
		return docs[:1]
	}
	return nil
}
