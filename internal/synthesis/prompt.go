package synthesis

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/retrieval"
)

const systemPrompt = `You are a helpful assistant that answers questions based ONLY on the provided documents.
Answer clearly and concisely in the same language as the question.
If the documents do not contain enough information, say "Tôi không tìm thấy thông tin liên quan đến câu hỏi này trong tài liệu."
Never add information that is not in the documents.
Cite the documents you use as [Document N].`

func userPrompt(query string, docs []retrieval.ScoredDocument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nDocuments:\n", query)
	for i, sd := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Document %d] %s: %s", i+1, sd.Document.Title, sd.Document.Content)
	}
	b.WriteString("\n\nAnswer (chỉ dựa trên các tài liệu được cung cấp):")
	return b.String()
}
