package embedding

import "github.com/hyperjump/kotae/internal/textnorm"

const (
	clsTokenID   = 101
	sepTokenID   = 102
	vocabBuckets = 30000
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer maps normalized words to hashed vocabulary ids. It stands in
// for a real WordPiece vocabulary when only the ONNX graph is shipped.
type SimpleTokenizer struct{}

// Tokenize produces [CLS] words... [SEP] padded to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 2 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = clsTokenID
	attentionMask[0] = 1

	pos := 1
	for _, word := range textnorm.Tokenize(text) {
		if pos >= maxTokens-1 {
			break
		}
		// keep ids clear of the special-token range
		inputIDs[pos] = int64(1000 + Bucket(word, vocabBuckets-1000))
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = sepTokenID
	attentionMask[pos] = 1
	return inputIDs, attentionMask, tokenTypeIDs
}
