package embedding

import (
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("Điểm rèn luyện", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths: %d %d %d", len(ids), len(attn), len(types))
	}
	if ids[0] != clsTokenID {
		t.Errorf("expected CLS %d, got %d", clsTokenID, ids[0])
	}
	if ids[4] != sepTokenID {
		t.Errorf("expected SEP after 3 words, got %d", ids[4])
	}
	for i := 0; i <= 4; i++ {
		if attn[i] != 1 {
			t.Errorf("attention[%d] should be 1", i)
		}
	}
	if attn[5] != 0 {
		t.Error("padding should not be attended")
	}
	for i := 1; i <= 3; i++ {
		if ids[i] < 1000 || ids[i] >= vocabBuckets {
			t.Errorf("word id %d out of range", ids[i])
		}
	}
}

func TestSimpleTokenizer_Truncates(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, _, _ := tok.Tokenize("a b c d e f g h i j k l", 6)
	if ids[5] != sepTokenID {
		t.Errorf("last slot should hold SEP, got %d", ids[5])
	}
}
