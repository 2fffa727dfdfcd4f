package textnorm

import (
	"regexp"
	"strings"
)

// Language is an ISO 639-1 code, or "unknown".
type Language string

const (
	LanguageVietnamese Language = "vi"
	LanguageEnglish    Language = "en"
	LanguageUnknown    Language = "unknown"
)

var (
	vietnameseMarks = regexp.MustCompile(`[ăâêôơưđàáảãạằắẳẵặầấẩẫậèéẻẽẹềếểễệìíỉĩịòóỏõọồốổỗộờớởỡợùúủũụừứửữựỳýỷỹỵ]`)
	englishWords    = regexp.MustCompile(`(?i)\b(hello|thank|please|yes|no|question|answer|help|what|how|why)\b`)
)

// DetectLanguage guesses the language of text with a confidence in [0,1].
// Vietnamese is recognized by its marked vowels; otherwise English is assumed.
func DetectLanguage(text string) (Language, float64) {
	if strings.TrimSpace(text) == "" {
		return LanguageUnknown, 0
	}
	if vietnameseMarks.MatchString(strings.ToLower(text)) {
		return LanguageVietnamese, 0.9
	}
	if englishWords.MatchString(text) {
		return LanguageEnglish, 0.7
	}
	return LanguageEnglish, 0.5
}
