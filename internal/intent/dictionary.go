package intent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/kotae/internal/textnorm"
)

// Dictionary holds the phrase lists that drive intent classification and the
// retriever's relevance checks. Entries may carry diacritics; they are
// normalized when installed in a Classifier.
type Dictionary struct {
	// RegulationPhrases mark a query as asking about rules and official documents.
	RegulationPhrases []string `yaml:"regulation_phrases"`
	// ActivityPhrases mark a query as asking about events and sign-ups.
	ActivityPhrases []string `yaml:"activity_phrases"`
	// RegulationTags mark a document as regulation material.
	RegulationTags []string `yaml:"regulation_tags"`
	// ActivityTags mark a document as activity material.
	ActivityTags []string `yaml:"activity_tags"`
	// RegistrationMarkers identify guides that explain how to register for activities.
	RegistrationMarkers []string `yaml:"registration_markers"`
	// ImportantTerms always count as important keywords regardless of length.
	ImportantTerms []string `yaml:"important_terms"`
	// ImportantPhrases satisfy the relevance check on their own.
	ImportantPhrases []string `yaml:"important_phrases"`
}

// DefaultDictionary returns the built-in Vietnamese student-affairs lists.
func DefaultDictionary() Dictionary {
	return Dictionary{
		RegulationPhrases: []string{
			"mục đích", "quy định", "ban hành", "quy chế", "điều lệ", "văn bản",
			"nghị định", "thông tư", "hệ đào tạo", "điểm hdcd", "đánh giá rèn luyện", "xếp loại",
		},
		ActivityPhrases: []string{
			"hoạt động sắp tới", "đăng ký hoạt động", "hoạt động nào", "tham gia hoạt động",
			"sự kiện", "lịch hoạt động",
		},
		RegulationTags: []string{"regulation", "policy", "quy che", "quy dinh"},
		ActivityTags:   []string{"activity", "event", "registration", "hoat dong", "dang ky"},
		RegistrationMarkers: []string{
			"đăng ký hoạt động", "đăng ký tham gia", "nút đăng ký", "registration",
		},
		ImportantTerms: []string{"hdcd", "pvcd", "drl", "gpa", "ctxh", "diem"},
		ImportantPhrases: []string{
			"điểm hdcd", "hệ đào tạo", "điểm rèn luyện", "công tác xã hội", "học bổng",
		},
	}
}

// LoadDictionary reads a YAML dictionary. Sections missing from the file keep
// their defaults; a section written as an empty list disables it.
func LoadDictionary(path string) (Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dictionary{}, fmt.Errorf("failed to read intent dictionary: %w", err)
	}
	var d Dictionary
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Dictionary{}, fmt.Errorf("failed to parse intent dictionary: %w", err)
	}
	def := DefaultDictionary()
	fill := func(dst *[]string, src []string) {
		if *dst == nil {
			*dst = src
		}
	}
	fill(&d.RegulationPhrases, def.RegulationPhrases)
	fill(&d.ActivityPhrases, def.ActivityPhrases)
	fill(&d.RegulationTags, def.RegulationTags)
	fill(&d.ActivityTags, def.ActivityTags)
	fill(&d.RegistrationMarkers, def.RegistrationMarkers)
	fill(&d.ImportantTerms, def.ImportantTerms)
	fill(&d.ImportantPhrases, def.ImportantPhrases)
	return d, nil
}

// Normalized returns a copy with every entry normalized and blanks dropped.
func (d Dictionary) Normalized() Dictionary {
	return Dictionary{
		RegulationPhrases:   normalizeAll(d.RegulationPhrases),
		ActivityPhrases:     normalizeAll(d.ActivityPhrases),
		RegulationTags:      normalizeAll(d.RegulationTags),
		ActivityTags:        normalizeAll(d.ActivityTags),
		RegistrationMarkers: normalizeAll(d.RegistrationMarkers),
		ImportantTerms:      normalizeAll(d.ImportantTerms),
		ImportantPhrases:    normalizeAll(d.ImportantPhrases),
	}
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		n := textnorm.Normalize(s)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// ContainsAny reports whether normalized text contains any of the normalized phrases.
func ContainsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if textnorm.ContainsPhrase(text, p) {
			return true
		}
	}
	return false
}

// CountMatches returns how many of the normalized phrases occur in normalized text.
func CountMatches(text string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if textnorm.ContainsPhrase(text, p) {
			n++
		}
	}
	return n
}
