package retrieval

import (
	"strings"

	"github.com/hyperjump/kotae/internal/intent"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/textnorm"
)

// alignment records which intent a document's category and tags point to.
type alignment struct {
	activity   bool
	regulation bool
}

// alignmentOf classifies a document against the dictionary. A guide counts as
// activity material when its tags or content mention a registration marker.
func alignmentOf(doc *models.KnowledgeDocument, d *intent.Dictionary) alignment {
	tags := make([]string, 0, len(doc.Tags))
	for _, t := range doc.Tags {
		if n := textnorm.Normalize(t); n != "" {
			tags = append(tags, n)
		}
	}

	var a alignment
	switch doc.Category {
	case models.CategoryActivity:
		a.activity = true
	case models.CategoryRegulation, models.CategoryPolicy:
		a.regulation = true
	}
	if anyIn(tags, d.ActivityTags) {
		a.activity = true
	}
	if anyIn(tags, d.RegulationTags) {
		a.regulation = true
	}
	if doc.Category == models.CategoryGuide && !a.activity {
		text := textnorm.Normalize(doc.Content) + " " + strings.Join(tags, " ")
		if intent.ContainsAny(text, d.RegistrationMarkers) {
			a.activity = true
		}
	}
	return a
}

// opposes reports whether the document belongs only to the intent opposite to in.
func (a alignment) opposes(in intent.Intent) bool {
	switch in {
	case intent.Regulation:
		return a.activity && !a.regulation
	case intent.Activity:
		return a.regulation && !a.activity
	}
	return false
}

// Multiplier adjusts a base relevance score.
type Multiplier interface {
	Name() string
	Multiply(sc *scoringContext, base float64) float64
}

type scoringContext struct {
	doc       *models.KnowledgeDocument
	intent    intent.Intent
	alignment alignment
}

// PriorityMultiplier weights a document by 5% per priority step away from 5.
type PriorityMultiplier struct{}

// Name returns the multiplier name.
func (PriorityMultiplier) Name() string { return "priority" }

// Multiply applies the priority boost.
func (PriorityMultiplier) Multiply(sc *scoringContext, base float64) float64 {
	return base * priorityBoost(sc.doc.Priority)
}

func priorityBoost(p int) float64 {
	return 1 + float64(models.ClampPriority(p)-5)*0.05
}

// CategoryMultiplier boosts documents aligned with the query intent and
// penalizes mixed ones.
type CategoryMultiplier struct {
	cfg *Config
}

// Name returns the multiplier name.
func (m CategoryMultiplier) Name() string { return "category" }

// Multiply applies the category boost.
func (m CategoryMultiplier) Multiply(sc *scoringContext, base float64) float64 {
	return base * m.boost(sc.intent, sc.alignment)
}

func (m CategoryMultiplier) boost(in intent.Intent, a alignment) float64 {
	switch in {
	case intent.Regulation:
		if a.activity {
			return m.cfg.MisalignedBoost
		}
		if a.regulation {
			return m.cfg.RegulationBoost
		}
	case intent.Activity:
		if a.regulation {
			return m.cfg.MisalignedBoost
		}
		if a.activity {
			return m.cfg.ActivityBoost
		}
	}
	return 1
}

// keywordBonus is the matched share of query keywords, capped at limit.
func keywordBonus(queryKeywords []string, docTokens map[string]struct{}, limit float64) float64 {
	if len(queryKeywords) == 0 {
		return 0
	}
	matched := 0
	for _, kw := range queryKeywords {
		if _, ok := docTokens[kw]; ok {
			matched++
		}
	}
	return min(float64(matched)/float64(len(queryKeywords)), limit)
}

func anyIn(values, set []string) bool {
	for _, v := range values {
		for _, s := range set {
			if v == s {
				return true
			}
		}
	}
	return false
}
