// Package intent classifies what kind of answer a query is after, using
// configurable phrase dictionaries.
package intent

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/textnorm"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Intent is the query class that gates filtering and boosts.
type Intent int

const (
	Neutral Intent = iota
	Regulation
	Activity
)

func (i Intent) String() string {
	switch i {
	case Regulation:
		return "regulation"
	case Activity:
		return "activity"
	default:
		return "neutral"
	}
}

// Classifier assigns an Intent to queries. The dictionary can be swapped at
// any time; each call sees one consistent dictionary.
type Classifier struct {
	dict atomic.Pointer[Dictionary]
}

// NewClassifier installs d.
func NewClassifier(d Dictionary) *Classifier {
	c := &Classifier{}
	c.SetDictionary(d)
	return c
}

// SetDictionary replaces the dictionary.
func (c *Classifier) SetDictionary(d Dictionary) {
	n := d.Normalized()
	c.dict.Store(&n)
}

// Dictionary returns the installed, normalized dictionary. Callers must not modify it.
func (c *Classifier) Dictionary() *Dictionary {
	return c.dict.Load()
}

// Classify normalizes query and classifies it.
func (c *Classifier) Classify(query string) Intent {
	return ClassifyNormalized(textnorm.Normalize(query), c.Dictionary())
}

// ClassifyNormalized counts regulation and activity phrase hits; the larger
// count wins and a tie is Neutral.
func ClassifyNormalized(query string, d *Dictionary) Intent {
	if query == "" || d == nil {
		return Neutral
	}
	reg := CountMatches(query, d.RegulationPhrases)
	act := CountMatches(query, d.ActivityPhrases)
	switch {
	case reg > act:
		return Regulation
	case act > reg:
		return Activity
	default:
		return Neutral
	}
}

// Watch reloads the dictionary at path into c whenever the file changes.
// A file that fails to load leaves the previous dictionary in place.
func Watch(ctx context.Context, path string, c *Classifier, logger *zap.Logger) (*watcher.Watcher, error) {
	logger = utils.OrNop(logger)
	w := watcher.NewWatcher([]string{path}, func(p string) {
		d, err := LoadDictionary(p)
		if err != nil {
			logger.Warn("intent dictionary reload failed, keeping previous", zap.String("path", p), zap.Error(err))
			return
		}
		c.SetDictionary(d)
		logger.Info("intent dictionary reloaded", zap.String("path", p))
	}, watcher.WithLogger(logger))
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}
