package retrieval

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/intent"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/textnorm"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

// DocumentSource is the part of the document store the retriever reads.
type DocumentSource interface {
	FindDocuments(ctx context.Context, filter models.DocumentFilter) ([]*models.KnowledgeDocument, error)
	GetDocument(ctx context.Context, id string) (*models.KnowledgeDocument, error)
}

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever ranks knowledge documents for a query.
type Retriever struct {
	docs        DocumentSource
	embedder    Embedder
	classifier  *intent.Classifier
	cfg         Config
	multipliers []Multiplier
	publisher   Publisher
	logger      *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithPublisher sets where retrieval events are sent.
func WithPublisher(p Publisher) Option {
	return func(r *Retriever) {
		r.publisher = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) {
		r.logger = utils.OrNop(l)
	}
}

// WithConfig replaces the default configuration. Zero fields take defaults.
func WithConfig(cfg Config) Option {
	return func(r *Retriever) {
		cfg.ApplyDefaults()
		r.cfg = cfg
	}
}

// WithMinConfidence sets the relevance floor. Unlike WithConfig it keeps an
// explicit 0. Apply it after WithConfig.
func WithMinConfidence(v float64) Option {
	return func(r *Retriever) {
		r.cfg.MinConfidence = v
	}
}

// NewRetriever creates a retriever. A nil classifier uses the default dictionary.
func NewRetriever(docs DocumentSource, embedder Embedder, classifier *intent.Classifier, opts ...Option) *Retriever {
	if classifier == nil {
		classifier = intent.NewClassifier(intent.DefaultDictionary())
	}
	r := &Retriever{
		docs:       docs,
		embedder:   embedder,
		classifier: classifier,
		cfg:        DefaultConfig(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.multipliers = []Multiplier{PriorityMultiplier{}, CategoryMultiplier{cfg: &r.cfg}}
	return r
}

// Config returns the active configuration.
func (r *Retriever) Config() Config {
	return r.cfg
}

// Retrieve returns the documents that answer query, best first. Store failures
// yield an empty result; embedding failures degrade to keyword-only scoring.
// Retrieve does not publish usage; see Record.
func (r *Retriever) Retrieve(ctx context.Context, query string, user models.UserContext) *Result {
	dict := r.classifier.Dictionary()
	normalized := textnorm.Normalize(query)
	result := &Result{Scores: map[string]float64{}, Intent: intent.ClassifyNormalized(normalized, dict)}
	if normalized == "" {
		return result
	}

	docs, err := r.docs.FindDocuments(ctx, models.DocumentFilter{
		TenantID:   user.Tenant(),
		ActiveOnly: true,
		Roles:      user.AccessRoles(),
	})
	if err != nil {
		r.logger.Warn("Failed to load candidate documents", zap.Error(err))
		return result
	}

	candidates := make([]*models.KnowledgeDocument, 0, len(docs))
	aligned := make(map[string]alignment, len(docs))
	for _, doc := range docs {
		if !doc.IsActive || !user.CanAccess(doc.TenantID, doc.AllowedRoles) {
			continue
		}
		a := alignmentOf(doc, dict)
		if a.opposes(result.Intent) {
			continue
		}
		aligned[doc.ID] = a
		candidates = append(candidates, doc)
	}
	if len(candidates) == 0 {
		return result
	}

	queryVec, docVecs := r.vectors(ctx, query, candidates)
	queryKeywords := textnorm.Keywords(normalized)
	important := r.importantKeywords(normalized, dict)

	scored := make([]ScoredDocument, 0, len(candidates))
	for i, doc := range candidates {
		sd := r.score(doc, result.Intent, aligned[doc.ID], queryVec, docVecs[i], queryKeywords)
		sd.ImportantMatch = importantMatch(doc, normalized, important, dict, r.cfg.MinImportantKeywords)
		scored = append(scored, sd)
	}
	sortScored(scored)

	for len(scored) > 0 && !scored[0].ImportantMatch && scored[0].RelevanceScore < r.cfg.IrrelevanceCeiling {
		r.logger.Debug("Dropping weak top document",
			zap.String("document_id", scored[0].Document.ID),
			zap.Float64("score", scored[0].RelevanceScore))
		scored = scored[1:]
	}

	if len(scored) > r.cfg.TopK {
		scored = scored[:r.cfg.TopK]
	}
	kept := scored[:0]
	for _, sd := range scored {
		if sd.RelevanceScore >= r.cfg.MinConfidence || sd.ImportantMatch {
			kept = append(kept, sd)
		}
	}
	scored = kept

	if result.Intent == intent.Regulation {
		for len(scored) > 0 && isActivityGuide(scored[0].Document, aligned[scored[0].Document.ID]) {
			scored = scored[1:]
		}
	}

	result.Documents = scored
	for _, sd := range scored {
		result.Scores[sd.Document.ID] = sd.RelevanceScore
	}
	if len(scored) > 0 {
		result.BestMatchID = scored[0].Document.ID
		result.Confidence = scored[0].RelevanceScore
	}
	return result
}

// Record announces the documents of a result that was used to answer a
// query. Results that ended in a fallback are not recorded.
func (r *Retriever) Record(tenantID string, res *Result) {
	if res == nil {
		return
	}
	r.publish(tenantID, res.Documents)
}

func (r *Retriever) score(doc *models.KnowledgeDocument, in intent.Intent, a alignment, queryVec, docVec []float32, queryKeywords []string) ScoredDocument {
	sc := &scoringContext{doc: doc, intent: in, alignment: a}
	embeddingScore := max(vector.CosineSimilarity(queryVec, docVec), 0)
	kw := keywordBonus(queryKeywords, documentTokens(doc), r.cfg.MaxKeywordBonus)

	relevance := r.cfg.EmbeddingWeight*embeddingScore + r.cfg.KeywordWeight*kw
	for _, m := range r.multipliers {
		relevance = m.Multiply(sc, relevance)
	}
	return ScoredDocument{
		Document:       doc,
		RelevanceScore: min(relevance, 1),
		EmbeddingScore: embeddingScore,
		KeywordScore:   kw,
		CategoryBoost:  CategoryMultiplier{cfg: &r.cfg}.boost(in, a),
		PriorityBoost:  priorityBoost(doc.Priority),
	}
}

// vectors embeds the query and any candidate whose stored embedding is missing
// or has the wrong dimension. A failed query embedding yields a zero vector.
func (r *Retriever) vectors(ctx context.Context, query string, docs []*models.KnowledgeDocument) ([]float32, [][]float32) {
	docVecs := make([][]float32, len(docs))
	if r.embedder == nil {
		return nil, docVecs
	}
	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("Query embedding failed, scoring by keywords only", zap.Error(err))
		return nil, docVecs
	}

	var missing []int
	var texts []string
	for i, doc := range docs {
		if len(doc.Embedding) == len(queryVec) {
			docVecs[i] = doc.Embedding
			continue
		}
		missing = append(missing, i)
		texts = append(texts, DocumentText(doc))
	}
	if len(missing) == 0 {
		return queryVec, docVecs
	}
	vecs, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		r.logger.Warn("Document embedding failed", zap.Int("documents", len(missing)), zap.Error(err))
		return queryVec, docVecs
	}
	for j, i := range missing {
		docVecs[i] = vecs[j]
	}
	return queryVec, docVecs
}

func (r *Retriever) publish(tenantID string, scored []ScoredDocument) {
	if r.publisher == nil || len(scored) == 0 {
		return
	}
	ev := RetrievalEvent{TenantID: tenantID, At: time.Now().UTC(), Hits: make([]DocumentHit, len(scored))}
	for i, sd := range scored {
		ev.Hits[i] = DocumentHit{ID: sd.Document.ID, Score: sd.RelevanceScore}
	}
	if !r.publisher.Publish(ev) {
		r.logger.Debug("Retrieval event dropped", zap.Int("documents", len(scored)))
	}
}

// importantKeywords returns the query tokens that count toward the relevance
// check: long tokens, numbers and dictionary terms.
func (r *Retriever) importantKeywords(normalized string, dict *intent.Dictionary) []string {
	var out []string
	seen := map[string]bool{}
	for _, tok := range textnorm.Tokenize(normalized) {
		if seen[tok] || textnorm.IsStopword(tok) {
			continue
		}
		if len([]rune(tok)) >= r.cfg.ImportantMinLength || isNumeric(tok) || slices.Contains(dict.ImportantTerms, tok) {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// importantMatch reports whether doc shares enough important keywords with the
// query, or an important phrase present in both. Queries with a single
// important keyword need only that one.
func importantMatch(doc *models.KnowledgeDocument, normalizedQuery string, important []string, dict *intent.Dictionary, minKeywords int) bool {
	text := textnorm.Normalize(DocumentText(doc))
	for _, phrase := range dict.ImportantPhrases {
		if textnorm.ContainsPhrase(normalizedQuery, phrase) && textnorm.ContainsPhrase(text, phrase) {
			return true
		}
	}
	if len(important) == 0 {
		return false
	}
	need := min(minKeywords, len(important))
	tokens := textnorm.TokenSet(text)
	shared := 0
	for _, kw := range important {
		if _, ok := tokens[kw]; ok {
			shared++
		}
	}
	return shared >= need
}

func isActivityGuide(doc *models.KnowledgeDocument, a alignment) bool {
	return a.activity && doc.Category != models.CategoryRegulation
}

func sortScored(s []ScoredDocument) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].RelevanceScore != s[j].RelevanceScore {
			return s[i].RelevanceScore > s[j].RelevanceScore
		}
		return s[i].Document.ID < s[j].Document.ID
	})
}

// DocumentText is the text embedded for a document.
func DocumentText(doc *models.KnowledgeDocument) string {
	parts := []string{doc.Title, doc.Content}
	if len(doc.Tags) > 0 {
		parts = append(parts, strings.Join(doc.Tags, " "))
	}
	return strings.Join(parts, "\n")
}

func documentTokens(doc *models.KnowledgeDocument) map[string]struct{} {
	return textnorm.TokenSet(DocumentText(doc))
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
