package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/kotae/internal/analytics"
	"github.com/hyperjump/kotae/internal/chatbot"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/feedback"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/intent"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/rules"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/synthesis"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Config       *config.Config
	Store        *storage.SQLStore
	Embedder     embedding.Embedder
	Cache        *embedding.Cache
	KeywordIndex *keyword.BleveIndex
	VectorIndex  *vector.MemoryIndex
	Classifier   *intent.Classifier
	Consumer     *analytics.Consumer
	Retriever    *retrieval.Retriever
	Orchestrator *chatbot.Orchestrator
	Engine       *search.Engine
	Indexer      *indexer.Indexer
	Feedback     *feedback.Service

	cancel context.CancelFunc
}

// Close stops background work and releases storage. Pending message log
// writes and analytics events are flushed first.
func (c *Components) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.Orchestrator != nil {
		c.Orchestrator.Close()
	}
	if c.Consumer != nil {
		c.Consumer.Close()
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

// ServerDeps exposes the components to the HTTP server.
func (c *Components) ServerDeps() server.Deps {
	return server.Deps{
		Orchestrator: c.Orchestrator,
		Retriever:    c.Retriever,
		Feedback:     c.Feedback,
		Search:       c.Engine,
		Indexer:      c.Indexer,
		Store:        c.Store,
		Consumer:     c.Consumer,
		Cache:        c.Cache,
	}
}

// Warm loads stored documents into the keyword and vector indexes.
func (c *Components) Warm(ctx context.Context) (int, error) {
	n, err := c.Indexer.Rebuild(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.Engine.RefreshSuggestions(); err != nil {
		return n, fmt.Errorf("refresh suggestions: %w", err)
	}
	return n, nil
}

func retrievalConfig(c config.ChatbotConfig) retrieval.Config {
	rc := retrieval.Config{
		TopK:                c.RAGTopK,
		SimilarityThreshold: c.SimilarityThreshold,
	}
	rc.ApplyDefaults()
	return rc
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (_ *Components, err error) {
	logger = utils.OrNop(logger)
	c := &Components{Config: cfg}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.Store, err = storage.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Embedder, c.Cache, err = embedding.New(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Cache.StartJanitor(time.Minute)

	c.KeywordIndex, err = keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.VectorIndex, err = vector.NewMemoryIndex(c.Embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	dict := intent.DefaultDictionary()
	if cfg.Intent.DictionaryPath != "" {
		loaded, err := intent.LoadDictionary(cfg.Intent.DictionaryPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load intent dictionary: %w", err)
		}
		dict = loaded
	}
	c.Classifier = intent.NewClassifier(dict)

	c.Consumer = analytics.NewConsumer(c.Store, cfg.Analytics, analytics.WithLogger(logger))
	c.Consumer.Start(ctx)

	generator, err := synthesis.NewGenerator(cfg.Generation, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	synthOpts := []synthesis.Option{synthesis.WithTimeout(cfg.Generation.Timeout), synthesis.WithLogger(logger)}
	if generator != nil {
		synthOpts = append(synthOpts, synthesis.WithGenerator(generator))
		logger.Info("generative answers enabled",
			zap.String("provider", cfg.Generation.Provider), zap.String("model", generator.Model()))
	}

	c.Retriever = retrieval.NewRetriever(c.Store, c.Embedder, c.Classifier,
		retrieval.WithConfig(retrievalConfig(cfg.Chatbot)),
		retrieval.WithMinConfidence(cfg.Chatbot.RAGFloor()),
		retrieval.WithPublisher(c.Consumer),
		retrieval.WithLogger(logger))
	matcher := rules.NewMatcher(c.Store,
		rules.WithComparator(rules.ComparatorByName(cfg.Chatbot.RuleComparator)),
		rules.WithMinConfidence(cfg.Chatbot.RuleFloor()),
		rules.WithLogger(logger))
	c.Orchestrator = chatbot.NewOrchestrator(matcher, c.Retriever,
		synthesis.NewSynthesizer(cfg.Chatbot.MaxResponseLength, synthOpts...),
		chatbot.WithSettings(chatbot.SettingsFromConfig(cfg.Chatbot)),
		chatbot.WithMessageLog(c.Store),
		chatbot.WithLogger(logger))

	c.Indexer = indexer.NewIndexer(c.Store, c.Embedder, c.KeywordIndex, cfg.Search,
		indexer.WithVectorIndex(c.VectorIndex),
		indexer.WithLogger(logger))
	c.Engine = search.NewEngine(c.Store, c.KeywordIndex, c.Embedder, cfg.Search,
		search.WithVectorIndex(c.VectorIndex),
		search.WithSuggester(keyword.NewSuggester(c.KeywordIndex)),
		search.WithLogger(logger))
	c.Feedback = feedback.NewService(c.Store, logger)
	return c, nil
}

// watchIntents reloads the intent dictionary on change. It is a no-op unless
// a dictionary file is configured with watch enabled.
func watchIntents(ctx context.Context, c *Components, logger *zap.Logger) (stop func(), err error) {
	path := c.Config.Intent.DictionaryPath
	if path == "" || !c.Config.Intent.Watch {
		return func() {}, nil
	}
	w, err := intent.Watch(ctx, path, c.Classifier, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to watch intent dictionary: %w", err)
	}
	return w.Stop, nil
}
