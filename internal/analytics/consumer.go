// Package analytics applies retrieval counters off the request path.
package analytics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/pkg/utils"
)

// CounterStore persists aggregated retrieval counters.
type CounterStore interface {
	UpdateCounters(ctx context.Context, id string, delta models.CounterDelta) error
}

// Stats counts what the consumer has seen.
type Stats struct {
	Published int64 `json:"published"`
	Dropped   int64 `json:"dropped"`
	Applied   int64 `json:"applied"`
	Failed    int64 `json:"failed"`
	Flushes   int64 `json:"flushes"`
}

// Consumer buffers retrieval events and folds them into per-document
// counter deltas. Publish never blocks: a full queue drops the event.
type Consumer struct {
	store         CounterStore
	events        chan retrieval.RetrievalEvent
	bufferSize    int
	flushInterval time.Duration
	logger        *zap.Logger

	pending  map[string]*models.CounterDelta
	buffered int

	published atomic.Int64
	dropped   atomic.Int64
	applied   atomic.Int64
	failed    atomic.Int64
	flushes   atomic.Int64

	started   atomic.Bool
	closed    atomic.Bool
	quit      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Consumer) {
		c.logger = utils.OrNop(l)
	}
}

// NewConsumer creates a consumer. Call Start to begin applying events.
func NewConsumer(store CounterStore, cfg config.AnalyticsConfig, opts ...Option) *Consumer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	c := &Consumer{
		store:         store,
		events:        make(chan retrieval.RetrievalEvent, cfg.QueueSize),
		bufferSize:    cfg.BufferSize,
		flushInterval: cfg.FlushInterval,
		logger:        zap.NewNop(),
		pending:       make(map[string]*models.CounterDelta),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish queues ev. It reports false when the queue is full or the consumer is closed.
func (c *Consumer) Publish(ev retrieval.RetrievalEvent) bool {
	if c.closed.Load() {
		c.dropped.Add(1)
		return false
	}
	select {
	case c.events <- ev:
		c.published.Add(1)
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Start runs the apply loop until ctx is cancelled or Close is called.
func (c *Consumer) Start(ctx context.Context) {
	if c.closed.Load() {
		return
	}
	c.startOnce.Do(func() {
		c.started.Store(true)
		go c.run(ctx)
	})
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-c.events:
			c.add(ev)
			if c.buffered >= c.bufferSize {
				c.flush()
			}
		case <-ticker.C:
			c.flush()
		case <-c.quit:
			c.drain()
			return
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

func (c *Consumer) drain() {
	for {
		select {
		case ev := <-c.events:
			c.add(ev)
		default:
			c.flush()
			return
		}
	}
}

func (c *Consumer) add(ev retrieval.RetrievalEvent) {
	for _, hit := range ev.Hits {
		d, ok := c.pending[hit.ID]
		if !ok {
			d = &models.CounterDelta{}
			c.pending[hit.ID] = d
		}
		d.Retrievals++
		d.ConfidenceSum += hit.Score
		if ev.At.After(d.LastRetrievedAt) {
			d.LastRetrievedAt = ev.At
		}
	}
	c.buffered++
}

// flush writes the pending deltas. Failures are logged and discarded.
func (c *Consumer) flush() {
	if len(c.pending) == 0 {
		c.buffered = 0
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for id, d := range c.pending {
		if err := c.store.UpdateCounters(ctx, id, *d); err != nil {
			c.failed.Add(1)
			c.logger.Warn("Failed to update document counters", zap.String("document_id", id), zap.Error(err))
			continue
		}
		c.applied.Add(1)
	}
	c.flushes.Add(1)
	c.logger.Debug("Flushed retrieval counters", zap.Int("documents", len(c.pending)), zap.Int("events", c.buffered))
	c.pending = make(map[string]*models.CounterDelta)
	c.buffered = 0
}

// Close stops accepting events, applies what is queued and waits for the
// loop to exit. Events queued on a consumer that was never started are discarded.
func (c *Consumer) Close() {
	c.stopOnce.Do(func() {
		c.closed.Store(true)
		if !c.started.Load() {
			return
		}
		close(c.quit)
		<-c.done
	})
}

// Stats returns a snapshot of the counters.
func (c *Consumer) Stats() Stats {
	return Stats{
		Published: c.published.Load(),
		Dropped:   c.dropped.Load(),
		Applied:   c.applied.Load(),
		Failed:    c.failed.Load(),
		Flushes:   c.flushes.Load(),
	}
}
