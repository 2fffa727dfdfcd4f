package analytics

import (
	"context"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
)

// StatsSource reads aggregated message statistics.
type StatsSource interface {
	MessageStats(ctx context.Context, tenantID string) (*models.MessageStats, error)
	CountDocuments(ctx context.Context, tenantID string) (int64, error)
	CountRules(ctx context.Context, tenantID string) (int64, error)
}

// Report is the operator view of one tenant.
type Report struct {
	TenantID  string                `json:"tenant_id"`
	Documents int64                 `json:"documents"`
	Rules     int64                 `json:"rules"`
	Messages  *models.MessageStats  `json:"messages"`
	Counters  *Stats                `json:"counters,omitempty"`
	Cache     *embedding.CacheStats `json:"embedding_cache,omitempty"`
}

// Summarize builds a Report. The consumer and cache are optional.
func Summarize(ctx context.Context, src StatsSource, tenantID string, consumer *Consumer, cache *embedding.Cache) (*Report, error) {
	if tenantID == "" {
		tenantID = models.DefaultTenant
	}
	msgs, err := src.MessageStats(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	docs, err := src.CountDocuments(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	rules, err := src.CountRules(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	r := &Report{TenantID: tenantID, Documents: docs, Rules: rules, Messages: msgs}
	if consumer != nil {
		s := consumer.Stats()
		r.Counters = &s
	}
	if cache != nil {
		s := cache.Stats()
		r.Cache = &s
	}
	return r, nil
}
