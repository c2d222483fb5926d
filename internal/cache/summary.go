package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/optilens/demand-engine/internal/config"
	"github.com/optilens/demand-engine/internal/domain"
)

const confidenceSummaryKey = "forecast:confidence_summary"

// SummaryCache memoizes the confidence summary between forecast refreshes.
// TTL-bounded; a forecast run invalidates it explicitly.
type SummaryCache interface {
	GetConfidence(ctx context.Context) ([]domain.ConfidenceSummary, bool, error)
	SetConfidence(ctx context.Context, summaries []domain.ConfidenceSummary) error
	Invalidate(ctx context.Context) error
}

type redisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopSummaryCache struct{}

func NewSummaryCache(cfg config.CacheConfig) (SummaryCache, error) {
	if !cfg.Enabled {
		return &noopSummaryCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisSummaryCache{client: client, ttl: ttl}, nil
}

func NewNoopSummaryCache() SummaryCache {
	return &noopSummaryCache{}
}

func (c *redisSummaryCache) GetConfidence(ctx context.Context) ([]domain.ConfidenceSummary, bool, error) {
	payload, err := c.client.Get(ctx, confidenceSummaryKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var summaries []domain.ConfidenceSummary
	if err := json.Unmarshal(payload, &summaries); err != nil {
		return nil, false, fmt.Errorf("decode confidence summary cache: %w", err)
	}
	return summaries, true, nil
}

func (c *redisSummaryCache) SetConfidence(ctx context.Context, summaries []domain.ConfidenceSummary) error {
	payload, err := json.Marshal(summaries)
	if err != nil {
		return fmt.Errorf("encode confidence summary cache: %w", err)
	}
	if err := c.client.Set(ctx, confidenceSummaryKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisSummaryCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, confidenceSummaryKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (c *noopSummaryCache) GetConfidence(context.Context) ([]domain.ConfidenceSummary, bool, error) {
	return nil, false, nil
}

func (c *noopSummaryCache) SetConfidence(context.Context, []domain.ConfidenceSummary) error {
	return nil
}

func (c *noopSummaryCache) Invalidate(context.Context) error {
	return nil
}
