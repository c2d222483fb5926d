package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/optilens/demand-engine/internal/config"
	"github.com/optilens/demand-engine/internal/domain"
)

const (
	predictionKeyPrefix = "coldstart:estimate"
	scanBatchSize       = 100
)

// PredictionCache memoizes cold-start estimates. Keys include the catalog
// version hash, so a catalog change naturally misses without explicit
// invalidation.
type PredictionCache interface {
	GetEstimate(ctx context.Context, catalogHash string, query domain.NewProductQuery) (*domain.NewProductEstimate, bool, error)
	SetEstimate(ctx context.Context, catalogHash string, query domain.NewProductQuery, estimate *domain.NewProductEstimate) error
	InvalidateAll(ctx context.Context) error
}

type redisPredictionCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopPredictionCache struct{}

func NewPredictionCache(cfg config.CacheConfig) (PredictionCache, error) {
	if !cfg.Enabled {
		return &noopPredictionCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisPredictionCache{client: client, ttl: ttl}, nil
}

func NewNoopPredictionCache() PredictionCache {
	return &noopPredictionCache{}
}

func (c *redisPredictionCache) GetEstimate(ctx context.Context, catalogHash string, query domain.NewProductQuery) (*domain.NewProductEstimate, bool, error) {
	key := buildPredictionKey(catalogHash, query)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var estimate domain.NewProductEstimate
	if err := json.Unmarshal(payload, &estimate); err != nil {
		return nil, false, fmt.Errorf("decode cold-start estimate cache: %w", err)
	}

	return &estimate, true, nil
}

func (c *redisPredictionCache) SetEstimate(ctx context.Context, catalogHash string, query domain.NewProductQuery, estimate *domain.NewProductEstimate) error {
	key := buildPredictionKey(catalogHash, query)
	payload, err := json.Marshal(estimate)
	if err != nil {
		return fmt.Errorf("encode cold-start estimate cache: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (c *redisPredictionCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, predictionKeyPrefix, scanBatchSize)
}

func (c *noopPredictionCache) GetEstimate(context.Context, string, domain.NewProductQuery) (*domain.NewProductEstimate, bool, error) {
	return nil, false, nil
}

func (c *noopPredictionCache) SetEstimate(context.Context, string, domain.NewProductQuery, *domain.NewProductEstimate) error {
	return nil
}

func (c *noopPredictionCache) InvalidateAll(context.Context) error {
	return nil
}

func buildPredictionKey(catalogHash string, query domain.NewProductQuery) string {
	raw := strings.Join([]string{query.FrameType, query.LensType, query.PriceBand, query.Color}, "|")
	sum := sha1.Sum([]byte(raw))
	return fmt.Sprintf("%s:%s:%s", predictionKeyPrefix, catalogHash, hex.EncodeToString(sum[:]))
}
