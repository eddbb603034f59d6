package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/estatehub/intelligence/internal/metrics"
	"github.com/estatehub/intelligence/internal/observability"
)

// CachedProvider memoizes embeddings in Redis keyed by content hash. Cache
// failures degrade to a provider call; they never fail the request.
type CachedProvider struct {
	inner   Provider
	client  *redis.Client
	ttl     time.Duration
	logger  observability.Logger
	metrics *metrics.Metrics
}

// NewCachedProvider creates a Redis-backed caching wrapper around the provider
func NewCachedProvider(inner Provider, client *redis.Client, ttl time.Duration, logger observability.Logger, m *metrics.Metrics) *CachedProvider {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &CachedProvider{
		inner:   inner,
		client:  client,
		ttl:     ttl,
		logger:  logger.WithPrefix("embedding-cache"),
		metrics: m,
	}
}

// Embed returns a cached vector when one exists for the exact text, otherwise
// calls the wrapped provider and stores the result.
func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)

	data, err := p.client.Get(ctx, key).Bytes()
	if err == nil {
		var vector []float32
		if jsonErr := json.Unmarshal(data, &vector); jsonErr == nil {
			p.metrics.EmbeddingCacheHits.Inc()
			return vector, nil
		}
		// Corrupt entry; fall through to the provider and overwrite it
		p.logger.Warn("Discarding invalid cached embedding", map[string]interface{}{
			"key": key,
		})
	} else if err != redis.Nil {
		p.logger.Warn("Embedding cache read failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	p.metrics.EmbeddingCacheMisses.Inc()

	vector, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(vector)
	if err == nil {
		if setErr := p.client.Set(ctx, key, encoded, p.ttl).Err(); setErr != nil {
			p.logger.Warn("Embedding cache write failed", map[string]interface{}{
				"error": setErr.Error(),
			})
		}
	}

	return vector, nil
}

// cacheKey computes the cache key for a piece of text
func cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("intel:emb:%s", hex.EncodeToString(hash[:]))
}
