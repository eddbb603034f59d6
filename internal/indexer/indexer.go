// Package indexer builds the text representation of a property, embeds it,
// and upserts the vector into the embedding store.
package indexer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/estatehub/intelligence/internal/embedding"
	"github.com/estatehub/intelligence/internal/metrics"
	"github.com/estatehub/intelligence/internal/models"
	"github.com/estatehub/intelligence/internal/observability"
)

// propertyReader is the slice of the property repository the indexer needs
type propertyReader interface {
	GetByID(ctx context.Context, tenantID, id string) (*models.Property, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*models.Property, error)
}

// embeddingWriter is the slice of the embedding repository the indexer needs
type embeddingWriter interface {
	Upsert(ctx context.Context, emb *models.PropertyEmbedding) error
}

// ReindexResult aggregates a bulk reindex: per-property failures are isolated
// and reported here instead of aborting the batch.
type ReindexResult struct {
	TenantID string   `json:"tenant_id"`
	Indexed  int      `json:"indexed"`
	Failed   []string `json:"failed,omitempty"`
}

// Indexer embeds property text and writes vectors to the store. Re-running is
// idempotent: every write is a full upsert of provider output for one property.
type Indexer struct {
	properties propertyReader
	embeddings embeddingWriter
	provider   embedding.Provider
	dimensions int
	workers    int
	logger     observability.Logger
	metrics    *metrics.Metrics
}

// NewIndexer creates an indexer. dimensions is the provider model's fixed
// vector size; workers bounds reindex parallelism (1 means sequential).
func NewIndexer(
	properties propertyReader,
	embeddings embeddingWriter,
	provider embedding.Provider,
	dimensions int,
	workers int,
	logger observability.Logger,
	m *metrics.Metrics,
) *Indexer {
	if workers < 1 {
		workers = 1
	}
	return &Indexer{
		properties: properties,
		embeddings: embeddings,
		provider:   provider,
		dimensions: dimensions,
		workers:    workers,
		logger:     logger.WithPrefix("indexer"),
		metrics:    m,
	}
}

// CanonicalText builds the text representation of a property: name, location,
// type and insight in that fixed order, empty fields omitted, single spaces.
func CanonicalText(prop *models.Property) string {
	parts := make([]string, 0, 4)
	for _, field := range []string{prop.Name, prop.Location, prop.Type, prop.AIInsight} {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

// IndexProperty embeds one property and upserts its vector
func (ix *Indexer) IndexProperty(ctx context.Context, prop *models.Property) error {
	text := CanonicalText(prop)

	vector, err := ix.provider.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed property %s: %w", prop.ID, err)
	}

	if len(vector) != ix.dimensions {
		return fmt.Errorf("%w: expected %d dimensions, provider returned %d",
			embedding.ErrProvider, ix.dimensions, len(vector))
	}

	ix.metrics.EmbeddingsGenerated.Inc()

	emb := &models.PropertyEmbedding{
		PropertyID:  prop.ID,
		TenantID:    prop.TenantID,
		Embedding:   models.Vector(vector),
		LastIndexed: time.Now(),
	}
	if err := ix.embeddings.Upsert(ctx, emb); err != nil {
		return fmt.Errorf("failed to store embedding for property %s: %w", prop.ID, err)
	}

	ix.metrics.PropertiesIndexed.Inc()
	return nil
}

// IndexPropertyByID looks up a property within the tenant and indexes it.
// Returns repository.ErrNotFound (wrapped) if the property no longer exists.
func (ix *Indexer) IndexPropertyByID(ctx context.Context, tenantID, propertyID string) error {
	prop, err := ix.properties.GetByID(ctx, tenantID, propertyID)
	if err != nil {
		return err
	}
	return ix.IndexProperty(ctx, prop)
}

// ReindexTenant embeds every property belonging to a tenant. Failures are
// isolated per property and collected into the result; partial progress is
// fine because each write is an idempotent upsert.
func (ix *Indexer) ReindexTenant(ctx context.Context, tenantID string) (*ReindexResult, error) {
	start := time.Now()

	props, err := ix.properties.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties for tenant %s: %w", tenantID, err)
	}

	result := &ReindexResult{TenantID: tenantID}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, ix.workers)

	for _, prop := range props {
		wg.Add(1)
		sem <- struct{}{}
		go func(p *models.Property) {
			defer wg.Done()
			defer func() { <-sem }()

			err := ix.IndexProperty(ctx, p)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				ix.metrics.IndexingErrors.Inc()
				ix.logger.Error("Failed to index property", map[string]interface{}{
					"tenant_id":   tenantID,
					"property_id": p.ID,
					"error":       err.Error(),
				})
				result.Failed = append(result.Failed, p.ID)
				return
			}
			result.Indexed++
		}(prop)
	}
	wg.Wait()

	// Stable failure order regardless of worker scheduling
	sort.Strings(result.Failed)

	ix.metrics.ReindexDuration.Observe(time.Since(start).Seconds())
	ix.logger.Info("Reindex complete", map[string]interface{}{
		"tenant_id": tenantID,
		"indexed":   result.Indexed,
		"failed":    len(result.Failed),
	})

	return result, nil
}
