// Package service composes the intelligence layer: semantic search over
// stored embeddings, bulk and single-property indexing, the natural-language
// command engine, and relax-mode orchestration.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/estatehub/intelligence/internal/embedding"
	"github.com/estatehub/intelligence/internal/indexer"
	"github.com/estatehub/intelligence/internal/metrics"
	"github.com/estatehub/intelligence/internal/models"
	"github.com/estatehub/intelligence/internal/observability"
	"github.com/estatehub/intelligence/internal/orchestrator"
	"github.com/estatehub/intelligence/internal/search"
)

// embeddingReader is the slice of the embedding repository search and the
// index status report need
type embeddingReader interface {
	ListByTenant(ctx context.Context, tenantID string) ([]*models.PropertyEmbedding, error)
	CountByTenant(ctx context.Context, tenantID string) (int, error)
}

// resultHydrator resolves ranked ids into full property records
type resultHydrator interface {
	Hydrate(ctx context.Context, tenantID string, ranked []models.RankedMatch) ([]*models.Property, error)
}

// commandEngine runs one validated natural-language command
type commandEngine interface {
	Execute(ctx context.Context, tenantID, command string, mode models.CommandMode) (*models.CommandResult, error)
}

// reindexer is the slice of the indexer the service needs
type reindexer interface {
	ReindexTenant(ctx context.Context, tenantID string) (*indexer.ReindexResult, error)
	IndexPropertyByID(ctx context.Context, tenantID, propertyID string) error
}

// ScoredProperty is one hydrated search hit together with its cosine score
type ScoredProperty struct {
	*models.Property
	Score float64 `json:"score"`
}

// SearchResult is the outcome of one semantic search: hydrated, scored
// properties in rank order plus how many stored vectors were considered. A
// zero candidate count means the tenant has never been indexed, which callers
// surface differently from a search with no good matches.
type SearchResult struct {
	Results        []ScoredProperty `json:"results"`
	CandidateCount int              `json:"candidate_count"`
}

// IndexStatus reports how much of a tenant's inventory is searchable
type IndexStatus struct {
	TenantID     string `json:"tenant_id"`
	IndexedCount int    `json:"indexed_count"`
}

// IntelligenceService wires the embed, rank, hydrate pipeline together with
// indexing, the command engine and the relax orchestrators.
type IntelligenceService struct {
	provider   embedding.Provider
	embeddings embeddingReader
	engine     *search.Engine
	hydrator   resultHydrator
	indexer    reindexer
	commands   commandEngine
	hub        orchestrator.Orchestrator
	local      orchestrator.Orchestrator
	logger     observability.Logger
	metrics    *metrics.Metrics
}

// NewIntelligenceService creates the intelligence service. hub may be nil
// when no upstream agent hub is configured; relax commands then always run
// against the local orchestrator.
func NewIntelligenceService(
	provider embedding.Provider,
	embeddings embeddingReader,
	engine *search.Engine,
	hydrator resultHydrator,
	ix reindexer,
	commands commandEngine,
	hub orchestrator.Orchestrator,
	local orchestrator.Orchestrator,
	logger observability.Logger,
	m *metrics.Metrics,
) *IntelligenceService {
	return &IntelligenceService{
		provider:   provider,
		embeddings: embeddings,
		engine:     engine,
		hydrator:   hydrator,
		indexer:    ix,
		commands:   commands,
		hub:        hub,
		local:      local,
		logger:     logger.WithPrefix("intelligence"),
		metrics:    m,
	}
}

// Search embeds the query, ranks it against every stored vector for the
// tenant, and hydrates the top matches back into full property records.
func (s *IntelligenceService) Search(ctx context.Context, tenantID, query string, limit int) (*SearchResult, error) {
	start := time.Now()
	s.metrics.SearchRequests.Inc()
	defer func() {
		s.metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	queryVector, err := s.provider.Embed(ctx, query)
	if err != nil {
		s.metrics.SearchErrors.Inc()
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	stored, err := s.embeddings.ListByTenant(ctx, tenantID)
	if err != nil {
		s.metrics.SearchErrors.Inc()
		return nil, fmt.Errorf("failed to load stored embeddings: %w", err)
	}

	if len(stored) == 0 {
		return &SearchResult{Results: []ScoredProperty{}}, nil
	}

	candidates := make([]search.Candidate, len(stored))
	for i, emb := range stored {
		candidates[i] = search.Candidate{
			PropertyID: emb.PropertyID,
			Vector:     emb.Embedding,
		}
	}

	ranked, err := s.engine.Rank(queryVector, candidates, limit)
	if err != nil {
		s.metrics.SearchErrors.Inc()
		return nil, err
	}

	props, err := s.hydrator.Hydrate(ctx, tenantID, ranked)
	if err != nil {
		s.metrics.SearchErrors.Inc()
		return nil, err
	}

	// Hydration may drop orphaned ids, so scores are re-paired by id rather
	// than by position.
	scoreByID := make(map[string]float64, len(ranked))
	for _, match := range ranked {
		scoreByID[match.PropertyID] = match.Score
	}
	results := make([]ScoredProperty, len(props))
	for i, prop := range props {
		results[i] = ScoredProperty{Property: prop, Score: scoreByID[prop.ID]}
	}

	s.metrics.SearchResultCount.Observe(float64(len(results)))

	return &SearchResult{
		Results:        results,
		CandidateCount: len(stored),
	}, nil
}

// Reindex embeds every property belonging to the tenant
func (s *IntelligenceService) Reindex(ctx context.Context, tenantID string) (*indexer.ReindexResult, error) {
	return s.indexer.ReindexTenant(ctx, tenantID)
}

// IndexProperty embeds a single property, typically after a CRUD-layer change
func (s *IntelligenceService) IndexProperty(ctx context.Context, tenantID, propertyID string) error {
	return s.indexer.IndexPropertyByID(ctx, tenantID, propertyID)
}

// Status reports how many embeddings the tenant has stored, without loading
// the vectors themselves
func (s *IntelligenceService) Status(ctx context.Context, tenantID string) (*IndexStatus, error) {
	count, err := s.embeddings.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count stored embeddings: %w", err)
	}
	return &IndexStatus{TenantID: tenantID, IndexedCount: count}, nil
}

// Command runs one natural-language command through the engine
func (s *IntelligenceService) Command(ctx context.Context, tenantID, command string, mode models.CommandMode) (*models.CommandResult, error) {
	return s.commands.Execute(ctx, tenantID, command, mode)
}

// Relax handles a relax-mode command. When a hub is configured it gets one
// attempt; any hub failure, including a confused answer, falls back to the
// local orchestrator so the endpoint keeps working with the hub down.
func (s *IntelligenceService) Relax(ctx context.Context, tenantID, command string) (*orchestrator.Answer, error) {
	if s.hub != nil {
		answer, err := s.hub.Execute(ctx, tenantID, command)
		if err == nil {
			s.metrics.HubDelegations.Inc()
			return answer, nil
		}

		s.metrics.HubFallbacks.Inc()
		if !errors.Is(err, orchestrator.ErrHubConfused) {
			s.logger.Warn("Agent hub unreachable, falling back locally", map[string]interface{}{
				"tenant_id": tenantID,
				"error":     err.Error(),
			})
		}
	}

	return s.local.Execute(ctx, tenantID, command)
}
