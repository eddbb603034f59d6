package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatehub/intelligence/internal/embedding"
	"github.com/estatehub/intelligence/internal/indexer"
	"github.com/estatehub/intelligence/internal/metrics"
	"github.com/estatehub/intelligence/internal/models"
	"github.com/estatehub/intelligence/internal/observability"
	"github.com/estatehub/intelligence/internal/orchestrator"
	"github.com/estatehub/intelligence/internal/search"
)

type fakeProvider struct {
	vector []float32
	err    error
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

type fakeEmbeddingReader struct {
	stored []*models.PropertyEmbedding
	err    error
}

func (f *fakeEmbeddingReader) ListByTenant(ctx context.Context, tenantID string) ([]*models.PropertyEmbedding, error) {
	return f.stored, f.err
}

func (f *fakeEmbeddingReader) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	return len(f.stored), f.err
}

type fakeHydrator struct {
	byID map[string]*models.Property
}

func (f *fakeHydrator) Hydrate(ctx context.Context, tenantID string, ranked []models.RankedMatch) ([]*models.Property, error) {
	out := make([]*models.Property, 0, len(ranked))
	for _, m := range ranked {
		if prop, ok := f.byID[m.PropertyID]; ok {
			out = append(out, prop)
		}
	}
	return out, nil
}

type fakeReindexer struct {
	result *indexer.ReindexResult
	err    error
}

func (f *fakeReindexer) ReindexTenant(ctx context.Context, tenantID string) (*indexer.ReindexResult, error) {
	return f.result, f.err
}

func (f *fakeReindexer) IndexPropertyByID(ctx context.Context, tenantID, propertyID string) error {
	return f.err
}

type fakeCommandEngine struct {
	result *models.CommandResult
	err    error
}

func (f *fakeCommandEngine) Execute(ctx context.Context, tenantID, command string, mode models.CommandMode) (*models.CommandResult, error) {
	return f.result, f.err
}

type fakeOrchestrator struct {
	answer *orchestrator.Answer
	err    error
	calls  int
}

func (f *fakeOrchestrator) Execute(ctx context.Context, tenantID, command string) (*orchestrator.Answer, error) {
	f.calls++
	return f.answer, f.err
}

type fixture struct {
	svc     *IntelligenceService
	metrics *metrics.Metrics
	hub     *fakeOrchestrator
	local   *fakeOrchestrator
}

func newFixture(provider embedding.Provider, reader *fakeEmbeddingReader, hydrator *fakeHydrator, hub *fakeOrchestrator) *fixture {
	m := metrics.New(prometheus.NewRegistry())
	logger := observability.NewNoopLogger()

	local := &fakeOrchestrator{answer: &orchestrator.Answer{
		Agent: "Orchestrator", Result: "local answer", Status: "relax_mode_active",
	}}

	var hubOrch orchestrator.Orchestrator
	if hub != nil {
		hubOrch = hub
	}

	if hydrator == nil {
		hydrator = &fakeHydrator{byID: map[string]*models.Property{}}
	}

	svc := NewIntelligenceService(
		provider,
		reader,
		search.NewEngine(0, logger, m),
		hydrator,
		&fakeReindexer{result: &indexer.ReindexResult{TenantID: "t1", Indexed: 1}},
		&fakeCommandEngine{result: &models.CommandResult{TenantID: "t1"}},
		hubOrch,
		local,
		logger,
		m,
	)

	return &fixture{svc: svc, metrics: m, hub: hub, local: local}
}

func TestSearchEndToEnd(t *testing.T) {
	provider := &fakeProvider{vector: []float32{1, 0}}
	reader := &fakeEmbeddingReader{stored: []*models.PropertyEmbedding{
		{PropertyID: "h_far", TenantID: "t1", Embedding: models.Vector{0, 1}},
		{PropertyID: "h_near", TenantID: "t1", Embedding: models.Vector{1, 0.1}},
	}}
	hydrator := &fakeHydrator{byID: map[string]*models.Property{
		"h_near": {ID: "h_near", Name: "Beach Villa"},
		"h_far":  {ID: "h_far", Name: "City Loft"},
	}}
	f := newFixture(provider, reader, hydrator, nil)

	result, err := f.svc.Search(context.Background(), "t1", "beachfront villa", 10)
	require.NoError(t, err)

	require.Len(t, result.Results, 2)
	assert.Equal(t, "h_near", result.Results[0].ID)
	assert.Equal(t, "h_far", result.Results[1].ID)
	assert.Greater(t, result.Results[0].Score, result.Results[1].Score)
	assert.Equal(t, 2, result.CandidateCount)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SearchRequests))
}

func TestSearchNothingIndexed(t *testing.T) {
	f := newFixture(&fakeProvider{vector: []float32{1}}, &fakeEmbeddingReader{}, nil, nil)

	result, err := f.svc.Search(context.Background(), "t1", "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, result.Results)
	assert.Equal(t, 0, result.CandidateCount)
}

func TestSearchProviderFailure(t *testing.T) {
	f := newFixture(&fakeProvider{err: embedding.ErrProviderUnavailable}, &fakeEmbeddingReader{}, nil, nil)

	_, err := f.svc.Search(context.Background(), "t1", "anything", 10)
	assert.ErrorIs(t, err, embedding.ErrProviderUnavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SearchErrors))
}

func TestSearchStoreFailure(t *testing.T) {
	reader := &fakeEmbeddingReader{err: errors.New("db down")}
	f := newFixture(&fakeProvider{vector: []float32{1}}, reader, nil, nil)

	_, err := f.svc.Search(context.Background(), "t1", "anything", 10)
	assert.Error(t, err)
}

func TestStatusReportsIndexedCount(t *testing.T) {
	reader := &fakeEmbeddingReader{stored: []*models.PropertyEmbedding{
		{PropertyID: "h_1", TenantID: "t1"},
		{PropertyID: "h_2", TenantID: "t1"},
	}}
	f := newFixture(&fakeProvider{vector: []float32{1}}, reader, nil, nil)

	status, err := f.svc.Status(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", status.TenantID)
	assert.Equal(t, 2, status.IndexedCount)
}

func TestStatusStoreFailure(t *testing.T) {
	reader := &fakeEmbeddingReader{err: errors.New("db down")}
	f := newFixture(&fakeProvider{vector: []float32{1}}, reader, nil, nil)

	_, err := f.svc.Status(context.Background(), "t1")
	assert.Error(t, err)
}

func TestRelaxDelegatesToHub(t *testing.T) {
	hub := &fakeOrchestrator{answer: &orchestrator.Answer{
		Agent: "Property Scout", Result: "hub answer", Status: "scout_complete",
	}}
	f := newFixture(&fakeProvider{vector: []float32{1}}, &fakeEmbeddingReader{}, nil, hub)

	answer, err := f.svc.Relax(context.Background(), "t1", "scout")
	require.NoError(t, err)

	assert.Equal(t, "hub answer", answer.Result)
	assert.Equal(t, 1, hub.calls)
	assert.Equal(t, 0, f.local.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HubDelegations))
}

func TestRelaxFallsBackWhenHubDown(t *testing.T) {
	hub := &fakeOrchestrator{err: orchestrator.ErrHubUnavailable}
	f := newFixture(&fakeProvider{vector: []float32{1}}, &fakeEmbeddingReader{}, nil, hub)

	answer, err := f.svc.Relax(context.Background(), "t1", "scout")
	require.NoError(t, err)

	assert.Equal(t, "local answer", answer.Result)
	assert.Equal(t, 1, hub.calls)
	assert.Equal(t, 1, f.local.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HubFallbacks))
}

func TestRelaxFallsBackWhenHubConfused(t *testing.T) {
	hub := &fakeOrchestrator{err: orchestrator.ErrHubConfused}
	f := newFixture(&fakeProvider{vector: []float32{1}}, &fakeEmbeddingReader{}, nil, hub)

	answer, err := f.svc.Relax(context.Background(), "t1", "gibberish")
	require.NoError(t, err)
	assert.Equal(t, "local answer", answer.Result)
}

func TestRelaxNoHubConfigured(t *testing.T) {
	f := newFixture(&fakeProvider{vector: []float32{1}}, &fakeEmbeddingReader{}, nil, nil)

	answer, err := f.svc.Relax(context.Background(), "t1", "scout")
	require.NoError(t, err)
	assert.Equal(t, "local answer", answer.Result)
	assert.Equal(t, 1, f.local.calls)
}

func TestReindexPassesThrough(t *testing.T) {
	f := newFixture(&fakeProvider{vector: []float32{1}}, &fakeEmbeddingReader{}, nil, nil)

	result, err := f.svc.Reindex(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)
}
