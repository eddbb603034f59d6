package search

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatehub/intelligence/internal/metrics"
	"github.com/estatehub/intelligence/internal/observability"
)

func newTestEngine(t *testing.T) (*Engine, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	return NewEngine(0, observability.NewNoopLogger(), m), m
}

func TestRankOrdersByDescendingScore(t *testing.T) {
	engine, _ := newTestEngine(t)

	query := []float32{1, 0, 0}
	candidates := []Candidate{
		{PropertyID: "h_orthogonal", Vector: []float32{0, 1, 0}},
		{PropertyID: "h_identical", Vector: []float32{1, 0, 0}},
		{PropertyID: "h_partial", Vector: []float32{1, 1, 0}},
	}

	ranked, err := engine.Rank(query, candidates, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, "h_identical", ranked[0].PropertyID)
	assert.InDelta(t, 1.0, ranked[0].Score, 1e-9)
	assert.Equal(t, "h_partial", ranked[1].PropertyID)
	assert.Equal(t, "h_orthogonal", ranked[2].PropertyID)
	assert.InDelta(t, 0.0, ranked[2].Score, 1e-9)
}

func TestRankScaleInvariance(t *testing.T) {
	engine, _ := newTestEngine(t)

	// Cosine similarity ignores magnitude, so a scaled copy of the query
	// scores the same as the query itself.
	query := []float32{0.3, 0.7, 0.2}
	candidates := []Candidate{
		{PropertyID: "h_scaled", Vector: []float32{3, 7, 2}},
		{PropertyID: "h_exact", Vector: []float32{0.3, 0.7, 0.2}},
	}

	ranked, err := engine.Rank(query, candidates, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	assert.InDelta(t, ranked[0].Score, ranked[1].Score, 1e-6)
}

func TestRankTieBreaksByPropertyID(t *testing.T) {
	engine, _ := newTestEngine(t)

	query := []float32{1, 0}
	candidates := []Candidate{
		{PropertyID: "h_zulu", Vector: []float32{2, 0}},
		{PropertyID: "h_alpha", Vector: []float32{5, 0}},
		{PropertyID: "h_mike", Vector: []float32{1, 0}},
	}

	ranked, err := engine.Rank(query, candidates, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, "h_alpha", ranked[0].PropertyID)
	assert.Equal(t, "h_mike", ranked[1].PropertyID)
	assert.Equal(t, "h_zulu", ranked[2].PropertyID)
}

func TestRankIsDeterministic(t *testing.T) {
	engine, _ := newTestEngine(t)

	query := []float32{0.5, 0.5, 0.1}
	candidates := []Candidate{
		{PropertyID: "h_1", Vector: []float32{0.4, 0.6, 0.2}},
		{PropertyID: "h_2", Vector: []float32{0.9, 0.1, 0.3}},
		{PropertyID: "h_3", Vector: []float32{0.5, 0.5, 0.1}},
		{PropertyID: "h_4", Vector: []float32{0.2, 0.8, 0.4}},
	}

	first, err := engine.Rank(query, candidates, 10)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := engine.Rank(query, candidates, 10)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRankTruncatesToLimit(t *testing.T) {
	engine, _ := newTestEngine(t)

	query := []float32{1, 1}
	candidates := make([]Candidate, 25)
	for i := range candidates {
		candidates[i] = Candidate{
			PropertyID: string(rune('a' + i)),
			Vector:     []float32{1, float32(i)},
		}
	}

	ranked, err := engine.Rank(query, candidates, 5)
	require.NoError(t, err)
	assert.Len(t, ranked, 5)
}

func TestRankDefaultLimit(t *testing.T) {
	engine, _ := newTestEngine(t)

	query := []float32{1, 0}
	candidates := make([]Candidate, 15)
	for i := range candidates {
		candidates[i] = Candidate{
			PropertyID: string(rune('a' + i)),
			Vector:     []float32{1, float32(i) * 0.1},
		}
	}

	ranked, err := engine.Rank(query, candidates, 0)
	require.NoError(t, err)
	assert.Len(t, ranked, DefaultLimit)
}

func TestRankConfiguredDefaultLimit(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	engine := NewEngine(3, observability.NewNoopLogger(), m)

	query := []float32{1, 0}
	candidates := make([]Candidate, 15)
	for i := range candidates {
		candidates[i] = Candidate{
			PropertyID: string(rune('a' + i)),
			Vector:     []float32{1, float32(i) * 0.1},
		}
	}

	// The configured default applies only when the caller does not choose.
	ranked, err := engine.Rank(query, candidates, 0)
	require.NoError(t, err)
	assert.Len(t, ranked, 3)

	ranked, err = engine.Rank(query, candidates, 7)
	require.NoError(t, err)
	assert.Len(t, ranked, 7)
}

func TestRankSkipsMismatchedDimensions(t *testing.T) {
	engine, m := newTestEngine(t)

	query := []float32{1, 0, 0}
	candidates := []Candidate{
		{PropertyID: "h_good", Vector: []float32{1, 0, 0}},
		{PropertyID: "h_short", Vector: []float32{1, 0}},
	}

	ranked, err := engine.Rank(query, candidates, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "h_good", ranked[0].PropertyID)

	skipped := testutil.ToFloat64(
		m.VectorsSkipped.WithLabelValues(metrics.SkipReasonDimensionMismatch))
	assert.Equal(t, 1.0, skipped)
}

func TestRankSkipsZeroNormCandidates(t *testing.T) {
	engine, m := newTestEngine(t)

	query := []float32{1, 0}
	candidates := []Candidate{
		{PropertyID: "h_good", Vector: []float32{0.5, 0.5}},
		{PropertyID: "h_zero", Vector: []float32{0, 0}},
	}

	ranked, err := engine.Rank(query, candidates, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "h_good", ranked[0].PropertyID)

	skipped := testutil.ToFloat64(
		m.VectorsSkipped.WithLabelValues(metrics.SkipReasonZeroNorm))
	assert.Equal(t, 1.0, skipped)
}

func TestRankRejectsUnusableQuery(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Rank(nil, []Candidate{{PropertyID: "h_1", Vector: []float32{1}}}, 10)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = engine.Rank([]float32{0, 0, 0}, []Candidate{{PropertyID: "h_1", Vector: []float32{1, 0, 0}}}, 10)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestRankEmptyCandidates(t *testing.T) {
	engine, _ := newTestEngine(t)

	ranked, err := engine.Rank([]float32{1, 0}, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}
