// Package search ranks a tenant's stored embeddings against a query vector
// and resolves the ranked ids back into full property records.
package search

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/estatehub/intelligence/internal/metrics"
	"github.com/estatehub/intelligence/internal/models"
	"github.com/estatehub/intelligence/internal/observability"
)

// ErrDimensionMismatch is returned when the query vector itself is unusable
// (zero length or zero norm). Individual candidate vectors with the same
// defects are skipped and counted, not fatal.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// DefaultLimit is the fallback result cap when the engine is constructed
// without a configured default
const DefaultLimit = 10

// Candidate is one stored vector under consideration for ranking
type Candidate struct {
	PropertyID string
	Vector     []float32
}

// Engine computes cosine-similarity rankings. It holds no per-request state;
// one instance serves all tenants.
type Engine struct {
	defaultLimit int
	logger       observability.Logger
	metrics      *metrics.Metrics
}

// NewEngine creates a similarity search engine. defaultLimit caps rankings
// when the caller passes a non-positive limit; non-positive values fall back
// to DefaultLimit.
func NewEngine(defaultLimit int, logger observability.Logger, m *metrics.Metrics) *Engine {
	if defaultLimit < 1 {
		defaultLimit = DefaultLimit
	}
	return &Engine{
		defaultLimit: defaultLimit,
		logger:       logger.WithPrefix("search-engine"),
		metrics:      m,
	}
}

// Rank scores every candidate against the query vector and returns the top
// `limit` matches ordered by descending score, ties broken by ascending
// property id. Candidates whose vectors have a zero norm or a different
// dimensionality than the query are excluded and counted, never fatal.
// An empty candidate set yields an empty ranking, not an error.
func (e *Engine) Rank(query []float32, candidates []Candidate, limit int) ([]models.RankedMatch, error) {
	if limit < 1 {
		limit = e.defaultLimit
	}

	queryNorm := norm(query)
	if len(query) == 0 || queryNorm == 0 {
		return nil, fmt.Errorf("%w: query vector has zero norm or length", ErrDimensionMismatch)
	}

	matches := make([]models.RankedMatch, 0, len(candidates))
	for _, cand := range candidates {
		if len(cand.Vector) != len(query) {
			e.metrics.VectorsSkipped.WithLabelValues(metrics.SkipReasonDimensionMismatch).Inc()
			e.logger.Warn("Skipping candidate with mismatched dimensions", map[string]interface{}{
				"property_id": cand.PropertyID,
				"expected":    len(query),
				"actual":      len(cand.Vector),
			})
			continue
		}

		candNorm := norm(cand.Vector)
		if candNorm == 0 {
			e.metrics.VectorsSkipped.WithLabelValues(metrics.SkipReasonZeroNorm).Inc()
			e.logger.Warn("Skipping candidate with zero-norm vector", map[string]interface{}{
				"property_id": cand.PropertyID,
			})
			continue
		}

		matches = append(matches, models.RankedMatch{
			PropertyID: cand.PropertyID,
			Score:      dot(query, cand.Vector) / (queryNorm * candNorm),
		})
	}

	// Descending score; ascending property id on ties keeps ranking
	// deterministic across runs.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].PropertyID < matches[j].PropertyID
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

// dot computes the dot product with float64 accumulation
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// norm computes the L2 norm with float64 accumulation
func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
