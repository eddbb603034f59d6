package search

import (
	"context"
	"fmt"

	"github.com/estatehub/intelligence/internal/models"
)

// propertyBatchGetter is the slice of the property repository the hydrator needs
type propertyBatchGetter interface {
	GetByIDs(ctx context.Context, tenantID string, ids []string) ([]*models.Property, error)
}

// Hydrator resolves ranked property ids back into full records while keeping
// the ranking order intact. The batched fetch does not preserve order, so the
// re-sort here is mandatory: ranking stays the source of truth.
type Hydrator struct {
	properties propertyBatchGetter
}

// NewHydrator creates a result hydrator
func NewHydrator(properties propertyBatchGetter) *Hydrator {
	return &Hydrator{properties: properties}
}

// Hydrate fetches the properties for the ranked matches in one batched,
// tenant-scoped lookup and reorders them to the rank order. Ids without a
// live property (orphaned embeddings) are dropped silently, so the output
// may be shorter than the input.
func (h *Hydrator) Hydrate(ctx context.Context, tenantID string, ranked []models.RankedMatch) ([]*models.Property, error) {
	if len(ranked) == 0 {
		return []*models.Property{}, nil
	}

	ids := make([]string, len(ranked))
	for i, m := range ranked {
		ids[i] = m.PropertyID
	}

	fetched, err := h.properties.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate results: %w", err)
	}

	byID := make(map[string]*models.Property, len(fetched))
	for _, prop := range fetched {
		byID[prop.ID] = prop
	}

	ordered := make([]*models.Property, 0, len(ranked))
	for _, m := range ranked {
		if prop, ok := byID[m.PropertyID]; ok {
			ordered = append(ordered, prop)
		}
	}

	return ordered, nil
}
