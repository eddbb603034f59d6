package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/estatehub/intelligence/internal/models"
)

// EmbeddingRepository handles stored property embeddings. The table keeps at
// most one row per (tenant_id, property_id); Upsert overwrites in place so
// overlapping reindex runs converge without locking.
type EmbeddingRepository struct {
	db *sqlx.DB
}

// NewEmbeddingRepository creates a new embedding repository
func NewEmbeddingRepository(db *sqlx.DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

// Upsert inserts the embedding or overwrites the vector and timestamp if a
// row for the property already exists. The write is a single statement, so a
// concurrent search observes either the old or the new vector, never a
// partial one.
func (r *EmbeddingRepository) Upsert(ctx context.Context, emb *models.PropertyEmbedding) error {
	if emb.LastIndexed.IsZero() {
		emb.LastIndexed = time.Now()
	}

	query := `
		INSERT INTO property_embeddings (property_id, tenant_id, embedding, last_indexed)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, property_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			last_indexed = EXCLUDED.last_indexed`

	_, err := r.db.ExecContext(ctx, query,
		emb.PropertyID, emb.TenantID, emb.Embedding, emb.LastIndexed,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}

	return nil
}

// ListByTenant retrieves every stored embedding for exactly one tenant
func (r *EmbeddingRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.PropertyEmbedding, error) {
	var embeddings []*models.PropertyEmbedding
	query := `
		SELECT property_id, tenant_id, embedding, last_indexed
		FROM property_embeddings
		WHERE tenant_id = $1
		ORDER BY property_id`

	err := r.db.SelectContext(ctx, &embeddings, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}

	return embeddings, nil
}

// CountByTenant returns the number of stored embeddings for a tenant
func (r *EmbeddingRepository) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM property_embeddings WHERE tenant_id = $1`

	err := r.db.GetContext(ctx, &count, query, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}

	return count, nil
}
