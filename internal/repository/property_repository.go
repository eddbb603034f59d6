// Package repository implements data access for the intelligence service
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/estatehub/intelligence/internal/models"
)

// ErrNotFound is returned when a referenced record does not exist
var ErrNotFound = errors.New("not found")

const propertyColumns = `id, tenant_id, name, location, type, price, image_url,
       guests, beds, baths, sqft, lat, lng, ai_insight, status`

// PropertyRepository handles property data access. The CRUD layer owns the
// table; every query here is tenant-scoped.
type PropertyRepository struct {
	db *sqlx.DB
}

// NewPropertyRepository creates a new property repository
func NewPropertyRepository(db *sqlx.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

// GetByID retrieves one property belonging to the given tenant
func (r *PropertyRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Property, error) {
	var prop models.Property
	query := `SELECT ` + propertyColumns + `
		FROM properties
		WHERE tenant_id = $1 AND id = $2`

	err := r.db.GetContext(ctx, &prop, query, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("property %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get property: %w", err)
	}

	return &prop, nil
}

// ListByTenant retrieves all properties for a tenant
func (r *PropertyRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.Property, error) {
	var props []*models.Property
	query := `SELECT ` + propertyColumns + `
		FROM properties
		WHERE tenant_id = $1
		ORDER BY id`

	err := r.db.SelectContext(ctx, &props, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}

	return props, nil
}

// GetByIDs retrieves the properties with the given ids in one batched lookup,
// scoped to the tenant. The database does not guarantee any ordering here;
// callers that care about order must reorder the result themselves.
func (r *PropertyRepository) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]*models.Property, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var props []*models.Property
	query := `SELECT ` + propertyColumns + `
		FROM properties
		WHERE tenant_id = $1 AND id = ANY($2)`

	err := r.db.SelectContext(ctx, &props, query, tenantID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get properties by ids: %w", err)
	}

	return props, nil
}

// Insert creates a new property record. Used by the relax orchestrator's
// listing-writer action; regular property creation lives in the CRUD layer.
func (r *PropertyRepository) Insert(ctx context.Context, prop *models.Property) error {
	query := `
		INSERT INTO properties (
			id, tenant_id, name, location, type, price, image_url,
			guests, beds, baths, sqft, lat, lng, ai_insight, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)`

	_, err := r.db.ExecContext(ctx, query,
		prop.ID, prop.TenantID, prop.Name, prop.Location, prop.Type,
		prop.Price, prop.ImageURL, prop.Guests, prop.Beds, prop.Baths,
		prop.Sqft, prop.Lat, prop.Lng, prop.AIInsight, prop.Status,
	)
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return fmt.Errorf("property %s already exists", prop.ID)
		}
		return fmt.Errorf("failed to insert property: %w", err)
	}

	return nil
}
