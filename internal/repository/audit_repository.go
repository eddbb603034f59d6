package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/estatehub/intelligence/internal/models"
)

// AuditRepository persists intelligence-layer audit events
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert records an audit event
func (r *AuditRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO audit_events (id, tenant_id, kind, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.TenantID, event.Kind, event.Description,
		event.Status, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

// ListByTenant retrieves recent audit events for a tenant, newest first
func (r *AuditRepository) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*models.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	var events []*models.AuditEvent
	query := `
		SELECT id, tenant_id, kind, description, status, created_at
		FROM audit_events
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	err := r.db.SelectContext(ctx, &events, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}

	return events, nil
}
