// Package models defines the data types shared across the intelligence service.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Property is a tenant-owned listing. The CRUD layer owns the table; the
// intelligence layer only reads it and triggers reindexing.
type Property struct {
	ID        string  `json:"id" db:"id"`
	TenantID  string  `json:"tenant_id" db:"tenant_id"`
	Name      string  `json:"name" db:"name"`
	Location  string  `json:"location" db:"location"`
	Type      string  `json:"type" db:"type"`
	Price     float64 `json:"price" db:"price"`
	ImageURL  string  `json:"image_url" db:"image_url"`
	Guests    int     `json:"guests" db:"guests"`
	Beds      int     `json:"beds" db:"beds"`
	Baths     int     `json:"baths" db:"baths"`
	Sqft      int     `json:"sqft" db:"sqft"`
	Lat       float64 `json:"lat" db:"lat"`
	Lng       float64 `json:"lng" db:"lng"`
	AIInsight string  `json:"ai_insight" db:"ai_insight"`
	Status    string  `json:"status" db:"status"`
}

// Vector is a fixed-length embedding stored as a JSON array in the database.
type Vector []float32

// Value implements driver.Valuer
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal([]float32(v))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal vector: %w", err)
	}
	return data, nil
}

// Scan implements sql.Scanner
func (v *Vector) Scan(src interface{}) error {
	if src == nil {
		*v = nil
		return nil
	}

	var data []byte
	switch s := src.(type) {
	case []byte:
		data = s
	case string:
		data = []byte(s)
	default:
		return fmt.Errorf("unsupported vector source type %T", src)
	}

	var out []float32
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to unmarshal vector: %w", err)
	}
	*v = out
	return nil
}

// PropertyEmbedding is the stored vector for one property. At most one row
// exists per (tenant_id, property_id); reindexing overwrites in place.
type PropertyEmbedding struct {
	PropertyID  string    `json:"property_id" db:"property_id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	Embedding   Vector    `json:"embedding" db:"embedding"`
	LastIndexed time.Time `json:"last_indexed" db:"last_indexed"`
}

// RankedMatch is an ephemeral (property, score) pair produced by the
// similarity engine. Never persisted.
type RankedMatch struct {
	PropertyID string  `json:"property_id"`
	Score      float64 `json:"score"`
}

// AuditEvent records an intelligence-layer action against a tenant.
type AuditEvent struct {
	ID          uuid.UUID `json:"id" db:"id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	Kind        string    `json:"kind" db:"kind"`
	Description string    `json:"description" db:"description"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Audit event kinds
const (
	AuditKindAgentCommand = "agent_command"
	AuditKindAgentAction  = "agent_action"
	AuditKindIntegration  = "integration"
	AuditKindLead         = "lead"
)

// Audit event statuses
const (
	AuditStatusCompleted = "completed"
	AuditStatusRejected  = "rejected"
	AuditStatusFailed    = "failed"
	AuditStatusLogged    = "logged"
)

// CommandMode selects what kind of statement the command engine may generate.
type CommandMode string

// Command modes
const (
	CommandModeRead  CommandMode = "read"
	CommandModeWrite CommandMode = "write"
)

// CommandResult is the ephemeral outcome of a natural-language command:
// the exact statement that was executed, the tenant it was scoped to, and
// the rows (or affected-row count) the store returned.
type CommandResult struct {
	TenantID     string                   `json:"tenant_id"`
	Mode         CommandMode              `json:"mode"`
	Statement    string                   `json:"executed_query"`
	Rows         []map[string]interface{} `json:"data,omitempty"`
	RowsAffected int64                    `json:"rows_affected,omitempty"`
}
