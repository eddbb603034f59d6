package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/estatehub/intelligence/internal/models"
	"github.com/estatehub/intelligence/internal/observability"
)

// Local agent names
const (
	agentOrchestrator = "Orchestrator"
	agentScout        = "Property Scout"
	agentWriter       = "Listing Writer"
	agentAdmin        = "Admin Assistant"
)

// propertyCreator is the slice of the property repository the writer agent needs
type propertyCreator interface {
	Insert(ctx context.Context, prop *models.Property) error
	ListByTenant(ctx context.Context, tenantID string) ([]*models.Property, error)
}

// propertyIndexer pushes a newly written listing into the vector store
type propertyIndexer interface {
	IndexProperty(ctx context.Context, prop *models.Property) error
}

// auditWriter records agent actions
type auditWriter interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]*models.AuditEvent, error)
}

// LocalOrchestrator routes a relax command to one of the built-in agents by
// keyword. It is the fallback when no hub is reachable, so it must never
// depend on anything beyond the local store.
type LocalOrchestrator struct {
	properties propertyCreator
	indexer    propertyIndexer
	audit      auditWriter
	logger     observability.Logger
	now        func() time.Time
}

// NewLocalOrchestrator creates the local fallback orchestrator
func NewLocalOrchestrator(
	properties propertyCreator,
	indexer propertyIndexer,
	audit auditWriter,
	logger observability.Logger,
) *LocalOrchestrator {
	return &LocalOrchestrator{
		properties: properties,
		indexer:    indexer,
		audit:      audit,
		logger:     logger.WithPrefix("local-orchestrator"),
		now:        time.Now,
	}
}

// Execute routes the command to a local agent. Keyword checks run in a fixed
// order; the first match wins. Unmatched commands get a neutral answer rather
// than an error so the endpoint always responds.
func (o *LocalOrchestrator) Execute(ctx context.Context, tenantID, command string) (*Answer, error) {
	lowered := strings.ToLower(command)

	var answer *Answer
	var err error

	switch {
	case strings.Contains(lowered, "morning") || strings.Contains(lowered, "status"):
		answer = o.dailyBriefing(ctx, tenantID)
	case strings.Contains(lowered, "find") || strings.Contains(lowered, "scout"):
		answer, err = o.scout(ctx, tenantID)
	case strings.Contains(lowered, "write") || strings.Contains(lowered, "create") || strings.Contains(lowered, "condo"):
		answer, err = o.writeListing(ctx, tenantID)
	case strings.Contains(lowered, "report") || strings.Contains(lowered, "prepare"):
		answer = o.adminReport(ctx, tenantID)
	default:
		answer = &Answer{
			Agent:  agentOrchestrator,
			Result: "System analyzing command...",
			Status: "relax_mode_active",
		}
	}
	if err != nil {
		return nil, err
	}

	o.logAction(ctx, tenantID, answer.Agent, command)

	return answer, nil
}

// dailyBriefing summarizes the tenant's current state. Store errors degrade
// to a generic briefing instead of failing the command.
func (o *LocalOrchestrator) dailyBriefing(ctx context.Context, tenantID string) *Answer {
	listed := 0
	available := 0
	if props, err := o.properties.ListByTenant(ctx, tenantID); err == nil {
		listed = len(props)
		for _, p := range props {
			if p.Status == "available" {
				available++
			}
		}
	} else {
		o.logger.Warn("Briefing property lookup failed", map[string]interface{}{
			"tenant_id": tenantID,
			"error":     err.Error(),
		})
	}

	recent := 0
	if events, err := o.audit.ListByTenant(ctx, tenantID, 20); err == nil {
		recent = len(events)
	}

	return &Answer{
		Agent: agentOrchestrator,
		Result: fmt.Sprintf(
			"Good morning. Portfolio status: %d properties listed, %d available. %d recent agent actions on record.",
			listed, available, recent),
		Status: "daily_briefing",
	}
}

// scout logs a sourcing task for follow-up
func (o *LocalOrchestrator) scout(ctx context.Context, tenantID string) (*Answer, error) {
	event := &models.AuditEvent{
		TenantID:    tenantID,
		Kind:        models.AuditKindIntegration,
		Description: "Property Scout sourcing run: new listings flagged for review",
		Status:      models.AuditStatusLogged,
	}
	if err := o.audit.Insert(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to log scout task: %w", err)
	}

	return &Answer{
		Agent:  agentScout,
		Result: "Scanning listing sources... sourcing run logged for review.",
		Status: "scout_complete",
	}, nil
}

// writeListing creates a draft property and indexes it immediately so it is
// searchable without waiting for a bulk reindex
func (o *LocalOrchestrator) writeListing(ctx context.Context, tenantID string) (*Answer, error) {
	prop := &models.Property{
		ID:       fmt.Sprintf("h_relax_%d", o.now().UnixMilli()),
		TenantID: tenantID,
		Name:     "Relax Mode Condo",
		Location: "Thong Lor, Bangkok",
		Type:     "condo",
		Price:    45000000,
		ImageURL: "https://images.unsplash.com/photo-1512917774080-9991f1c4c750?auto=format&fit=crop&q=80&w=1200",
		Guests:   2,
		Beds:     1,
		Status:   "available",
	}

	if err := o.properties.Insert(ctx, prop); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	// Indexing failure leaves the listing created but unsearchable until the
	// next reindex. Not worth failing the whole command.
	if err := o.indexer.IndexProperty(ctx, prop); err != nil {
		o.logger.Warn("Failed to index new listing", map[string]interface{}{
			"tenant_id":   tenantID,
			"property_id": prop.ID,
			"error":       err.Error(),
		})
	}

	return &Answer{
		Agent:  agentWriter,
		Result: fmt.Sprintf("Draft listing %s created and indexed for search.", prop.ID),
		Status: "writer_complete",
	}, nil
}

// adminReport summarizes recent activity for the tenant
func (o *LocalOrchestrator) adminReport(ctx context.Context, tenantID string) *Answer {
	listed := 0
	var revenue float64
	if props, err := o.properties.ListByTenant(ctx, tenantID); err == nil {
		listed = len(props)
		for _, p := range props {
			if p.Status == "booked" {
				revenue += p.Price
			}
		}
	}

	return &Answer{
		Agent: agentAdmin,
		Result: fmt.Sprintf(
			"Report ready: %d properties listed, booked revenue %.0f.",
			listed, revenue),
		Status: "report_ready",
	}
}

// logAction records the agent action. Audit failures are logged, not fatal.
func (o *LocalOrchestrator) logAction(ctx context.Context, tenantID, agentName, command string) {
	event := &models.AuditEvent{
		TenantID:    tenantID,
		Kind:        models.AuditKindAgentAction,
		Description: fmt.Sprintf("Relax mode [%s]: %s", agentName, truncateCommand(command)),
		Status:      models.AuditStatusCompleted,
	}
	if err := o.audit.Insert(ctx, event); err != nil {
		o.logger.Error("Failed to log agent action", map[string]interface{}{
			"tenant_id": tenantID,
			"error":     err.Error(),
		})
	}
}
