package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatehub/intelligence/internal/models"
	"github.com/estatehub/intelligence/internal/observability"
)

type fakeProperties struct {
	listed   []*models.Property
	inserted []*models.Property
	insErr   error
}

func (f *fakeProperties) Insert(ctx context.Context, prop *models.Property) error {
	if f.insErr != nil {
		return f.insErr
	}
	f.inserted = append(f.inserted, prop)
	return nil
}

func (f *fakeProperties) ListByTenant(ctx context.Context, tenantID string) ([]*models.Property, error) {
	return f.listed, nil
}

type fakeIndexer struct {
	indexed []*models.Property
	err     error
}

func (f *fakeIndexer) IndexProperty(ctx context.Context, prop *models.Property) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, prop)
	return nil
}

type fakeAuditLog struct {
	events []*models.AuditEvent
	err    error
}

func (f *fakeAuditLog) Insert(ctx context.Context, event *models.AuditEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAuditLog) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*models.AuditEvent, error) {
	return f.events, nil
}

func newLocalFixture(props *fakeProperties, ix *fakeIndexer, audit *fakeAuditLog) *LocalOrchestrator {
	o := NewLocalOrchestrator(props, ix, audit, observability.NewNoopLogger())
	o.now = func() time.Time { return time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC) }
	return o
}

func TestLocalDailyBriefing(t *testing.T) {
	props := &fakeProperties{listed: []*models.Property{
		{ID: "h_1", Status: "available"},
		{ID: "h_2", Status: "booked"},
		{ID: "h_3", Status: "available"},
	}}
	audit := &fakeAuditLog{}
	o := newLocalFixture(props, &fakeIndexer{}, audit)

	answer, err := o.Execute(context.Background(), "t1", "good morning, what's the status?")
	require.NoError(t, err)

	assert.Equal(t, agentOrchestrator, answer.Agent)
	assert.Equal(t, "daily_briefing", answer.Status)
	assert.Contains(t, answer.Result, "3 properties listed")
	assert.Contains(t, answer.Result, "2 available")
}

func TestLocalScoutLogsTask(t *testing.T) {
	audit := &fakeAuditLog{}
	o := newLocalFixture(&fakeProperties{}, &fakeIndexer{}, audit)

	answer, err := o.Execute(context.Background(), "t1", "scout new listings")
	require.NoError(t, err)

	assert.Equal(t, agentScout, answer.Agent)
	assert.Equal(t, "scout_complete", answer.Status)

	// One integration event for the sourcing run, one agent-action event for
	// the command itself.
	require.Len(t, audit.events, 2)
	assert.Equal(t, models.AuditKindIntegration, audit.events[0].Kind)
	assert.Equal(t, models.AuditStatusLogged, audit.events[0].Status)
	assert.Equal(t, models.AuditKindAgentAction, audit.events[1].Kind)
}

func TestLocalWriterCreatesAndIndexesListing(t *testing.T) {
	props := &fakeProperties{}
	ix := &fakeIndexer{}
	o := newLocalFixture(props, ix, &fakeAuditLog{})

	answer, err := o.Execute(context.Background(), "t1", "create a condo listing")
	require.NoError(t, err)

	assert.Equal(t, agentWriter, answer.Agent)
	assert.Equal(t, "writer_complete", answer.Status)

	require.Len(t, props.inserted, 1)
	created := props.inserted[0]
	assert.Equal(t, "t1", created.TenantID)
	assert.Contains(t, created.ID, "h_relax_")
	assert.Equal(t, "available", created.Status)

	require.Len(t, ix.indexed, 1)
	assert.Equal(t, created.ID, ix.indexed[0].ID)
}

func TestLocalWriterIndexFailureIsNotFatal(t *testing.T) {
	props := &fakeProperties{}
	ix := &fakeIndexer{err: errors.New("provider down")}
	o := newLocalFixture(props, ix, &fakeAuditLog{})

	answer, err := o.Execute(context.Background(), "t1", "write a new listing")
	require.NoError(t, err)
	assert.Equal(t, "writer_complete", answer.Status)
	assert.Len(t, props.inserted, 1)
}

func TestLocalWriterInsertFailure(t *testing.T) {
	props := &fakeProperties{insErr: errors.New("constraint violation")}
	o := newLocalFixture(props, &fakeIndexer{}, &fakeAuditLog{})

	_, err := o.Execute(context.Background(), "t1", "create listing")
	assert.Error(t, err)
}

func TestLocalAdminReport(t *testing.T) {
	props := &fakeProperties{listed: []*models.Property{
		{ID: "h_1", Status: "booked", Price: 500000},
		{ID: "h_2", Status: "booked", Price: 350000},
		{ID: "h_3", Status: "available", Price: 999999},
	}}
	o := newLocalFixture(props, &fakeIndexer{}, &fakeAuditLog{})

	answer, err := o.Execute(context.Background(), "t1", "prepare the weekly report")
	require.NoError(t, err)

	assert.Equal(t, agentAdmin, answer.Agent)
	assert.Equal(t, "report_ready", answer.Status)
	assert.Contains(t, answer.Result, "850000")
}

func TestLocalUnmatchedCommand(t *testing.T) {
	audit := &fakeAuditLog{}
	o := newLocalFixture(&fakeProperties{}, &fakeIndexer{}, audit)

	answer, err := o.Execute(context.Background(), "t1", "do something unusual")
	require.NoError(t, err)

	assert.Equal(t, agentOrchestrator, answer.Agent)
	assert.Equal(t, "relax_mode_active", answer.Status)

	require.Len(t, audit.events, 1)
	assert.Equal(t, models.AuditKindAgentAction, audit.events[0].Kind)
}

func TestLocalAuditFailureDoesNotFailCommand(t *testing.T) {
	audit := &fakeAuditLog{err: errors.New("audit down")}
	o := newLocalFixture(&fakeProperties{}, &fakeIndexer{}, audit)

	_, err := o.Execute(context.Background(), "t1", "good morning")
	assert.NoError(t, err)
}
