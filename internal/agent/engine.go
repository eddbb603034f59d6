package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/estatehub/intelligence/internal/metrics"
	"github.com/estatehub/intelligence/internal/models"
	"github.com/estatehub/intelligence/internal/observability"
)

// statementStore executes statements that passed validation
type statementStore interface {
	QueryRows(ctx context.Context, statement string) ([]map[string]interface{}, error)
	ExecInsert(ctx context.Context, statement string) (int64, error)
}

// auditWriter records every command attempt, accepted or rejected
type auditWriter interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
}

// allowedTables is the schema published to the model. Anything else in a
// generated statement is rejected. The embeddings table is deliberately
// absent: natural-language commands have no business reading vectors.
var allowedTables = map[string]bool{
	"properties":   true,
	"leads":        true,
	"audit_events": true,
}

// forbiddenKeywords are rejected in any mode. The engine only ever permits a
// single SELECT (read) or a single INSERT (write).
var forbiddenKeywords = []string{
	"DROP", "ALTER", "DELETE", "UPDATE", "TRUNCATE", "CREATE",
	"GRANT", "REVOKE", "ATTACH", "PRAGMA", "EXECUTE", "MERGE",
	"COPY", "VACUUM",
}

var fencePattern = regexp.MustCompile("(?s)```(?:sql)?|```")

// tableClauseEnders terminate a FROM table list, so a comma after one of
// these no longer introduces another table.
var tableClauseEnders = map[string]bool{
	"where": true, "on": true, "group": true, "order": true, "limit": true,
	"having": true, "values": true, "set": true, "union": true,
	"inner": true, "left": true, "right": true, "full": true, "cross": true,
	"natural": true, "using": true, "returning": true,
}

// Engine is the natural-language command engine. It asks the language model
// for exactly one SQL statement, runs the full validation pipeline, and only
// then executes against the relational store.
type Engine struct {
	llm     LLMProvider
	store   statementStore
	audit   auditWriter
	logger  observability.Logger
	metrics *metrics.Metrics
}

// NewEngine creates a command engine
func NewEngine(llm LLMProvider, store statementStore, audit auditWriter, logger observability.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		llm:     llm,
		store:   store,
		audit:   audit,
		logger:  logger.WithPrefix("command-engine"),
		metrics: m,
	}
}

// Execute translates the instruction into one statement, validates it, and
// runs it scoped to the caller's tenant. Every attempt is audit-logged.
func (e *Engine) Execute(ctx context.Context, tenantID, command string, mode models.CommandMode) (*models.CommandResult, error) {
	start := time.Now()
	defer func() {
		e.metrics.CommandDuration.Observe(time.Since(start).Seconds())
	}()

	if mode != models.CommandModeWrite {
		mode = models.CommandModeRead
	}

	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("%w: empty command", ErrUnsafeStatement)
	}

	raw, err := e.llm.Complete(ctx, e.systemPrompt(tenantID), command)
	if err != nil {
		e.logAttempt(ctx, tenantID, command, "", models.AuditStatusFailed)
		return nil, err
	}

	statement := sanitizeStatement(raw)

	if err := validateStatement(statement, tenantID, mode); err != nil {
		e.metrics.CommandsRejected.WithLabelValues("validation").Inc()
		e.logger.Warn("Rejected generated statement", map[string]interface{}{
			"tenant_id": tenantID,
			"error":     err.Error(),
		})
		e.logAttempt(ctx, tenantID, command, statement, models.AuditStatusRejected)
		return nil, err
	}

	result := &models.CommandResult{
		TenantID:  tenantID,
		Mode:      mode,
		Statement: statement,
	}

	switch mode {
	case models.CommandModeWrite:
		affected, err := e.store.ExecInsert(ctx, statement)
		if err != nil {
			e.logAttempt(ctx, tenantID, command, statement, models.AuditStatusFailed)
			return nil, fmt.Errorf("%w: %v", ErrExecution, err)
		}
		result.RowsAffected = affected
	default:
		rows, err := e.store.QueryRows(ctx, statement)
		if err != nil {
			e.logAttempt(ctx, tenantID, command, statement, models.AuditStatusFailed)
			return nil, fmt.Errorf("%w: %v", ErrExecution, err)
		}
		result.Rows = rows
	}

	e.metrics.CommandsExecuted.Inc()
	e.logAttempt(ctx, tenantID, command, statement, models.AuditStatusCompleted)

	return result, nil
}

// systemPrompt publishes the schema and the rules the generated statement
// must follow. The model's compliance is never trusted: the validation
// pipeline re-checks everything it promises here.
func (e *Engine) systemPrompt(tenantID string) string {
	return fmt.Sprintf(`You are the operations agent for a property-listing platform.
You have access to the following tables:
- properties: id, tenant_id, name, location, type, price, image_url, guests, beds, baths, sqft, lat, lng, ai_insight, status
- leads: id, tenant_id, name, email, phone, type, budget, status, created_at
- audit_events: id, tenant_id, kind, description, status, created_at

Current tenant ID: %s.

CAPABILITIES:
1. QUERY: if the user asks for information, return ONLY a single valid SQL SELECT statement.
2. ACTION: if the user wants to log or record something, return ONLY a single valid SQL INSERT statement.
3. ANALYSIS: for "top" or "most", use ORDER BY and LIMIT. For revenue, sum the price of properties where status = 'booked'.

RULES:
- ALWAYS include tenant_id = '%s' in the WHERE clause of SELECT statements, and always set tenant_id to '%s' in INSERT statements.
- Return ONLY the SQL statement. No explanation. No backticks.
- If the request cannot be fulfilled with the available schema, return a SELECT statement that matches no rows but is valid SQL.`,
		tenantID, tenantID, tenantID)
}

// logAttempt writes the audit entry for one command attempt. Audit failures
// are logged but do not fail the command itself.
func (e *Engine) logAttempt(ctx context.Context, tenantID, command, statement, status string) {
	description := fmt.Sprintf("Agent command: %s", truncate(command, 100))
	if statement != "" {
		description += fmt.Sprintf(" | statement: %s", truncate(statement, 200))
	}

	event := &models.AuditEvent{
		TenantID:    tenantID,
		Kind:        models.AuditKindAgentCommand,
		Description: description,
		Status:      status,
	}
	if err := e.audit.Insert(ctx, event); err != nil {
		e.logger.Error("Failed to write audit event", map[string]interface{}{
			"tenant_id": tenantID,
			"error":     err.Error(),
		})
	}
}

// sanitizeStatement strips markdown fencing and surrounding whitespace the
// model may add despite instructions
func sanitizeStatement(raw string) string {
	cleaned := fencePattern.ReplaceAllString(raw, "")
	return strings.TrimSpace(cleaned)
}

// validateStatement is the security gate between model output and the store.
// Checks run in order; the first failure rejects the statement.
func validateStatement(statement, tenantID string, mode models.CommandMode) error {
	if statement == "" {
		return fmt.Errorf("%w: model returned an empty statement", ErrUnsafeStatement)
	}

	// A single trailing separator is harmless; anything after one is a
	// chained statement. String literals are blanked first so a semicolon
	// inside quoted text does not trip the check.
	deQuoted := stripStringLiterals(statement)
	trimmed := strings.TrimSuffix(strings.TrimSpace(deQuoted), ";")
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("%w: multiple statements detected", ErrUnsafeStatement)
	}

	firstWord := strings.ToUpper(strings.Fields(statement)[0])
	switch mode {
	case models.CommandModeWrite:
		if firstWord != "INSERT" {
			return fmt.Errorf("%w: write mode requires a single INSERT statement", ErrUnsafeStatement)
		}
	default:
		if firstWord != "SELECT" {
			return fmt.Errorf("%w: read mode requires a single SELECT statement", ErrUnsafeStatement)
		}
	}

	deQuotedUpper := strings.ToUpper(deQuoted)
	for _, keyword := range forbiddenKeywords {
		pattern := regexp.MustCompile(`\b` + keyword + `\b`)
		if pattern.MatchString(deQuotedUpper) {
			return fmt.Errorf("%w: forbidden keyword %s", ErrUnsafeStatement, keyword)
		}
	}

	for _, table := range referencedTables(deQuoted) {
		if !allowedTables[table] {
			return fmt.Errorf("%w: table %q is not in the published schema", ErrUnsafeStatement, table)
		}
	}

	// The statement must be scoped to the caller's tenant, regardless of
	// what the user text asked for.
	quotedTenant := "'" + tenantID + "'"
	if mode == models.CommandModeWrite {
		if !strings.Contains(strings.ToLower(statement), "tenant_id") || !strings.Contains(statement, quotedTenant) {
			return fmt.Errorf("%w: insert does not set tenant_id to the caller's tenant", ErrUnsafeStatement)
		}
	} else {
		tenantPredicate := regexp.MustCompile(`(?i)tenant_id\s*=\s*` + regexp.QuoteMeta(quotedTenant))
		if !tenantPredicate.MatchString(statement) {
			return fmt.Errorf("%w: statement is not filtered to the caller's tenant", ErrUnsafeStatement)
		}
	}

	return nil
}

// referencedTables returns every table identifier the statement names in a
// FROM, JOIN, or INTO position, lowercased. Comma-separated FROM lists
// contribute every member, not just the first, and aliases are skipped. Any
// token in a table position that is not a subquery opener is reported as a
// table, so malformed references fail the allow-list check instead of
// slipping past it.
func referencedTables(statement string) []string {
	replacer := strings.NewReplacer(",", " , ", "(", " ( ", ")", " ) ", ";", " ", `"`, "")
	tokens := strings.Fields(replacer.Replace(statement))

	var tables []string
	expectTable := false
	inFromList := false
	for _, token := range tokens {
		lower := strings.ToLower(token)
		switch {
		case lower == "from" || lower == "join" || lower == "into":
			expectTable = true
			inFromList = lower == "from"
		case token == ",":
			if inFromList {
				expectTable = true
			}
		case tableClauseEnders[lower]:
			expectTable = false
			inFromList = false
		case expectTable:
			if token != "(" {
				tables = append(tables, lower)
			}
			expectTable = false
		}
	}
	return tables
}

// stripStringLiterals blanks the contents of single-quoted SQL literals so
// structural checks cannot be confused by quoted text
func stripStringLiterals(s string) string {
	var b strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\'' {
			inQuote = !inQuote
			b.WriteByte(c)
			continue
		}
		if inQuote {
			b.WriteByte(' ')
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// truncate shortens s to at most n runes for audit descriptions
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
