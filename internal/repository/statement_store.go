package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// StatementStore executes statements that have already passed the command
// engine's validation pipeline. It must never be handed unvalidated text.
type StatementStore struct {
	db *sqlx.DB
}

// NewStatementStore creates a new statement store
func NewStatementStore(db *sqlx.DB) *StatementStore {
	return &StatementStore{db: db}
}

// QueryRows runs a read statement and returns all rows as generic maps
func (s *StatementStore) QueryRows(ctx context.Context, statement string) ([]map[string]interface{}, error) {
	rows, err := s.db.QueryxContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("statement query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		row := map[string]interface{}{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		// MapScan returns []byte for text columns; convert for JSON output
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	return results, nil
}

// ExecInsert runs a write statement and returns the affected-row count
func (s *StatementStore) ExecInsert(ctx context.Context, statement string) (int64, error) {
	result, err := s.db.ExecContext(ctx, statement)
	if err != nil {
		return 0, fmt.Errorf("statement exec failed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected, nil
}
