package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// IncrementSequence bumps the counter for typeCode and returns the new
// value. The first call for a code returns 1. The update is a single
// statement, so it is durable once this returns.
func (db *DB) IncrementSequence(ctx context.Context, typeCode string) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO sequence_counters (type_code, value) VALUES (?, 1)
		ON CONFLICT(type_code) DO UPDATE SET value = value + 1
		RETURNING value`, typeCode).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: increment sequence %s: %w", typeCode, err)
	}
	return n, nil
}

// SequenceValue returns the last issued number for typeCode, or 0.
func (db *DB) SequenceValue(ctx context.Context, typeCode string) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT value FROM sequence_counters WHERE type_code = ?`, typeCode).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: sequence value: %w", err)
	}
	return n, nil
}
