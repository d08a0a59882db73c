package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/skylabel/internal/models"
)

func referenceTable(kind models.ReferenceKind) (string, error) {
	switch kind {
	case models.KindAircraftType:
		return "aircraft_types", nil
	case models.KindAirline:
		return "airlines", nil
	default:
		return "", fmt.Errorf("store: unknown reference kind %q", kind)
	}
}

// InsertReference adds entries to the kind table, skipping codes that are
// already present. It returns how many rows were inserted.
func (db *DB) InsertReference(ctx context.Context, kind models.ReferenceKind, entries []models.ReferenceEntry) (int, error) {
	table, err := referenceTable(kind)
	if err != nil {
		return 0, err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO `+table+` (code, name) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range entries {
		res, err := stmt.ExecContext(ctx, e.Code, e.Name)
		if err != nil {
			return 0, fmt.Errorf("store: insert %s %s: %w", table, e.Code, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit %s: %w", table, err)
	}
	return inserted, nil
}

// ListReference returns all entries of kind ordered by code.
func (db *DB) ListReference(ctx context.Context, kind models.ReferenceKind) ([]models.ReferenceEntry, error) {
	table, err := referenceTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx, `SELECT code, name FROM `+table+` ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", table, err)
	}
	defer rows.Close()

	out := []models.ReferenceEntry{}
	for rows.Next() {
		var e models.ReferenceEntry
		if err := rows.Scan(&e.Code, &e.Name); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ReferenceName looks up the display name for code.
func (db *DB) ReferenceName(ctx context.Context, kind models.ReferenceKind, code string) (string, bool, error) {
	table, err := referenceTable(kind)
	if err != nil {
		return "", false, err
	}
	var name string
	err = db.conn.QueryRowContext(ctx, `SELECT name FROM `+table+` WHERE code = ?`, code).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: lookup %s: %w", table, err)
	}
	return name, true, nil
}
