package store

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/skylabel/internal/apperr"
	"github.com/starford/skylabel/internal/models"
)

// InsertSkip records rec. A second skip of the same filename yields
// apperr.ErrAlreadyExists and leaves the first record in place.
func (db *DB) InsertSkip(ctx context.Context, rec models.SkipRecord) error {
	if rec.SkippedAt.IsZero() {
		rec.SkippedAt = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO skip_records (filename, skipped_by, skipped_at) VALUES (?, ?, ?)`,
		rec.Filename, rec.SkippedBy, rec.SkippedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("store: skip %s: %w", rec.Filename, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("store: insert skip: %w", err)
	}
	return nil
}

// DeleteSkip removes a skip record. It is an administrative operation; the
// labeling flow never un-skips.
func (db *DB) DeleteSkip(ctx context.Context, filename string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM skip_records WHERE filename = ?`, filename)
	if err != nil {
		return fmt.Errorf("store: delete skip: %w", err)
	}
	return requireAffected(res, "skip "+filename)
}

// IsSkipped reports whether filename has a skip record.
func (db *DB) IsSkipped(ctx context.Context, filename string) (bool, error) {
	return db.exists(ctx, `SELECT 1 FROM skip_records WHERE filename = ?`, filename)
}

// SkippedFilenames returns the set of skipped filenames.
func (db *DB) SkippedFilenames(ctx context.Context) (map[string]struct{}, error) {
	return db.stringSet(ctx, `SELECT filename FROM skip_records`)
}
