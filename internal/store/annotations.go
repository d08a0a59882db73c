package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/skylabel/internal/apperr"
	"github.com/starford/skylabel/internal/models"
)

const annotationColumns = `id, assigned_filename, source_filename,
	aircraft_type_code, aircraft_type_name, airline_code, airline_name,
	clarity, occlusion, registration_text,
	box_center_x, box_center_y, box_width, box_height,
	created_by, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnnotation(s rowScanner) (models.Annotation, error) {
	var a models.Annotation
	err := s.Scan(&a.ID, &a.AssignedFilename, &a.SourceFilename,
		&a.AircraftTypeCode, &a.AircraftTypeName, &a.AirlineCode, &a.AirlineName,
		&a.Clarity, &a.Occlusion, &a.RegistrationText,
		&a.RegistrationBox.CenterX, &a.RegistrationBox.CenterY,
		&a.RegistrationBox.Width, &a.RegistrationBox.Height,
		&a.CreatedBy, &a.CreatedAt)
	return a, err
}

func collectAnnotations(rows *sql.Rows) ([]models.Annotation, error) {
	defer rows.Close()
	var out []models.Annotation
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan annotation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertAnnotation writes a in a single transaction and sets a.ID.
// A duplicate assigned filename yields apperr.ErrAlreadyExists.
func (db *DB) InsertAnnotation(ctx context.Context, a *models.Annotation) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
		INSERT INTO annotations (
			assigned_filename, source_filename,
			aircraft_type_code, aircraft_type_name, airline_code, airline_name,
			clarity, occlusion, registration_text,
			box_center_x, box_center_y, box_width, box_height,
			created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AssignedFilename, a.SourceFilename,
		a.AircraftTypeCode, a.AircraftTypeName, a.AirlineCode, a.AirlineName,
		a.Clarity, a.Occlusion, a.RegistrationText,
		a.RegistrationBox.CenterX, a.RegistrationBox.CenterY,
		a.RegistrationBox.Width, a.RegistrationBox.Height,
		a.CreatedBy, a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("store: annotation %s: %w", a.AssignedFilename, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("store: insert annotation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit annotation: %w", err)
	}
	a.ID = id
	return nil
}

// GetAnnotation returns the annotation with the given id.
func (db *DB) GetAnnotation(ctx context.Context, id int64) (*models.Annotation, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+annotationColumns+` FROM annotations WHERE id = ?`, id)
	a, err := scanAnnotation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: annotation %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get annotation: %w", err)
	}
	return &a, nil
}

// ListAnnotations returns one page of annotations, newest first, and the total count.
func (db *DB) ListAnnotations(ctx context.Context, limit, offset int) ([]models.Annotation, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM annotations`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count annotations: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+annotationColumns+` FROM annotations ORDER BY id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list annotations: %w", err)
	}
	out, err := collectAnnotations(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// AnnotationsInRange returns annotations ordered by id ascending, limited to
// the inclusive range r.
func (db *DB) AnnotationsInRange(ctx context.Context, r models.IDRange) ([]models.Annotation, error) {
	var (
		where []string
		args  []any
	)
	if r.Start != nil {
		where = append(where, "id >= ?")
		args = append(args, *r.Start)
	}
	if r.End != nil {
		where = append(where, "id <= ?")
		args = append(args, *r.End)
	}

	q := `SELECT ` + annotationColumns + ` FROM annotations`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id ASC"

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: annotations in range: %w", err)
	}
	return collectAnnotations(rows)
}

// UpdateAnnotation rewrites the editable fields of an existing annotation.
// The assigned and source filenames are immutable.
func (db *DB) UpdateAnnotation(ctx context.Context, a *models.Annotation) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE annotations SET
			aircraft_type_code = ?, aircraft_type_name = ?,
			airline_code = ?, airline_name = ?,
			clarity = ?, occlusion = ?, registration_text = ?,
			box_center_x = ?, box_center_y = ?, box_width = ?, box_height = ?
		WHERE id = ?`,
		a.AircraftTypeCode, a.AircraftTypeName, a.AirlineCode, a.AirlineName,
		a.Clarity, a.Occlusion, a.RegistrationText,
		a.RegistrationBox.CenterX, a.RegistrationBox.CenterY,
		a.RegistrationBox.Width, a.RegistrationBox.Height,
		a.ID)
	if err != nil {
		return fmt.Errorf("store: update annotation: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("annotation %d", a.ID))
}

// DeleteAnnotation removes an annotation row. Sequence counters are untouched.
func (db *DB) DeleteAnnotation(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM annotations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete annotation: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("annotation %d", id))
}

// LabeledSources returns the set of source filenames that have an annotation.
func (db *DB) LabeledSources(ctx context.Context) (map[string]struct{}, error) {
	return db.stringSet(ctx, `SELECT source_filename FROM annotations`)
}

// IsLabeled reports whether an annotation exists for source.
func (db *DB) IsLabeled(ctx context.Context, source string) (bool, error) {
	return db.exists(ctx, `SELECT 1 FROM annotations WHERE source_filename = ? LIMIT 1`, source)
}

// AssignedFilenames returns the set of assigned filenames on record.
func (db *DB) AssignedFilenames(ctx context.Context) (map[string]struct{}, error) {
	return db.stringSet(ctx, `SELECT assigned_filename FROM annotations`)
}

// CountAnnotations returns the number of annotation rows.
func (db *DB) CountAnnotations(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM annotations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count annotations: %w", err)
	}
	return n, nil
}

// CountByType groups annotations by aircraft type, largest bucket first.
func (db *DB) CountByType(ctx context.Context) ([]models.GroupCount, error) {
	return db.groupCount(ctx, "aircraft_type_code", "aircraft_type_name")
}

// CountByAirline groups annotations by airline, largest bucket first.
func (db *DB) CountByAirline(ctx context.Context) ([]models.GroupCount, error) {
	return db.groupCount(ctx, "airline_code", "airline_name")
}

// groupCount is only called with fixed column names.
func (db *DB) groupCount(ctx context.Context, codeCol, nameCol string) ([]models.GroupCount, error) {
	rows, err := db.conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %[1]s, MAX(%[2]s), COUNT(*) AS n
		FROM annotations
		GROUP BY %[1]s
		ORDER BY n DESC, %[1]s ASC`, codeCol, nameCol))
	if err != nil {
		return nil, fmt.Errorf("store: group by %s: %w", codeCol, err)
	}
	defer rows.Close()

	out := []models.GroupCount{}
	for rows.Next() {
		var g models.GroupCount
		if err := rows.Scan(&g.Code, &g.Name, &g.Count); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (db *DB) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: query exists: %w", err)
	}
	return true, nil
}

func (db *DB) stringSet(ctx context.Context, query string, args ...any) (map[string]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query set: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out[s] = struct{}{}
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: %s: %w", what, apperr.ErrNotFound)
	}
	return nil
}
