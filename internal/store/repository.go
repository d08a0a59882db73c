package store

import (
	"context"

	"github.com/starford/skylabel/internal/models"
)

// Repository is the database of record for annotations, skips, sequence
// counters and reference data. Consumers depend on this interface rather
// than *DB so they can be tested against fakes.
type Repository interface {
	IncrementSequence(ctx context.Context, typeCode string) (int64, error)
	SequenceValue(ctx context.Context, typeCode string) (int64, error)

	InsertAnnotation(ctx context.Context, a *models.Annotation) error
	GetAnnotation(ctx context.Context, id int64) (*models.Annotation, error)
	ListAnnotations(ctx context.Context, limit, offset int) ([]models.Annotation, int, error)
	AnnotationsInRange(ctx context.Context, r models.IDRange) ([]models.Annotation, error)
	UpdateAnnotation(ctx context.Context, a *models.Annotation) error
	DeleteAnnotation(ctx context.Context, id int64) error
	IsLabeled(ctx context.Context, source string) (bool, error)
	LabeledSources(ctx context.Context) (map[string]struct{}, error)
	AssignedFilenames(ctx context.Context) (map[string]struct{}, error)
	CountAnnotations(ctx context.Context) (int, error)
	CountByType(ctx context.Context) ([]models.GroupCount, error)
	CountByAirline(ctx context.Context) ([]models.GroupCount, error)

	InsertSkip(ctx context.Context, rec models.SkipRecord) error
	DeleteSkip(ctx context.Context, filename string) error
	IsSkipped(ctx context.Context, filename string) (bool, error)
	SkippedFilenames(ctx context.Context) (map[string]struct{}, error)

	InsertReference(ctx context.Context, kind models.ReferenceKind, entries []models.ReferenceEntry) (int, error)
	ListReference(ctx context.Context, kind models.ReferenceKind) ([]models.ReferenceEntry, error)
	ReferenceName(ctx context.Context, kind models.ReferenceKind, code string) (string, bool, error)

	Close() error
}

// Verify *DB satisfies Repository at compile time.
var _ Repository = (*DB)(nil)
