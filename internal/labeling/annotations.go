package labeling

import (
	"context"
	"errors"
	"io"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/skylabel/internal/apperr"
	"github.com/starford/skylabel/internal/export"
	"github.com/starford/skylabel/internal/models"
	"github.com/starford/skylabel/internal/refdata"
)

// Page sizes for ListAnnotations.
const (
	DefaultPerPage = 50
	MaxPerPage     = 500
)

// AnnotationPage is one page of annotations, newest first.
type AnnotationPage struct {
	Annotations []models.Annotation `json:"annotations"`
	Total       int                 `json:"total"`
	Page        int                 `json:"page"`
	PerPage     int                 `json:"per_page"`
}

// ListAnnotations returns page (1-based) of annotations.
func (s *Service) ListAnnotations(ctx context.Context, page, perPage int) (*AnnotationPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	rows, total, err := s.repo.ListAnnotations(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Annotation{}
	}
	return &AnnotationPage{Annotations: rows, Total: total, Page: page, PerPage: perPage}, nil
}

// GetAnnotation returns one annotation.
func (s *Service) GetAnnotation(ctx context.Context, id int64) (*models.Annotation, error) {
	return s.repo.GetAnnotation(ctx, id)
}

// UpdateAnnotation corrects the fields of a committed annotation. The
// assigned filename, and so the sequence number, never changes. Neither
// does the aircraft type code the filename encodes.
func (s *Service) UpdateAnnotation(ctx context.Context, id int64, sub Submission) (*models.Annotation, error) {
	sub.normalize()
	if err := sub.Validate(); err != nil {
		return nil, invalid(err)
	}
	typeName, airlineName, err := s.resolveNames(ctx, sub)
	if err != nil {
		return nil, err
	}

	a, err := s.repo.GetAnnotation(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.AircraftTypeCode != a.AircraftTypeCode {
		return nil, apperr.Invalid(validation.Errors{
			"aircraft_type_code": errors.New("cannot change after commit; the assigned filename encodes it"),
		})
	}
	a.AircraftTypeName = typeName
	a.AirlineCode = sub.AirlineCode
	a.AirlineName = airlineName
	a.Clarity = sub.Clarity
	a.Occlusion = sub.Occlusion
	a.RegistrationText = sub.RegistrationText
	a.RegistrationBox = *sub.RegistrationBox

	if err := s.repo.UpdateAnnotation(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAnnotation removes an annotation row. The labeled file stays where
// it is and the sequence counter is not rewound.
func (s *Service) DeleteAnnotation(ctx context.Context, id int64) error {
	return s.repo.DeleteAnnotation(ctx, id)
}

// ExportCSV writes annotations in r as CSV, ordered by id.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, r models.IDRange) error {
	rows, err := s.repo.AnnotationsInRange(ctx, r)
	if err != nil {
		return err
	}
	return export.WriteCSV(w, rows)
}

// ExportYOLO writes annotations in r as a YOLO label archive, ordered by id.
func (s *Service) ExportYOLO(ctx context.Context, w io.Writer, r models.IDRange) error {
	rows, err := s.repo.AnnotationsInRange(ctx, r)
	if err != nil {
		return err
	}
	return export.WriteYOLO(w, rows)
}

// ListReference returns the aircraft type or airline table.
func (s *Service) ListReference(ctx context.Context, kind models.ReferenceKind) ([]models.ReferenceEntry, error) {
	return s.repo.ListReference(ctx, kind)
}

// LoadPresets seeds the reference tables from dir.
func (s *Service) LoadPresets(ctx context.Context, dir string) (map[models.ReferenceKind]int, error) {
	return refdata.LoadPresets(ctx, dir, s.repo)
}
