package labeling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/skylabel/internal/apperr"
	"github.com/starford/skylabel/internal/models"
	"github.com/starford/skylabel/internal/pool"
	"github.com/starford/skylabel/internal/refdata"
	"github.com/starford/skylabel/internal/sequence"
	"github.com/starford/skylabel/internal/store"
)

// Committer moves a source image into the labeled pool under its assigned
// filename and records the annotation.
//
// The move and the insert are two systems with no shared transaction. If
// the insert fails the move is undone, but a crash between the two leaves a
// labeled file with no row. AuditOrphans lists such files; nothing repairs
// them automatically.
type Committer interface {
	Commit(ctx context.Context, a *models.Annotation) error
}

// PoolCommitter is the Committer backed by a pool.Provider and a Repository.
type PoolCommitter struct {
	pool   pool.Provider
	repo   store.Repository
	logger *slog.Logger
}

// NewPoolCommitter returns a PoolCommitter.
func NewPoolCommitter(p pool.Provider, repo store.Repository, logger *slog.Logger) *PoolCommitter {
	return &PoolCommitter{pool: p, repo: repo, logger: logger}
}

// Commit relocates the file, then inserts the row. On insert failure it
// moves the file back before returning the error.
func (c *PoolCommitter) Commit(ctx context.Context, a *models.Annotation) error {
	if err := c.pool.Relocate(a.SourceFilename, a.AssignedFilename); err != nil {
		return err
	}
	if err := c.repo.InsertAnnotation(ctx, a); err != nil {
		if rerr := c.pool.Restore(a.AssignedFilename, a.SourceFilename); rerr != nil {
			c.logger.Error("commit: orphaned labeled file",
				slog.String("assigned_filename", a.AssignedFilename),
				slog.String("source_filename", a.SourceFilename),
				slog.String("error", rerr.Error()))
		}
		return err
	}
	return nil
}

// SubmitAnnotation runs the commit pipeline for one image:
// validate, allocate a sequence number, re-check the lease, move the file,
// persist the row and release the lease.
//
// Validation failures, a lease held by someone else and a vanished source
// are reported before a sequence number is drawn when possible. Once drawn,
// a number is never returned; a failure after that point leaves a gap that
// is logged. Nothing touches the lease table unless the row was persisted.
//
// A holder without a lease may commit an image nobody has leased; only a
// live lease held by someone else blocks the commit. Skipped images are
// rejected with apperr.ErrSkipped.
func (s *Service) SubmitAnnotation(ctx context.Context, source, holder string, sub Submission) (*models.Annotation, error) {
	sub.normalize()
	if err := validateSubmission(source, holder, sub); err != nil {
		return nil, err
	}
	typeName, airlineName, err := s.resolveNames(ctx, sub)
	if err != nil {
		return nil, err
	}

	unlock := s.commits.Lock(source)
	defer unlock()

	if err := s.leases.Verify(source, holder, s.now()); err != nil {
		return nil, err
	}
	if err := s.rejectSkipped(ctx, source); err != nil {
		return nil, err
	}
	if !s.pool.Exists(source) {
		return nil, fmt.Errorf("labeling: %s: %w", source, apperr.ErrSourceMissing)
	}

	seq, err := s.seq.Next(ctx, sub.AircraftTypeCode)
	if err != nil {
		return nil, err
	}
	assigned := sequence.Filename(sub.AircraftTypeCode, seq, filepath.Ext(source))
	logGap := func(reason error) {
		s.logger.Warn("commit: sequence number abandoned",
			slog.String("type_code", sub.AircraftTypeCode),
			slog.Int64("sequence", seq),
			slog.String("source_filename", source),
			slog.String("error", reason.Error()))
	}

	if err := s.leases.Verify(source, holder, s.now()); err != nil {
		logGap(err)
		return nil, err
	}

	a := &models.Annotation{
		AssignedFilename: assigned,
		SourceFilename:   source,
		AircraftTypeCode: sub.AircraftTypeCode,
		AircraftTypeName: typeName,
		AirlineCode:      sub.AirlineCode,
		AirlineName:      airlineName,
		Clarity:          sub.Clarity,
		Occlusion:        sub.Occlusion,
		RegistrationText: sub.RegistrationText,
		RegistrationBox:  *sub.RegistrationBox,
		CreatedBy:        holder,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.committer.Commit(ctx, a); err != nil {
		logGap(err)
		return nil, err
	}

	s.leases.Release(source, holder)

	s.logger.Info("commit: annotation stored",
		slog.Int64("id", a.ID),
		slog.String("assigned_filename", a.AssignedFilename),
		slog.String("source_filename", source),
		slog.String("holder", holder))
	s.notify(EventAnnotationCommitted, map[string]string{
		"filename":          source,
		"assigned_filename": assigned,
	})
	return a, nil
}

func validateSubmission(source, holder string, sub Submission) error {
	errs := validation.Errors{}
	if err := required(map[string]string{"source_filename": source, "holder_id": holder}); err != nil {
		var ve validation.Errors
		if errors.As(err, &ve) {
			for k, v := range ve {
				errs[k] = v
			}
		}
	}
	if err := sub.Validate(); err != nil {
		var ve validation.Errors
		if !errors.As(err, &ve) {
			return err
		}
		for k, v := range ve {
			errs[k] = v
		}
	}
	if len(errs) > 0 {
		return apperr.Invalid(errs)
	}
	return nil
}

// invalid marks field errors from ozzo-validation as apperr.ErrInvalid and
// passes anything else through.
func invalid(err error) error {
	var ve validation.Errors
	if errors.As(err, &ve) {
		return apperr.Invalid(ve)
	}
	return err
}

// resolveNames fills display names from the reference tables, falling
// back to the names in the submission.
func (s *Service) resolveNames(ctx context.Context, sub Submission) (typeName, airlineName string, err error) {
	errs := validation.Errors{}

	typeName, ok, err := refdata.Resolve(ctx, s.repo, models.KindAircraftType, sub.AircraftTypeCode, sub.AircraftTypeName)
	if err != nil {
		return "", "", err
	}
	if !ok {
		errs["aircraft_type_code"] = errors.New("unknown aircraft type; provide aircraft_type_name")
	}

	airlineName, ok, err = refdata.Resolve(ctx, s.repo, models.KindAirline, sub.AirlineCode, sub.AirlineName)
	if err != nil {
		return "", "", err
	}
	if !ok {
		errs["airline_code"] = errors.New("unknown airline; provide airline_name")
	}

	if len(errs) > 0 {
		return "", "", apperr.Invalid(errs)
	}
	return typeName, airlineName, nil
}
