package labeling

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/skylabel/internal/apperr"
	"github.com/starford/skylabel/internal/inventory"
	"github.com/starford/skylabel/internal/models"
	"github.com/starford/skylabel/internal/stats"
)

// ListInventory returns the pool as seen by holder. It is computed from a
// fresh directory listing on every call.
func (s *Service) ListInventory(ctx context.Context, holder string) (models.Inventory, error) {
	files, err := s.pool.List()
	if err != nil {
		return models.Inventory{}, err
	}
	labeled, err := s.repo.LabeledSources(ctx)
	if err != nil {
		return models.Inventory{}, err
	}
	skipped, err := s.repo.SkippedFilenames(ctx)
	if err != nil {
		return models.Inventory{}, err
	}

	live := s.leases.Live(s.now())
	leases := make(map[string]string, len(live))
	for _, l := range live {
		leases[l.Filename] = l.HolderID
	}

	return inventory.Partition(inventory.Input{
		Candidates: files,
		Labeled:    labeled,
		Skipped:    skipped,
		Leases:     leases,
		Requester:  holder,
	}), nil
}

// MarkSkip excludes filename from labeling permanently and drops holder's
// lease on it. Skipping twice yields apperr.ErrAlreadyExists; skipping an
// image that already has an annotation yields apperr.ErrLabeled.
func (s *Service) MarkSkip(ctx context.Context, filename, holder string) error {
	if err := required(map[string]string{"filename": filename}); err != nil {
		return err
	}

	// Shares the commit lock so a skip and a commit of the same image
	// cannot both succeed.
	unlock := s.commits.Lock(filename)
	defer unlock()

	labeled, err := s.repo.IsLabeled(ctx, filename)
	if err != nil {
		return err
	}
	if labeled {
		return fmt.Errorf("labeling: skip %s: %w", filename, apperr.ErrLabeled)
	}
	err = s.repo.InsertSkip(ctx, models.SkipRecord{
		Filename:  filename,
		SkippedBy: holder,
		SkippedAt: s.now().UTC(),
	})
	if err != nil {
		return err
	}
	if holder != "" {
		s.leases.Release(filename, holder)
	}
	s.logger.Info("image skipped", slog.String("filename", filename), slog.String("holder", holder))
	s.notify(EventImageSkipped, map[string]string{"filename": filename})
	return nil
}

// Unskip deletes a skip record. It is an administrative escape hatch and is
// not part of the annotator flow.
func (s *Service) Unskip(ctx context.Context, filename string) error {
	if err := s.repo.DeleteSkip(ctx, filename); err != nil {
		return err
	}
	s.logger.Info("skip removed", slog.String("filename", filename))
	return nil
}

// Stats returns labeling progress.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	return stats.Compute(ctx, s.repo, s.pool)
}

// AuditOrphans lists labeled-pool files that have no annotation row, the
// residue of a crash between moving a file and recording it.
func (s *Service) AuditOrphans(ctx context.Context) ([]string, error) {
	files, err := s.pool.ListLabeled()
	if err != nil {
		return nil, err
	}
	known, err := s.repo.AssignedFilenames(ctx)
	if err != nil {
		return nil, err
	}
	var orphans []string
	for _, f := range files {
		if _, ok := known[f]; !ok {
			orphans = append(orphans, f)
			s.logger.Warn("audit: labeled file without annotation", slog.String("filename", f))
		}
	}
	return orphans, nil
}
