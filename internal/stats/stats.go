// Package stats aggregates labeling progress counts.
package stats

import (
	"context"
	"fmt"

	"github.com/starford/skylabel/internal/inventory"
	"github.com/starford/skylabel/internal/models"
)

// Source is the subset of the database the aggregator reads.
type Source interface {
	CountAnnotations(ctx context.Context) (int, error)
	CountByType(ctx context.Context) ([]models.GroupCount, error)
	CountByAirline(ctx context.Context) ([]models.GroupCount, error)
	LabeledSources(ctx context.Context) (map[string]struct{}, error)
	SkippedFilenames(ctx context.Context) (map[string]struct{}, error)
}

// Lister lists the images still in the unlabeled pool.
type Lister interface {
	List() ([]string, error)
}

// Compute builds a fresh Stats snapshot.
//
// Committed images leave the unlabeled directory while skipped ones stay,
// so the original pool is the current listing plus everything labeled.
// Unlabeled therefore counts listed images that are neither labeled nor
// skipped, which keeps total_labeled + unlabeled + skipped equal to the
// original pool size.
func Compute(ctx context.Context, src Source, pool Lister) (*models.Stats, error) {
	total, err := src.CountAnnotations(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: count: %w", err)
	}
	byType, err := src.CountByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: by type: %w", err)
	}
	byAirline, err := src.CountByAirline(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: by airline: %w", err)
	}
	labeled, err := src.LabeledSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: labeled: %w", err)
	}
	skipped, err := src.SkippedFilenames(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: skipped: %w", err)
	}
	files, err := pool.List()
	if err != nil {
		return nil, fmt.Errorf("stats: list pool: %w", err)
	}

	return &models.Stats{
		TotalLabeled: total,
		Unlabeled:    inventory.Unlabeled(files, labeled, skipped),
		Skipped:      len(skipped),
		ByType:       byType,
		ByAirline:    byAirline,
	}, nil
}
