package labeling

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/skylabel/internal/apperr"
	"github.com/starford/skylabel/internal/lease"
)

// AcquireLease claims filename for holder. A second call by the same
// holder refreshes the lease. A live lease held by someone else yields a
// *lease.ConflictError naming that holder. Skipped images cannot be leased.
func (s *Service) AcquireLease(ctx context.Context, filename, holder string) (lease.Lease, error) {
	if err := required(map[string]string{"filename": filename, "holder_id": holder}); err != nil {
		return lease.Lease{}, err
	}
	if !s.pool.Exists(filename) {
		return lease.Lease{}, fmt.Errorf("labeling: image %s: %w", filename, apperr.ErrNotFound)
	}
	if err := s.rejectSkipped(ctx, filename); err != nil {
		return lease.Lease{}, err
	}
	l, err := s.leases.Acquire(filename, holder, s.now())
	if err != nil {
		return lease.Lease{}, err
	}
	s.logger.Debug("lease acquired", slog.String("filename", filename), slog.String("holder", holder))
	s.notify(EventLeaseAcquired, map[string]string{"filename": filename, "holder_id": holder})
	return l, nil
}

func (s *Service) rejectSkipped(ctx context.Context, filename string) error {
	skipped, err := s.repo.IsSkipped(ctx, filename)
	if err != nil {
		return err
	}
	if skipped {
		return fmt.Errorf("labeling: %s: %w", filename, apperr.ErrSkipped)
	}
	return nil
}

// Heartbeat extends holder's live lease on filename. An expired lease is
// never revived; the holder must acquire again.
func (s *Service) Heartbeat(_ context.Context, filename, holder string) (lease.Lease, error) {
	if err := required(map[string]string{"filename": filename, "holder_id": holder}); err != nil {
		return lease.Lease{}, err
	}
	return s.leases.Heartbeat(filename, holder, s.now())
}

// ReleaseLease drops holder's lease on filename. Releasing a lease that is
// not held is not an error.
func (s *Service) ReleaseLease(_ context.Context, filename, holder string) error {
	if err := required(map[string]string{"filename": filename, "holder_id": holder}); err != nil {
		return err
	}
	if s.leases.Release(filename, holder) {
		s.notify(EventLeaseReleased, map[string]string{"filename": filename, "holder_id": holder})
	}
	return nil
}

// ReleaseAll drops every lease held by holder and returns the count.
func (s *Service) ReleaseAll(_ context.Context, holder string) (int, error) {
	if err := required(map[string]string{"holder_id": holder}); err != nil {
		return 0, err
	}
	n := s.leases.ReleaseAll(holder)
	if n > 0 {
		s.logger.Debug("leases released", slog.String("holder", holder), slog.Int("count", n))
		s.notify(EventLeaseReleased, map[string]string{"holder_id": holder})
	}
	return n, nil
}

// LeaseInfo returns the live lease on filename.
func (s *Service) LeaseInfo(_ context.Context, filename string) (lease.Lease, error) {
	l, ok := s.leases.Get(filename, s.now())
	if !ok {
		return lease.Lease{}, fmt.Errorf("labeling: lease %s: %w", filename, apperr.ErrNotFound)
	}
	return l, nil
}
