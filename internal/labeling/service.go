// Package labeling coordinates the lease table, sequence allocator, image
// pool and database into the operations annotators call.
package labeling

import (
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/skylabel/internal/apperr"
	"github.com/starford/skylabel/internal/keymutex"
	"github.com/starford/skylabel/internal/lease"
	"github.com/starford/skylabel/internal/pool"
	"github.com/starford/skylabel/internal/sequence"
	"github.com/starford/skylabel/internal/store"
)

// Event kinds passed to a Notifier.
const (
	EventLeaseAcquired       = "lease.acquired"
	EventLeaseReleased       = "lease.released"
	EventAnnotationCommitted = "annotation.committed"
	EventImageSkipped        = "image.skipped"
)

// Notifier receives state changes other clients may want to see.
type Notifier interface {
	Notify(kind string, data map[string]string)
}

// Service implements the labeling operations.
type Service struct {
	repo      store.Repository
	pool      pool.Provider
	leases    lease.Store
	seq       *sequence.Allocator
	committer Committer
	commits   *keymutex.Map
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger. slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithNotifier sets where change events go.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithCommitter replaces the default pool-then-database committer.
func WithCommitter(c Committer) Option {
	return func(s *Service) { s.committer = c }
}

// NewService wires a Service. repo also backs the sequence counters.
func NewService(repo store.Repository, p pool.Provider, leases lease.Store, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		pool:    p,
		leases:  leases,
		seq:     sequence.NewAllocator(repo),
		commits: keymutex.New(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.committer == nil {
		s.committer = NewPoolCommitter(p, repo, s.logger)
	}
	return s
}

func (s *Service) notify(kind string, data map[string]string) {
	if s.notifier != nil {
		s.notifier.Notify(kind, data)
	}
}

// required reports blank fields as a validation error.
func required(fields map[string]string) error {
	errs := validation.Errors{}
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			errs[name] = validation.ErrRequired
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return apperr.Invalid(errs)
}
