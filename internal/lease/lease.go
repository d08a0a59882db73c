// Package lease implements time-limited exclusive claims on pool images.
//
// A lease is live while now < ExpiresAt. Liveness is always evaluated
// against the caller-supplied time; expired records linger until they are
// replaced, released or purged, but they never block anyone.
package lease

import (
	"fmt"
	"time"

	"github.com/starford/skylabel/internal/apperr"
)

// DefaultTTL is the lease lifetime used when none is configured.
const DefaultTTL = 10 * time.Minute

// Lease is a claim by one holder on one image filename.
type Lease struct {
	Filename   string    `json:"filename"`
	HolderID   string    `json:"holder_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Live reports whether the lease is still in force at now.
func (l Lease) Live(now time.Time) bool {
	return now.Before(l.ExpiresAt)
}

// ConflictError is returned by Acquire when another holder has a live lease.
type ConflictError struct {
	Filename string
	Holder   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("lease: %s is held by %s", e.Filename, e.Holder)
}

func (e *ConflictError) Unwrap() error { return apperr.ErrConflict }

// Store is the lease table. Implementations must make Acquire atomic per
// filename: two concurrent callers never both succeed for different holders.
type Store interface {
	// Acquire claims filename for holder, or refreshes holder's existing lease.
	// Returns *ConflictError when a different holder has a live lease.
	Acquire(filename, holder string, now time.Time) (Lease, error)
	// Heartbeat extends a live lease owned by holder. Returns apperr.ErrNotHeld otherwise.
	Heartbeat(filename, holder string, now time.Time) (Lease, error)
	// Release drops holder's lease on filename, live or not. It reports whether a record was removed.
	Release(filename, holder string) bool
	// ReleaseAll drops every lease owned by holder and returns how many were removed.
	ReleaseAll(holder string) int
	// IsLive reports whether any holder has a live lease on filename.
	IsLive(filename string, now time.Time) bool
	// Get returns the live lease on filename, if any.
	Get(filename string, now time.Time) (Lease, bool)
	// Verify returns an error wrapping apperr.ErrLeaseLost when a holder other
	// than holder has a live lease on filename.
	Verify(filename, holder string, now time.Time) error
	// Live returns every live lease.
	Live(now time.Time) []Lease
	// Purge removes expired records and returns how many were dropped.
	Purge(now time.Time) int
}
