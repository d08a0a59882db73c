// Package sequence allocates per-aircraft-type serial numbers and turns them
// into assigned filenames.
package sequence

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/starford/skylabel/internal/keymutex"
)

// Counter persists the last issued number per type code. Increment must
// store the new value durably before returning it.
type Counter interface {
	IncrementSequence(ctx context.Context, typeCode string) (int64, error)
}

// Allocator serializes Next per type code on top of a Counter. Different
// type codes proceed independently.
type Allocator struct {
	counter Counter
	locks   *keymutex.Map
}

// NewAllocator returns an Allocator backed by counter.
func NewAllocator(counter Counter) *Allocator {
	return &Allocator{counter: counter, locks: keymutex.New()}
}

// Next returns the next unused number for typeCode, starting at 1.
// A number handed out is never handed out again, even if the caller
// abandons it.
func (a *Allocator) Next(ctx context.Context, typeCode string) (int64, error) {
	unlock := a.locks.Lock(typeCode)
	defer unlock()

	n, err := a.counter.IncrementSequence(ctx, typeCode)
	if err != nil {
		return 0, fmt.Errorf("sequence: next %s: %w", typeCode, err)
	}
	return n, nil
}

// Filename builds "{typeCode}-{seq:04d}{ext}". ext may be given with or
// without the leading dot. Numbers above 9999 simply use more digits.
func Filename(typeCode string, seq int64, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s-%04d%s", typeCode, seq, ext)
}

// MemoryCounter is a Counter without persistence, for tests and dry runs.
type MemoryCounter struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewMemoryCounter returns an empty MemoryCounter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{values: make(map[string]int64)}
}

func (c *MemoryCounter) IncrementSequence(_ context.Context, typeCode string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[typeCode]++
	return c.values[typeCode], nil
}
