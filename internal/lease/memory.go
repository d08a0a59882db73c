package lease

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/starford/skylabel/internal/apperr"
)

const shardCount = 32

// Memory is an in-process Store. The table is split into shards, each with
// its own mutex, so operations on unrelated filenames rarely contend and
// nothing ever waits on a competing holder.
type Memory struct {
	ttl    time.Duration
	shards [shardCount]shard
}

type shard struct {
	mu     sync.Mutex
	leases map[string]Lease
}

// Verify *Memory satisfies Store at compile time.
var _ Store = (*Memory)(nil)

// Option configures a Memory store.
type Option func(*Memory)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Memory) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// NewMemory returns an empty lease table.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{ttl: DefaultTTL}
	for _, opt := range opts {
		opt(m)
	}
	for i := range m.shards {
		m.shards[i].leases = make(map[string]Lease)
	}
	return m
}

// TTL returns the configured lease lifetime.
func (m *Memory) TTL() time.Duration {
	return m.ttl
}

func (m *Memory) shardFor(filename string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(filename))
	return &m.shards[h.Sum32()%shardCount]
}

func (m *Memory) Acquire(filename, holder string, now time.Time) (Lease, error) {
	s := m.shardFor(filename)
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.leases[filename]
	if ok && cur.Live(now) {
		if cur.HolderID != holder {
			return Lease{}, &ConflictError{Filename: filename, Holder: cur.HolderID}
		}
		cur.ExpiresAt = now.Add(m.ttl)
		s.leases[filename] = cur
		return cur, nil
	}

	l := Lease{
		Filename:   filename,
		HolderID:   holder,
		AcquiredAt: now,
		ExpiresAt:  now.Add(m.ttl),
	}
	s.leases[filename] = l
	return l, nil
}

func (m *Memory) Heartbeat(filename, holder string, now time.Time) (Lease, error) {
	s := m.shardFor(filename)
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.leases[filename]
	if !ok || cur.HolderID != holder || !cur.Live(now) {
		return Lease{}, fmt.Errorf("lease: heartbeat %s: %w", filename, apperr.ErrNotHeld)
	}
	cur.ExpiresAt = now.Add(m.ttl)
	s.leases[filename] = cur
	return cur, nil
}

func (m *Memory) Release(filename, holder string) bool {
	s := m.shardFor(filename)
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.leases[filename]
	if !ok || cur.HolderID != holder {
		return false
	}
	delete(s.leases, filename)
	return true
}

func (m *Memory) ReleaseAll(holder string) int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for name, l := range s.leases {
			if l.HolderID == holder {
				delete(s.leases, name)
				n++
			}
		}
		s.mu.Unlock()
	}
	return n
}

func (m *Memory) IsLive(filename string, now time.Time) bool {
	_, ok := m.Get(filename, now)
	return ok
}

func (m *Memory) Get(filename string, now time.Time) (Lease, bool) {
	s := m.shardFor(filename)
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.leases[filename]
	if !ok || !cur.Live(now) {
		return Lease{}, false
	}
	return cur, true
}

func (m *Memory) Verify(filename, holder string, now time.Time) error {
	cur, ok := m.Get(filename, now)
	if ok && cur.HolderID != holder {
		return fmt.Errorf("lease: %s now held by %s: %w", filename, cur.HolderID, apperr.ErrLeaseLost)
	}
	return nil
}

func (m *Memory) Live(now time.Time) []Lease {
	var out []Lease
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for _, l := range s.leases {
			if l.Live(now) {
				out = append(out, l)
			}
		}
		s.mu.Unlock()
	}
	return out
}

func (m *Memory) Purge(now time.Time) int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for name, l := range s.leases {
			if !l.Live(now) {
				delete(s.leases, name)
				n++
			}
		}
		s.mu.Unlock()
	}
	return n
}

// Len returns the number of records held, live or expired.
func (m *Memory) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		n += len(s.leases)
		s.mu.Unlock()
	}
	return n
}
