// Package testutil provides shared test helpers for setting up pools and databases.
package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/skylabel/internal/pool"
	"github.com/starford/skylabel/internal/store"
)

// TestStore creates a temporary SQLite database that is automatically cleaned up.
func TestStore(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "skylabel-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestPool creates temporary unlabeled and labeled directories with a pool.FS over them.
func TestPool(t *testing.T) (unlabeledDir, labeledDir string, p *pool.FS) {
	t.Helper()
	unlabeledDir = t.TempDir()
	labeledDir = t.TempDir()
	p, err := pool.NewFS(unlabeledDir, labeledDir)
	if err != nil {
		t.Fatal(err)
	}
	return unlabeledDir, labeledDir, p
}

// WriteImages creates small placeholder image files in dir.
func WriteImages(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("\xff\xd8\xff"+name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock stopped at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
