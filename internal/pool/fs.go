package pool

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/starford/skylabel/internal/apperr"
)

// FS implements Provider on two local directories.
type FS struct {
	unlabeled string
	labeled   string
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)

// NewFS creates a pool over the given directories, which must already exist.
func NewFS(unlabeledDir, labeledDir string) (*FS, error) {
	u, err := absDir(unlabeledDir)
	if err != nil {
		return nil, err
	}
	l, err := absDir(labeledDir)
	if err != nil {
		return nil, err
	}
	if u == l {
		return nil, fmt.Errorf("pool: unlabeled and labeled dirs must differ: %s", u)
	}
	return &FS{unlabeled: u, labeled: l}, nil
}

func absDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("pool: resolve dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("pool: stat dir: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("pool: not a directory: %s", abs)
	}
	return abs, nil
}

// UnlabeledDir returns the absolute path of the unlabeled pool.
func (f *FS) UnlabeledDir() string { return f.unlabeled }

// LabeledDir returns the absolute path of the labeled pool.
func (f *FS) LabeledDir() string { return f.labeled }

// safePath joins a plain filename onto dir and rejects anything that is
// not a single path element.
func safePath(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", fmt.Errorf("pool: invalid filename %q: %w", name, apperr.ErrInvalid)
	}
	return filepath.Join(dir, name), nil
}

func (f *FS) List() ([]string, error) {
	return listImages(f.unlabeled)
}

func (f *FS) ListLabeled() ([]string, error) {
	return listImages(f.labeled)
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("pool: list %s: %w", dir, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") || !IsImage(name) {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

func (f *FS) Exists(name string) bool {
	p, err := safePath(f.unlabeled, name)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func (f *FS) Relocate(source, target string) error {
	src, err := safePath(f.unlabeled, source)
	if err != nil {
		return err
	}
	dst, err := safePath(f.labeled, target)
	if err != nil {
		return err
	}
	return move(src, dst)
}

func (f *FS) Restore(target, source string) error {
	src, err := safePath(f.labeled, target)
	if err != nil {
		return err
	}
	dst, err := safePath(f.unlabeled, source)
	if err != nil {
		return err
	}
	return move(src, dst)
}

// move renames src to dst without overwriting. When the pools live on
// different file systems it falls back to copy, fsync and remove.
func move(src, dst string) error {
	if _, err := os.Lstat(src); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("pool: %s: %w", filepath.Base(src), apperr.ErrSourceMissing)
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("pool: %s: %w", filepath.Base(dst), apperr.ErrAlreadyExists)
	}

	err := os.Rename(src, dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("pool: %s: %w", filepath.Base(src), apperr.ErrSourceMissing)
	case errors.Is(err, syscall.EXDEV):
		return copyThenRemove(src, dst)
	default:
		return fmt.Errorf("pool: move: %w", err)
	}
}

func copyThenRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("pool: %s: %w", filepath.Base(src), apperr.ErrSourceMissing)
		}
		return fmt.Errorf("pool: open source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".skylabel-tmp-*")
	if err != nil {
		return fmt.Errorf("pool: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return fmt.Errorf("pool: copy: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("pool: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("pool: close temp: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("pool: rename: %w", err)
	}
	success = true

	if err := os.Remove(src); err != nil {
		// Leave only the source so the image is not in both pools.
		if rerr := os.Remove(dst); rerr != nil {
			return fmt.Errorf("pool: remove source after copy: %w (and remove copy: %w)", err, rerr)
		}
		return fmt.Errorf("pool: remove source after copy: %w", err)
	}
	return nil
}
