// Package pool manages the image directories: the unlabeled pool that
// annotators draw from and the labeled pool committed images are moved to.
package pool

import (
	"path/filepath"
	"strings"
)

// Provider is the interface for pool file operations. All names are plain
// filenames; the pools are flat directories.
type Provider interface {
	// List returns the image filenames currently in the unlabeled pool, sorted.
	List() ([]string, error)
	// ListLabeled returns the image filenames in the labeled pool, sorted.
	ListLabeled() ([]string, error)
	// Exists reports whether name is present in the unlabeled pool.
	Exists(name string) bool
	// Relocate moves source from the unlabeled pool to target in the labeled
	// pool. A missing source yields apperr.ErrSourceMissing; an existing
	// target yields apperr.ErrAlreadyExists.
	Relocate(source, target string) error
	// Restore moves target from the labeled pool back to source in the
	// unlabeled pool, undoing Relocate.
	Restore(target, source string) error
}

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// IsImage reports whether name has a supported image extension.
func IsImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}
