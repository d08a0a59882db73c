package pool

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// EventCallback is called for every image that appears in or leaves the
// watched directory. kind is "added" or "removed".
type EventCallback func(kind, filename string)

// Watch starts an fsnotify watcher on dir and reports image arrivals and
// departures until ctx is cancelled. Inventory is always recomputed from a
// fresh listing, so events only tell clients when to refresh.
func Watch(ctx context.Context, dir string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("dir", dir))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if !IsImage(name) || name[0] == '.' {
				continue
			}

			var kind string
			switch {
			case ev.Op&fsnotify.Create != 0:
				kind = "added"
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// fsnotify reports Rename on the old name only.
				kind = "removed"
			default:
				continue
			}
			logger.Debug("watcher: pool changed", slog.String("filename", name), slog.String("op", kind))
			if cb != nil {
				cb(kind, name)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
