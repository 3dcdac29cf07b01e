package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the event bursts editors and atomic writers
// produce into a single reload.
const reloadDebounce = 500 * time.Millisecond

// Watcher monitors a config file for changes and invokes a callback with the
// freshly loaded Config. Reloads that fail to parse or validate are logged
// and dropped; the running process keeps its current config.
type Watcher struct {
	path     string
	onReload func(*Config)
	logger   *slog.Logger
}

// NewWatcher returns a Watcher for the config file at path. The callback runs
// on the watcher goroutine after every successful reload.
func NewWatcher(path string, onReload func(*Config), logger *slog.Logger) *Watcher {
	return &Watcher{path: path, onReload: onReload, logger: logger}
}

// Run watches until the context is cancelled. The watch is placed on the
// file's directory rather than the file itself: atomic writers replace the
// file by rename, which silently drops a watch on the inode.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: creating file watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("config: watching %s: %w", dir, err)
	}

	base := filepath.Base(w.path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	// Drained debounce channel; armed on the first relevant event.
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}

			if filepath.Base(ev.Name) != base {
				continue
			}

			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}

			if debounce == nil {
				debounce = time.NewTimer(reloadDebounce)
				fire = debounce.C
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(reloadDebounce)
			}

		case <-fire:
			w.reload()

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}

			w.logger.Warn("config watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping current config",
			slog.String("path", w.path), slog.String("error", err.Error()))

		return
	}

	w.logger.Info("config reloaded", slog.String("path", w.path))
	w.onReload(cfg)
}
