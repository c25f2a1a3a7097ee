// Package watcher reports changes to a single file on disk.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// RunFileWatcher signals changed after path is written, created, replaced or
// removed, once edits have been quiet for the debounce delay. The directory
// is watched rather than the file so editors that save by renaming a
// temporary file are still seen.
func RunFileWatcher(ctx context.Context, path string, changed chan<- struct{}, logger *slog.Logger) error {
	return runFileWatcher(ctx, path, changed, defaultDebounce, logger)
}

func runFileWatcher(ctx context.Context, path string, changed chan<- struct{}, debounce time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Debug("file_watch_started", "path", abs)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounce, func() {
				logger.Info("file_changed", "path", abs)
				select {
				case changed <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file_watch_error", "path", abs, "err", err)
		}
	}
}
