package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/codefionn/bookshelf/internal/logger"
	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events an editor produces per save.
const reloadDebounce = 100 * time.Millisecond

// Watch reloads the config file at path whenever it is written, created or
// renamed into place, and hands the result to onChange. The directory is
// watched rather than the file so that atomic replacements are seen.
// Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	log := logger.Global().WithPrefix("config")
	log.Debug("Watching %s for changes", absPath)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(reloadDebounce)

		case <-pending:
			pending = nil
			cfg, err := Load(absPath)
			if err == nil {
				err = cfg.ApplyEnv()
			}
			if err != nil {
				log.Warn("Ignoring config change: %v", err)
				continue
			}
			log.Info("Reloaded %s", absPath)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("config watcher error: %v", err)
		}
	}
}
