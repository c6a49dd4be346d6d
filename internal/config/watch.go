package config

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/aesdsocket/linelogd/internal/logger"
)

// Watch watches the config file for edits and calls Reload on each change,
// until ctx is cancelled. It is a no-op if the manager was created with an
// empty path (no config file to watch). Editors that replace the file
// (write-new-then-rename) are handled by re-adding the watch on any Remove
// or Rename event and, if the file is back in place, reloading it, matching
// the common fsnotify idiom for config reload.
func (m *Manager) Watch(ctx context.Context) error {
	if m.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(m.path); err != nil {
		// The file may not exist yet; that's fine, we just won't get
		// reload events until it's created and the process restarts.
		logger.Warn("config watch: could not watch file, live reload disabled", "path", m.path, "err", err)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				logger.Info("config file changed, reloading", "path", m.path)
				m.Reload()
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				if err := watcher.Add(m.path); err == nil {
					logger.Info("config file replaced, reloading", "path", m.path)
					m.Reload()
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watch error", "err", err)
		}
	}
}
