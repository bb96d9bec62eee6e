package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/starford/memento/internal/memento"
	"github.com/starford/memento/internal/scanner"
)

// DefaultDebounce is used when Watch is given a non-positive debounce.
const DefaultDebounce = 250 * time.Millisecond

// Watch starts an fsnotify watcher on the notes root and calls onChange once
// per burst of relevant events until ctx is cancelled. Relevant events are
// changes to Markdown files, new directories and edits of the memento config
// file.
//
// Hidden and excluded directories are never watched, except the memento
// config directory, which is picked up even when created after startup. New
// directories created at runtime are added to the watch list.
func Watch(ctx context.Context, root string, exclude []string, debounce time.Duration, logger *slog.Logger, onChange func()) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	m := scanner.NewMatcher(exclude)
	if err := addDirsRecursive(w, root, m); err != nil {
		return err
	}
	configDir := filepath.Join(root, filepath.Dir(filepath.FromSlash(memento.Path)))
	configFile := filepath.Join(root, filepath.FromSlash(memento.Path))
	addConfigDir := func() bool {
		info, statErr := os.Stat(configDir)
		if statErr != nil || !info.IsDir() {
			return false
		}
		if addErr := w.Add(configDir); addErr != nil {
			logger.Warn("watcher: add config dir failed", slog.String("error", addErr.Error()))
			return false
		}
		return true
	}
	addConfigDir()

	logger.Info("watcher: started", slog.String("root", root))

	// timer debounces bursts of events into one onChange call.
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			timer, timerCh = nil, nil
			onChange()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if absPath == configFile {
				logger.Debug("watcher: config changed", slog.String("op", ev.Op.String()))
				schedule()
				continue
			}

			if absPath == configDir && ev.Op&fsnotify.Create != 0 {
				// A config file written together with its directory may
				// land before the watch is in place.
				if addConfigDir() {
					logger.Debug("watcher: watching config dir", slog.String("path", absPath))
					schedule()
				}
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if m.Excluded(info.Name()) {
						continue
					}
					if addErr := addDirsRecursive(w, absPath, m); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// The new directory may already contain notes.
					schedule()
					continue
				}
			}

			// Removing or renaming a directory shows up as an event on its
			// name, which has no extension.
			if scanner.IsMarkdown(absPath) || (ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && filepath.Ext(absPath) == "") {
				logger.Debug("watcher: change", slog.String("path", absPath), slog.String("op", ev.Op.String()))
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its non-excluded subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string, m *scanner.Matcher) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && m.Excluded(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
