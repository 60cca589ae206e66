// Package watcher reports debounced batches of manifest changes below the
// addons directories.
package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"modgraph/internal/shared/observability"
)

type Watcher struct {
	fsWatcher   *fsnotify.Watcher
	debounce    time.Duration
	fileName    string
	excludeDirs []glob.Glob
	onChange    func([]string)
	callbackMu  sync.Mutex

	dirs   map[string]bool
	dirsMu sync.Mutex

	pending   map[string]struct{}
	pendingMu sync.Mutex
	timer     *time.Timer
	closed    bool
}

// NewWatcher builds a watcher that reports changes to files named fileName.
// Directories whose base name matches an excludeDirs pattern are skipped.
func NewWatcher(debounce time.Duration, fileName string, excludeDirs []string, onChange func([]string)) (*Watcher, error) {
	if onChange == nil || fileName == "" {
		return nil, os.ErrInvalid
	}

	compiled := make([]glob.Glob, 0, len(excludeDirs)+1)
	for _, pattern := range append([]string{".*"}, excludeDirs...) {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, g)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher:   fsw,
		debounce:    debounce,
		fileName:    fileName,
		excludeDirs: compiled,
		onChange:    onChange,
		dirs:        make(map[string]bool),
		pending:     make(map[string]struct{}),
	}, nil
}

func (w *Watcher) SetDebounce(debounce time.Duration) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.debounce = debounce
}

// Watch registers every directory below paths and starts delivering events.
// Missing roots are skipped so an addons path may be created later by hand.
func (w *Watcher) Watch(paths []string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			slog.Warn("addons path does not exist, not watched", "path", path)
			continue
		}
		if err := w.watchRecursive(path, true); err != nil {
			return err
		}
	}

	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(root string, isRoot bool) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if !(isRoot && path == root) && w.shouldExcludeDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return err
		}
		w.dirsMu.Lock()
		w.dirs[filepath.Clean(path)] = true
		w.dirsMu.Unlock()
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatchEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.shouldExcludeDir(event.Name) {
						if err := w.watchRecursive(event.Name, false); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						} else {
							w.enqueueExistingFiles(event.Name)
						}
					}
					continue
				}
			}

			// A removed or renamed module directory takes its manifest with it.
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && w.forgetDir(event.Name) {
				w.scheduleChange(filepath.Join(event.Name, w.fileName))
				continue
			}

			if !w.matchesFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if w.closed {
		return
	}

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()

	w.pendingMu.Lock()
	if w.closed {
		w.pendingMu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	w.onChange(paths)
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	base := filepath.Base(path)
	for _, g := range w.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

// forgetDir drops path from the watched set and reports whether it was a
// watched directory.
func (w *Watcher) forgetDir(path string) bool {
	path = filepath.Clean(path)
	w.dirsMu.Lock()
	defer w.dirsMu.Unlock()
	if !w.dirs[path] {
		return false
	}
	delete(w.dirs, path)
	return true
}

func (w *Watcher) matchesFile(path string) bool {
	return filepath.Base(path) == w.fileName
}

// Close stops event delivery. It waits for a callback already in progress,
// and no callback starts once it returns.
func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()

	w.callbackMu.Lock()
	w.callbackMu.Unlock()
	return w.fsWatcher.Close()
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if w.matchesFile(path) {
			w.scheduleChange(path)
		}
		return nil
	})
}
