package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const manifestName = "manifest.toml"

func waitFor(t *testing.T, ch <-chan []string, want string, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case paths := <-ch:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for change to %s", want)
		}
	}
}

func TestNewWatcher_RejectsInvalidArguments(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, manifestName, nil, nil)
	if !errors.Is(err, os.ErrInvalid) || w != nil {
		t.Fatalf("expected os.ErrInvalid for nil callback, got %v", err)
	}
	w, err = NewWatcher(100*time.Millisecond, "", nil, func([]string) {})
	if !errors.Is(err, os.ErrInvalid) || w != nil {
		t.Fatalf("expected os.ErrInvalid for empty file name, got %v", err)
	}
}

func TestWatcher_ReportsManifestWrites(t *testing.T) {
	root := t.TempDir()
	moduleDir := filepath.Join(root, "sale")
	if err := os.MkdirAll(moduleDir, 0o755); err != nil {
		t.Fatal(err)
	}

	changed := make(chan []string, 8)
	w, err := NewWatcher(50*time.Millisecond, manifestName, nil, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch([]string{root}); err != nil {
		t.Fatal(err)
	}

	// Non-manifest files are ignored.
	if err := os.WriteFile(filepath.Join(moduleDir, "models.py"), []byte("x = 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case paths := <-changed:
		t.Fatalf("unexpected change batch %v", paths)
	case <-time.After(200 * time.Millisecond):
	}

	manifest := filepath.Join(moduleDir, manifestName)
	if err := os.WriteFile(manifest, []byte(`depends = ["base"]`), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, manifest, 2*time.Second)
}

func TestWatcher_NewModuleDirectory(t *testing.T) {
	root := t.TempDir()

	changed := make(chan []string, 8)
	w, err := NewWatcher(50*time.Millisecond, manifestName, []string{"node_modules"}, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch([]string{root, filepath.Join(root, "missing")}); err != nil {
		t.Fatal(err)
	}

	moduleDir := filepath.Join(root, "crm")
	if err := os.MkdirAll(moduleDir, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := filepath.Join(moduleDir, manifestName)
	if err := os.WriteFile(manifest, []byte(`depends = ["base"]`), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, manifest, 2*time.Second)
}

func TestWatcher_RemovedModuleDirectory(t *testing.T) {
	root := t.TempDir()
	moduleDir := filepath.Join(root, "stock")
	if err := os.MkdirAll(moduleDir, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := filepath.Join(moduleDir, manifestName)
	if err := os.WriteFile(manifest, []byte(`depends = ["base"]`), 0o644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan []string, 8)
	w, err := NewWatcher(50*time.Millisecond, manifestName, nil, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch([]string{root}); err != nil {
		t.Fatal(err)
	}

	if err := os.RemoveAll(moduleDir); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, manifest, 2*time.Second)
}

func TestWatcher_ExcludedDirectories(t *testing.T) {
	w, err := NewWatcher(10*time.Millisecond, manifestName, []string{"legacy_*"}, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if !w.shouldExcludeDir("/addons/legacy_pos") {
		t.Fatal("expected legacy_pos to be excluded")
	}
	if !w.shouldExcludeDir("/addons/.git") {
		t.Fatal("expected hidden directories to be excluded")
	}
	if w.shouldExcludeDir("/addons/sale") {
		t.Fatal("expected sale to be watched")
	}
	if w.matchesFile("/addons/sale/__init__.py") || !w.matchesFile("/addons/sale/manifest.toml") {
		t.Fatal("unexpected manifest file matching")
	}
}

func TestWatcher_NoCallbackAfterClose(t *testing.T) {
	called := make(chan []string, 1)
	w, err := NewWatcher(time.Hour, manifestName, nil, func(paths []string) {
		called <- paths
	})
	if err != nil {
		t.Fatal(err)
	}

	w.scheduleChange(filepath.Join(t.TempDir(), "sale", manifestName))
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	// A flush already fired by the debounce timer must not reach the callback.
	w.flushChanges()

	select {
	case paths := <-called:
		t.Fatalf("expected no callback after Close, got %v", paths)
	default:
	}
}
