package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[graph]
mode = "load"
root_module = "base"
test_prefix = "qa_"
auto_install = true

[manifests]
paths = ["./addons", "/opt/enterprise"]
exclude = ["l10n_*"]
cache_size = 64

[db]
path = "state/modules.db"
busy_timeout = "3s"

[history]
enabled = false
keep = 20

[watch]
debounce = "1s"
max_rebuilds_per_second = 0.5

[observability]
enabled = true
address = "127.0.0.1:9100"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Version != 1 {
		t.Errorf("expected default version 1, got %d", cfg.Version)
	}
	if cfg.GraphMode() != "load" || cfg.Graph.TestPrefix != "qa_" || !cfg.Graph.AutoInstall {
		t.Errorf("unexpected graph section: %+v", cfg.Graph)
	}
	wantPaths := []string{filepath.Join(dir, "addons"), "/opt/enterprise"}
	if len(cfg.Manifests.Paths) != 2 || cfg.Manifests.Paths[0] != wantPaths[0] || cfg.Manifests.Paths[1] != wantPaths[1] {
		t.Errorf("expected resolved paths %v, got %v", wantPaths, cfg.Manifests.Paths)
	}
	if cfg.Manifests.FileName != "manifest.toml" || cfg.Manifests.CacheSize != 64 {
		t.Errorf("unexpected manifests section: %+v", cfg.Manifests)
	}
	if cfg.DB.Path != filepath.Join(dir, "state", "modules.db") || cfg.DB.BusyTimeout != 3*time.Second {
		t.Errorf("unexpected db section: %+v", cfg.DB)
	}
	if cfg.History.Enabled || cfg.History.Keep != 20 {
		t.Errorf("unexpected history section: %+v", cfg.History)
	}
	if cfg.Watch.Debounce != time.Second || cfg.Watch.MaxRebuildsPerSecond != 0.5 {
		t.Errorf("unexpected watch section: %+v", cfg.Watch)
	}
	if !cfg.Observability.Enabled || cfg.Observability.Address != "127.0.0.1:9100" {
		t.Errorf("unexpected observability section: %+v", cfg.Observability)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[manifests]
paths = ["addons"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Graph.Mode != "update" || cfg.Graph.RootModule != "base" || cfg.Graph.TestPrefix != "test_" {
		t.Errorf("unexpected graph defaults: %+v", cfg.Graph)
	}
	if !cfg.History.Enabled || cfg.History.Path != filepath.Join(dir, "data", "history.db") {
		t.Errorf("unexpected history defaults: %+v", cfg.History)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.BusyTimeout != 5*time.Second {
		t.Errorf("unexpected db defaults: %+v", cfg.DB)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond || cfg.Watch.MaxRebuildsPerSecond != 2 {
		t.Errorf("unexpected watch defaults: %+v", cfg.Watch)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"bad mode", "[graph]\nmode = \"install\"\n[manifests]\npaths = [\"a\"]", "graph.mode"},
		{"no paths", "[graph]\nmode = \"load\"", "manifests.paths"},
		{"bad root", "[graph]\nroot_module = \"Base Module\"\n[manifests]\npaths = [\"a\"]", "graph.root_module"},
		{"bad driver", "[db]\ndriver = \"postgres\"\n[manifests]\npaths = [\"a\"]", "db.driver"},
		{"negative keep", "[history]\nkeep = -1\n[manifests]\npaths = [\"a\"]", "history.keep"},
		{"tracing without endpoint", "[observability]\nenabled = true\nenable_tracing = true\n[manifests]\npaths = [\"a\"]", "otlp_endpoint"},
		{"unknown key", "[manifests]\npaths = [\"a\"]\nfolders = [\"b\"]", "unknown config keys"},
		{"version", "version = 3\n[manifests]\npaths = [\"a\"]", "config version"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tc.content)
			_, err := Load(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("MODGRAPH_GRAPH_MODE", "load")
	t.Setenv("MODGRAPH_GRAPH_AUTO_INSTALL", "true")
	t.Setenv("MODGRAPH_MANIFESTS_PATHS", "one, two,,")
	t.Setenv("MODGRAPH_MANIFESTS_CACHE_SIZE", "not-a-number")
	t.Setenv("MODGRAPH_DB_BUSY_TIMEOUT", "250ms")
	t.Setenv("MODGRAPH_WATCH_MAX_REBUILDS_PER_SECOND", "4.5")
	t.Setenv("MODGRAPH_OBSERVABILITY_ENABLED", "TRUE")

	cfg := DefaultConfig()
	ApplyEnvOverrides(cfg)

	if cfg.Graph.Mode != "load" || !cfg.Graph.AutoInstall {
		t.Errorf("graph overrides not applied: %+v", cfg.Graph)
	}
	if len(cfg.Manifests.Paths) != 2 || cfg.Manifests.Paths[0] != "one" || cfg.Manifests.Paths[1] != "two" {
		t.Errorf("unexpected paths override: %v", cfg.Manifests.Paths)
	}
	if cfg.Manifests.CacheSize != 512 {
		t.Errorf("invalid int override should be ignored, got %d", cfg.Manifests.CacheSize)
	}
	if cfg.DB.BusyTimeout != 250*time.Millisecond {
		t.Errorf("unexpected busy timeout: %v", cfg.DB.BusyTimeout)
	}
	if cfg.Watch.MaxRebuildsPerSecond != 4.5 {
		t.Errorf("unexpected rebuild rate: %v", cfg.Watch.MaxRebuildsPerSecond)
	}
	if !cfg.Observability.Enabled {
		t.Error("expected observability override")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestResolveRelative(t *testing.T) {
	if got := ResolveRelative("/srv", "addons"); got != filepath.Clean("/srv/addons") {
		t.Errorf("unexpected relative resolution: %s", got)
	}
	if got := ResolveRelative("/srv", "/opt/addons"); got != "/opt/addons" {
		t.Errorf("absolute path should be kept, got %s", got)
	}
	if got := ResolveRelative("/srv", " "); got != "/srv" {
		t.Errorf("empty value should resolve to base, got %s", got)
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "[manifests]\npaths = [\"addons\"]\n")

	var (
		mu     sync.Mutex
		loaded []*Config
	)
	w := NewWatcher(path, func(cfg *Config) {
		mu.Lock()
		loaded = append(loaded, cfg)
		mu.Unlock()
	})
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	defer w.Stop()

	writeConfig(t, dir, "[graph]\nmode = \"load\"\n[manifests]\npaths = [\"addons\"]\n")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(loaded)
		var last *Config
		if n > 0 {
			last = loaded[n-1]
		}
		mu.Unlock()
		if last != nil && last.Graph.Mode == "load" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected config reload after write")
}
