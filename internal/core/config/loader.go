package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"modgraph/internal/engine/graph"
)

// Load reads the TOML file at path, fills defaults, applies environment
// overrides and validates the result. Relative paths are resolved against
// the directory holding the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Config{History: History{Enabled: true}}
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)
	normalize(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	ResolvePaths(&cfg, base)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Graph.Mode) == "" {
		cfg.Graph.Mode = string(graph.ModeUpdate)
	}
	if strings.TrimSpace(cfg.Graph.RootModule) == "" {
		cfg.Graph.RootModule = graph.DefaultRoot
	}
	if cfg.Graph.TestPrefix == "" {
		cfg.Graph.TestPrefix = graph.DefaultTestPrefix
	}

	if strings.TrimSpace(cfg.Manifests.FileName) == "" {
		cfg.Manifests.FileName = "manifest.toml"
	}
	if cfg.Manifests.CacheSize <= 0 {
		cfg.Manifests.CacheSize = 512
	}

	if strings.TrimSpace(cfg.DB.Driver) == "" {
		cfg.DB.Driver = "sqlite"
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "data/modules.db"
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 5 * time.Second
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = "data/history.db"
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.MaxRebuildsPerSecond == 0 {
		cfg.Watch.MaxRebuildsPerSecond = 2
	}

	if strings.TrimSpace(cfg.Observability.Address) == "" {
		cfg.Observability.Address = "127.0.0.1:9464"
	}
}

func normalize(cfg *Config) {
	cfg.Graph.Mode = strings.ToLower(strings.TrimSpace(cfg.Graph.Mode))
	cfg.Graph.RootModule = strings.TrimSpace(cfg.Graph.RootModule)
	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))

	paths := make([]string, 0, len(cfg.Manifests.Paths))
	for _, p := range cfg.Manifests.Paths {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	cfg.Manifests.Paths = paths

	exclude := make([]string, 0, len(cfg.Manifests.Exclude))
	for _, pattern := range cfg.Manifests.Exclude {
		if pattern = strings.TrimSpace(pattern); pattern != "" {
			exclude = append(exclude, pattern)
		}
	}
	cfg.Manifests.Exclude = exclude
}

// ResolvePaths makes every relative path in cfg absolute against base.
func ResolvePaths(cfg *Config, base string) {
	for i, p := range cfg.Manifests.Paths {
		cfg.Manifests.Paths[i] = ResolveRelative(base, p)
	}
	if cfg.DB.Path != ":memory:" {
		cfg.DB.Path = ResolveRelative(base, cfg.DB.Path)
	}
	cfg.History.Path = ResolveRelative(base, cfg.History.Path)
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}
