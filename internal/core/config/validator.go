package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/gobwas/glob"

	"modgraph/internal/engine/graph"
)

var moduleNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Validate checks cfg after defaults have been applied and reports every
// problem found.
func Validate(cfg *Config) error {
	return errors.Join(
		validateVersion(cfg),
		validateGraph(cfg),
		validateManifests(cfg),
		validateDatabase(cfg),
		validateHistory(cfg),
		validateWatch(cfg),
		validateObservability(cfg),
	)
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateGraph(cfg *Config) error {
	if !graph.Mode(cfg.Graph.Mode).Valid() {
		return fmt.Errorf("graph.mode must be one of: load, update; got %q", cfg.Graph.Mode)
	}
	if !moduleNamePattern.MatchString(cfg.Graph.RootModule) {
		return fmt.Errorf("graph.root_module %q is not a valid module name", cfg.Graph.RootModule)
	}
	if strings.ContainsAny(cfg.Graph.TestPrefix, " \t") {
		return fmt.Errorf("graph.test_prefix must not contain whitespace")
	}
	return nil
}

func validateManifests(cfg *Config) error {
	if len(cfg.Manifests.Paths) == 0 {
		return fmt.Errorf("manifests.paths must list at least one addons directory")
	}
	if strings.ContainsAny(cfg.Manifests.FileName, `/\`) {
		return fmt.Errorf("manifests.file_name must be a bare file name, got %q", cfg.Manifests.FileName)
	}
	for i, pattern := range cfg.Manifests.Exclude {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("manifests.exclude[%d] %q: %w", i, pattern, err)
		}
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if cfg.DB.Driver != "sqlite" {
		return fmt.Errorf("db.driver must be sqlite, got %q", cfg.DB.Driver)
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty")
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if cfg.History.Keep < 0 {
		return fmt.Errorf("history.keep must be >= 0, got %d", cfg.History.Keep)
	}
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.Path) == strings.TrimSpace(cfg.DB.Path) {
		return fmt.Errorf("history.path must differ from db.path")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if cfg.Watch.MaxRebuildsPerSecond <= 0 {
		return fmt.Errorf("watch.max_rebuilds_per_second must be > 0, got %v", cfg.Watch.MaxRebuildsPerSecond)
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if !cfg.Observability.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Observability.Address); err != nil {
		return fmt.Errorf("observability.address %q: %w", cfg.Observability.Address, err)
	}
	if cfg.Observability.EnableTracing && strings.TrimSpace(cfg.Observability.OTLPEndpoint) == "" {
		return fmt.Errorf("observability.otlp_endpoint is required when tracing is enabled")
	}
	return nil
}
