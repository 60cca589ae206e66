package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: MODGRAPH_[SECTION]_[KEY] (e.g., MODGRAPH_GRAPH_MODE).
func ApplyEnvOverrides(cfg *Config) {
	// Graph
	setEnvString(&cfg.Graph.Mode, "MODGRAPH_GRAPH_MODE")
	setEnvString(&cfg.Graph.RootModule, "MODGRAPH_GRAPH_ROOT_MODULE")
	setEnvString(&cfg.Graph.TestPrefix, "MODGRAPH_GRAPH_TEST_PREFIX")
	setEnvBool(&cfg.Graph.AutoInstall, "MODGRAPH_GRAPH_AUTO_INSTALL")

	// Manifests
	setEnvList(&cfg.Manifests.Paths, "MODGRAPH_MANIFESTS_PATHS")
	setEnvList(&cfg.Manifests.Exclude, "MODGRAPH_MANIFESTS_EXCLUDE")
	setEnvInt(&cfg.Manifests.CacheSize, "MODGRAPH_MANIFESTS_CACHE_SIZE")

	// Database
	setEnvString(&cfg.DB.Path, "MODGRAPH_DB_PATH")
	setEnvDuration(&cfg.DB.BusyTimeout, "MODGRAPH_DB_BUSY_TIMEOUT")

	// History
	setEnvBool(&cfg.History.Enabled, "MODGRAPH_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "MODGRAPH_HISTORY_PATH")
	setEnvInt(&cfg.History.Keep, "MODGRAPH_HISTORY_KEEP")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "MODGRAPH_WATCH_DEBOUNCE")
	setEnvFloat64(&cfg.Watch.MaxRebuildsPerSecond, "MODGRAPH_WATCH_MAX_REBUILDS_PER_SECOND")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "MODGRAPH_OBSERVABILITY_ENABLED")
	setEnvString(&cfg.Observability.Address, "MODGRAPH_OBSERVABILITY_ADDRESS")
	setEnvBool(&cfg.Observability.EnableTracing, "MODGRAPH_OBSERVABILITY_ENABLE_TRACING")
	setEnvString(&cfg.Observability.OTLPEndpoint, "MODGRAPH_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

// setEnvList splits a comma-separated value.
func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*target = out
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
