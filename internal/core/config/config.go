package config

import (
	"time"

	"modgraph/internal/engine/graph"
)

const DefaultFileName = "modgraph.toml"

type Config struct {
	Version       int           `toml:"version"`
	Graph         Graph         `toml:"graph"`
	Manifests     Manifests     `toml:"manifests"`
	DB            Database      `toml:"db"`
	History       History       `toml:"history"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Graph struct {
	Mode        string `toml:"mode"`
	RootModule  string `toml:"root_module"`
	TestPrefix  string `toml:"test_prefix"`
	AutoInstall bool   `toml:"auto_install"`
}

type Manifests struct {
	Paths     []string `toml:"paths"`
	FileName  string   `toml:"file_name"`
	Exclude   []string `toml:"exclude"`
	CacheSize int      `toml:"cache_size"`
}

type Database struct {
	Driver      string        `toml:"driver"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
	// Keep is how many plans survive pruning; 0 keeps everything.
	Keep int `toml:"keep"`
}

type Watch struct {
	Debounce             time.Duration `toml:"debounce"`
	MaxRebuildsPerSecond float64       `toml:"max_rebuilds_per_second"`
}

type Observability struct {
	Enabled       bool   `toml:"enabled"`
	Address       string `toml:"address"`
	EnableTracing bool   `toml:"enable_tracing"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{
		Manifests: Manifests{Paths: []string{"addons"}},
		History:   History{Enabled: true},
	}
	applyDefaults(cfg)
	return cfg
}

// GraphMode returns the configured mode as a graph.Mode.
func (c *Config) GraphMode() graph.Mode {
	return graph.Mode(c.Graph.Mode)
}
