package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "modgraph_graph_nodes",
		Help: "Number of modules currently present in the most recently extended graph.",
	})

	PrunedModulesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modgraph_pruned_modules_total",
		Help: "Total number of modules pruned from a graph, by reason.",
	}, []string{"reason"})

	ExtendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "modgraph_extend_seconds",
		Help:    "Time spent extending a module graph.",
		Buckets: prometheus.DefBuckets,
	})

	ResolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modgraph_resolve_seconds",
		Help:    "Time spent resolving a complete load plan.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	ResolveErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modgraph_resolve_errors_total",
		Help: "Total number of load plan resolutions that failed on a provider error.",
	})

	ManifestCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modgraph_manifest_cache_hits_total",
		Help: "Total number of manifest lookups served from cache.",
	})

	ManifestCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modgraph_manifest_cache_misses_total",
		Help: "Total number of manifest lookups that read from disk.",
	})

	WatchEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modgraph_watch_events_total",
		Help: "Total number of file system events received by the addons watcher.",
	})
)
