package graph

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"modgraph/internal/shared/observability"
	"modgraph/internal/shared/util"
)

const (
	DefaultRoot       = "base"
	DefaultTestPrefix = "test_"
)

// ManifestProvider supplies module manifests. A nil manifest with a nil error
// means the module could not be found and is treated as not installable.
type ManifestProvider interface {
	Manifest(ctx context.Context, name string) (*Manifest, error)
}

// StateProvider supplies the recorded lifecycle state of modules.
type StateProvider interface {
	States(ctx context.Context, names []string) ([]ModuleState, error)
	// ImportedModules lists modules exempt from the not-installable warning.
	ImportedModules(ctx context.Context) ([]string, error)
}

type Options struct {
	// Root is the module every phase is computed from. Defaults to "base".
	Root string
	// TestPrefix marks modules that sort right after the dependency that pulled them in.
	TestPrefix string
	Logger     *slog.Logger
}

// Graph is an incrementally built dependency graph over named modules. It is
// not safe for concurrent use; callers serialize Extend and reads.
type Graph struct {
	mode       Mode
	root       string
	testPrefix string
	logger     *slog.Logger

	manifests ManifestProvider
	states    StateProvider

	modules  map[string]*Node
	imported map[string]bool
	pruned   []Pruned

	cache derivedCache
}

func New(mode Mode, manifests ManifestProvider, states StateProvider, opts Options) *Graph {
	if !mode.Valid() {
		mode = ModeLoad
	}
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		root = DefaultRoot
	}
	prefix := opts.TestPrefix
	if prefix == "" {
		prefix = DefaultTestPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Graph{
		mode:       mode,
		root:       root,
		testPrefix: prefix,
		logger:     logger,
		manifests:  manifests,
		states:     states,
		modules:    make(map[string]*Node),
	}
	g.cache.reset()
	return g
}

func (g *Graph) Mode() Mode { return g.mode }

func (g *Graph) Root() string { return g.root }

// Extend adds the given module names to the graph. Names already present are
// ignored. Modules that cannot be loaded are pruned and logged; only provider
// errors are returned.
func (g *Graph) Extend(ctx context.Context, names ...string) error {
	start := time.Now()
	defer func() {
		observability.ExtendDuration.Observe(time.Since(start).Seconds())
		observability.GraphNodes.Set(float64(len(g.modules)))
	}()

	g.cache.reset()

	newNames := g.newNames(names)
	if len(newNames) == 0 {
		return nil
	}

	ctx, span := observability.Tracer.Start(ctx, "graph.Extend",
		trace.WithAttributes(attribute.Int("new_modules", len(newNames))))
	defer span.End()

	for _, name := range newNames {
		manifest, err := g.manifests.Manifest(ctx, name)
		if err != nil {
			return err
		}
		g.modules[name] = newNode(g, name, manifest)
		if manifest != nil && manifest.Installable {
			continue
		}

		imported, err := g.importedModules(ctx)
		if err != nil {
			return err
		}
		if imported[name] {
			g.remove(name, ReasonImported, false)
			continue
		}
		g.logger.Warn("module not installable, skipped", "module", name)
		g.remove(name, ReasonNotInstallable, true)
	}

	g.resolveDepends(newNames)
	g.validateDepth(newNames)

	if err := g.applyStates(ctx, newNames); err != nil {
		return err
	}
	return nil
}

func (g *Graph) newNames(names []string) []string {
	unique := util.UniqueStrings(names)
	out := unique[:0]
	for _, name := range unique {
		if _, ok := g.modules[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (g *Graph) importedModules(ctx context.Context) (map[string]bool, error) {
	if g.imported != nil {
		return g.imported, nil
	}
	names, err := g.states.ImportedModules(ctx)
	if err != nil {
		return nil, err
	}
	g.imported = make(map[string]bool, len(names))
	for _, name := range names {
		g.imported[name] = true
	}
	return g.imported, nil
}

func (g *Graph) resolveDepends(names []string) {
	for _, name := range names {
		node, ok := g.modules[name]
		if !ok {
			continue
		}
		depends := make([]*Node, 0, len(node.manifest.Depends))
		seen := make(map[string]bool, len(node.manifest.Depends))
		missing := ""
		for _, depName := range node.manifest.Depends {
			if seen[depName] {
				continue
			}
			seen[depName] = true
			dep, ok := g.modules[depName]
			if !ok {
				missing = depName
				break
			}
			depends = append(depends, dep)
		}
		if missing != "" {
			g.logger.Info("module has depends that are not loaded, skipped", "module", name, "missing", missing)
			g.remove(name, ReasonMissingDependency, true)
			continue
		}
		node.depends = depends
	}
}

func (g *Graph) validateDepth(names []string) {
	for _, name := range names {
		node, ok := g.modules[name]
		if !ok {
			continue
		}
		if _, err := g.rank(node); err != nil {
			g.logger.Warn("module is in a dependency loop, skipped",
				"module", name,
				"cycle", strings.Join(g.FindCycle(name), " -> "),
			)
			g.remove(name, ReasonCycle, true)
		}
	}
}

func (g *Graph) applyStates(ctx context.Context, names []string) error {
	present := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := g.modules[name]; ok {
			present = append(present, name)
		}
	}
	if len(present) == 0 {
		return nil
	}

	rows, err := g.states.States(ctx, present)
	if err != nil {
		return err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Name < rows[j].Name
	})

	for _, row := range rows {
		node, ok := g.modules[row.Name]
		if !ok {
			continue
		}
		switch {
		case row.State == StateUninstallable:
			g.logger.Warn("module not installable, skipped", "module", row.Name)
			g.remove(row.Name, ReasonUninstallable, true)
		case g.mode == ModeLoad && (row.State == StateToInstall || row.State == StateUninstalled):
			g.logger.Info("module not installed, skipped", "module", row.Name, "state", string(row.State))
			g.remove(row.Name, ReasonNotInstalled, true)
		default:
			node.id = row.ID
			node.state = row.State
			node.demo = row.Demo
			node.installedVersion = row.InstalledVersion
		}
	}
	return nil
}

// Nodes returns every present node sorted by (phase, depth, order name).
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.modules))
	for _, node := range g.modules {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if pa, pb := a.Phase(), b.Phase(); pa != pb {
			return pa < pb
		}
		if da, db := a.Depth(), b.Depth(); da != db {
			return da < db
		}
		return a.OrderName() < b.OrderName()
	})
	return nodes
}

// Order returns the names of Nodes in load order.
func (g *Graph) Order() []string {
	nodes := g.Nodes()
	names := make([]string, 0, len(nodes))
	for _, node := range nodes {
		names = append(names, node.name)
	}
	return names
}

func (g *Graph) Get(name string) (*Node, bool) {
	node, ok := g.modules[name]
	return node, ok
}

func (g *Graph) Len() int {
	return len(g.modules)
}

// Names returns the present module names in lexical order.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.modules))
	for name := range g.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *Graph) isTestModule(name string) bool {
	return strings.HasPrefix(name, g.testPrefix)
}
