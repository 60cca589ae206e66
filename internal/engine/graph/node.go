package graph

// Mode selects how phases are assigned.
type Mode string

const (
	// ModeLoad loads already-installed modules; every non-root module shares phase 1.
	ModeLoad Mode = "load"
	// ModeUpdate accounts for install-state transitions when computing phases.
	ModeUpdate Mode = "update"
)

func (m Mode) Valid() bool {
	return m == ModeLoad || m == ModeUpdate
}

// State is the lifecycle state of a module as recorded by the state provider.
type State string

const (
	StateUninstallable State = "uninstallable"
	StateUninstalled   State = "uninstalled"
	StateInstalled     State = "installed"
	StateToUpgrade     State = "to upgrade"
	StateToRemove      State = "to remove"
	StateToInstall     State = "to install"
)

// States lists every lifecycle state in a stable order.
func States() []State {
	return []State{
		StateUninstallable,
		StateUninstalled,
		StateInstalled,
		StateToUpgrade,
		StateToRemove,
		StateToInstall,
	}
}

func (s State) Valid() bool {
	for _, known := range States() {
		if s == known {
			return true
		}
	}
	return false
}

// Manifest is the immutable descriptor of a module as supplied by a ManifestProvider.
type Manifest struct {
	Name        string
	Version     string
	Depends     []string
	Installable bool
	// AutoInstall names the dependencies that trigger automatic installation.
	// Empty means the module is never auto-installed.
	AutoInstall []string
}

// ModuleState is one row reported by a StateProvider.
type ModuleState struct {
	Name             string
	ID               int64
	State            State
	Demo             bool
	InstalledVersion string
}

// Node is one module's position in the graph. Dependencies are plain references
// to nodes owned by the graph.
type Node struct {
	graph    *Graph
	name     string
	manifest Manifest
	depends  []*Node

	id               int64
	state            State
	demo             bool
	installedVersion string
}

func newNode(g *Graph, name string, manifest *Manifest) *Node {
	n := &Node{
		graph: g,
		name:  name,
		state: StateUninstalled,
	}
	if manifest != nil {
		n.manifest = cloneManifest(*manifest)
	}
	return n
}

func (n *Node) Name() string { return n.name }

// Manifest returns a copy of the node's manifest.
func (n *Node) Manifest() Manifest { return cloneManifest(n.manifest) }

func (n *Node) State() State { return n.state }

func (n *Node) ID() int64 { return n.id }

func (n *Node) Demo() bool { return n.demo }

func (n *Node) InstalledVersion() string { return n.installedVersion }

// Depends returns the resolved dependencies in manifest order.
func (n *Node) Depends() []*Node {
	return append([]*Node(nil), n.depends...)
}

// DependsNames returns the names of the resolved dependencies in manifest order.
func (n *Node) DependsNames() []string {
	names := make([]string, 0, len(n.depends))
	for _, dep := range n.depends {
		names = append(names, dep.name)
	}
	return names
}

// Depth is the longest dependency path to a module without dependencies.
// Test-like modules share the depth of the dependency they follow.
func (n *Node) Depth() int {
	r, _ := n.graph.rank(n)
	return r.depth
}

// OrderName is the tie-break key used when sorting nodes of equal phase and depth.
func (n *Node) OrderName() string {
	r, _ := n.graph.rank(n)
	return r.orderName
}

// Phase groups nodes for batched multi-pass loading.
func (n *Node) Phase() int {
	return n.graph.phase(n)
}

func (n *Node) dependsOn(other *Node) bool {
	for _, dep := range n.depends {
		if dep == other {
			return true
		}
	}
	return false
}

func cloneManifest(m Manifest) Manifest {
	c := m
	c.Depends = append([]string(nil), m.Depends...)
	c.AutoInstall = append([]string(nil), m.AutoInstall...)
	return c
}
