package graph

import "errors"

// orderSeparator joins a test module's name to the order name of the dependency
// it follows. It sorts before every character allowed in a module name.
const orderSeparator = " "

var errDependencyLoop = errors.New("dependency loop")

type rankInfo struct {
	depth     int
	orderName string
}

// derivedCache memoizes depth, order name and phase per node. It is reset at
// the start of every Extend since any structural change may affect them.
type derivedCache struct {
	ranks    map[*Node]rankInfo
	phases   map[*Node]int
	visiting map[*Node]bool
}

func (c *derivedCache) reset() {
	c.ranks = make(map[*Node]rankInfo)
	c.phases = make(map[*Node]int)
	c.visiting = make(map[*Node]bool)
}

// rank computes depth and order name together since test-like modules derive
// both from the same dependency. A node reached again while its own rank is
// being computed is part of a loop; nothing on that path is cached.
func (g *Graph) rank(n *Node) (rankInfo, error) {
	if r, ok := g.cache.ranks[n]; ok {
		return r, nil
	}
	if g.cache.visiting[n] {
		return rankInfo{}, errDependencyLoop
	}
	g.cache.visiting[n] = true
	defer delete(g.cache.visiting, n)

	if len(n.depends) == 0 {
		r := rankInfo{depth: 0, orderName: n.name}
		g.cache.ranks[n] = r
		return r, nil
	}

	var (
		best     rankInfo
		haveBest bool
		maxDepth int
	)
	for _, dep := range n.depends {
		dr, err := g.rank(dep)
		if err != nil {
			return rankInfo{}, err
		}
		if dr.depth > maxDepth {
			maxDepth = dr.depth
		}
		if !haveBest || dr.depth > best.depth || (dr.depth == best.depth && dr.orderName > best.orderName) {
			best = dr
			haveBest = true
		}
	}

	var r rankInfo
	if g.isTestModule(n.name) {
		r = rankInfo{
			depth:     best.depth,
			orderName: best.orderName + orderSeparator + n.name,
		}
	} else {
		r = rankInfo{depth: maxDepth + 1, orderName: n.name}
	}
	g.cache.ranks[n] = r
	return r, nil
}

// phase assumes the graph is acyclic, which Extend guarantees for present nodes.
func (g *Graph) phase(n *Node) int {
	if p, ok := g.cache.phases[n]; ok {
		return p
	}

	p := 1
	switch {
	case n.name == g.root:
		p = 0
	case g.mode == ModeLoad:
		p = 1
	case len(n.depends) > 0:
		p = 0
		installing := n.state == StateToInstall
		for _, dep := range n.depends {
			candidate := g.phase(dep)
			if installing != (dep.state == StateToInstall) {
				candidate++
			}
			if dep.name == g.root {
				candidate++
			}
			if candidate > p {
				p = candidate
			}
		}
	}

	g.cache.phases[n] = p
	return p
}
