package graph

import "sort"

// FindCycle returns the first dependency loop reachable from name, with the
// repeated module at both ends, or nil when there is none.
func (g *Graph) FindCycle(name string) []string {
	start, ok := g.modules[name]
	if !ok {
		return nil
	}

	visited := make(map[*Node]bool)
	onStack := make(map[*Node]bool)
	var cycle []string

	var walk func(curr *Node, path []string) bool
	walk = func(curr *Node, path []string) bool {
		visited[curr] = true
		onStack[curr] = true
		path = append(path, curr.name)

		for _, next := range curr.depends {
			if onStack[next] {
				for i, mod := range path {
					if mod == next.name {
						cycle = append(append([]string(nil), path[i:]...), next.name)
						return true
					}
				}
			} else if !visited[next] {
				if walk(next, path) {
					return true
				}
			}
		}

		onStack[curr] = false
		return false
	}

	walk(start, nil)
	return cycle
}

// DependencyChain returns the shortest path of dependencies leading from one
// present module to another.
func (g *Graph) DependencyChain(from, to string) ([]string, bool) {
	if _, ok := g.modules[from]; !ok {
		return nil, false
	}
	if _, ok := g.modules[to]; !ok {
		return nil, false
	}
	if from == to {
		return []string{from}, true
	}

	queue := []string{from}
	visited := map[string]bool{from: true}
	prev := make(map[string]string)

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		neighbors := g.modules[curr].DependsNames()
		sort.Strings(neighbors)

		for _, next := range neighbors {
			if visited[next] {
				continue
			}
			if _, ok := g.modules[next]; !ok {
				continue
			}
			visited[next] = true
			prev[next] = curr

			if next == to {
				path := []string{to}
				for node := to; node != from; {
					p, ok := prev[node]
					if !ok {
						return nil, false
					}
					path = append(path, p)
					node = p
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true
			}

			queue = append(queue, next)
		}
	}

	return nil, false
}

// Dependents returns every present module that depends on name, directly or
// transitively, in breadth-first order. name itself is not included.
func (g *Graph) Dependents(name string) []string {
	target, ok := g.modules[name]
	if !ok {
		return nil
	}

	importedBy := make(map[*Node][]*Node, len(g.modules))
	for _, node := range g.modules {
		for _, dep := range node.depends {
			importedBy[dep] = append(importedBy[dep], node)
		}
	}

	var out []string
	seen := map[*Node]bool{target: true}
	queue := []*Node{target}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		next := importedBy[curr]
		sort.Slice(next, func(i, j int) bool { return next[i].name < next[j].name })
		for _, dependent := range next {
			if seen[dependent] {
				continue
			}
			seen[dependent] = true
			out = append(out, dependent.name)
			queue = append(queue, dependent)
		}
	}
	return out
}
