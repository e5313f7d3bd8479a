package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/policygraph/internal/ir"
)

// Cycle is one strongly connected group of nodes, reported as a closed path
// such as ["a", "b", "a"].
type Cycle struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// FindCycles returns every cycle in g's connection graph.
//
// A graph built through the editor or Build never has one; this is for
// graphs loaded from elsewhere, such as stored snapshots. Connections to
// undeclared nodes are ignored. Results follow node declaration order, so
// the same graph always yields the same cycles.
func FindCycles(g *ir.Graph) []Cycle {
	deps := buildDependencyGraph(g)

	var cycles []Cycle
	for _, scc := range tarjanSCC(g, deps) {
		if len(scc) > 1 || hasSelfLoop(scc[0], deps) {
			cycles = append(cycles, sccToCycle(scc, deps))
		}
	}
	return cycles
}

// dependencyGraph maps a node id to the ids its outputs feed, in connection
// order.
type dependencyGraph map[string][]string

func buildDependencyGraph(g *ir.Graph) dependencyGraph {
	deps := make(dependencyGraph, len(g.Nodes))
	for _, n := range g.Nodes {
		deps[n.ID] = []string{}
	}
	for _, c := range g.Connections {
		if _, ok := deps[c.From.Node]; !ok {
			continue
		}
		if _, ok := deps[c.To.Node]; !ok {
			continue
		}
		deps[c.From.Node] = append(deps[c.From.Node], c.To.Node)
	}
	return deps
}

func hasSelfLoop(node string, deps dependencyGraph) bool {
	for _, next := range deps[node] {
		if next == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components, visiting roots in
// declaration order. Each component is listed in declaration order.
func tarjanSCC(g *ir.Graph, deps dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range deps[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			members := make(map[string]bool)
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				members[w] = true
				if w == v {
					break
				}
			}
			var scc []string
			for _, n := range g.Nodes {
				if members[n.ID] {
					scc = append(scc, n.ID)
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, n := range g.Nodes {
		if _, visited := indices[n.ID]; !visited {
			strongConnect(n.ID)
		}
	}
	return sccs
}

func sccToCycle(scc []string, deps dependencyGraph) Cycle {
	if len(scc) == 1 {
		id := scc[0]
		return Cycle{
			Path:    []string{id, id},
			Message: fmt.Sprintf("node %s feeds itself", id),
		}
	}

	path := reconstructCyclePath(scc, deps)
	return Cycle{
		Path:    path,
		Message: "cycle: " + strings.Join(path, " -> "),
	}
}

// reconstructCyclePath returns the shortest closed walk from the
// component's first member back to itself.
func reconstructCyclePath(scc []string, deps dependencyGraph) []string {
	inSCC := make(map[string]bool, len(scc))
	for _, n := range scc {
		inSCC[n] = true
	}

	start := scc[0]
	prev := map[string]string{}
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, w := range deps[current] {
			if !inSCC[w] {
				continue
			}
			if w == start {
				path := []string{start}
				for n := current; n != start; n = prev[n] {
					path = append(path, n)
				}
				path = append(path, start)
				// path was collected backwards from start
				for i, j := 1, len(path)-2; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path
			}
			if _, seen := prev[w]; !seen {
				prev[w] = current
				queue = append(queue, w)
			}
		}
	}
	return []string{start}
}
