package engine

import (
	"slices"

	"github.com/roach88/policygraph/internal/ir"
)

// TopoOrder returns node ids so that every node follows all of its
// upstream nodes. Among nodes that are ready at the same time, declaration
// order wins, which makes the order a pure function of the snapshot.
//
// Connections to unknown nodes are ignored. A cycle yields a RuntimeError
// with code CYCLE_DETECTED naming the nodes left unordered.
func TopoOrder(g *ir.Graph) ([]string, error) {
	index := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		index[n.ID] = i
	}

	indegree := make([]int, len(g.Nodes))
	downstream := make([][]int, len(g.Nodes))
	for _, c := range g.Connections {
		from, okFrom := index[c.From.Node]
		to, okTo := index[c.To.Node]
		if !okFrom || !okTo {
			continue
		}
		downstream[from] = append(downstream[from], to)
		indegree[to]++
	}

	// ready is kept sorted by declaration index.
	var ready []int
	for i, d := range indegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]string, 0, len(g.Nodes))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, g.Nodes[next].ID)
		for _, d := range downstream[next] {
			indegree[d]--
			if indegree[d] == 0 {
				pos, _ := slices.BinarySearch(ready, d)
				ready = slices.Insert(ready, pos, d)
			}
		}
	}

	if len(order) < len(g.Nodes) {
		var stuck []string
		for i, d := range indegree {
			if d > 0 {
				stuck = append(stuck, g.Nodes[i].ID)
			}
		}
		return nil, NewCycleError(stuck)
	}
	return order, nil
}
