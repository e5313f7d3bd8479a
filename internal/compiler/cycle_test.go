package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/policygraph/internal/ir"
)

// rawGraph builds a graph without any edit checks, so it can hold cycles.
func rawGraph(ids []string, edges ...[2]string) *ir.Graph {
	g := &ir.Graph{}
	for _, id := range ids {
		g.Nodes = append(g.Nodes, &ir.Node{ID: id, Kind: ir.KindAnd})
	}
	for i, e := range edges {
		g.Connections = append(g.Connections, ir.Connection{
			From: ir.PortRef{Node: e[0], Port: "pol"},
			To:   ir.PortRef{Node: e[1], Port: "pol" + string(rune('1'+i%2))},
		})
	}
	return g
}

func TestFindCycles_Empty(t *testing.T) {
	assert.Empty(t, FindCycles(&ir.Graph{}))
}

func TestFindCycles_DAG(t *testing.T) {
	g := rawGraph([]string{"a", "b", "c"}, [2]string{"a", "c"}, [2]string{"b", "c"})
	assert.Empty(t, FindCycles(g), "a DAG has no cycles")
}

func TestFindCycles_SelfLoop(t *testing.T) {
	g := rawGraph([]string{"a"}, [2]string{"a", "a"})

	cycles := FindCycles(g)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "a"}, cycles[0].Path)
	assert.Contains(t, cycles[0].Message, "feeds itself")
}

func TestFindCycles_TwoNodes(t *testing.T) {
	g := rawGraph([]string{"a", "b"}, [2]string{"a", "b"}, [2]string{"b", "a"})

	cycles := FindCycles(g)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "b", "a"}, cycles[0].Path)
	assert.Equal(t, "cycle: a -> b -> a", cycles[0].Message)
}

func TestFindCycles_ThreeNodes(t *testing.T) {
	g := rawGraph([]string{"x", "a", "b", "c"},
		[2]string{"c", "a"}, [2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"x", "a"})

	cycles := FindCycles(g)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycles[0].Path,
		"path starts at the first declared member")
}

func TestFindCycles_Separate(t *testing.T) {
	g := rawGraph([]string{"a", "b", "c", "d"},
		[2]string{"c", "d"}, [2]string{"d", "c"}, [2]string{"a", "b"}, [2]string{"b", "a"})

	cycles := FindCycles(g)
	require.Len(t, cycles, 2)
	assert.Equal(t, []string{"a", "b", "a"}, cycles[0].Path)
	assert.Equal(t, []string{"c", "d", "c"}, cycles[1].Path)
}

func TestFindCycles_IgnoresDanglingConnections(t *testing.T) {
	g := rawGraph([]string{"a"}, [2]string{"a", "ghost"}, [2]string{"ghost", "a"})
	assert.Empty(t, FindCycles(g))
}

func TestFindCycles_Deterministic(t *testing.T) {
	g := rawGraph([]string{"a", "b", "c", "d"},
		[2]string{"a", "b"}, [2]string{"b", "a"}, [2]string{"c", "d"}, [2]string{"d", "c"})

	first := FindCycles(g)
	for range 20 {
		assert.Equal(t, first, FindCycles(g))
	}
}
