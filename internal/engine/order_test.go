package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/policygraph/internal/ir"
)

func link(from, fromPort, to, toPort string) ir.Connection {
	return ir.Connection{
		From: ir.PortRef{Node: from, Port: fromPort},
		To:   ir.PortRef{Node: to, Port: toPort},
	}
}

func bareGraph(ids ...string) *ir.Graph {
	g := &ir.Graph{}
	for _, id := range ids {
		g.Nodes = append(g.Nodes, &ir.Node{ID: id, Kind: ir.KindAnd})
	}
	return g
}

func TestTopoOrder(t *testing.T) {
	tests := []struct {
		name  string
		nodes []string
		conns []ir.Connection
		want  []string
	}{
		{
			name:  "no connections keeps declaration order",
			nodes: []string{"c", "a", "b"},
			want:  []string{"c", "a", "b"},
		},
		{
			name:  "upstream declared later moves first",
			nodes: []string{"thresh", "after", "older"},
			conns: []ir.Connection{link("after", "pol", "thresh", "pol1"), link("older", "pol", "thresh", "pol2")},
			want:  []string{"after", "older", "thresh"},
		},
		{
			name:  "ties broken by declaration order",
			nodes: []string{"x", "root", "y", "z"},
			conns: []ir.Connection{link("z", "pol", "root", "pol1"), link("y", "pol", "root", "pol2")},
			want:  []string{"x", "y", "z", "root"},
		},
		{
			name:  "released node rejoins in declaration position",
			nodes: []string{"a", "b", "c"},
			conns: []ir.Connection{link("c", "pol", "a", "pol1")},
			want:  []string{"b", "c", "a"},
		},
		{
			name:  "dangling connection ignored",
			nodes: []string{"a"},
			conns: []ir.Connection{link("ghost", "pol", "a", "pol1")},
			want:  []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := bareGraph(tt.nodes...)
			g.Connections = tt.conns
			got, err := TopoOrder(g)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTopoOrder_Cycle(t *testing.T) {
	g := bareGraph("a", "b", "c")
	g.Connections = []ir.Connection{
		link("a", "pol", "b", "pol1"),
		link("b", "pol", "a", "pol1"),
	}

	_, err := TopoOrder(g)

	require.Error(t, err)
	assert.True(t, IsCycleError(err))
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "[a b]", re.Details["nodes"])
}
