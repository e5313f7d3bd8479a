package nodes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/policygraph/internal/ir"
)

func newNode(t *testing.T, kind ir.NodeKind, id string, data ir.Data) *ir.Node {
	t.Helper()
	node, err := NewRegistry().NewNode(kind, id, data)
	require.NoError(t, err)
	return node
}

func work(t *testing.T, node *ir.Node, in Inputs) Result {
	t.Helper()
	d, ok := NewRegistry().Lookup(node.Kind)
	require.True(t, ok)
	return d.Work(node, in)
}

// apply performs the host's side of the mutation contract on a single node.
func apply(node *ir.Node, muts []Mutation) {
	for _, m := range muts {
		switch m := m.(type) {
		case SetControl:
			if c := node.Control(m.Key); c != nil {
				c.Value = m.Value
			}
		case AddInput:
			node.AddInput(m.Input)
		case RemoveInput:
			node.RemoveInput(m.Name)
		}
	}
}

func inputNames(node *ir.Node) []string {
	names := make([]string, len(node.Inputs))
	for i, in := range node.Inputs {
		names[i] = in.Name
	}
	return names
}

func portMuts(muts []Mutation) []Mutation {
	var out []Mutation
	for _, m := range muts {
		if _, ok := m.(SetControl); !ok {
			out = append(out, m)
		}
	}
	return out
}
