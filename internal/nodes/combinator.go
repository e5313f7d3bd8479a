package nodes

import "github.com/roach88/policygraph/internal/ir"

// combinatorNode renders and(a,b) or or(a,b) from two policy operands.
type combinatorNode struct {
	kind ir.NodeKind
}

func (c combinatorNode) Kind() ir.NodeKind { return c.kind }

func (c combinatorNode) Build(node *ir.Node) {
	node.AddInput(ir.Input{Name: "pol1", Socket: ir.SocketPolicy, Control: "pol1"})
	node.AddInput(ir.Input{Name: "pol2", Socket: ir.SocketPolicy, Control: "pol2"})
	addPreview(node)
	node.Outputs = append(node.Outputs, ir.Output{Name: "pol", Socket: ir.SocketPolicy})
}

func (c combinatorNode) Work(node *ir.Node, in Inputs) Result {
	p1 := ResolveString(in, node.Data, "pol1", "pol1")
	p2 := ResolveString(in, node.Data, "pol2", "pol2")
	return previewed(node, "pol", string(c.kind)+"("+p1+","+p2+")")
}
