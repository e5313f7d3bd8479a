package nodes

import (
	"strconv"

	"github.com/roach88/policygraph/internal/ir"
)

// timelockNode renders after(n) or older(n). n defaults to 0.
type timelockNode struct {
	kind ir.NodeKind
}

func (t timelockNode) Kind() ir.NodeKind { return t.kind }

func (t timelockNode) Build(node *ir.Node) {
	node.AddInput(ir.Input{Name: "num", Socket: ir.SocketNumber, Control: "num"})
	addPreview(node)
	node.Outputs = append(node.Outputs, ir.Output{Name: "pol", Socket: ir.SocketPolicy})
}

func (t timelockNode) Work(node *ir.Node, in Inputs) Result {
	n := ResolveInt(in, node.Data, "num", "num", 0)
	return previewed(node, "pol", string(t.kind)+"("+strconv.FormatInt(n, 10)+")")
}
