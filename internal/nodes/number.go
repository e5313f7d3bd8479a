package nodes

import "github.com/roach88/policygraph/internal/ir"

// numberNode is a numeric literal. No inputs; output "num".
type numberNode struct{}

func (numberNode) Kind() ir.NodeKind { return ir.KindNumber }

func (numberNode) Build(node *ir.Node) {
	if _, unset := node.Data.Get("num").(ir.Null); unset {
		node.Data["num"] = ir.Int(1)
	}
	addControl(node, "num", ir.ControlNumber, false)
	node.Outputs = append(node.Outputs, ir.Output{Name: "num", Socket: ir.SocketNumber})
}

func (numberNode) Work(node *ir.Node, _ Inputs) Result {
	var out ir.Value = ir.Null{}
	if n, ok := ir.AsInt(node.Data.Get("num")); ok {
		out = ir.Int(n)
	}
	return Result{Outputs: map[string]ir.Value{"num": out}}
}
