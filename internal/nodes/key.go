package nodes

import "github.com/roach88/policygraph/internal/ir"

// keyNode wraps a key name as pk(<key>). The output travels on a policy
// socket because pk(...) is itself a complete policy.
type keyNode struct{}

func (keyNode) Kind() ir.NodeKind { return ir.KindKey }

func (keyNode) Build(node *ir.Node) {
	addControl(node, "key", ir.ControlText, false)
	node.Outputs = append(node.Outputs, ir.Output{Name: "key", Socket: ir.SocketPolicy})
}

func (keyNode) Work(node *ir.Node, _ Inputs) Result {
	key, _ := ir.AsString(node.Data.Get("key"))
	return Result{Outputs: map[string]ir.Value{"key": ir.String("pk(" + key + ")")}}
}
