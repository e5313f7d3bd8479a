package nodes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/policygraph/internal/ir"
)

// thresholdNode renders thresh(k,p1,p2,...) over a variable number of
// policy operands. Its operand ports are reconciled against k on every pass.
type thresholdNode struct {
	max int64
}

func (thresholdNode) Kind() ir.NodeKind { return ir.KindThreshold }

func (thresholdNode) Build(node *ir.Node) {
	node.AddInput(ir.Input{Name: "num", Socket: ir.SocketNumber, Control: "num"})
	node.AddInput(operandInput(1))
	addPreview(node)
	node.Outputs = append(node.Outputs, ir.Output{Name: "pol", Socket: ir.SocketPolicy})
}

// EnsureInput creates operand ports up to and including name, keeping the
// operand sequence contiguous.
func (thresholdNode) EnsureInput(node *ir.Node, name string) bool {
	idx, ok := ParseOperandPort(name)
	if !ok {
		return false
	}
	for i := 1; i <= idx; i++ {
		node.AddInput(operandInput(i))
	}
	return true
}

func (t thresholdNode) Work(node *ir.Node, in Inputs) Result {
	k, warnings := t.resolveK(node, in)

	before := readOperands(node, in)
	after := append(operands(nil), before...).reconcile(node, int(k))

	var args strings.Builder
	for _, slot := range after {
		if v := slot.value(); v != "" {
			args.WriteByte(',')
			args.WriteString(v)
		}
	}
	expr := "thresh(" + strconv.FormatInt(k, 10) + args.String() + ")"

	res := previewed(node, "pol", expr)
	res.Mutations = append(after.portMutations(node, before), res.Mutations...)
	res.Warnings = warnings
	return res
}

// resolveK resolves the threshold parameter and clamps it to [1, max].
// Values outside that range have no meaningful arity.
func (t thresholdNode) resolveK(node *ir.Node, in Inputs) (int64, []string) {
	k := ResolveInt(in, node.Data, "num", "num", 1)
	switch {
	case k < 1:
		return 1, []string{fmt.Sprintf("threshold %s: k=%d clamped to 1", node.ID, k)}
	case t.max > 0 && k > t.max:
		return t.max, []string{fmt.Sprintf("threshold %s: k=%d clamped to %d", node.ID, k, t.max)}
	}
	return k, nil
}
