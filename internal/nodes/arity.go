package nodes

import "github.com/roach88/policygraph/internal/ir"

// operand is one policy slot of a threshold node.
type operand struct {
	exists    bool   // port is present in the snapshot
	connected bool   // port has an incoming connection
	stored    string // the slot control's stored value
	upstream  string // connected value, valid when connected
}

// occupied reports whether the slot must be kept: it is connected or its
// control holds text.
func (o operand) occupied() bool {
	return o.connected || o.stored != ""
}

// value resolves the slot by the standard rule.
func (o operand) value() string {
	if o.connected {
		return o.upstream
	}
	return o.stored
}

// operands is the ordered slot list; operands[0] is pol1.
type operands []operand

// readOperands builds the slot list from the node's operand ports. Gaps
// below the highest index become missing slots so the list stays contiguous.
func readOperands(node *ir.Node, in Inputs) operands {
	highest := 0
	present := make(map[int]bool)
	for _, input := range node.Inputs {
		if i, ok := ParseOperandPort(input.Name); ok {
			present[i] = true
			highest = max(highest, i)
		}
	}

	ops := make(operands, 0, highest)
	for i := 1; i <= highest; i++ {
		slot := freshOperand(node, i)
		slot.exists = present[i]
		if v, connected := in[OperandPort(i)]; connected && slot.exists {
			slot.connected = true
			slot.upstream, _ = ir.AsString(v)
		}
		ops = append(ops, slot)
	}
	return ops
}

// freshOperand is the slot a newly created port would have. A new port has
// no connection, but its control picks up any value already stored.
func freshOperand(node *ir.Node, i int) operand {
	stored, _ := ir.AsString(node.Data.Get(OperandPort(i)))
	return operand{stored: stored}
}

// grow appends fresh slots until there are at least n.
func (ops operands) grow(node *ir.Node, n int) operands {
	for len(ops) < n {
		ops = append(ops, freshOperand(node, len(ops)+1))
	}
	return ops
}

// shrinkFrom drops slot i (1-based) and everything above it.
func (ops operands) shrinkFrom(i int) operands {
	if i-1 < len(ops) {
		return ops[:i-1]
	}
	return ops
}

// reconcile runs the grow and shrink phases for threshold k.
//
// After it returns, slots 1..k+1 exist. Above k+1 empty slots are trimmed
// from the top down until the first occupied one; if that occupied slot was
// the last, one empty spare is appended after it. Running reconcile again on
// its own output changes nothing.
func (ops operands) reconcile(node *ir.Node, k int) operands {
	ops = ops.grow(node, k+1)
	for i := len(ops); i >= k+1; i-- {
		if ops[i-1].occupied() {
			if i == len(ops) {
				ops = ops.grow(node, i+1)
			}
			break
		}
		ops = ops.shrinkFrom(i + 1)
	}
	return ops
}

// portMutations diffs the reconciled slots against the snapshot's ports.
// Removals come highest index first.
func (ops operands) portMutations(node *ir.Node, before operands) []Mutation {
	var muts []Mutation
	for i, slot := range ops {
		if !slot.exists {
			muts = append(muts, AddInput{Node: node.ID, Input: operandInput(i + 1)})
		}
	}
	for i := len(before); i > len(ops); i-- {
		if before[i-1].exists {
			muts = append(muts, RemoveInput{Node: node.ID, Name: OperandPort(i)})
		}
	}
	return muts
}

func operandInput(i int) ir.Input {
	name := OperandPort(i)
	return ir.Input{Name: name, Socket: ir.SocketPolicy, Control: name}
}
