package editor

import (
	"fmt"

	"github.com/roach88/policygraph/internal/ir"
	"github.com/roach88/policygraph/internal/nodes"
)

// Apply performs worker mutations on the live graph. It publishes no
// events, so applying a pass's side effects never schedules another pass.
//
// Mutations addressed to nodes that no longer exist are skipped; the node
// was removed after the snapshot the worker saw. Removing an input severs
// its connection. Apply returns the number of mutations that changed the
// graph.
func (e *Editor) Apply(muts []nodes.Mutation) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	applied := 0
	for _, m := range muts {
		if e.applyLocked(m) {
			applied++
		}
	}
	return applied
}

func (e *Editor) applyLocked(m nodes.Mutation) bool {
	switch m := m.(type) {
	case nodes.SetControl:
		node := e.graph.Node(m.Node)
		if node == nil {
			return false
		}
		ctrl := node.Control(m.Key)
		if ctrl == nil || ctrl.Value == m.Value {
			return false
		}
		ctrl.Value = m.Value
		return true

	case nodes.AddInput:
		node := e.graph.Node(m.Node)
		if node == nil {
			return false
		}
		return node.AddInput(m.Input)

	case nodes.RemoveInput:
		node := e.graph.Node(m.Node)
		if node == nil {
			return false
		}
		ref := ir.PortRef{Node: m.Node, Port: m.Name}
		if _, ok := e.graph.Incoming(ref); ok {
			e.graph.Connections = removeConnection(e.graph.Connections, ref)
			e.logger.Debug("connection severed", "to", ref.String())
		}
		return node.RemoveInput(m.Name)
	}
	return false
}

// Trigger publishes a process event without changing the graph, asking for
// a fresh pass over the current state.
func (e *Editor) Trigger() {
	e.publish(Event{Type: EventProcess})
}

// checkControlValue rejects values a control of the given type cannot hold.
// Null clears a control of either type.
func checkControlValue(typ ir.ControlType, v ir.Value) error {
	switch v.(type) {
	case ir.Null:
		return nil
	case ir.Int:
		if typ == ir.ControlNumber {
			return nil
		}
	case ir.String:
		if typ == ir.ControlText {
			return nil
		}
	}
	return fmt.Errorf("%s control cannot hold %s", typ, ir.FormatValue(v))
}
