package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/policygraph/internal/editor"
	"github.com/roach88/policygraph/internal/ir"
	"github.com/roach88/policygraph/internal/nodes"
)

// GraphSpec is a decoded graph definition, independent of source format.
type GraphSpec struct {
	Name        string
	Root        string
	Nodes       []NodeSpec
	Connections []ConnectionSpec
}

// NodeSpec declares one node. Data seeds its controls.
type NodeSpec struct {
	ID   string
	Kind ir.NodeKind
	Data ir.Data
	Pos  Position
}

// ConnectionSpec declares one connection as "node.port" references.
type ConnectionSpec struct {
	From string
	To   string
	Pos  Position
}

// ParsePortRef splits "node.port" at its last dot.
func ParsePortRef(s string) (ir.PortRef, error) {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return ir.PortRef{}, fmt.Errorf("port reference %q must have the form node.port", s)
	}
	return ir.PortRef{Node: s[:i], Port: s[i+1:]}, nil
}

// Build creates the graph a spec describes.
//
// Nodes are built by their kind's builder, so every node gets its standard
// ports and controls. Data keys naming a threshold operand create that
// operand's port. Connections go through the same checks as interactive
// edits. Build stops at the first problem.
func Build(spec GraphSpec, registry *nodes.Registry) (*ir.Graph, error) {
	g := &ir.Graph{Name: spec.Name, Nodes: []*ir.Node{}, Connections: []ir.Connection{}}
	seen := make(map[string]bool, len(spec.Nodes))

	for _, ns := range spec.Nodes {
		field := "nodes." + ns.ID
		if ns.ID == "" {
			return nil, &CompileError{Field: "nodes", Message: "node id is required", Pos: ns.Pos}
		}
		if strings.Contains(ns.ID, ".") {
			return nil, &CompileError{Field: field, Message: "node id may not contain '.'", Pos: ns.Pos}
		}
		if seen[ns.ID] {
			return nil, &CompileError{Field: field, Message: "duplicate node id", Pos: ns.Pos}
		}
		seen[ns.ID] = true

		if !ns.Kind.Valid() {
			return nil, &CompileError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("unknown kind %q (want one of %v)", ns.Kind, ir.Kinds),
				Pos:     ns.Pos,
			}
		}
		node, err := registry.NewNode(ns.Kind, ns.ID, ns.Data)
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: ns.Pos}
		}
		if err := checkData(registry, node); err != nil {
			return nil, &CompileError{Field: field + ".data", Message: err.Error(), Pos: ns.Pos}
		}
		g.Nodes = append(g.Nodes, node)
	}

	ed := editor.New(registry, g)
	for i, cs := range spec.Connections {
		field := fmt.Sprintf("connections[%d]", i)
		from, err := ParsePortRef(cs.From)
		if err != nil {
			return nil, &CompileError{Field: field + ".from", Message: err.Error(), Pos: cs.Pos}
		}
		to, err := ParsePortRef(cs.To)
		if err != nil {
			return nil, &CompileError{Field: field + ".to", Message: err.Error(), Pos: cs.Pos}
		}
		if err := ed.Connect(from, to); err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: cs.Pos}
		}
	}

	out := ed.Snapshot()
	if spec.Root != "" {
		if out.Node(spec.Root) == nil {
			return nil, &CompileError{Field: "root", Message: fmt.Sprintf("root node %q is not declared", spec.Root)}
		}
		out.Root = spec.Root
	}
	return out, nil
}

// checkData creates operand ports named by data keys and rejects keys no
// control is bound to, as well as values the control cannot hold.
func checkData(registry *nodes.Registry, node *ir.Node) error {
	for _, key := range node.Data.SortedKeys() {
		if _, ok := nodes.ParseOperandPort(key); ok {
			registry.EnsureInput(node, key)
		}
		ctrl := node.Control(key)
		if ctrl == nil {
			return fmt.Errorf("%s node has no control %q", node.Kind, key)
		}
		switch v := node.Data[key].(type) {
		case ir.Null:
		case ir.Int:
			if ctrl.Type != ir.ControlNumber {
				return fmt.Errorf("control %q wants text, got %d", key, int64(v))
			}
		case ir.String:
			if ctrl.Type != ir.ControlText {
				return fmt.Errorf("control %q wants a number, got %q", key, string(v))
			}
		}
		if ctrl.ReadOnly {
			return fmt.Errorf("control %q is read-only", key)
		}
	}
	return nil
}
