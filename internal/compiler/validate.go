package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/policygraph/internal/ir"
	"github.com/roach88/policygraph/internal/nodes"
)

// Validation error codes (E100-E199)
const (
	// Graph errors (E100-E109)
	ErrGraphNoNodes    = "E100" // at least one node required
	ErrInvalidNodeID   = "E101" // empty id or id containing '.'
	ErrDuplicateNodeID = "E102" // node declared twice
	ErrUnknownKind     = "E103" // kind outside the closed set
	ErrInvalidData     = "E104" // data key without control, wrong type or read-only
	ErrUndeclaredRoot  = "E105" // root names no declared node
	ErrNoTerminal      = "E106" // nothing would produce an expression

	// Connection errors (E110-E119)
	ErrInvalidPortRef = "E110" // not of the form node.port
	ErrUnknownNode    = "E111" // connection names an undeclared node
	ErrUnknownPort    = "E112" // no such output or input
	ErrSocketMismatch = "E113" // output socket cannot feed input socket
	ErrInputOccupied  = "E114" // second connection into one input
	ErrCycle          = "E115" // connections form a cycle
)

// ValidationError represents a structural problem in a graph definition.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a decoded graph definition.
// Returns all errors found (does not fail-fast), unlike Build.
func Validate(spec GraphSpec, registry *nodes.Registry) []ValidationError {
	var errs []ValidationError
	add := func(code, field string, pos Position, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
			Line:    pos.Line,
		})
	}

	if len(spec.Nodes) == 0 {
		add(ErrGraphNoNodes, "nodes", Position{}, "at least one node is required")
	}

	g := &ir.Graph{Name: spec.Name}
	for _, ns := range spec.Nodes {
		field := "nodes." + ns.ID
		switch {
		case ns.ID == "":
			add(ErrInvalidNodeID, "nodes", ns.Pos, "node id is required")
			continue
		case strings.Contains(ns.ID, "."):
			add(ErrInvalidNodeID, field, ns.Pos, "node id %q may not contain '.'", ns.ID)
			continue
		case g.Node(ns.ID) != nil:
			add(ErrDuplicateNodeID, field, ns.Pos, "duplicate node id %q", ns.ID)
			continue
		case !ns.Kind.Valid():
			add(ErrUnknownKind, field+".kind", ns.Pos, "unknown kind %q (want one of %v)", ns.Kind, ir.Kinds)
			continue
		}

		node, err := registry.NewNode(ns.Kind, ns.ID, ns.Data)
		if err != nil {
			add(ErrUnknownKind, field+".kind", ns.Pos, "%v", err)
			continue
		}
		if err := checkData(registry, node); err != nil {
			add(ErrInvalidData, field+".data", ns.Pos, "%v", err)
		}
		g.Nodes = append(g.Nodes, node)
	}

	for i, cs := range spec.Connections {
		field := fmt.Sprintf("connections[%d]", i)
		from, err := ParsePortRef(cs.From)
		if err != nil {
			add(ErrInvalidPortRef, field+".from", cs.Pos, "%v", err)
			continue
		}
		to, err := ParsePortRef(cs.To)
		if err != nil {
			add(ErrInvalidPortRef, field+".to", cs.Pos, "%v", err)
			continue
		}

		src, dst := g.Node(from.Node), g.Node(to.Node)
		if src == nil {
			add(ErrUnknownNode, field+".from", cs.Pos, "node %q is not declared", from.Node)
		}
		if dst == nil {
			add(ErrUnknownNode, field+".to", cs.Pos, "node %q is not declared", to.Node)
		}
		if src == nil || dst == nil {
			continue
		}

		out, ok := src.Output(from.Port)
		if !ok {
			add(ErrUnknownPort, field+".from", cs.Pos, "%s node %q has no output %q", src.Kind, src.ID, from.Port)
			continue
		}
		in, ok := dst.Input(to.Port)
		if !ok && registry.EnsureInput(dst, to.Port) {
			in, ok = dst.Input(to.Port)
		}
		if !ok {
			add(ErrUnknownPort, field+".to", cs.Pos, "%s node %q has no input %q", dst.Kind, dst.ID, to.Port)
			continue
		}
		if !out.Socket.Compatible(in.Socket) {
			add(ErrSocketMismatch, field, cs.Pos, "cannot connect %s output %s to %s input %s",
				out.Socket, from, in.Socket, to)
			continue
		}
		if prev, taken := g.Incoming(to); taken {
			add(ErrInputOccupied, field+".to", cs.Pos, "input %s is already fed by %s", to, prev.From)
			continue
		}
		g.Connections = append(g.Connections, ir.Connection{From: from, To: to})
	}

	for _, c := range FindCycles(g) {
		add(ErrCycle, "connections", Position{}, "%s", c.Message)
	}

	if spec.Root != "" {
		if g.Node(spec.Root) == nil {
			add(ErrUndeclaredRoot, "root", Position{}, "root node %q is not declared", spec.Root)
		} else {
			g.Root = spec.Root
		}
	}
	if len(g.Nodes) > 0 && len(g.Terminals()) == 0 {
		add(ErrNoTerminal, "nodes", Position{}, "no node produces a policy expression")
	}

	return errs
}
