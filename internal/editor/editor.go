package editor

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/policygraph/internal/ir"
	"github.com/roach88/policygraph/internal/nodes"
)

// Editor owns a live graph. All methods are safe for concurrent use.
type Editor struct {
	mu       sync.Mutex
	graph    *ir.Graph
	registry *nodes.Registry
	logger   *slog.Logger

	subs    []subscriber
	nextSub int
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the editor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = l
	}
}

// New returns an editor over g. The editor takes ownership of g; pass a
// Clone if the caller keeps using it. A nil g starts an empty graph.
func New(registry *nodes.Registry, g *ir.Graph, opts ...Option) *Editor {
	if g == nil {
		g = &ir.Graph{}
	}
	if g.Nodes == nil {
		g.Nodes = []*ir.Node{}
	}
	if g.Connections == nil {
		g.Connections = []ir.Connection{}
	}
	e := &Editor{
		graph:    g,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the node registry the editor builds nodes with.
func (e *Editor) Registry() *nodes.Registry {
	return e.registry
}

// NewNodeID returns a fresh, time-ordered node id.
func NewNodeID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Snapshot returns a deep copy of the live graph.
func (e *Editor) Snapshot() *ir.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Clone()
}

// Node returns a copy of one node, or nil.
func (e *Editor) Node(id string) *ir.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.graph.Node(id)
	if n == nil {
		return nil
	}
	return n.Clone()
}

// AddNode creates a node of the given kind. An empty id gets a generated
// one. data seeds the node's stored control values and may be nil.
func (e *Editor) AddNode(kind ir.NodeKind, id string, data ir.Data) (string, error) {
	if id == "" {
		id = NewNodeID()
	}
	node, err := e.registry.NewNode(kind, id, data)
	if err != nil {
		return "", editErr(ErrCodeUnknownKind, id, "%v", err)
	}

	e.mu.Lock()
	if e.graph.Node(id) != nil {
		e.mu.Unlock()
		return "", editErr(ErrCodeDuplicateNode, id, "node already exists")
	}
	e.graph.Nodes = append(e.graph.Nodes, node)
	e.mu.Unlock()

	e.logger.Debug("node created", "node", id, "kind", kind)
	e.publish(Event{Type: EventNodeCreated, Node: id})
	return id, nil
}

// RemoveNode deletes a node and every connection touching it. One
// connectionremoved event is published per severed connection, followed by
// noderemoved.
func (e *Editor) RemoveNode(id string) error {
	e.mu.Lock()
	idx := -1
	for i, n := range e.graph.Nodes {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return editErr(ErrCodeUnknownNode, id, "no such node")
	}

	var events []Event
	kept := e.graph.Connections[:0:0]
	for _, c := range e.graph.Connections {
		if c.From.Node == id || c.To.Node == id {
			severed := c
			events = append(events, Event{Type: EventConnectionRemoved, Connection: &severed})
			continue
		}
		kept = append(kept, c)
	}
	e.graph.Connections = kept
	e.graph.Nodes = append(e.graph.Nodes[:idx:idx], e.graph.Nodes[idx+1:]...)
	if e.graph.Root == id {
		e.graph.Root = ""
	}
	e.mu.Unlock()

	e.logger.Debug("node removed", "node", id, "severed", len(events))
	e.publish(append(events, Event{Type: EventNodeRemoved, Node: id})...)
	return nil
}

// Connect links an output to an input.
//
// The input port is created on demand for kinds with dynamic inputs. The
// edit is rejected when either end is unknown, the sockets are incompatible,
// the input already has a connection, or the link would close a cycle.
func (e *Editor) Connect(from, to ir.PortRef) error {
	e.mu.Lock()
	conn, err := e.connectLocked(from, to)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.logger.Debug("connection created", "from", from.String(), "to", to.String())
	e.publish(Event{Type: EventConnectionCreated, Connection: &conn})
	return nil
}

func (e *Editor) connectLocked(from, to ir.PortRef) (ir.Connection, error) {
	src := e.graph.Node(from.Node)
	if src == nil {
		return ir.Connection{}, editErr(ErrCodeUnknownNode, from.Node, "no such source node")
	}
	dst := e.graph.Node(to.Node)
	if dst == nil {
		return ir.Connection{}, editErr(ErrCodeUnknownNode, to.Node, "no such target node")
	}
	out, ok := src.Output(from.Port)
	if !ok {
		return ir.Connection{}, editErr(ErrCodeUnknownPort, from.Node, "no output %q", from.Port)
	}
	if _, occupied := e.graph.Incoming(to); occupied {
		return ir.Connection{}, editErr(ErrCodeInputOccupied, to.Node, "input %q already connected", to.Port)
	}
	if reaches(e.graph, to.Node, from.Node) {
		return ir.Connection{}, editErr(ErrCodeCycle, to.Node, "connecting %s to %s would close a cycle", from, to)
	}

	in, ok := dst.Input(to.Port)
	if !ok {
		// Dynamic ports are only created once the edit is known to succeed.
		probe := dst.Clone()
		if !e.registry.EnsureInput(probe, to.Port) {
			return ir.Connection{}, editErr(ErrCodeUnknownPort, to.Node, "no input %q", to.Port)
		}
		in, _ = probe.Input(to.Port)
		if !out.Socket.Compatible(in.Socket) {
			return ir.Connection{}, editErr(ErrCodeSocketMismatch, to.Node,
				"cannot connect %s socket to %s socket", out.Socket, in.Socket)
		}
		*dst = *probe
	} else if !out.Socket.Compatible(in.Socket) {
		return ir.Connection{}, editErr(ErrCodeSocketMismatch, to.Node,
			"cannot connect %s socket to %s socket", out.Socket, in.Socket)
	}

	conn := ir.Connection{From: from, To: to}
	e.graph.Connections = append(e.graph.Connections, conn)
	return conn, nil
}

// reaches reports whether target is reachable from start along connections.
// A node always reaches itself.
func reaches(g *ir.Graph, start, target string) bool {
	seen := map[string]bool{}
	stack := []string{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == target {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, c := range g.Connections {
			if c.From.Node == id {
				stack = append(stack, c.To.Node)
			}
		}
	}
	return false
}

// Disconnect removes the connection feeding the given input.
func (e *Editor) Disconnect(to ir.PortRef) error {
	e.mu.Lock()
	conn, ok := e.graph.Incoming(to)
	if !ok {
		e.mu.Unlock()
		return editErr(ErrCodeNotConnected, to.Node, "input %q has no connection", to.Port)
	}
	e.graph.Connections = removeConnection(e.graph.Connections, to)
	e.mu.Unlock()

	e.logger.Debug("connection removed", "from", conn.From.String(), "to", to.String())
	e.publish(Event{Type: EventConnectionRemoved, Connection: &conn})
	return nil
}

func removeConnection(conns []ir.Connection, to ir.PortRef) []ir.Connection {
	kept := conns[:0:0]
	for _, c := range conns {
		if c.To != to {
			kept = append(kept, c)
		}
	}
	return kept
}

// SetData writes a control value the way a user edit does: the node's
// stored data and the control's display both change, and a process event
// follows. Read-only controls refuse edits.
func (e *Editor) SetData(nodeID, key string, v ir.Value) error {
	if v == nil {
		v = ir.Null{}
	}

	e.mu.Lock()
	node := e.graph.Node(nodeID)
	if node == nil {
		e.mu.Unlock()
		return editErr(ErrCodeUnknownNode, nodeID, "no such node")
	}
	ctrl := node.Control(key)
	if ctrl == nil {
		e.mu.Unlock()
		return editErr(ErrCodeUnknownControl, nodeID, "no control %q", key)
	}
	if ctrl.ReadOnly {
		e.mu.Unlock()
		return editErr(ErrCodeReadOnly, nodeID, "control %q is read-only", key)
	}
	if err := checkControlValue(ctrl.Type, v); err != nil {
		e.mu.Unlock()
		return editErr(ErrCodeInvalidValue, nodeID, "control %q: %v", key, err)
	}
	if node.Data == nil {
		node.Data = ir.Data{}
	}
	node.Data[key] = v
	ctrl.Value = v
	e.mu.Unlock()

	e.logger.Debug("control edited", "node", nodeID, "key", key, "value", ir.FormatValue(v))
	e.publish(Event{Type: EventProcess, Node: nodeID})
	return nil
}
