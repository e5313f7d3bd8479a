package ir

import (
	"encoding/json"
	"fmt"
)

// NodeKind tags the closed set of node variants.
type NodeKind string

const (
	KindNumber    NodeKind = "number"
	KindKey       NodeKind = "key"
	KindAnd       NodeKind = "and"
	KindOr        NodeKind = "or"
	KindAfter     NodeKind = "after"
	KindOlder     NodeKind = "older"
	KindThreshold NodeKind = "threshold"
)

// Kinds lists every node kind in registration order.
var Kinds = []NodeKind{KindNumber, KindAnd, KindAfter, KindOlder, KindThreshold, KindKey, KindOr}

// Valid reports whether k is one of the known kinds.
func (k NodeKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Socket is the compatibility class of a port.
type Socket string

const (
	SocketNumber Socket = "number"
	SocketPolicy Socket = "policy"
	SocketKey    Socket = "key"
)

// Compatible reports whether an output socket may feed an input socket.
// Only identical sockets connect.
func (s Socket) Compatible(other Socket) bool {
	return s == other
}

// ControlType distinguishes numeric from text controls.
type ControlType string

const (
	ControlNumber ControlType = "number"
	ControlText   ControlType = "text"
)

// Input is a named input port. Control names the data key of the port's
// fallback control, empty when the port has none.
type Input struct {
	Name    string `json:"name"`
	Socket  Socket `json:"socket"`
	Control string `json:"control,omitempty"`
}

// Output is a named output port.
type Output struct {
	Name   string `json:"name"`
	Socket Socket `json:"socket"`
}

// Control is a value holder attached to a node. Bound controls mirror
// Data[Key]; read-only controls are only written programmatically.
type Control struct {
	Key      string      `json:"key"`
	Type     ControlType `json:"type"`
	ReadOnly bool        `json:"readonly,omitempty"`
	Value    Value       `json:"value"`
}

// MarshalJSON implements json.Marshaler for Control.
func (c Control) MarshalJSON() ([]byte, error) {
	type alias struct {
		Key      string          `json:"key"`
		Type     ControlType     `json:"type"`
		ReadOnly bool            `json:"readonly,omitempty"`
		Value    json.RawMessage `json:"value"`
	}
	raw, err := MarshalValue(c.Value)
	if err != nil {
		return nil, fmt.Errorf("control %q: %w", c.Key, err)
	}
	return json.Marshal(alias{Key: c.Key, Type: c.Type, ReadOnly: c.ReadOnly, Value: raw})
}

// UnmarshalJSON implements json.Unmarshaler for Control.
func (c *Control) UnmarshalJSON(data []byte) error {
	var alias struct {
		Key      string          `json:"key"`
		Type     ControlType     `json:"type"`
		ReadOnly bool            `json:"readonly"`
		Value    json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	c.Key, c.Type, c.ReadOnly = alias.Key, alias.Type, alias.ReadOnly
	c.Value = Null{}
	if len(alias.Value) > 0 {
		v, err := UnmarshalValue(alias.Value)
		if err != nil {
			return fmt.Errorf("control %q: %w", alias.Key, err)
		}
		c.Value = v
	}
	return nil
}

// Node is one vertex of the policy graph.
type Node struct {
	ID       string    `json:"id"`
	Kind     NodeKind  `json:"kind"`
	Inputs   []Input   `json:"inputs"`
	Outputs  []Output  `json:"outputs"`
	Controls []Control `json:"controls"`
	Data     Data      `json:"data"`
}

// Input returns the input port with the given name.
func (n *Node) Input(name string) (Input, bool) {
	for _, in := range n.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return Input{}, false
}

// Output returns the output port with the given name.
func (n *Node) Output(name string) (Output, bool) {
	for _, out := range n.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return Output{}, false
}

// Control returns a pointer to the control with the given key, or nil.
func (n *Node) Control(key string) *Control {
	for i := range n.Controls {
		if n.Controls[i].Key == key {
			return &n.Controls[i]
		}
	}
	return nil
}

// AddInput appends an input port. Returns false if the name is taken.
func (n *Node) AddInput(in Input) bool {
	if _, exists := n.Input(in.Name); exists {
		return false
	}
	n.Inputs = append(n.Inputs, in)
	if in.Control != "" && n.Control(in.Control) == nil {
		n.Controls = append(n.Controls, Control{
			Key:   in.Control,
			Type:  controlTypeFor(in.Socket),
			Value: n.Data.Get(in.Control),
		})
	}
	return true
}

// RemoveInput deletes an input port and its fallback control.
// Returns false if no such port exists.
func (n *Node) RemoveInput(name string) bool {
	for i, in := range n.Inputs {
		if in.Name != name {
			continue
		}
		n.Inputs = append(n.Inputs[:i:i], n.Inputs[i+1:]...)
		if in.Control != "" {
			for j := range n.Controls {
				if n.Controls[j].Key == in.Control {
					n.Controls = append(n.Controls[:j:j], n.Controls[j+1:]...)
					break
				}
			}
		}
		return true
	}
	return false
}

func controlTypeFor(s Socket) ControlType {
	if s == SocketNumber {
		return ControlNumber
	}
	return ControlText
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := &Node{
		ID:       n.ID,
		Kind:     n.Kind,
		Inputs:   append([]Input(nil), n.Inputs...),
		Outputs:  append([]Output(nil), n.Outputs...),
		Controls: append([]Control(nil), n.Controls...),
		Data:     n.Data.Clone(),
	}
	return c
}

// PortRef addresses a port on a node.
type PortRef struct {
	Node string `json:"node"`
	Port string `json:"port"`
}

// String renders the reference as "node.port".
func (p PortRef) String() string {
	return p.Node + "." + p.Port
}

// Connection joins a source output to a destination input.
type Connection struct {
	From PortRef `json:"from"`
	To   PortRef `json:"to"`
}

// Graph is the full editor state. Node order is declaration order and is
// used to break ties in evaluation order.
type Graph struct {
	Name        string       `json:"name,omitempty"`
	Root        string       `json:"root,omitempty"` // designated terminal node, optional
	Nodes       []*Node      `json:"nodes"`
	Connections []Connection `json:"connections"`
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Incoming returns the connection feeding the given input, if any.
func (g *Graph) Incoming(to PortRef) (Connection, bool) {
	for _, c := range g.Connections {
		if c.To == to {
			return c, true
		}
	}
	return Connection{}, false
}

// HasOutgoing reports whether any connection leaves the node.
func (g *Graph) HasOutgoing(nodeID string) bool {
	for _, c := range g.Connections {
		if c.From.Node == nodeID {
			return true
		}
	}
	return false
}

// Terminals returns the ids of nodes whose expression is the graph's
// visible artifact: the designated root when set, otherwise every node with
// a policy output and no outgoing connection, in declaration order.
func (g *Graph) Terminals() []string {
	if g.Root != "" {
		return []string{g.Root}
	}
	var ids []string
	for _, n := range g.Nodes {
		if g.HasOutgoing(n.ID) {
			continue
		}
		for _, out := range n.Outputs {
			if out.Socket == SocketPolicy {
				ids = append(ids, n.ID)
				break
			}
		}
	}
	return ids
}

// Clone returns a deep copy. Evaluation passes run against clones so that
// edits during a pass never leak into it.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		Name:        g.Name,
		Root:        g.Root,
		Nodes:       make([]*Node, len(g.Nodes)),
		Connections: append([]Connection(nil), g.Connections...),
	}
	for i, n := range g.Nodes {
		c.Nodes[i] = n.Clone()
	}
	return c
}
