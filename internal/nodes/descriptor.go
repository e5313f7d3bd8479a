package nodes

import (
	"fmt"

	"github.com/roach88/policygraph/internal/ir"
)

// Inputs holds the upstream values delivered to one worker call, keyed by
// input port name. A port is present only when it is connected.
type Inputs map[string]ir.Value

// Result is what a worker produces for one pass.
type Result struct {
	Outputs   map[string]ir.Value
	Mutations []Mutation
	Warnings  []string
}

// Mutation is a side effect requested by a worker. Sealed.
type Mutation interface {
	mutation()
}

// SetControl writes a control's display value.
type SetControl struct {
	Node  string
	Key   string
	Value ir.Value
}

// AddInput creates an input port (and its fallback control).
type AddInput struct {
	Node  string
	Input ir.Input
}

// RemoveInput deletes an input port. The host severs its connection.
type RemoveInput struct {
	Node string
	Name string
}

func (SetControl) mutation()  {}
func (AddInput) mutation()    {}
func (RemoveInput) mutation() {}

// Descriptor is the builder/worker pair for one node kind.
type Descriptor interface {
	Kind() ir.NodeKind
	// Build declares the initial ports and controls of a fresh node.
	Build(node *ir.Node)
	// Work computes outputs from the node snapshot and connected inputs.
	Work(node *ir.Node, in Inputs) Result
}

// InputProvider is implemented by kinds whose input set is not fixed.
// EnsureInput creates the named input if the kind accepts it.
type InputProvider interface {
	EnsureInput(node *ir.Node, name string) bool
}

// DefaultMaxThreshold caps the threshold parameter unless configured.
const DefaultMaxThreshold = 64

// Registry maps each kind to its descriptor. The set is closed.
type Registry struct {
	byKind       map[ir.NodeKind]Descriptor
	maxThreshold int
}

// Option configures a Registry.
type Option func(*registryConfig)

type registryConfig struct {
	maxThreshold int
}

// WithMaxThreshold sets the largest k a threshold node will honor.
// Larger values are clamped. Values below 1 are ignored.
func WithMaxThreshold(max int) Option {
	return func(c *registryConfig) {
		if max >= 1 {
			c.maxThreshold = max
		}
	}
}

// NewRegistry returns a registry holding all seven kinds.
func NewRegistry(opts ...Option) *Registry {
	cfg := registryConfig{maxThreshold: DefaultMaxThreshold}
	for _, opt := range opts {
		opt(&cfg)
	}

	descriptors := []Descriptor{
		numberNode{},
		combinatorNode{kind: ir.KindAnd},
		timelockNode{kind: ir.KindAfter},
		timelockNode{kind: ir.KindOlder},
		thresholdNode{max: int64(cfg.maxThreshold)},
		keyNode{},
		combinatorNode{kind: ir.KindOr},
	}

	r := &Registry{
		byKind:       make(map[ir.NodeKind]Descriptor, len(descriptors)),
		maxThreshold: cfg.maxThreshold,
	}
	for _, d := range descriptors {
		r.byKind[d.Kind()] = d
	}
	return r
}

// Lookup returns the descriptor for kind.
func (r *Registry) Lookup(kind ir.NodeKind) (Descriptor, bool) {
	d, ok := r.byKind[kind]
	return d, ok
}

// MaxThreshold is the largest k threshold nodes honor.
func (r *Registry) MaxThreshold() int {
	return r.maxThreshold
}

// NewNode creates a node of the given kind and runs its builder.
// data seeds the stored control values and may be nil.
func (r *Registry) NewNode(kind ir.NodeKind, id string, data ir.Data) (*ir.Node, error) {
	d, ok := r.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
	node := &ir.Node{
		ID:       id,
		Kind:     kind,
		Inputs:   []ir.Input{},
		Outputs:  []ir.Output{},
		Controls: []ir.Control{},
		Data:     data.Clone(),
	}
	d.Build(node)
	return node, nil
}

// EnsureInput makes sure node has the named input, creating it when the
// node's kind accepts dynamic inputs. Returns false if the port does not
// exist and cannot be created.
func (r *Registry) EnsureInput(node *ir.Node, name string) bool {
	if _, ok := node.Input(name); ok {
		return true
	}
	d, ok := r.Lookup(node.Kind)
	if !ok {
		return false
	}
	p, ok := d.(InputProvider)
	if !ok {
		return false
	}
	return p.EnsureInput(node, name)
}

// addControl appends a standalone control bound to key.
func addControl(node *ir.Node, key string, typ ir.ControlType, readOnly bool) {
	if node.Control(key) != nil {
		return
	}
	node.Controls = append(node.Controls, ir.Control{
		Key:      key,
		Type:     typ,
		ReadOnly: readOnly,
		Value:    node.Data.Get(key),
	})
}

// addPreview appends the read-only control mirroring a node's expression.
func addPreview(node *ir.Node) {
	node.Controls = append(node.Controls, ir.Control{
		Key:      PreviewKey,
		Type:     ir.ControlText,
		ReadOnly: true,
		Value:    ir.Null{},
	})
}

// PreviewKey is the key of the read-only expression preview control.
const PreviewKey = "preview"

// previewed returns a result with out on port and the preview write.
func previewed(node *ir.Node, port, expr string) Result {
	return Result{
		Outputs: map[string]ir.Value{port: ir.String(expr)},
		Mutations: []Mutation{
			SetControl{Node: node.ID, Key: PreviewKey, Value: ir.String(expr)},
		},
	}
}
