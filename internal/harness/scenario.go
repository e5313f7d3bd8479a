package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/policygraph/internal/compiler"
	"github.com/roach88/policygraph/internal/editor"
	"github.com/roach88/policygraph/internal/ir"
)

// Scenario is a scripted sequence of graph edits with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Graph is an inline starting graph.
	Graph *GraphDef `yaml:"graph,omitempty"`

	// GraphFile is a CUE or HCL graph definition, relative to the
	// scenario file.
	GraphFile string `yaml:"graph_file,omitempty"`

	// Demo starts from the demo graph.
	Demo bool `yaml:"demo,omitempty"`

	// MaxThreshold overrides the registry's operand cap when positive.
	MaxThreshold int `yaml:"max_threshold,omitempty"`

	// Steps are the edits, applied in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`

	// PassToken prefixes the deterministic pass tokens.
	// Defaults to "test-pass".
	PassToken string `yaml:"pass_token,omitempty"`
}

// GraphDef is an inline graph definition.
type GraphDef struct {
	Name        string    `yaml:"name,omitempty"`
	Root        string    `yaml:"root,omitempty"`
	Nodes       []NodeDef `yaml:"nodes"`
	Connections []ConnDef `yaml:"connections,omitempty"`
}

// NodeDef declares one node of an inline graph.
type NodeDef struct {
	ID   string         `yaml:"id"`
	Kind string         `yaml:"kind"`
	Data map[string]any `yaml:"data,omitempty"`
}

// ConnDef declares one connection as node.port references.
type ConnDef struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Step is one edit. Exactly one of the edit fields is set.
type Step struct {
	AddNode    *NodeDef     `yaml:"add_node,omitempty"`
	RemoveNode string       `yaml:"remove_node,omitempty"`
	Connect    *ConnDef     `yaml:"connect,omitempty"`
	Disconnect string       `yaml:"disconnect,omitempty"`
	SetData    *SetDataStep `yaml:"set_data,omitempty"`

	// Expect is checked right after the step.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// SetDataStep edits one control value.
type SetDataStep struct {
	Node  string `yaml:"node"`
	Key   string `yaml:"key"`
	Value any    `yaml:"value"`
}

// Step operation names, as they appear in YAML and traces.
const (
	OpLoad       = "load"
	OpAddNode    = "add_node"
	OpRemoveNode = "remove_node"
	OpConnect    = "connect"
	OpDisconnect = "disconnect"
	OpSetData    = "set_data"
)

// Op returns the name of the edit the step performs, or "" when none or
// several are set.
func (s Step) Op() string {
	var ops []string
	if s.AddNode != nil {
		ops = append(ops, OpAddNode)
	}
	if s.RemoveNode != "" {
		ops = append(ops, OpRemoveNode)
	}
	if s.Connect != nil {
		ops = append(ops, OpConnect)
	}
	if s.Disconnect != "" {
		ops = append(ops, OpDisconnect)
	}
	if s.SetData != nil {
		ops = append(ops, OpSetData)
	}
	if len(ops) != 1 {
		return ""
	}
	return ops[0]
}

// ExpectClause specifies the outcome of one step.
type ExpectClause struct {
	// Error is the expected edit error code, e.g. SOCKET_MISMATCH.
	Error string `yaml:"error,omitempty"`

	// Expressions are expected terminal expressions by node (subset match).
	Expressions map[string]string `yaml:"expressions,omitempty"`

	// Ports are expected input port names by node.
	Ports map[string][]string `yaml:"ports,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Node is the node id (expression, ports, stored_output).
	Node string `yaml:"node,omitempty"`

	// Port is the output port (stored_output).
	Port string `yaml:"port,omitempty"`

	// Equals is the expected rendered value (expression, stored_output).
	Equals string `yaml:"equals,omitempty"`

	// Ports is the expected input port list (ports).
	Ports []string `yaml:"ports,omitempty"`

	// Count is the expected number of stored passes (pass_count).
	Count int `yaml:"count,omitempty"`

	// Contains is a substring of some warning (warning).
	Contains string `yaml:"contains,omitempty"`
}

// Assertion type constants.
const (
	AssertExpression   = "expression"
	AssertPorts        = "ports"
	AssertPassCount    = "pass_count"
	AssertStoredOutput = "stored_output"
	AssertWarning      = "warning"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// graph_file is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.GraphFile != "" && !filepath.IsAbs(scenario.GraphFile) {
		scenario.GraphFile = filepath.Join(filepath.Dir(path), scenario.GraphFile)
	}
	if scenario.GraphFile != "" {
		if _, err := os.Stat(scenario.GraphFile); err != nil {
			return nil, fmt.Errorf("invalid scenario: graph file: %w", err)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	sources := 0
	for _, set := range []bool{s.Graph != nil, s.GraphFile != "", s.Demo} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return fmt.Errorf("graph, graph_file and demo are mutually exclusive")
	}
	if s.MaxThreshold < 0 {
		return fmt.Errorf("max_threshold must be non-negative")
	}

	if len(s.Steps) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("steps or assertions are required")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Op() {
	case "":
		return fmt.Errorf("exactly one of add_node, remove_node, connect, disconnect, set_data is required")
	case OpAddNode:
		if step.AddNode.Kind == "" {
			return fmt.Errorf("add_node: kind is required")
		}
	case OpConnect:
		if _, err := compiler.ParsePortRef(step.Connect.From); err != nil {
			return fmt.Errorf("connect.from: %w", err)
		}
		if _, err := compiler.ParsePortRef(step.Connect.To); err != nil {
			return fmt.Errorf("connect.to: %w", err)
		}
	case OpDisconnect:
		if _, err := compiler.ParsePortRef(step.Disconnect); err != nil {
			return fmt.Errorf("disconnect: %w", err)
		}
	case OpSetData:
		if step.SetData.Node == "" || step.SetData.Key == "" {
			return fmt.Errorf("set_data: node and key are required")
		}
		if _, err := ir.FromGo(step.SetData.Value); err != nil {
			return fmt.Errorf("set_data.value: %w", err)
		}
	}

	if step.Expect != nil && step.Expect.Error != "" {
		if len(step.Expect.Expressions) > 0 || len(step.Expect.Ports) > 0 {
			return fmt.Errorf("expect: error excludes expressions and ports")
		}
		if !knownEditCode(step.Expect.Error) {
			return fmt.Errorf("expect: unknown error code %q", step.Expect.Error)
		}
	}
	return nil
}

func knownEditCode(code string) bool {
	switch editor.EditErrorCode(code) {
	case editor.ErrCodeUnknownNode, editor.ErrCodeUnknownPort, editor.ErrCodeUnknownKind,
		editor.ErrCodeUnknownControl, editor.ErrCodeReadOnly, editor.ErrCodeDuplicateNode,
		editor.ErrCodeSocketMismatch, editor.ErrCodeInputOccupied, editor.ErrCodeCycle,
		editor.ErrCodeNotConnected, editor.ErrCodeInvalidValue:
		return true
	}
	return false
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertExpression:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for expression", index)
		}
	case AssertPorts:
		if a.Node == "" || len(a.Ports) == 0 {
			return fmt.Errorf("assertions[%d]: node and ports are required for ports", index)
		}
	case AssertPassCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for pass_count", index)
		}
	case AssertStoredOutput:
		if a.Node == "" || a.Port == "" {
			return fmt.Errorf("assertions[%d]: node and port are required for stored_output", index)
		}
	case AssertWarning:
		if a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for warning", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// graphSpec converts an inline definition into a compiler spec.
func (d *GraphDef) graphSpec() (compiler.GraphSpec, error) {
	spec := compiler.GraphSpec{Name: d.Name, Root: d.Root}
	for _, n := range d.Nodes {
		data, err := convertData(n.Data)
		if err != nil {
			return compiler.GraphSpec{}, fmt.Errorf("node %s: %w", n.ID, err)
		}
		spec.Nodes = append(spec.Nodes, compiler.NodeSpec{ID: n.ID, Kind: ir.NodeKind(n.Kind), Data: data})
	}
	for _, c := range d.Connections {
		spec.Connections = append(spec.Connections, compiler.ConnectionSpec{From: c.From, To: c.To})
	}
	return spec, nil
}

// convertData converts YAML-decoded values into node data.
func convertData(raw map[string]any) (ir.Data, error) {
	data := ir.Data{}
	for key, val := range raw {
		v, err := ir.FromGo(val)
		if err != nil {
			return nil, fmt.Errorf("data %q: %w", key, err)
		}
		data[key] = v
	}
	return data, nil
}
