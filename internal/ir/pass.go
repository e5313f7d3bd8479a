package ir

// PassStatus records how an evaluation pass ended.
type PassStatus string

const (
	PassCompleted PassStatus = "completed"
	PassAborted   PassStatus = "aborted"
)

// PortValue is one output produced during a pass.
type PortValue struct {
	Node     string `json:"node"`
	Port     string `json:"port"`
	Value    Value  `json:"value"`
	Terminal bool   `json:"terminal,omitempty"`
}

// Pass is the record of one evaluation pass over a graph snapshot.
//
// Outputs are listed in evaluation order. For an aborted pass they hold
// whatever was computed before the abort and are not a usable artifact.
type Pass struct {
	ID            string      `json:"id"`
	Token         string      `json:"token"`
	Seq           int64       `json:"seq"`
	SnapshotHash  string      `json:"snapshot_hash"`
	Status        PassStatus  `json:"status"`
	Outputs       []PortValue `json:"outputs"`
	Warnings      []string    `json:"warnings,omitempty"`
	EngineVersion string      `json:"engine_version"`
}

// Expressions returns the terminal policy expressions keyed by node id.
func (p *Pass) Expressions() map[string]string {
	out := make(map[string]string)
	for _, pv := range p.Outputs {
		if !pv.Terminal {
			continue
		}
		if s, ok := AsString(pv.Value); ok {
			out[pv.Node] = s
		}
	}
	return out
}

// Output returns the value a node produced on port during the pass.
func (p *Pass) Output(node, port string) (Value, bool) {
	for _, pv := range p.Outputs {
		if pv.Node == node && pv.Port == port {
			return pv.Value, true
		}
	}
	return nil, false
}
