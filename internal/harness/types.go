package harness

// TraceEvent records one scenario step and the pass it triggered.
// Step 0 is the settle pass over the starting graph.
type TraceEvent struct {
	Step        int                 `json:"step"`
	Op          string              `json:"op"`
	Error       string              `json:"error,omitempty"`
	Seq         int64               `json:"seq,omitempty"`
	Token       string              `json:"token,omitempty"`
	Expressions map[string]string   `json:"expressions,omitempty"`
	Ports       map[string][]string `json:"ports,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace lists the steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Expressions are the terminal expressions after the last step.
	Expressions map[string]string `json:"expressions,omitempty"`

	// Ports maps every node to its input port names after the last step.
	Ports map[string][]string `json:"ports,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Trace:       []TraceEvent{},
		Errors:      []string{},
		Expressions: map[string]string{},
		Ports:       map[string][]string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
