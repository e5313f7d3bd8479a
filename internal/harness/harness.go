package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/policygraph/internal/compiler"
	"github.com/roach88/policygraph/internal/editor"
	"github.com/roach88/policygraph/internal/engine"
	"github.com/roach88/policygraph/internal/ir"
	"github.com/roach88/policygraph/internal/nodes"
	"github.com/roach88/policygraph/internal/store"
	"github.com/roach88/policygraph/internal/testutil"
)

// Harness drives one scenario: a live editor, an engine settling the graph
// after each edit, and a store recording every pass.
type Harness struct {
	editor *editor.Editor
	engine *engine.Engine
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// A non-nil error means the scenario could not run at all; failed
// expectations are reported in the result instead.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	var opts []nodes.Option
	if scenario.MaxThreshold > 0 {
		opts = append(opts, nodes.WithMaxThreshold(scenario.MaxThreshold))
	}
	registry := nodes.NewRegistry(opts...)

	g, err := startingGraph(scenario, registry)
	if err != nil {
		return nil, fmt.Errorf("failed to build starting graph: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	clock := testutil.NewDeterministicClock()
	tokens := testutil.NewSequentialTokens(scenario.PassToken)
	ed := editor.New(registry, g, editor.WithLogger(logger))

	h := &Harness{
		editor: ed,
		logger: logger,
		engine: engine.New(ed, registry,
			engine.WithStore(st),
			engine.WithClock(clock),
			engine.WithTokens(tokens),
			engine.WithLogger(logger),
		),
	}

	ctx := context.Background()
	result := NewResult()

	if err := h.settle(ctx, TraceEvent{Step: 0, Op: OpLoad}, nil, result); err != nil {
		return nil, err
	}
	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i+1, step, result); err != nil {
			return nil, err
		}
	}

	h.collectFinal(result)

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func startingGraph(scenario *Scenario, registry *nodes.Registry) (*ir.Graph, error) {
	switch {
	case scenario.Demo:
		return editor.DemoGraph(registry), nil
	case scenario.GraphFile != "":
		spec, err := compiler.LoadPath(scenario.GraphFile)
		if err != nil {
			return nil, err
		}
		return compiler.Build(spec, registry)
	case scenario.Graph != nil:
		spec, err := scenario.Graph.graphSpec()
		if err != nil {
			return nil, err
		}
		return compiler.Build(spec, registry)
	default:
		return &ir.Graph{Name: scenario.Name}, nil
	}
}

// runStep applies one edit. A rejected edit is traced with its code and
// does not run a pass.
func (h *Harness) runStep(ctx context.Context, index int, step Step, result *Result) error {
	op := step.Op()
	err := h.apply(step)

	if err != nil {
		code := editor.ErrorCode(err)
		if code == "" {
			return fmt.Errorf("step %d (%s): %w", index, op, err)
		}
		result.AddTrace(TraceEvent{Step: index, Op: op, Error: string(code)})

		switch {
		case step.Expect == nil || step.Expect.Error == "":
			result.AddError(fmt.Sprintf("step %d (%s): unexpected edit error: %v", index, op, err))
		case step.Expect.Error != string(code):
			result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %s", index, op, step.Expect.Error, code))
		}
		h.logger.Info("step rejected", "step", index, "op", op, "code", code)
		return nil
	}

	if step.Expect != nil && step.Expect.Error != "" {
		result.AddError(fmt.Sprintf("step %d (%s): expected error %s, edit succeeded", index, op, step.Expect.Error))
	}
	return h.settle(ctx, TraceEvent{Step: index, Op: op}, step.Expect, result)
}

func (h *Harness) apply(step Step) error {
	switch step.Op() {
	case OpAddNode:
		data, err := convertData(step.AddNode.Data)
		if err != nil {
			return err
		}
		_, err = h.editor.AddNode(ir.NodeKind(step.AddNode.Kind), step.AddNode.ID, data)
		return err
	case OpRemoveNode:
		return h.editor.RemoveNode(step.RemoveNode)
	case OpConnect:
		from, err := compiler.ParsePortRef(step.Connect.From)
		if err != nil {
			return err
		}
		to, err := compiler.ParsePortRef(step.Connect.To)
		if err != nil {
			return err
		}
		return h.editor.Connect(from, to)
	case OpDisconnect:
		to, err := compiler.ParsePortRef(step.Disconnect)
		if err != nil {
			return err
		}
		return h.editor.Disconnect(to)
	case OpSetData:
		v, err := ir.FromGo(step.SetData.Value)
		if err != nil {
			return err
		}
		return h.editor.SetData(step.SetData.Node, step.SetData.Key, v)
	default:
		return fmt.Errorf("step has no edit")
	}
}

// settle runs passes until the graph's ports stop changing, traces the
// final pass and checks expect against it.
func (h *Harness) settle(ctx context.Context, ev TraceEvent, expect *ExpectClause, result *Result) error {
	p, err := h.engine.Settle(ctx)
	if err != nil {
		return fmt.Errorf("step %d (%s): settle: %w", ev.Step, ev.Op, err)
	}

	ev.Seq = p.Seq
	ev.Token = p.Token
	ev.Expressions = p.Expressions()
	ev.Warnings = p.Warnings
	ev.Ports = h.dynamicPorts()
	result.AddTrace(ev)

	h.logger.Info("step settled",
		"step", ev.Step,
		"op", ev.Op,
		"seq", p.Seq,
		"pass_id", p.ID,
	)

	if expect == nil {
		return nil
	}
	for node, want := range expect.Expressions {
		got, ok := ev.Expressions[node]
		if !ok {
			result.AddError(fmt.Sprintf("step %d (%s): node %s produced no expression (want %q)", ev.Step, ev.Op, node, want))
			continue
		}
		if got != want {
			result.AddError(fmt.Sprintf("step %d (%s): node %s: expected %q, got %q", ev.Step, ev.Op, node, want, got))
		}
	}
	for node, want := range expect.Ports {
		got := h.inputNames(node)
		if !slices.Equal(got, want) {
			result.AddError(fmt.Sprintf("step %d (%s): node %s ports: expected %v, got %v", ev.Step, ev.Op, node, want, got))
		}
	}
	return nil
}

// dynamicPorts returns the input names of every node whose kind grows
// ports on demand.
func (h *Harness) dynamicPorts() map[string][]string {
	out := map[string][]string{}
	for _, n := range h.editor.Snapshot().Nodes {
		if n.Kind == ir.KindThreshold {
			out[n.ID] = inputNames(n)
		}
	}
	return out
}

func (h *Harness) inputNames(id string) []string {
	n := h.editor.Node(id)
	if n == nil {
		return nil
	}
	return inputNames(n)
}

func (h *Harness) collectFinal(result *Result) {
	if p := h.engine.LastPass(); p != nil {
		result.Expressions = p.Expressions()
	}
	for _, n := range h.editor.Snapshot().Nodes {
		result.Ports[n.ID] = inputNames(n)
	}
}

func inputNames(n *ir.Node) []string {
	names := make([]string, len(n.Inputs))
	for i, in := range n.Inputs {
		names[i] = in.Name
	}
	return names
}
