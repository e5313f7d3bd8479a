package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/policygraph/internal/editor"
	"github.com/roach88/policygraph/internal/ir"
	"github.com/roach88/policygraph/internal/nodes"
	"github.com/roach88/policygraph/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T, g *ir.Graph, opts ...Option) (*editor.Editor, *Engine) {
	t.Helper()
	reg := nodes.NewRegistry()
	ed := editor.New(reg, g, editor.WithLogger(quietLogger()))
	opts = append([]Option{WithTokens(NewFixedGenerator("pass")), WithLogger(quietLogger())}, opts...)
	return ed, New(ed, reg, opts...)
}

func mustAdd(t *testing.T, ed *editor.Editor, kind ir.NodeKind, id string, data ir.Data) {
	t.Helper()
	_, err := ed.AddNode(kind, id, data)
	require.NoError(t, err)
}

func mustConnect(t *testing.T, ed *editor.Editor, from, fromPort, to, toPort string) {
	t.Helper()
	require.NoError(t, ed.Connect(ir.PortRef{Node: from, Port: fromPort}, ir.PortRef{Node: to, Port: toPort}))
}

func operandPorts(n *ir.Node) []string {
	var names []string
	for _, in := range n.Inputs {
		names = append(names, in.Name)
	}
	return names
}

func TestProcess_NumberIntoAfter(t *testing.T) {
	ed, eng := setup(t, nil)
	mustAdd(t, ed, ir.KindNumber, "n", ir.Data{"num": ir.Int(15)})
	mustAdd(t, ed, ir.KindAfter, "a", nil)
	mustConnect(t, ed, "n", "num", "a", "num")

	p, err := eng.Recompute(context.Background())
	require.NoError(t, err)

	v, ok := p.Output("n", "num")
	require.True(t, ok)
	assert.Equal(t, ir.Int(15), v)
	assert.Equal(t, map[string]string{"a": "after(15)"}, p.Expressions())
	assert.Equal(t, ir.String("after(15)"), ed.Node("a").Control(nodes.PreviewKey).Value)
}

func TestSettle_ThresholdOverTimelocks(t *testing.T) {
	ed, eng := setup(t, nil)
	mustAdd(t, ed, ir.KindAfter, "after", ir.Data{"num": ir.Int(15)})
	mustAdd(t, ed, ir.KindOlder, "older", ir.Data{"num": ir.Int(25)})
	mustAdd(t, ed, ir.KindThreshold, "thresh", ir.Data{"num": ir.Int(2)})
	mustConnect(t, ed, "after", "pol", "thresh", "pol1")
	mustConnect(t, ed, "older", "pol", "thresh", "pol2")

	p, err := eng.Settle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"thresh": "thresh(2,after(15),older(25))"}, p.Expressions())
	assert.Equal(t, []string{"num", "pol1", "pol2", "pol3"}, operandPorts(ed.Node("thresh")))
	assert.Equal(t, int64(2), eng.Clock().Current(), "one reconciling pass, one quiet pass")

	again, err := eng.Recompute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, p.Outputs, again.Outputs)
	assert.Equal(t, p.SnapshotHash, again.SnapshotHash)
}

func TestSettle_DemoGraph(t *testing.T) {
	reg := nodes.NewRegistry()
	ed, eng := setup(t, editor.DemoGraph(reg))

	p, err := eng.Settle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"older":  "older(25)",
		"thresh": "thresh(2,after(15))",
	}, p.Expressions())
	assert.Equal(t, []string{"num", "pol1", "pol2", "pol3"}, operandPorts(ed.Node("thresh")))
}

func TestSettle_ShrinksUnusedOperands(t *testing.T) {
	ed, eng := setup(t, nil)
	mustAdd(t, ed, ir.KindKey, "k", ir.Data{"key": ir.String("A")})
	mustAdd(t, ed, ir.KindThreshold, "th", ir.Data{"num": ir.Int(1)})
	mustConnect(t, ed, "k", "key", "th", "pol4")
	require.NoError(t, ed.Disconnect(ir.PortRef{Node: "th", Port: "pol4"}))

	_, err := eng.Settle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"num", "pol1", "pol2"}, operandPorts(ed.Node("th")))
}

func TestProcess_DeterministicWithoutHost(t *testing.T) {
	reg := nodes.NewRegistry()
	snap := editor.DemoGraph(reg)
	eng := New(nil, reg, WithTokens(NewFixedGenerator("p")), WithLogger(quietLogger()))

	first, err := eng.Process(context.Background(), snap)
	require.NoError(t, err)
	second, err := eng.Process(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, first.Outputs, second.Outputs)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, []string{"num", "pol1"}, operandPorts(snap.Node("thresh")), "snapshot untouched")
}

func TestProcess_PassAbortedByContext(t *testing.T) {
	_, eng := setup(t, editor.DemoGraph(nodes.NewRegistry()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := eng.Recompute(ctx)

	require.Error(t, err)
	assert.True(t, IsAborted(err))
	assert.ErrorIs(t, err, ErrPassAborted)
	assert.Equal(t, ir.PassAborted, p.Status)
	assert.Empty(t, p.Outputs)
	assert.Nil(t, eng.LastPass())
}

func TestProcess_PassAbortedByNewerEvent(t *testing.T) {
	_, eng := setup(t, editor.DemoGraph(nodes.NewRegistry()))
	eng.Enqueue(editor.Event{Type: editor.EventProcess})

	_, err := eng.Recompute(context.Background())

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodePassAborted, re.Code)
	assert.Equal(t, "newer event queued", re.Details["reason"])
}

// abortingHost requests an abort the first time mutations are applied,
// which happens right after the first worker of a pass runs.
type abortingHost struct {
	*editor.Editor
	eng  *Engine
	once sync.Once
}

func (h *abortingHost) Apply(muts []nodes.Mutation) int {
	n := h.Editor.Apply(muts)
	h.once.Do(h.eng.Abort)
	return n
}

func TestProcess_AbortKeepsAppliedMutations(t *testing.T) {
	reg := nodes.NewRegistry()
	ed := editor.New(reg, editor.DemoGraph(reg), editor.WithLogger(quietLogger()))
	host := &abortingHost{Editor: ed}
	eng := New(host, reg, WithLogger(quietLogger()))
	host.eng = eng

	p, err := eng.Recompute(context.Background())

	require.True(t, IsAborted(err))
	assert.Equal(t, ir.PassAborted, p.Status)
	assert.Equal(t, ir.String("after(15)"), ed.Node("after").Control(nodes.PreviewKey).Value)
	assert.Equal(t, ir.Null{}, ed.Node("older").Control(nodes.PreviewKey).Value)

	// The flag is cleared when the next pass starts.
	p, err = eng.Recompute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ir.PassCompleted, p.Status)
}

func TestProcess_CycleDetected(t *testing.T) {
	reg := nodes.NewRegistry()
	a, _ := reg.NewNode(ir.KindAnd, "a", nil)
	b, _ := reg.NewNode(ir.KindAnd, "b", nil)
	snap := &ir.Graph{
		Nodes: []*ir.Node{a, b},
		Connections: []ir.Connection{
			link("a", "pol", "b", "pol1"),
			link("b", "pol", "a", "pol1"),
		},
	}
	eng := New(nil, reg, WithLogger(quietLogger()))

	p, err := eng.Process(context.Background(), snap)

	assert.Nil(t, p)
	assert.True(t, IsCycleError(err))
}

func TestProcess_UnknownKind(t *testing.T) {
	snap := &ir.Graph{Nodes: []*ir.Node{{ID: "x", Kind: "xor"}}}
	eng := New(nil, nodes.NewRegistry(), WithLogger(quietLogger()))

	_, err := eng.Process(context.Background(), snap)

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeUnknownKind, re.Code)
	assert.Equal(t, "x", re.Node)
}

func TestProcess_WarningsCollected(t *testing.T) {
	ed, eng := setup(t, nil)
	mustAdd(t, ed, ir.KindThreshold, "th", ir.Data{"num": ir.Int(0)})

	p, err := eng.Recompute(context.Background())
	require.NoError(t, err)

	require.Len(t, p.Warnings, 1)
	assert.Contains(t, p.Warnings[0], "clamped to 1")
	assert.Equal(t, map[string]string{"th": "thresh(1)"}, p.Expressions())
}

func TestProcess_RootSelectsTerminal(t *testing.T) {
	reg := nodes.NewRegistry()
	g := editor.DemoGraph(reg)
	g.Root = "older"
	_, eng := setup(t, g)

	p, err := eng.Recompute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"older": "older(25)"}, p.Expressions())
}

func TestProcess_RecordsToStore(t *testing.T) {
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	var observed []*ir.Pass
	_, eng := setup(t, editor.DemoGraph(nodes.NewRegistry()),
		WithStore(s),
		WithTokens(NewFixedGenerator("first", "second")),
		WithObserver(func(p *ir.Pass) { observed = append(observed, p) }),
	)

	settled, err := eng.Settle(context.Background())
	require.NoError(t, err)

	passes, err := s.ReadPasses(context.Background())
	require.NoError(t, err)
	require.Len(t, passes, 2)
	assert.Equal(t, "first", passes[0].Token)
	assert.Equal(t, *settled, passes[1])
	assert.Len(t, observed, 2)

	snap, err := s.ReadSnapshot(context.Background(), settled.SnapshotHash)
	require.NoError(t, err)
	assert.Len(t, snap.Node("thresh").Inputs, 4)
}

func TestProcess_AbortedPassRecordFailure(t *testing.T) {
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, eng := setup(t, editor.DemoGraph(nodes.NewRegistry()), WithStore(s))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := eng.Recompute(ctx)

	require.Error(t, err)
	assert.True(t, IsAborted(err))
	assert.Contains(t, err.Error(), "record pass")
	assert.Equal(t, ir.PassAborted, p.Status)
}

func TestProcess_SpanPerPass(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	_, eng := setup(t, editor.DemoGraph(nodes.NewRegistry()), WithTracerProvider(tp))

	_, err := eng.Recompute(context.Background())
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "policygraph.pass", spans[0].Name())
	assert.Len(t, spans[0].Events(), 3)
}

func TestRun_RecomputesOnEdits(t *testing.T) {
	ed, eng := setup(t, editor.DemoGraph(nodes.NewRegistry()))
	eng.Attach(ed)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	require.NoError(t, ed.Connect(ir.PortRef{Node: "older", Port: "pol"}, ir.PortRef{Node: "thresh", Port: "pol2"}))

	assert.Eventually(t, func() bool {
		p := eng.LastPass()
		return p != nil && p.Expressions()["thresh"] == "thresh(2,after(15),older(25))"
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, ed.SetData("thresh", "num", ir.Int(1)))

	assert.Eventually(t, func() bool {
		p := eng.LastPass()
		return p != nil && p.Expressions()["thresh"] == "thresh(1,after(15),older(25))"
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRun_StopReturnsNil(t *testing.T) {
	_, eng := setup(t, nil)
	done := make(chan error, 1)
	go func() { done <- eng.Run(context.Background()) }()

	eng.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRun_RequiresHost(t *testing.T) {
	eng := New(nil, nodes.NewRegistry())
	assert.Error(t, eng.Run(context.Background()))
}
