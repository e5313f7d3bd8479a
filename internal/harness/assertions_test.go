package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/policygraph/internal/ir"
	"github.com/roach88/policygraph/internal/store"
)

func sampleResult() *Result {
	r := NewResult()
	r.Expressions = map[string]string{"t": "thresh(2,after(15),older(25))"}
	r.Ports = map[string][]string{"t": {"num", "pol1", "pol2", "pol3"}}
	r.AddTrace(TraceEvent{Step: 0, Op: OpLoad, Seq: 1, Warnings: []string{"threshold t: k=0 clamped to 1"}})
	r.AddTrace(TraceEvent{Step: 1, Op: OpConnect, Error: "CYCLE"})
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertExpression, Node: "t", Equals: "thresh(2,after(15),older(25))"},
		{Type: AssertPorts, Node: "t", Ports: []string{"num", "pol1", "pol2", "pol3"}},
		{Type: AssertWarning, Contains: "clamped to 1"},
	}, nil)
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantMsg   string
	}{
		{
			name:      "wrong expression",
			assertion: Assertion{Type: AssertExpression, Node: "t", Equals: "thresh(1)"},
			wantMsg:   `Actual: node t = "thresh(2,after(15),older(25))"`,
		},
		{
			name:      "no expression",
			assertion: Assertion{Type: AssertExpression, Node: "x", Equals: "y"},
			wantMsg:   "not terminal",
		},
		{
			name:      "wrong ports",
			assertion: Assertion{Type: AssertPorts, Node: "t", Ports: []string{"num", "pol1"}},
			wantMsg:   "Actual: ports [num pol1 pol2 pol3]",
		},
		{
			name:      "unknown node ports",
			assertion: Assertion{Type: AssertPorts, Node: "x", Ports: []string{"num"}},
			wantMsg:   "node not found",
		},
		{
			name:      "missing warning",
			assertion: Assertion{Type: AssertWarning, Contains: "clamped to 64"},
			wantMsg:   "no matching warning",
		},
		{
			name:      "store without context",
			assertion: Assertion{Type: AssertPassCount, Count: 1},
			wantMsg:   "requires database context",
		},
		{
			name:      "unknown type",
			assertion: Assertion{Type: "final_state"},
			wantMsg:   "unknown assertion type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion}, nil)
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.wantMsg)
		})
	}
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertExpression,
		Expected: "x",
		Actual:   "y",
		Trace:    sampleResult().Trace,
	}
	msg := err.Error()
	assert.Contains(t, msg, "Full trace:")
	assert.Contains(t, msg, "[0] load seq=1")
	assert.Contains(t, msg, "[1] connect rejected: CYCLE")
}

func TestStoreAssertions(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	g := &ir.Graph{Name: "g", Nodes: []*ir.Node{}, Connections: []ir.Connection{}}
	hash, err := st.WriteSnapshot(ctx, g)
	require.NoError(t, err)
	for seq := int64(1); seq <= 2; seq++ {
		require.NoError(t, st.WritePass(ctx, ir.Pass{
			ID:            ir.PassID("tok", hash, seq),
			Token:         "tok",
			Seq:           seq,
			SnapshotHash:  hash,
			Status:        ir.PassCompleted,
			Outputs:       []ir.PortValue{{Node: "n", Port: "num", Value: ir.Int(seq * 10)}},
			EngineVersion: ir.EngineVersion,
		}))
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertPassCount, Count: 2},
		{Type: AssertStoredOutput, Node: "n", Port: "num", Equals: "20"},
	}, actx)
	assert.Empty(t, errs, "latest pass wins")

	errs = EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertPassCount, Count: 3},
		{Type: AssertStoredOutput, Node: "n", Port: "num", Equals: "10"},
		{Type: AssertStoredOutput, Node: "n", Port: "pol", Equals: "x"},
	}, actx)
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "2 stored passes")
	assert.Contains(t, errs[1], `n.num = "20"`)
	assert.Contains(t, errs[2], "output not recorded")
}
