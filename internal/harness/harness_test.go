package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario failed: %v", result.Errors)
		})
	}
}

func TestMarshalTrace_MatchesGolden(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/and_of_keys.yaml")
	require.NoError(t, err)
	result, err := Run(scenario)
	require.NoError(t, err)

	got, err := MarshalTrace(scenario, result)
	require.NoError(t, err)
	want, err := os.ReadFile("testdata/golden/and_of_keys.golden")
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/threshold_over_timelocks.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace, "same scenario, same trace")
}

func TestRun_InlineGraph(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: inline
description: "scenario 4"
graph:
  nodes:
    - {id: n, kind: number, data: {num: 15}}
    - {id: a, kind: after}
  connections:
    - {from: n.num, to: a.num}
assertions:
  - type: expression
    node: a
    equals: "after(15)"
  - type: pass_count
    count: 1
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, map[string]string{"a": "after(15)"}, result.Expressions)
	assert.Equal(t, []string{"num"}, result.Ports["a"])
}

func TestRun_EmptyStart(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: empty
description: "nodes added by steps"
steps:
  - add_node: {id: k, kind: key, data: {key: A}}
    expect:
      expressions: {k: "pk(A)"}
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, OpLoad, result.Trace[0].Op)
	assert.Empty(t, result.Trace[0].Expressions)
}

func TestRun_ReportsFailures(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: failing
description: "every kind of mismatch"
demo: true
steps:
  - connect: {from: older.pol, to: thresh.pol2}
    expect:
      expressions: {thresh: "thresh(2)"}
      ports: {thresh: [num]}
  - connect: {from: after.pol, to: thresh.pol1}
  - disconnect: thresh.pol3
    expect:
      error: CYCLE
  - set_data: {node: after, key: num, value: 1}
    expect:
      error: INVALID_VALUE
assertions:
  - type: expression
    node: thresh
    equals: "nope"
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)

	joined := strings.Join(result.Errors, "\n")
	assert.Contains(t, joined, `expected "thresh(2)"`)
	assert.Contains(t, joined, "ports: expected [num]")
	assert.Contains(t, joined, "unexpected edit error")
	assert.Contains(t, joined, "expected error CYCLE, got NOT_CONNECTED")
	assert.Contains(t, joined, "expected error INVALID_VALUE, edit succeeded")
	assert.Contains(t, joined, "Assertion failed: expression")
}

func TestRun_BadGraph(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: bad
description: "unknown kind"
graph:
  nodes:
    - {id: x, kind: multi}
assertions:
  - type: pass_count
    count: 0
`))
	require.NoError(t, err)

	_, err = Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}
