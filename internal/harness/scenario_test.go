package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ResolvesGraphFile(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/and_of_keys.yaml")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("testdata", "graphs", "keys.hcl"), scenario.GraphFile)
	assert.Len(t, scenario.Steps, 6)
	assert.Equal(t, OpDisconnect, scenario.Steps[0].Op())
	assert.Equal(t, "READ_ONLY_CONTROL", scenario.Steps[2].Expect.Error)
}

func TestLoadScenario_MissingGraphFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: s
description: d
graph_file: nope.hcl
assertions:
  - {type: pass_count, count: 1}
`), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph file")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/does-not-exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nassertions: [{type: pass_count}]",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nassertions: [{type: pass_count}]",
			wantErr: "description is required",
		},
		{
			name:    "unknown field",
			yaml:    "name: n\ndescription: d\nassertion: []",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "nothing to do",
			yaml:    "name: n\ndescription: d",
			wantErr: "steps or assertions are required",
		},
		{
			name:    "two graph sources",
			yaml:    "name: n\ndescription: d\ndemo: true\ngraph_file: g.hcl\nassertions: [{type: pass_count}]",
			wantErr: "mutually exclusive",
		},
		{
			name:    "empty step",
			yaml:    "name: n\ndescription: d\nsteps: [{expect: {error: CYCLE}}]",
			wantErr: "exactly one of",
		},
		{
			name:    "two edits in one step",
			yaml:    "name: n\ndescription: d\nsteps: [{remove_node: a, disconnect: a.pol1}]",
			wantErr: "exactly one of",
		},
		{
			name:    "bad port ref",
			yaml:    "name: n\ndescription: d\nsteps: [{connect: {from: a, to: b.pol1}}]",
			wantErr: "connect.from",
		},
		{
			name:    "float value",
			yaml:    "name: n\ndescription: d\nsteps: [{set_data: {node: a, key: num, value: 1.5}}]",
			wantErr: "floats are forbidden",
		},
		{
			name:    "unknown error code",
			yaml:    "name: n\ndescription: d\nsteps: [{remove_node: a, expect: {error: OOPS}}]",
			wantErr: "unknown error code",
		},
		{
			name:    "error with expressions",
			yaml:    "name: n\ndescription: d\nsteps: [{remove_node: a, expect: {error: CYCLE, expressions: {a: x}}}]",
			wantErr: "error excludes",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nassertions: [{type: final_state}]",
			wantErr: "unknown assertion type",
		},
		{
			name:    "expression without node",
			yaml:    "name: n\ndescription: d\nassertions: [{type: expression, equals: x}]",
			wantErr: "node is required",
		},
		{
			name:    "stored_output without port",
			yaml:    "name: n\ndescription: d\nassertions: [{type: stored_output, node: a}]",
			wantErr: "node and port are required",
		},
		{
			name:    "warning without text",
			yaml:    "name: n\ndescription: d\nassertions: [{type: warning}]",
			wantErr: "contains is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStep_Op(t *testing.T) {
	assert.Equal(t, OpAddNode, Step{AddNode: &NodeDef{Kind: "and"}}.Op())
	assert.Equal(t, OpRemoveNode, Step{RemoveNode: "a"}.Op())
	assert.Equal(t, OpConnect, Step{Connect: &ConnDef{}}.Op())
	assert.Equal(t, OpDisconnect, Step{Disconnect: "a.pol1"}.Op())
	assert.Equal(t, OpSetData, Step{SetData: &SetDataStep{}}.Op())
	assert.Empty(t, Step{}.Op())
	assert.Empty(t, Step{RemoveNode: "a", Disconnect: "a.pol1"}.Op())
}
