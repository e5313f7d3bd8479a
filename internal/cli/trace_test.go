package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/policygraph/internal/store"
)

func runTraceCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

type traceResponse struct {
	Status string      `json:"status"`
	Data   TraceResult `json:"data"`
	Error  *CLIError   `json:"error"`
}

// recordDemo compiles the demo graph into a fresh database.
func recordDemo(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "passes.db")
	_, err := runCompileCmd(t, "text", "--demo", "--db", dbPath)
	require.NoError(t, err)
	return dbPath
}

func TestTraceMissingDatabaseFlag(t *testing.T) {
	_, err := runTraceCmd(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTraceNonExistentDatabase(t *testing.T) {
	out, err := runTraceCmd(t, "text", "--db", filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "database not found")
}

func TestTraceEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := runTraceCmd(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No passes recorded.")
}

func TestTraceListsPasses(t *testing.T) {
	dbPath := recordDemo(t)

	out, err := runTraceCmd(t, "json", "--db", dbPath)
	require.NoError(t, err)

	var resp traceResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Passes, 2, "the demo settles in two passes")
	assert.Equal(t, int64(1), resp.Data.Passes[0].Seq)
	assert.Equal(t, int64(2), resp.Data.Passes[1].Seq)
	assert.Equal(t, "thresh(2,after(15))", resp.Data.Passes[1].Expressions["thresh"])
	assert.Empty(t, resp.Data.Passes[1].Outputs, "outputs are listed for a single pass only")

	assert.Equal(t, TraceStats{Passes: 2, Completed: 2, Snapshots: 2}, resp.Data.Stats,
		"the first pass adds operand ports, so the second sees a new snapshot")
}

func TestTraceText(t *testing.T) {
	dbPath := recordDemo(t)

	out, err := runTraceCmd(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "[1] ")
	assert.Contains(t, out, "[2] ")
	assert.Contains(t, out, "thresh: thresh(2,after(15))")
	assert.Contains(t, out, "2 pass(es): 2 completed, 0 aborted")
}

func TestTraceSinglePass(t *testing.T) {
	dbPath := recordDemo(t)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	latest, err := st.LatestPass(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := runTraceCmd(t, "json", "--db", dbPath, "--pass", latest.ID)
	require.NoError(t, err)

	var resp traceResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Passes, 1)
	p := resp.Data.Passes[0]
	assert.Equal(t, latest.ID, p.ID)
	assert.Contains(t, p.Outputs, TraceOutput{Node: "after", Port: "pol", Value: "after(15)"})
	assert.Contains(t, p.Outputs, TraceOutput{Node: "thresh", Port: "pol", Value: "thresh(2,after(15))", Terminal: true})
}

func TestTraceSnapshotFilter(t *testing.T) {
	dbPath := recordDemo(t)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	latest, err := st.LatestPass(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := runTraceCmd(t, "json", "--db", dbPath, "--snapshot", latest.SnapshotHash)
	require.NoError(t, err)

	var resp traceResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Passes, 1)
	assert.Equal(t, latest.Seq, resp.Data.Passes[0].Seq)
}

func TestTraceUnknownPass(t *testing.T) {
	dbPath := recordDemo(t)

	out, err := runTraceCmd(t, "text", "--db", dbPath, "--pass", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "pass not found: nope")
}
