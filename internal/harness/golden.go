package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/policygraph/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	PassToken    string       `json:"pass_token,omitempty"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts the snapshot into the generic shapes
// ir.MarshalCanonical accepts.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"step": ev.Step,
			"op":   ev.Op,
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		if ev.Seq != 0 {
			m["seq"] = ev.Seq
		}
		if ev.Token != "" {
			m["token"] = ev.Token
		}
		if len(ev.Expressions) > 0 {
			exprs := make(map[string]any, len(ev.Expressions))
			for k, v := range ev.Expressions {
				exprs[k] = v
			}
			m["expressions"] = exprs
		}
		if len(ev.Ports) > 0 {
			ports := make(map[string]any, len(ev.Ports))
			for k, v := range ev.Ports {
				ports[k] = v
			}
			m["ports"] = ports
		}
		if len(ev.Warnings) > 0 {
			m["warnings"] = ev.Warnings
		}
		traceList[i] = m
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
	if s.PassToken != "" {
		result["pass_token"] = s.PassToken
	}
	return result
}

func (s *TraceSnapshot) marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// MarshalTrace renders a scenario's trace in golden-file form.
func MarshalTrace(scenario *Scenario, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		PassToken:    scenario.PassToken,
		Trace:        result.Trace,
	}
	return snapshot.marshal()
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check Pass, or an error if the
// scenario could not run.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		PassToken:    scenario.PassToken,
		Trace:        result.Trace,
	}
	if err := assertGolden(t, scenario.Name, &snapshot); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	return assertGolden(t, scenarioName, &snapshot)
}

func assertGolden(t *testing.T, name string, snapshot *TraceSnapshot) error {
	t.Helper()

	traceJSON, err := snapshot.marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
	return nil
}
