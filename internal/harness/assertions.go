package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/policygraph/internal/ir"
	"github.com/roach88/policygraph/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			if ev.Error != "" {
				fmt.Fprintf(&buf, "  [%d] %s rejected: %s\n", ev.Step, ev.Op, ev.Error)
				continue
			}
			fmt.Fprintf(&buf, "  [%d] %s seq=%d %v\n", ev.Step, ev.Op, ev.Seq, ev.Expressions)
		}
	}

	return buf.String()
}

// assertExpression checks the node's terminal expression after the last step.
func assertExpression(result *Result, a Assertion) error {
	got, ok := result.Expressions[a.Node]
	if !ok {
		return &AssertionError{
			Type:     AssertExpression,
			Expected: fmt.Sprintf("node %s to produce %q", a.Node, a.Equals),
			Actual:   "node is not terminal or produced nothing",
			Trace:    result.Trace,
		}
	}
	if got != a.Equals {
		return &AssertionError{
			Type:     AssertExpression,
			Expected: fmt.Sprintf("node %s = %q", a.Node, a.Equals),
			Actual:   fmt.Sprintf("node %s = %q", a.Node, got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertPorts checks the node's input port names, in order.
func assertPorts(result *Result, a Assertion) error {
	got, ok := result.Ports[a.Node]
	if !ok {
		return &AssertionError{
			Type:     AssertPorts,
			Expected: fmt.Sprintf("node %s with ports %v", a.Node, a.Ports),
			Actual:   "node not found",
			Trace:    result.Trace,
		}
	}
	if !slices.Equal(got, a.Ports) {
		return &AssertionError{
			Type:     AssertPorts,
			Expected: fmt.Sprintf("ports %v", a.Ports),
			Actual:   fmt.Sprintf("ports %v", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertWarning checks that some traced pass logged a matching warning.
func assertWarning(result *Result, a Assertion) error {
	for _, ev := range result.Trace {
		for _, w := range ev.Warnings {
			if strings.Contains(w, a.Contains) {
				return nil
			}
		}
	}
	return &AssertionError{
		Type:     AssertWarning,
		Expected: fmt.Sprintf("a warning containing %q", a.Contains),
		Actual:   "no matching warning",
		Trace:    result.Trace,
	}
}

// assertPassCount checks the number of passes in the store.
func assertPassCount(ctx context.Context, st *store.Store, a Assertion) error {
	passes, err := st.ReadPasses(ctx)
	if err != nil {
		return fmt.Errorf("pass_count: read passes: %w", err)
	}
	if len(passes) != a.Count {
		return &AssertionError{
			Type:     AssertPassCount,
			Expected: fmt.Sprintf("%d stored passes", a.Count),
			Actual:   fmt.Sprintf("%d stored passes", len(passes)),
		}
	}
	return nil
}

// assertStoredOutput checks node.port in the latest stored pass, rendered
// the way it would appear inside an expression.
func assertStoredOutput(ctx context.Context, st *store.Store, a Assertion) error {
	p, err := st.LatestPass(ctx)
	if err != nil {
		return &AssertionError{
			Type:     AssertStoredOutput,
			Expected: fmt.Sprintf("a stored pass with %s.%s", a.Node, a.Port),
			Actual:   fmt.Sprintf("read error: %v", err),
		}
	}
	v, ok := p.Output(a.Node, a.Port)
	if !ok {
		return &AssertionError{
			Type:     AssertStoredOutput,
			Expected: fmt.Sprintf("%s.%s in pass %s", a.Node, a.Port, p.ID),
			Actual:   "output not recorded",
		}
	}
	if got := ir.FormatValue(v); got != a.Equals {
		return &AssertionError{
			Type:     AssertStoredOutput,
			Expected: fmt.Sprintf("%s.%s = %q", a.Node, a.Port, a.Equals),
			Actual:   fmt.Sprintf("%s.%s = %q", a.Node, a.Port, got),
		}
	}
	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for store-backed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertExpression:
			err = assertExpression(result, assertion)
		case AssertPorts:
			err = assertPorts(result, assertion)
		case AssertWarning:
			err = assertWarning(result, assertion)
		case AssertPassCount, AssertStoredOutput:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
			} else if assertion.Type == AssertPassCount {
				err = assertPassCount(actx.Ctx, actx.Store, assertion)
			} else {
				err = assertStoredOutput(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
