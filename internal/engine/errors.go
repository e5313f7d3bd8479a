package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while evaluating a pass.
//
// Runtime errors include:
//   - Pass aborted: a newer edit, Abort or context cancellation
//   - Unknown kind: a snapshot node has no registered descriptor
//   - Cycle detected: the snapshot violates acyclicity
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// PassID identifies the affected pass, when one was started.
	PassID string

	// Node identifies the node involved, when there is one.
	Node string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodePassAborted indicates the pass was cancelled before finishing.
	ErrCodePassAborted RuntimeErrorCode = "PASS_ABORTED"

	// ErrCodeUnknownKind indicates a node kind with no descriptor.
	ErrCodeUnknownKind RuntimeErrorCode = "UNKNOWN_KIND"

	// ErrCodeCycleDetected indicates the snapshot's connections form a cycle.
	ErrCodeCycleDetected RuntimeErrorCode = "CYCLE_DETECTED"
)

// ErrPassAborted matches any aborted pass with errors.Is.
var ErrPassAborted = &RuntimeError{Code: ErrCodePassAborted, Message: "pass aborted"}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.PassID != "" && e.Node != "" {
		return fmt.Sprintf("%s: %s (pass=%s, node=%s)", e.Code, e.Message, e.PassID, e.Node)
	}
	if e.PassID != "" {
		return fmt.Sprintf("%s: %s (pass=%s)", e.Code, e.Message, e.PassID)
	}
	if e.Node != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is a RuntimeError with the same code.
func (e *RuntimeError) Is(target error) bool {
	t, ok := target.(*RuntimeError)
	return ok && t.Code == e.Code
}

// IsAborted returns true if the error is an aborted pass.
// Uses errors.As to handle wrapped errors.
func IsAborted(err error) bool {
	return hasCode(err, ErrCodePassAborted)
}

// IsCycleError returns true if the error is a cycle detection error.
func IsCycleError(err error) bool {
	return hasCode(err, ErrCodeCycleDetected)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// newAbortError reports why a pass stopped.
func newAbortError(passID, reason string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodePassAborted,
		Message: "pass aborted: " + reason,
		PassID:  passID,
		Details: map[string]string{"reason": reason},
	}
}

// NewCycleError creates a RuntimeError for a cyclic snapshot.
func NewCycleError(nodes []string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCycleDetected,
		Message: fmt.Sprintf("connections form a cycle through %d node(s)", len(nodes)),
		Details: map[string]string{"nodes": fmt.Sprint(nodes)},
	}
}

func newUnknownKindError(passID, node, kind string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownKind,
		Message: fmt.Sprintf("no descriptor for kind %q", kind),
		PassID:  passID,
		Node:    node,
	}
}
