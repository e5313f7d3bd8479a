package editor

import (
	"errors"
	"fmt"
)

// EditErrorCode categorizes rejected edits.
type EditErrorCode string

const (
	ErrCodeUnknownNode    EditErrorCode = "UNKNOWN_NODE"
	ErrCodeUnknownPort    EditErrorCode = "UNKNOWN_PORT"
	ErrCodeUnknownKind    EditErrorCode = "UNKNOWN_KIND"
	ErrCodeUnknownControl EditErrorCode = "UNKNOWN_CONTROL"
	ErrCodeReadOnly       EditErrorCode = "READ_ONLY_CONTROL"
	ErrCodeDuplicateNode  EditErrorCode = "DUPLICATE_NODE"
	ErrCodeSocketMismatch EditErrorCode = "SOCKET_MISMATCH"
	ErrCodeInputOccupied  EditErrorCode = "INPUT_OCCUPIED"
	ErrCodeCycle          EditErrorCode = "CYCLE"
	ErrCodeNotConnected   EditErrorCode = "NOT_CONNECTED"
	ErrCodeInvalidValue   EditErrorCode = "INVALID_VALUE"
)

// EditError is returned when the editor refuses an edit. The graph is left
// unchanged.
type EditError struct {
	Code    EditErrorCode
	Message string
	Node    string
}

func (e *EditError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode returns the code of an EditError anywhere in err's chain, or "".
func ErrorCode(err error) EditErrorCode {
	var ee *EditError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

func editErr(code EditErrorCode, node, format string, args ...any) *EditError {
	return &EditError{Code: code, Message: fmt.Sprintf(format, args...), Node: node}
}
