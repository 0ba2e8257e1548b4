package qcomposer

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a command was refused.
type ErrorKind string

const (
	KindUnknownGate       ErrorKind = "UnknownGate"
	KindCollapsed         ErrorKind = "Collapsed"
	KindEmptyStack        ErrorKind = "EmptyStack"
	KindNoMeasurement     ErrorKind = "NoMeasurement"
	KindInvalidParameters ErrorKind = "InvalidParameters"
)

/*
CommandError is the only error type the controller returns.

Two CommandErrors match under errors.Is when their kinds are equal, so callers
can test against the exported sentinels regardless of the message.
*/
type CommandError struct {
	Kind ErrorKind
	Msg  string
}

func (err *CommandError) Error() string {
	return err.Msg
}

func (err *CommandError) Is(target error) bool {
	other, ok := target.(*CommandError)
	return ok && other.Kind == err.Kind
}

var (
	ErrUnknownGate       = &CommandError{Kind: KindUnknownGate, Msg: "Unknown gate"}
	ErrCollapsed         = &CommandError{Kind: KindCollapsed, Msg: "Qubit is collapsed"}
	ErrEmptyStack        = &CommandError{Kind: KindEmptyStack, Msg: "No gates to undo"}
	ErrNoMeasurement     = &CommandError{Kind: KindNoMeasurement, Msg: "Qubit is not measured"}
	ErrInvalidParameters = &CommandError{Kind: KindInvalidParameters, Msg: "Invalid parameters"}
)

func unknownGate(symbol string) error {
	return &CommandError{Kind: KindUnknownGate, Msg: fmt.Sprintf("Unknown gate: %s", symbol)}
}

func invalidParameters(format string, args ...any) error {
	return &CommandError{Kind: KindInvalidParameters, Msg: fmt.Sprintf(format, args...)}
}

// Failure is the body returned to callers for any refused command.
type Failure struct {
	Error bool      `json:"error"`
	Msg   string    `json:"msg"`
	Kind  ErrorKind `json:"kind,omitempty"`
}

// NewFailure converts an error into a failure body.
func NewFailure(err error) Failure {
	var commandErr *CommandError
	if errors.As(err, &commandErr) {
		return Failure{Error: true, Msg: commandErr.Msg, Kind: commandErr.Kind}
	}

	return Failure{Error: true, Msg: err.Error()}
}
