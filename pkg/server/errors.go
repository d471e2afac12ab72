package server

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned after the handler or hub was closed.
	ErrClosed = errors.New("server: closed")

	// ErrQueueFull is returned when the handler queue is full and the message
	// was dropped.
	ErrQueueFull = errors.New("server: message queue full")

	// ErrSendQueueFull is returned when a connection cannot keep up.
	ErrSendQueueFull = errors.New("server: send queue full")

	// ErrFunctionNotFound is returned for a call to an unknown function.
	ErrFunctionNotFound = errors.New("server: function not found")

	// ErrVariableNotFound is returned for an update of an unknown variable.
	ErrVariableNotFound = errors.New("server: variable not found")

	// ErrElementNotFound is returned for an unknown element id.
	ErrElementNotFound = errors.New("server: element not found")

	// ErrUnknownClient is returned when a targeted send names no open
	// connection.
	ErrUnknownClient = errors.New("server: unknown client")
)

// MessageError is the failure of one inbound message or queued job.
type MessageError struct {
	Type     string
	ClientID string
	Err      error

	// Panic is the recovered value when the handler panicked.
	Panic any
	Stack []byte
}

// Error returns the error message with message context.
func (e *MessageError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("server: %s: panic: %v", e.Type, e.Panic)
	}
	return fmt.Sprintf("server: %s: %v", e.Type, e.Err)
}

// Unwrap returns the underlying error, or the panic value when it is one.
func (e *MessageError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	err, _ := e.Panic.(error)
	return err
}

// Trace is the text shown to the client: the error followed by the stack of
// a panic.
func (e *MessageError) Trace() string {
	if len(e.Stack) == 0 {
		return e.Error()
	}
	return e.Error() + "\n\n" + string(e.Stack)
}
