package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TransportKind classifies why a chat request failed.
type TransportKind string

const (
	TransportTimeout    TransportKind = "timeout"
	TransportConnection TransportKind = "connection"
	TransportStatus     TransportKind = "status"
	TransportCanceled   TransportKind = "canceled"
)

// TransportError is fatal to the current turn. It is never retried; the
// caller decides what to tell the user.
type TransportError struct {
	Kind TransportKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("chat transport (%s): %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrBudgetExhausted marks a turn that hit the round-trip ceiling without a
// terminal answer. Distinct from a successful short turn.
var ErrBudgetExhausted = errors.New("round-trip budget exhausted without a terminal answer")

// classifyTransport wraps a chat-client error with a transport kind so the
// presentation layer can phrase the failure.
func classifyTransport(err error) *TransportError {
	switch {
	case errors.Is(err, context.Canceled):
		return &TransportError{Kind: TransportCanceled, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &TransportError{Kind: TransportTimeout, Err: err}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return &TransportError{Kind: TransportTimeout, Err: err}
	case strings.Contains(msg, "status "):
		return &TransportError{Kind: TransportStatus, Err: err}
	default:
		return &TransportError{Kind: TransportConnection, Err: err}
	}
}
