// File: internal/agent/errors.go
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/jlindermeir/ami0/internal/schema"
	"github.com/jlindermeir/ami0/internal/transport"
)

// Kind is a string type used for structured classification of loop errors.
// Using a custom type ensures only the predefined constants can appear where
// a Kind is expected.
type Kind string

const (
	// KindConfiguration is fatal and pre-loop: the loop cannot start, e.g.
	// because no apps are registered.
	KindConfiguration Kind = "CONFIGURATION"
	// KindTransport covers network or provider failures on the LLM call.
	KindTransport Kind = "TRANSPORT"
	// KindSchemaViolation covers model replies that cannot be decoded
	// against the requested schema.
	KindSchemaViolation Kind = "SCHEMA_VIOLATION"
	// KindInvalidAction covers action tags that are illegal in the current
	// state.
	KindInvalidAction Kind = "INVALID_ACTION"
	// KindUnknownApp covers launch requests naming an unregistered app.
	KindUnknownApp Kind = "UNKNOWN_APP"
	// KindAppHandler covers failures raised by an app's action handler.
	KindAppHandler Kind = "APP_HANDLER"
)

// Error is a classified agent loop error. The state machine branches on the
// Kind of the errors it receives rather than on error text.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf returns a classified error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf classifies an arbitrary error into the loop taxonomy. Transport
// and schema errors defined by their own packages map onto the matching
// kinds; anything else is unclassified (empty Kind).
func KindOf(err error) Kind {
	var agentErr *Error
	if errors.As(err, &agentErr) {
		return agentErr.Kind
	}
	var violation *schema.ViolationError
	if errors.As(err, &violation) {
		return KindSchemaViolation
	}
	var transportErr *transport.Error
	if errors.As(err, &transportErr) {
		return KindTransport
	}
	return ""
}

// recoverable reports whether an error of this kind keeps the loop alive:
// the turn is discarded, a corrective message is injected and the next turn
// proceeds with unchanged state.
func recoverable(kind Kind) bool {
	switch kind {
	case KindTransport, KindSchemaViolation, KindInvalidAction, KindUnknownApp:
		return true
	}
	return false
}

// fatal reports whether the error must end the loop: configuration errors
// and user-driven cancellation.
func fatal(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return KindOf(err) == KindConfiguration
}
