// Package transport is the opaque boundary to the LLM. It exchanges a
// system prompt, the bounded conversation history and a response schema for
// a validated, structured next action plus the model's reasoning trace.
package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/jlindermeir/ami0/internal/app"
	"github.com/jlindermeir/ami0/internal/schema"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem marks corrective or result messages injected by the agent
	// loop itself; providers that have no system turn in their history
	// format map it onto a user turn.
	RoleSystem Role = "system"
)

// Part is one piece of a message: either text or inline binary data such as
// a screenshot.
type Part struct {
	Text string
	MIME string
	Data []byte
}

// TextPart returns a text-only part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// BinaryPart returns an inline binary part.
func BinaryPart(mime string, data []byte) Part {
	return Part{MIME: mime, Data: data}
}

// Message is one turn of the conversation history.
type Message struct {
	Role  Role
	Parts []Part
}

// TextMessage returns a message with a single text part.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{TextPart(text)}}
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// Request is one generation call: the state-dependent system prompt, the
// bounded history, and the schema the reply must satisfy.
type Request struct {
	SystemPrompt string
	History      []Message
	Schema       *schema.Node
}

// Reply is a decoded, schema-validated model response.
type Reply struct {
	Reasoning []string
	Action    app.Action
}

// Client is the boundary interface the agent loop calls each turn.
//
// Implementations return *Error for network or provider failures and
// *schema.ViolationError (possibly wrapped) when the model's payload cannot
// be decoded against the requested schema. Both are recoverable: the loop
// injects a corrective message and retries the turn.
type Client interface {
	Complete(ctx context.Context, req Request) (*Reply, error)
}

// Error reports a network or provider-side transport failure.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
