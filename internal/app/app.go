// Package app defines the capability contract every pluggable app
// implements, plus the action and result values exchanged between the agent
// loop and an app's handler.
package app

import (
	"context"
	"encoding/json"

	jsoniter "github.com/json-iterator/go"

	"github.com/jlindermeir/ami0/internal/schema"
)

// Action is one decoded instruction emitted by the model: the discriminator
// tag plus the raw payload fields. The payload has already been validated
// against the action's schema by the transport before an Action reaches an
// app handler.
type Action struct {
	Tag     string
	Payload json.RawMessage
}

// Decode unmarshals the action payload into a typed action struct.
func (a Action) Decode(v any) error {
	return jsoniter.Unmarshal(a.Payload, v)
}

// Attachment is an optional binary part of a result, e.g. a screenshot.
type Attachment struct {
	MIME string
	Data []byte
}

// Result is what an action handler returns: human-readable text that is
// appended verbatim to the conversation, plus an optional attachment.
type Result struct {
	Text       string
	Attachment *Attachment
}

// App is the contract every pluggable app implements.
//
// HandleAction is only ever invoked with an action whose tag is a member of
// ActionModels; any other call is a caller bug, not a recoverable app error.
// An app owns its internal resources: it acquires them eagerly in its
// constructor (failing the whole process if acquisition fails) and releases
// them in Close at process teardown.
type App interface {
	// Name is the app's stable registry key.
	Name() string
	// Description is the one-liner shown on the home screen.
	Description() string
	// UsagePrompt is the in-app system prompt. It may be dynamic, e.g.
	// reflecting the currently open page, and is recomputed every time the
	// app becomes or stays active.
	UsagePrompt() string
	// ActionModels is the closed set of action variants the app accepts.
	ActionModels() []schema.ActionModel
	// HandleAction performs the action and returns its result.
	HandleAction(ctx context.Context, act Action) (Result, error)
	// Close releases the app's resources.
	Close() error
}
