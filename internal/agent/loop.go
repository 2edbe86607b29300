// Package agent owns the turn-based state machine at the heart of the
// system: it tracks whether the model is at the home screen or inside an
// app, composes the legal response schema for each state, gates every
// effectful action behind human confirmation, and feeds results back into
// the conversation.
//
// Execution is strictly single-threaded and cooperative: one in-flight
// action at a time, with the transport call and the confirmation read as
// the only suspension points. There is no locking discipline because there
// is no concurrency.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/jlindermeir/ami0/internal/app"
	"github.com/jlindermeir/ami0/internal/transport"
)

// resultDenied is the terminal result of a declined confirmation. Declines
// are normal results, not errors; state is left untouched.
const resultDenied = "Action denied by user"

// Options tunes the loop.
type Options struct {
	// HistoryWindow is how many trailing conversation messages are sent to
	// the transport each turn. Zero means the default of 10.
	HistoryWindow int
	// MaxTurns bounds the loop; 0 runs until the context is cancelled.
	MaxTurns int
	// ConfirmDefault is the answer a blank confirmation input resolves to.
	ConfirmDefault bool
	// Output receives user-facing turn results; nil discards them.
	Output io.Writer
}

const defaultHistoryWindow = 10

// Loop is the agent state machine. It owns the current app pointer and the
// conversation history; both are mutated only from Run's goroutine.
type Loop struct {
	logger    *zap.Logger
	reg       *app.Registry
	client    transport.Client
	confirmer Confirmer
	opts      Options

	current      app.App
	conversation []transport.Message
}

// New validates the collaborators and returns a ready loop. Starting with
// an empty registry is a configuration error, reported here before any
// transport call is made.
func New(logger *zap.Logger, reg *app.Registry, client transport.Client, confirmer Confirmer, opts Options) (*Loop, error) {
	if reg == nil || reg.Len() == 0 {
		return nil, Errorf(KindConfiguration, "no apps registered")
	}
	if client == nil {
		return nil, Errorf(KindConfiguration, "transport client is required")
	}
	if confirmer == nil {
		return nil, Errorf(KindConfiguration, "confirmer is required")
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = defaultHistoryWindow
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	return &Loop{
		logger:    logger.Named("agent"),
		reg:       reg,
		client:    client,
		confirmer: confirmer,
		opts:      opts,
	}, nil
}

// CurrentApp returns the active app, or nil at the home screen.
func (l *Loop) CurrentApp() app.App {
	return l.current
}

// Conversation returns a copy of the conversation history.
func (l *Loop) Conversation() []transport.Message {
	return append([]transport.Message(nil), l.conversation...)
}

// Run executes turns until the context is cancelled, the confirmer's input
// is exhausted, or MaxTurns is reached.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Starting agent loop",
		zap.Strings("apps", l.reg.Names()),
		zap.Int("history_window", l.opts.HistoryWindow))
	fmt.Fprintln(l.opts.Output, "Starting autonomous agent system.")
	fmt.Fprintln(l.opts.Output, "The agent will request permission before taking any actions.")

	l.conversation = append(l.conversation, transport.TextMessage(transport.RoleUser, initialUserPrompt))

	for turn := 1; l.opts.MaxTurns == 0 || turn <= l.opts.MaxTurns; turn++ {
		select {
		case <-ctx.Done():
			l.logger.Info("Agent loop interrupted", zap.Int("turn", turn))
			return ctx.Err()
		default:
		}

		if err := l.step(ctx); err != nil {
			if err == context.Canceled || fatal(err) {
				l.logger.Info("Agent loop stopping", zap.Error(err))
				return err
			}
			return fmt.Errorf("turn %d: %w", turn, err)
		}
	}
	return nil
}

// step runs one full turn. Recoverable failures (transport errors, schema
// violations, protocol violations) are absorbed here: the malformed turn is
// discarded, a corrective system message is appended, and nil is returned
// so the loop proceeds with unchanged state.
func (l *Loop) step(ctx context.Context) error {
	replySchema, err := ComposeSchema(l.reg, l.current)
	if err != nil {
		return err
	}

	reply, err := l.client.Complete(ctx, transport.Request{
		SystemPrompt: l.systemPrompt(),
		History:      l.window(),
		Schema:       replySchema,
	})
	if err != nil {
		return l.recoverTurn(err)
	}

	turnID := uuid.NewString()
	for i, thought := range reply.Reasoning {
		l.logger.Info("Agent reasoning",
			zap.String("turn_id", turnID),
			zap.Int("thought", i+1),
			zap.String("text", thought))
	}

	result, err := l.dispatch(ctx, reply.Action)
	if err != nil {
		if recoverable(KindOf(err)) {
			return l.recoverTurn(err)
		}
		return err
	}

	l.conversation = append(l.conversation, assistantMessage(reply))
	l.conversation = append(l.conversation, resultMessage(result))

	l.logger.Info("Turn complete",
		zap.String("turn_id", turnID),
		zap.String("action", reply.Action.Tag),
		zap.String("state", l.stateName()))
	fmt.Fprintf(l.opts.Output, "\nResult: %s\nCurrent state: %s\n", result.Text, l.stateName())
	return nil
}

// recoverTurn absorbs a recoverable failure: the assistant turn is never
// retained, and the model gets a corrective system message instead.
func (l *Loop) recoverTurn(err error) error {
	kind := KindOf(err)
	if fatal(err) || !recoverable(kind) {
		return err
	}
	l.logger.Warn("Recoverable turn failure",
		zap.String("kind", string(kind)),
		zap.Error(err))
	l.conversation = append(l.conversation, transport.TextMessage(transport.RoleSystem, correctiveText(kind, err)))
	return nil
}

// dispatch validates the action against the current state, runs it through
// the confirmation gate exactly once, and executes it. A declined
// confirmation yields the terminal denied result with no state change and
// no handler invocation.
func (l *Loop) dispatch(ctx context.Context, act app.Action) (app.Result, error) {
	if l.current == nil {
		return l.dispatchHome(act)
	}
	return l.dispatchInApp(ctx, act)
}

func (l *Loop) dispatchHome(act app.Action) (app.Result, error) {
	if act.Tag != TagLaunchApp {
		return app.Result{}, Errorf(KindInvalidAction, "action %q is not legal on the home screen", act.Tag)
	}

	var payload struct {
		AppName string `json:"app_name"`
	}
	if err := act.Decode(&payload); err != nil || payload.AppName == "" {
		return app.Result{}, Errorf(KindInvalidAction, "launch_app payload is missing the app name")
	}

	// The closed enum in the schema should make this unreachable, but the
	// name is still checked: validation is the union of model fidelity and
	// our own schema.
	target, found := l.reg.Get(payload.AppName)
	if !found {
		return app.Result{}, Errorf(KindUnknownApp, "unknown app: %s", payload.AppName)
	}

	granted, err := l.confirmer.Confirm(fmt.Sprintf("Allow agent to launch app %q?", payload.AppName), l.opts.ConfirmDefault)
	if err != nil {
		return app.Result{}, fmt.Errorf("confirmation failed: %w", err)
	}
	if !granted {
		l.logger.Info("Action declined by user", zap.String("action", act.Tag))
		return app.Result{Text: resultDenied}, nil
	}

	l.current = target
	return app.Result{Text: "Launched app: " + payload.AppName}, nil
}

func (l *Loop) dispatchInApp(ctx context.Context, act app.Action) (app.Result, error) {
	name := l.current.Name()

	switch {
	case act.Tag == TagExitApp:
		granted, err := l.confirmer.Confirm(fmt.Sprintf("Allow agent to exit app %q?", name), l.opts.ConfirmDefault)
		if err != nil {
			return app.Result{}, fmt.Errorf("confirmation failed: %w", err)
		}
		if !granted {
			l.logger.Info("Action declined by user", zap.String("action", act.Tag))
			return app.Result{Text: resultDenied}, nil
		}
		l.current = nil
		return app.Result{Text: "Returned to home screen"}, nil

	case appActionTags(l.current)[act.Tag]:
		prompt := fmt.Sprintf("Allow agent to perform action %q in app %q?\nAction: %s", act.Tag, name, string(act.Payload))
		granted, err := l.confirmer.Confirm(prompt, l.opts.ConfirmDefault)
		if err != nil {
			return app.Result{}, fmt.Errorf("confirmation failed: %w", err)
		}
		if !granted {
			l.logger.Info("Action declined by user", zap.String("action", act.Tag), zap.String("app", name))
			return app.Result{Text: resultDenied}, nil
		}

		result, err := l.current.HandleAction(ctx, act)
		if err != nil {
			// Handler failures are surfaced as the turn's result; state is
			// left unchanged and the app handles its own partial cleanup.
			l.logger.Error("App handler failed",
				zap.String("app", name),
				zap.String("action", act.Tag),
				zap.Error(err))
			return app.Result{Text: fmt.Sprintf("Error executing %q in app %q: %v", act.Tag, name, err)}, nil
		}
		return result, nil

	default:
		return app.Result{}, Errorf(KindInvalidAction, "action %q is not supported by app %q", act.Tag, name)
	}
}

// window returns the trailing slice of conversation sent to the transport.
func (l *Loop) window() []transport.Message {
	if len(l.conversation) <= l.opts.HistoryWindow {
		return l.conversation
	}
	return l.conversation[len(l.conversation)-l.opts.HistoryWindow:]
}

func (l *Loop) stateName() string {
	if l.current == nil {
		return "Home Screen"
	}
	return "In " + l.current.Name()
}

// assistantMessage renders the validated reply back into a conversation
// turn, preserving the wire shape the model produced.
func assistantMessage(reply *transport.Reply) transport.Message {
	rendered, err := jsoniter.MarshalToString(struct {
		Reasoning []string        `json:"reasoning"`
		Action    json.RawMessage `json:"action"`
	}{Reasoning: reply.Reasoning, Action: reply.Action.Payload})
	if err != nil {
		rendered = string(reply.Action.Payload)
	}
	return transport.TextMessage(transport.RoleAssistant, rendered)
}

// resultMessage packs an action result, including any attachment, into the
// next user turn together with the standing prompt.
func resultMessage(result app.Result) transport.Message {
	parts := []transport.Part{
		transport.TextPart("Result: " + result.Text + "\n\n" + nextTurnPrompt),
	}
	if result.Attachment != nil {
		parts = append(parts, transport.BinaryPart(result.Attachment.MIME, result.Attachment.Data))
	}
	return transport.Message{Role: transport.RoleUser, Parts: parts}
}
