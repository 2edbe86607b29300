// Package echo implements a side-effect-free demo app that echoes messages
// back with a chosen text effect.
package echo

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/jlindermeir/ami0/internal/app"
	"github.com/jlindermeir/ami0/internal/schema"
)

// Tag is the single action tag the echo app accepts.
const Tag = "echo"

// Available text effects.
const (
	EffectUppercase   = "uppercase"
	EffectLowercase   = "lowercase"
	EffectReverse     = "reverse"
	EffectAlternating = "alternating"
)

// action is the echo app's wire payload.
type action struct {
	Message string `json:"message"`
	Effect  string `json:"effect"`
}

// App echoes messages back with different text effects. It holds no
// resources and no mutable state.
type App struct{}

var _ app.App = (*App)(nil)

// New returns the echo app.
func New() *App {
	return &App{}
}

func (a *App) Name() string {
	return "echo"
}

func (a *App) Description() string {
	return "A fun app that echoes back your messages with different text effects. " +
		"Available effects: uppercase, lowercase, reverse, and alternating case."
}

func (a *App) UsagePrompt() string {
	return `This is the Echo app. Send a message together with a text effect and it will be echoed back transformed.

Example action:
{
    "type": "echo",
    "message": "Hello there",
    "effect": "uppercase"
}`
}

func (a *App) ActionModels() []schema.ActionModel {
	return []schema.ActionModel{{
		Tag:         Tag,
		Description: "Echo a message back with a text effect applied.",
		Payload: schema.Object(map[string]*schema.Node{
			"message": schema.String("The message to echo back."),
			"effect": schema.StringEnum("The text effect to apply.",
				EffectUppercase, EffectLowercase, EffectReverse, EffectAlternating),
		}),
	}}
}

func (a *App) HandleAction(_ context.Context, act app.Action) (app.Result, error) {
	var payload action
	if err := act.Decode(&payload); err != nil {
		return app.Result{}, fmt.Errorf("decoding echo action: %w", err)
	}

	transformed, err := apply(payload.Effect, payload.Message)
	if err != nil {
		return app.Result{}, err
	}
	return app.Result{Text: fmt.Sprintf("Echo (%s): %s", payload.Effect, transformed)}, nil
}

func (a *App) Close() error {
	return nil
}

// apply transforms message with the named effect.
func apply(effect, message string) (string, error) {
	switch effect {
	case EffectUppercase:
		return strings.ToUpper(message), nil
	case EffectLowercase:
		return strings.ToLower(message), nil
	case EffectReverse:
		runes := []rune(message)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes), nil
	case EffectAlternating:
		var b strings.Builder
		for i, r := range []rune(message) {
			if i%2 == 0 {
				b.WriteRune(unicode.ToUpper(r))
			} else {
				b.WriteRune(unicode.ToLower(r))
			}
		}
		return b.String(), nil
	default:
		return "", fmt.Errorf("unknown text effect %q", effect)
	}
}
