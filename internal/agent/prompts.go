package agent

import (
	"fmt"
	"strings"
)

const basePrompt = "You are an autonomous AI agent operating in a structured environment. " +
	"Your task is to interact with the available apps to achieve your goals. " +
	"Your responses must follow the requested format exactly: explain your reasoning " +
	"step by step in the reasoning field, then choose exactly one action."

const initialUserPrompt = "What would you like to do? Please explain your reasoning."

const nextTurnPrompt = "What would you like to do next? Please explain your reasoning."

// systemPrompt builds the state-dependent instruction set: the home screen
// enumerates the registered apps, an active app contributes its usage
// prompt. Recomputed every turn so dynamic usage prompts stay current.
func (l *Loop) systemPrompt() string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if l.current == nil {
		b.WriteString("\n\nYou are at the home screen. Available apps:\n")
		for _, a := range l.reg.Apps() {
			fmt.Fprintf(&b, "- %s: %s\n", a.Name(), a.Description())
		}
		b.WriteString("\nLaunch an app to proceed.")
		return b.String()
	}

	fmt.Fprintf(&b, "\n\nYou are in the %q app. %s\n\n%s", l.current.Name(), l.current.Description(), l.current.UsagePrompt())
	b.WriteString("\n\nYou can return to the home screen by choosing to exit the app.")
	return b.String()
}

// correctiveText phrases a recoverable failure as a system message the
// model can act on next turn.
func correctiveText(kind Kind, err error) string {
	switch kind {
	case KindTransport:
		return fmt.Sprintf("A transient error occurred while contacting the model backend: %v. Please continue.", err)
	case KindSchemaViolation:
		return fmt.Sprintf("Your previous reply could not be decoded: %v. Respond again, following the required schema exactly.", err)
	case KindUnknownApp:
		return fmt.Sprintf("%v. Choose one of the registered apps.", err)
	default:
		return fmt.Sprintf("Your previous action was not legal in the current state: %v. Choose one of the permitted actions.", err)
	}
}
