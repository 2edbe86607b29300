package agent

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirmer is the synchronous human checkpoint wrapping every effectful
// action. Implementations block until an explicit accept or decline; the
// decision is never cached and is re-asked per action instance.
type Confirmer interface {
	Confirm(prompt string, defaultYes bool) (bool, error)
}

// ConsoleConfirmer reads y/n decisions from an interactive stream. Blank
// input resolves to the default; anything other than y/yes/n/no re-prompts.
type ConsoleConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

var _ Confirmer = (*ConsoleConfirmer)(nil)

// NewConsoleConfirmer wraps the given streams, typically stdin and stdout.
func NewConsoleConfirmer(in io.Reader, out io.Writer) *ConsoleConfirmer {
	return &ConsoleConfirmer{in: bufio.NewReader(in), out: out}
}

// Confirm blocks until the user answers. An EOF on the input stream is
// surfaced as an error so the loop can shut down cleanly instead of
// spinning on an unanswerable question.
func (c *ConsoleConfirmer) Confirm(prompt string, defaultYes bool) (bool, error) {
	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}

	for {
		if _, err := fmt.Fprintf(c.out, "%s %s: ", prompt, suffix); err != nil {
			return false, fmt.Errorf("writing confirmation prompt: %w", err)
		}

		line, err := c.in.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return false, fmt.Errorf("reading confirmation: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			return defaultYes, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintln(c.out, "Please respond with 'y' or 'n'.")
		}
	}
}
