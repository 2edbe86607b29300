// Package shell implements the remote shell app: it executes commands on a
// configured host over SSH and feeds combined output back to the agent.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/jlindermeir/ami0/internal/app"
	"github.com/jlindermeir/ami0/internal/config"
	"github.com/jlindermeir/ami0/internal/schema"
)

// Tag is the single action tag the shell app accepts.
const Tag = "ssh"

// sshDial allows substituting the dial function in tests.
var sshDial = ssh.Dial

// action is the shell app's wire payload.
type action struct {
	Commands []string `json:"commands"`
}

// commandResult captures one remote command execution.
type commandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// App runs commands on a remote server over a long-lived SSH connection.
// The connection is owned by the app: dialed eagerly at construction and
// released in Close.
type App struct {
	cfg    config.SSHConfig
	logger *zap.Logger
	client *ssh.Client
}

var _ app.App = (*App)(nil)

// New dials the configured server. A failed dial fails app construction
// and with it the whole process, per the resource contract.
func New(cfg config.SSHConfig, logger *zap.Logger) (*App, error) {
	clientConfig := &ssh.ClientConfig{
		User: cfg.Username,
		Auth: []ssh.AuthMethod{ssh.Password(cfg.Password)},
		// The target is an operator-configured lab host; host keys are not
		// pinned, matching the original deployment model.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         cfg.CommandTimeout,
	}

	client, err := sshDial("tcp", cfg.Addr(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("dialing %s as %s: %w", cfg.Addr(), cfg.Username, err)
	}

	l := logger.Named("app.ssh")
	l.Info("SSH connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("username", cfg.Username))

	return &App{cfg: cfg, logger: l, client: client}, nil
}

func (a *App) Name() string {
	return "ssh"
}

func (a *App) Description() string {
	return fmt.Sprintf("Execute commands on the remote server via SSH. "+
		"You can send multiple commands at once, and they will be executed in sequence. "+
		"The commands will be executed on %s as user %s.", a.cfg.Host, a.cfg.Username)
}

func (a *App) UsagePrompt() string {
	return fmt.Sprintf(`This is the SSH app. You can execute commands on the remote server at %s.

Features:
- Execute one or more shell commands
- Commands are run in sequence
- Each command gets its own pseudo-terminal
- Full output (stdout and stderr) is captured
- Exit codes are returned

Example action:
{
    "type": "ssh",
    "commands": [
        "uptime",
        "df -h",
        "free -m"
    ]
}

You are connected as: %s@%s`, a.cfg.Host, a.cfg.Username, a.cfg.Host)
}

func (a *App) ActionModels() []schema.ActionModel {
	return []schema.ActionModel{{
		Tag:         Tag,
		Description: "Execute shell commands on the remote server via SSH.",
		Payload: schema.Object(map[string]*schema.Node{
			"commands": schema.StringArray("List of commands to execute on the server, in order."),
		}),
	}}
}

func (a *App) HandleAction(ctx context.Context, act app.Action) (app.Result, error) {
	var payload action
	if err := act.Decode(&payload); err != nil {
		return app.Result{}, fmt.Errorf("decoding ssh action: %w", err)
	}
	if len(payload.Commands) == 0 {
		return app.Result{}, fmt.Errorf("ssh action contains no commands")
	}

	results := make([]commandResult, 0, len(payload.Commands))
	for _, command := range payload.Commands {
		a.logger.Info("Executing remote command", zap.String("command", command))
		result := a.runCommand(ctx, command)
		a.logger.Info("Remote command finished",
			zap.String("command", command),
			zap.Int("exit_code", result.ExitCode))
		results = append(results, result)
	}

	return app.Result{Text: formatResults(payload.Commands, results)}, nil
}

// runCommand executes one command in its own session with a pseudo-terminal.
// The wait is bounded by the configured timeout instead of blocking forever
// on an unresponsive channel.
func (a *App) runCommand(ctx context.Context, command string) commandResult {
	if a.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.CommandTimeout)
		defer cancel()
	}

	session, err := a.client.NewSession()
	if err != nil {
		return commandResult{ExitCode: -1, Stderr: fmt.Sprintf("opening session: %v", err)}
	}
	defer session.Close()

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("xterm", 40, 80, modes); err != nil {
		return commandResult{ExitCode: -1, Stderr: fmt.Sprintf("requesting pty: %v", err)}
	}

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		// Closing the session unblocks the Run goroutine.
		session.Close()
		<-done
		return commandResult{
			ExitCode: -1,
			Stdout:   stdout.String(),
			Stderr:   fmt.Sprintf("command aborted: %v", ctx.Err()),
		}
	case err := <-done:
		result := commandResult{Stdout: stdout.String(), Stderr: stderr.String()}
		var exitErr *ssh.ExitError
		switch {
		case err == nil:
			result.ExitCode = 0
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitStatus()
		default:
			result.ExitCode = -1
			if result.Stderr == "" {
				result.Stderr = err.Error()
			}
		}
		return result
	}
}

func (a *App) Close() error {
	a.logger.Info("Closing SSH connection")
	return a.client.Close()
}

// formatResults renders per-command output for the conversation.
func formatResults(commands []string, results []commandResult) string {
	var lines []string
	for i, result := range results {
		lines = append(lines,
			fmt.Sprintf("Command %d: %s", i+1, commands[i]),
			fmt.Sprintf("Exit code: %d", result.ExitCode),
			"Output:")
		if out := strings.TrimSpace(result.Stdout); out != "" {
			lines = append(lines, out)
		} else {
			lines = append(lines, "(no output)")
		}
		if errOut := strings.TrimSpace(result.Stderr); errOut != "" {
			lines = append(lines, "Errors:", errOut)
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
