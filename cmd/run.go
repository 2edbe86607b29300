// -- cmd/run.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jlindermeir/ami0/internal/agent"
	"github.com/jlindermeir/ami0/internal/app"
	"github.com/jlindermeir/ami0/internal/apps/browser"
	"github.com/jlindermeir/ami0/internal/apps/echo"
	"github.com/jlindermeir/ami0/internal/apps/shell"
	"github.com/jlindermeir/ami0/internal/config"
	"github.com/jlindermeir/ami0/internal/observability"
	"github.com/jlindermeir/ami0/internal/transport"
)

var runTurns int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the agent session",
	Long: `Starts the agent loop: the model observes the current state (home screen
or an app), proposes exactly one action per turn, and every action is
gated on an interactive y/n confirmation before it executes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		reg, err := buildRegistry(cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := reg.CloseAll(); cerr != nil {
				logger.Warn("Failed to close apps cleanly", zap.Error(cerr))
			}
		}()

		client, err := transport.NewClient(cfg.Agent.LLM, logger)
		if err != nil {
			return err
		}

		confirmer := agent.NewConsoleConfirmer(os.Stdin, os.Stdout)

		turns := cfg.Agent.MaxTurns
		if cmd.Flags().Changed("turns") {
			turns = runTurns
		}

		loop, err := agent.New(logger, reg, client, confirmer, agent.Options{
			HistoryWindow:  cfg.Agent.HistoryWindow,
			MaxTurns:       turns,
			ConfirmDefault: cfg.Agent.ConfirmDefault,
			Output:         os.Stdout,
		})
		if err != nil {
			return err
		}

		if err := loop.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("Session finished")
		return nil
	},
}

// buildRegistry assembles the app roster from configuration. Apps with
// external resources (SSH, browser) are constructed eagerly so a broken
// dependency fails the session at startup instead of mid-conversation.
func buildRegistry(cfg *config.Config, logger *zap.Logger) (*app.Registry, error) {
	reg := app.NewRegistry()

	if cfg.Apps.Echo.Enabled {
		if err := reg.Register(echo.New()); err != nil {
			return nil, err
		}
	}

	if cfg.Apps.SSH.Enabled {
		sshApp, err := shell.New(cfg.Apps.SSH, logger)
		if err != nil {
			return nil, fmt.Errorf("setting up ssh app: %w", err)
		}
		if err := reg.Register(sshApp); err != nil {
			return nil, err
		}
	}

	if cfg.Apps.Browser.Enabled {
		browserApp, err := browser.New(cfg.Apps.Browser, logger)
		if err != nil {
			return nil, fmt.Errorf("setting up browser app: %w", err)
		}
		if err := reg.Register(browserApp); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

func init() {
	runCmd.Flags().IntVar(&runTurns, "turns", 0, "maximum number of agent turns (0 runs until interrupted)")
	rootCmd.AddCommand(runCmd)
}
