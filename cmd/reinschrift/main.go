// reinschrift is a terminal task list over a markdown file kept on local
// disk or a WebDAV server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/danst0/reinschrift/internal/config"
	"github.com/danst0/reinschrift/internal/ui"
)

var (
	version = "dev"

	// Styles for CLI output
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	boldStyle    = lipgloss.NewStyle().Bold(true)
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "reinschrift",
		Short:         "Markdown task list",
		Long:          "A terminal task list over a markdown file on local disk or WebDAV, with voice capture.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runTUI,
	}
	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	rootCmd.PersistentFlags().String("file", "", "Task file to use instead of the configured backend")
	rootCmd.PersistentFlags().String("db", "", "Preferences database (default: <data_dir>/reinschrift.db)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ~/.config/reinschrift/config.yaml)")
	rootCmd.PersistentFlags().String("lang", "", "UI language for this run (e.g. de, en)")

	rootCmd.AddCommand(
		newAddCmd(),
		newListCmd(),
		newToggleCmd("done", "Mark a task as done", true),
		newToggleCmd("undo", "Reopen a completed task", false),
		newHistoryCmd(),
		newSettingsCmd(),
		newTestConnectionCmd(),
		newModelCmd(),
		newServeCmd(),
	)
	return rootCmd
}

// runTUI starts the interactive list.
func runTUI(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("the interactive list needs a terminal; see 'reinschrift --help' for commands")
	}

	e, err := openEnv(cmd, true)
	if err != nil {
		return err
	}
	defer e.Close()

	a := e.startApp(cmd, true)

	keys := ui.DefaultKeyMap()
	if kb, err := config.LoadKeybindings(); err != nil {
		e.logger.Warn("ignoring keybindings file", "err", err)
	} else {
		keys = ui.ApplyKeybindingsConfig(keys, kb)
	}

	model := ui.NewAppModel(a, ui.Options{
		Keys:          keys,
		Logger:        e.logger.WithPrefix("ui"),
		DrainInterval: e.cfg.DrainInterval,
		Initial:       e.initial,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}
