// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"pylab/internal/config"
	"pylab/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug output.
	verbose bool
	// cfgFile allows specifying a custom config file.
	cfgFile string

	// rootCmd represents the base command when called without any subcommands.
	rootCmd = &cobra.Command{
		Use:   "pylab",
		Short: "A self-managing Python learning environment",
		Long: TitleStyle.Render("pylab") + SubtitleStyle.Render(" - A self-managing Python learning environment") + `

pylab runs lesson commands in whichever environment works on this
machine: the host Python directly, a workspace-local micromamba
environment, or an isolated learning container (Docker/Podman).
It probes the host for conflicts, picks a backend, and keeps your
working files in sync when the container cannot mount them.

` + SubtitleStyle.Render("Quick Start:") + `
  1. cd into your lesson workspace
  2. pylab run                  Start a Python REPL
  3. pylab run python lesson.py Run a script

` + SubtitleStyle.Render("Examples:") + `
  pylab run --watch python lesson.py   Re-run the script on save
  pylab run --isolate                  Force the container backend
  pylab env status                     Show what the prober found
  pylab serve --learner ada            Host a remote classroom session`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/pylab/config.cue)")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(serveCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// initRootConfig applies global flags that affect every command.
func initRootConfig() {
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}

// loadConfig loads the effective configuration, warning (not failing) on a
// broken config file so a typo never locks the learner out of the CLI.
func loadConfig(ctx context.Context) *config.Config {
	cfg, err := config.NewProvider().Load(ctx, config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
		return config.DefaultConfig()
	}
	if cfg.UI.Verbose && !verbose {
		verbose = true
		log.SetLevel(log.DebugLevel)
	}
	return cfg
}

// workspaceDir is the lesson workspace: the current working directory.
func workspaceDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("cannot determine workspace directory: %w", err)
	}
	return dir, nil
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// carry their own suggestions; verbose mode shows the full chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
