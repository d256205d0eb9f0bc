// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"pylab/internal/backend"
	"pylab/internal/config"
	"pylab/internal/session"
	"pylab/internal/watch"
)

var (
	runBackend     string
	runIsolate     bool
	runCopyMode    bool
	runInteractive bool
	runRebuild     bool
	runWatch       bool
	runWatchGlobs  []string

	runCmd = &cobra.Command{
		Use:   "run [command...]",
		Short: "Run a lesson command in the best available environment",
		Long: `Run a lesson command in whichever backend works on this machine.

With no command, starts an interactive Python REPL. The backend is
chosen from the host probe unless --backend or --isolate overrides it;
the choice is cached for the whole run.`,
		Example: `  pylab run
  pylab run python lesson.py
  pylab run --watch python lesson.py
  pylab run --backend container --copy-mode jupyter lab`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLesson(cmd.Context(), args)
		},
	}
)

func init() {
	runCmd.Flags().StringVarP(&runBackend, "backend", "b", "", "force a backend: host, localenv, or container")
	runCmd.Flags().BoolVar(&runIsolate, "isolate", false, "force container isolation without naming a backend")
	runCmd.Flags().BoolVar(&runCopyMode, "copy-mode", false, "skip the bind mount attempt and copy files instead")
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "attach the command to the terminal")
	runCmd.Flags().BoolVar(&runRebuild, "rebuild", false, "rebuild the environment or image before running")
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "re-run the command when workspace files change")
	runCmd.Flags().StringSliceVar(&runWatchGlobs, "watch-pattern", []string{"**/*.py"}, "glob patterns that trigger a re-run")
}

// newSessionDriver wires a session driver for the current workspace.
func newSessionDriver(ctx context.Context) (*session.Driver, string, error) {
	cfg := loadConfig(ctx)

	ws, err := workspaceDir()
	if err != nil {
		return nil, "", err
	}
	stateDir, err := config.StateDir()
	if err != nil {
		return nil, "", err
	}

	d := session.NewDriver(cfg, ws, stateDir,
		session.WithDriverLogger(log.Default()),
	)
	return d, ws, nil
}

// parseBackendFlag turns the --backend value into an override; empty means
// let the selector decide.
func parseBackendFlag(value string) (*backend.Kind, error) {
	if value == "" {
		return nil, nil
	}
	kind, err := backend.ParseKind(value)
	if err != nil {
		return nil, err
	}
	return &kind, nil
}

// buildRunOptions assembles session options from flags and arguments. An
// empty command becomes an interactive Python REPL.
func buildRunOptions(args []string) (session.Options, error) {
	override, err := parseBackendFlag(runBackend)
	if err != nil {
		return session.Options{}, err
	}

	command := strings.Join(args, " ")
	interactive := runInteractive
	if command == "" {
		command = "python"
		interactive = true
	}

	return session.Options{
		Command:     command,
		Backend:     override,
		Isolate:     runIsolate,
		CopyMode:    runCopyMode,
		Interactive: interactive,
		Rebuild:     runRebuild,
	}, nil
}

func runLesson(ctx context.Context, args []string) error {
	opts, err := buildRunOptions(args)
	if err != nil {
		return err
	}

	driver, ws, err := newSessionDriver(ctx)
	if err != nil {
		return err
	}

	if runWatch {
		return watchAndRun(ctx, driver, ws, opts)
	}

	code, err := driver.Run(ctx, opts)
	if err != nil {
		return err
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// watchAndRun runs the lesson once, then re-runs it whenever matching
// workspace files change. Run failures are reported and watching continues;
// only watcher failures end the loop.
func watchAndRun(ctx context.Context, driver *session.Driver, ws string, opts session.Options) error {
	if opts.Interactive {
		return fmt.Errorf("--watch cannot be combined with an interactive session")
	}

	rerun := func(ctx context.Context) {
		code, err := driver.Run(ctx, opts)
		switch {
		case err != nil:
			fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
		case code != 0:
			fmt.Fprintln(os.Stderr, WarningStyle.Render(fmt.Sprintf("exit status %d", code)))
		}
	}

	rerun(ctx)

	w, err := watch.New(watch.Config{
		Patterns: runWatchGlobs,
		BaseDir:  ws,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintln(os.Stderr, SubtitleStyle.Render(
				fmt.Sprintf("%d file(s) changed, re-running %s", len(changed), opts.Command)))
			rerun(ctx)
			return nil
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, SubtitleStyle.Render("watching for changes, press Ctrl-C to stop"))
	return w.Run(ctx)
}
