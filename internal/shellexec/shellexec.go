// SPDX-License-Identifier: MPL-2.0

package shellexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"pylab/pkg/platform"
)

type (
	// IO bundles the standard streams for a run.
	IO struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// Result is the outcome of a host command.
	Result struct {
		ExitCode int
	}

	// RunnerOption configures a Runner.
	RunnerOption func(*Runner)

	// Runner executes shell commands directly on the host. The system shell
	// is used when present; otherwise the embedded interpreter takes over.
	Runner struct {
		// shell overrides shell discovery (for tests).
		shell    string
		lookPath func(string) (string, error)
		getenv   func(string) string
	}
)

// WithShell pins the shell binary instead of discovering one.
func WithShell(shell string) RunnerOption {
	return func(r *Runner) { r.shell = shell }
}

// WithLookPath overrides binary lookup (for tests).
func WithLookPath(fn func(string) (string, error)) RunnerOption {
	return func(r *Runner) { r.lookPath = fn }
}

// WithGetenv overrides environment lookup (for tests).
func WithGetenv(fn func(string) string) RunnerOption {
	return func(r *Runner) { r.getenv = fn }
}

// NewRunner creates a host command runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		lookPath: exec.LookPath,
		getenv:   os.Getenv,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// findShell locates a usable system shell. Empty means none was found and
// the embedded interpreter should run the command.
func (r *Runner) findShell() string {
	if r.shell != "" {
		return r.shell
	}

	if platform.IsWindows() {
		for _, name := range []string{"pwsh", "powershell", "cmd"} {
			if p, err := r.lookPath(name); err == nil {
				return p
			}
		}
		return ""
	}

	if shell := r.getenv("SHELL"); shell != "" {
		if p, err := r.lookPath(shell); err == nil {
			return p
		}
	}
	for _, name := range []string{"bash", "sh", "zsh"} {
		if p, err := r.lookPath(name); err == nil {
			return p
		}
	}
	return ""
}

// shellArgs builds the argument list that makes the shell run a command
// string.
func shellArgs(shell, command string) []string {
	base := shell
	if i := strings.LastIndexAny(shell, `/\`); i >= 0 {
		base = shell[i+1:]
	}
	switch base {
	case "cmd", "cmd.exe":
		return []string{"/C", command}
	case "pwsh", "pwsh.exe", "powershell", "powershell.exe":
		return []string{"-Command", command}
	default:
		return []string{"-c", command}
	}
}

// ErrNoSystemShell reports that no usable shell binary exists on the host.
var ErrNoSystemShell = errors.New("no system shell found")

// Argv returns the shell invocation that runs command. Callers that need a
// spawnable argv (remote sessions attach it to a pseudo-terminal) use this;
// callers that can stream through the embedded interpreter use Run.
func (r *Runner) Argv(command string) (string, []string, error) {
	shell := r.findShell()
	if shell == "" {
		return "", nil, ErrNoSystemShell
	}
	return shell, shellArgs(shell, command), nil
}

// Run executes a command in workDir. A non-zero exit status is reported in
// the result, not as an error.
func (r *Runner) Run(ctx context.Context, command, workDir string, streams IO) (*Result, error) {
	if shell := r.findShell(); shell != "" {
		return r.runSystem(ctx, shell, command, workDir, streams)
	}
	return r.runEmbedded(ctx, command, workDir, streams)
}

func (r *Runner) runSystem(ctx context.Context, shell, command, workDir string, streams IO) (*Result, error) {
	cmd := exec.CommandContext(ctx, shell, shellArgs(shell, command)...)
	cmd.Dir = workDir
	cmd.Stdin = streams.Stdin
	cmd.Stdout = streams.Stdout
	cmd.Stderr = streams.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &Result{ExitCode: exitErr.ExitCode()}, nil
		}
		return nil, fmt.Errorf("failed to run shell %s: %w", shell, err)
	}
	return &Result{ExitCode: 0}, nil
}

// runEmbedded interprets the command with mvdan/sh.
func (r *Runner) runEmbedded(ctx context.Context, command, workDir string, streams IO) (*Result, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(command), "command")
	if err != nil {
		return nil, fmt.Errorf("command syntax error: %w", err)
	}

	runner, err := interp.New(
		interp.Dir(workDir),
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.StdIO(streams.Stdin, streams.Stdout, streams.Stderr),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create shell interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return &Result{ExitCode: int(exitStatus)}, nil
		}
		return nil, fmt.Errorf("command execution failed: %w", err)
	}
	return &Result{ExitCode: 0}, nil
}
