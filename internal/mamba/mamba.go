// SPDX-License-Identifier: MPL-2.0

package mamba

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"pylab/pkg/platform"
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// ManagerOption configures a Manager.
	ManagerOption func(*Manager)

	// Manager installs micromamba into <workspace>/.mamba and manages the
	// learning environment inside it. The installation is private to the
	// workspace; nothing touches system package managers or a system conda.
	Manager struct {
		workspaceDir string
		envName      string
		logger       *log.Logger
		execCommand  ExecCommandFunc
		download     func(ctx context.Context, url, dest string) error
	}

	// RunResult is the outcome of a command run inside the environment.
	RunResult struct {
		ExitCode int
		Stdout   string
		Stderr   string
	}
)

// WithLogger sets the manager's logger.
func WithLogger(logger *log.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) ManagerOption {
	return func(m *Manager) { m.execCommand = fn }
}

// WithDownloader overrides the binary download step (for tests).
func WithDownloader(fn func(ctx context.Context, url, dest string) error) ManagerOption {
	return func(m *Manager) { m.download = fn }
}

// NewManager creates a micromamba manager rooted at the workspace.
func NewManager(workspaceDir, envName string, opts ...ManagerOption) *Manager {
	m := &Manager{
		workspaceDir: workspaceDir,
		envName:      envName,
		logger:       log.Default(),
		execCommand:  exec.CommandContext,
	}
	m.download = m.downloadRelease
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RootDir returns the micromamba root prefix (<workspace>/.mamba).
func (m *Manager) RootDir() string {
	return filepath.Join(m.workspaceDir, ".mamba")
}

// BinPath returns the micromamba binary path.
func (m *Manager) BinPath() string {
	name := "micromamba"
	if platform.IsWindows() {
		name = "micromamba.exe"
	}
	return filepath.Join(m.RootDir(), "bin", name)
}

// Installed reports whether the workspace-local micromamba binary exists.
func (m *Manager) Installed() bool {
	info, err := os.Stat(m.BinPath())
	return err == nil && !info.IsDir()
}

// releaseURL is the download endpoint for the current platform. The endpoint
// serves a bzip2 tar archive containing bin/micromamba.
func releaseURL() (string, error) {
	var osPart string
	switch {
	case platform.IsLinux():
		osPart = "linux"
	case platform.IsDarwin():
		osPart = "osx"
	case platform.IsWindows():
		osPart = "win"
	default:
		return "", fmt.Errorf("no micromamba release for this platform")
	}

	arch := "64"
	if platform.IsArm64() {
		if osPart == "linux" {
			arch = "aarch64"
		} else {
			arch = "arm64"
		}
	}

	return fmt.Sprintf("https://micro.mamba.pm/api/micromamba/%s-%s/latest", osPart, arch), nil
}

// Install downloads the micromamba release and unpacks the binary into the
// workspace-local root. Idempotent: an existing installation is kept.
func (m *Manager) Install(ctx context.Context) error {
	if m.Installed() {
		return nil
	}

	url, err := releaseURL()
	if err != nil {
		return err
	}

	binDir := filepath.Dir(m.BinPath())
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", binDir, err)
	}

	m.logger.Info("installing micromamba", "url", url, "dest", m.BinPath())
	if err := m.download(ctx, url, m.BinPath()); err != nil {
		return fmt.Errorf("failed to install micromamba: %w", err)
	}

	if err := os.Chmod(m.BinPath(), 0o755); err != nil {
		return fmt.Errorf("failed to mark micromamba executable: %w", err)
	}

	return nil
}

// env returns the process environment for micromamba invocations, with the
// root prefix pinned to the workspace-local directory.
func (m *Manager) env() []string {
	return append(os.Environ(), "MAMBA_ROOT_PREFIX="+m.RootDir())
}

// EnvExists reports whether the learning environment has been created.
func (m *Manager) EnvExists(ctx context.Context) bool {
	if !m.Installed() {
		return false
	}

	cmd := m.execCommand(ctx, m.BinPath(), "env", "list")
	cmd.Env = m.env()
	out, err := cmd.Output()
	if err != nil {
		return false
	}

	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == m.envName {
			return true
		}
	}
	return false
}

// CreateEnv creates the learning environment from an environment file.
// With rebuild set, an existing environment is removed first.
func (m *Manager) CreateEnv(ctx context.Context, envFile string, rebuild bool) error {
	if !m.Installed() {
		return fmt.Errorf("micromamba is not installed")
	}
	if _, err := os.Stat(envFile); err != nil {
		return fmt.Errorf("environment file %s: %w", envFile, err)
	}

	if rebuild && m.EnvExists(ctx) {
		m.logger.Info("removing existing environment", "env", m.envName)
		rm := m.execCommand(ctx, m.BinPath(), "env", "remove", "-n", m.envName, "-y")
		rm.Env = m.env()
		if err := rm.Run(); err != nil {
			return fmt.Errorf("failed to remove environment %s: %w", m.envName, err)
		}
	}

	if m.EnvExists(ctx) {
		return nil
	}

	m.logger.Info("creating environment", "env", m.envName, "file", envFile)
	create := m.execCommand(ctx, m.BinPath(), "create", "-n", m.envName, "-f", envFile, "-y")
	create.Env = m.env()
	create.Stdout = os.Stderr
	create.Stderr = os.Stderr
	if err := create.Run(); err != nil {
		return fmt.Errorf("failed to create environment %s: %w", m.envName, err)
	}

	clean := m.execCommand(ctx, m.BinPath(), "clean", "--all", "-y")
	clean.Env = m.env()
	if err := clean.Run(); err != nil {
		m.logger.Warn("package cache cleanup failed", "error", err)
	}

	return nil
}

// RunArgs returns the full argument vector for running a shell command in
// the environment, for callers that attach the process to a PTY.
func (m *Manager) RunArgs(command string) []string {
	return []string{m.BinPath(), "run", "-n", m.envName, "bash", "-lc", command}
}

// Run executes a shell command inside the environment. A non-zero exit code
// is captured in the result, not returned as an error.
func (m *Manager) Run(ctx context.Context, command string, stdin io.Reader, stdout, stderr io.Writer) (*RunResult, error) {
	if !m.Installed() {
		return nil, fmt.Errorf("micromamba is not installed")
	}

	args := m.RunArgs(command)
	cmd := m.execCommand(ctx, args[0], args[1:]...)
	cmd.Env = m.env()

	var outBuf, errBuf strings.Builder
	cmd.Stdin = stdin
	if stdout != nil {
		cmd.Stdout = stdout
	} else {
		cmd.Stdout = &outBuf
	}
	if stderr != nil {
		cmd.Stderr = stderr
	} else {
		cmd.Stderr = &errBuf
	}

	err := cmd.Run()
	result := &RunResult{Stdout: outBuf.String(), Stderr: errBuf.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("failed to run command in environment: %w", err)
		}
	}

	return result, nil
}
