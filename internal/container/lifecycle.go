// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"
)

type (
	// BuildSpec describes how to produce the learning image.
	BuildSpec struct {
		// ContextDir is the build context directory.
		ContextDir string
		// Dockerfile is the Dockerfile path relative to ContextDir. Empty
		// means a default recipe is materialized into the context.
		Dockerfile string
		// Tag is the image tag to build.
		Tag ImageTag
		// KnownFingerprint is the fingerprint recorded after the last
		// successful build. Matching it skips the rebuild.
		KnownFingerprint string
		// NoCache forces a full rebuild.
		NoCache bool
	}

	// ManagerOption configures a Manager.
	ManagerOption func(*Manager)

	// Manager owns the learning container's lifecycle. It is the only
	// component that creates, starts, stops, restarts, or removes the
	// container; everything else goes through the Handle it maintains.
	Manager struct {
		engine   Engine
		logger   *log.Logger
		envName  string
		workDir  string
		userSpec func() string

		// builtFingerprint is the fingerprint of the last build this manager
		// completed, so repeated EnsureImage calls with unchanged inputs do
		// not need the caller to thread the marker value back.
		builtFingerprint string
	}
)

// WithLogger sets the manager's logger.
func WithLogger(logger *log.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithEnvName sets the in-container environment name used by the exec
// activation wrapper.
func WithEnvName(name string) ManagerOption {
	return func(m *Manager) { m.envName = name }
}

// WithWorkDir sets the in-container workspace directory.
func WithWorkDir(dir string) ManagerOption {
	return func(m *Manager) { m.workDir = dir }
}

// WithUserSpec overrides the uid:gid resolution (for tests).
func WithUserSpec(fn func() string) ManagerOption {
	return func(m *Manager) { m.userSpec = fn }
}

// NewManager creates a lifecycle manager on top of a container engine.
func NewManager(engine Engine, opts ...ManagerOption) *Manager {
	m := &Manager{
		engine:   engine,
		logger:   log.Default(),
		envName:  "pylab-learning",
		workDir:  "/workspace",
		userSpec: currentUserSpec,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Engine returns the underlying container engine.
func (m *Manager) Engine() Engine {
	return m.engine
}

// WorkDir returns the in-container workspace directory.
func (m *Manager) WorkDir() string {
	return m.workDir
}

// currentUserSpec maps the container user to the invoking host user so files
// written through a bind mount keep the right ownership. Windows engines
// ignore the flag, so no spec is emitted there.
func currentUserSpec() string {
	if runtime.GOOS == "windows" {
		return ""
	}
	return fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid())
}

// EnsureImage makes sure the learning image exists and is current. It
// returns the fingerprint of the build inputs and whether a build ran.
//
// A build failure is fatal only when no previous image exists; otherwise the
// stale image is kept and the failure reported through the logger.
func (m *Manager) EnsureImage(ctx context.Context, h *Handle, spec BuildSpec) (string, bool, error) {
	dockerfile := spec.Dockerfile
	if dockerfile == "" {
		var err error
		dockerfile, err = EnsureBuildContext(spec.ContextDir)
		if err != nil {
			return "", false, err
		}
	}

	fingerprint, err := BuildFingerprint(
		filepath.Join(spec.ContextDir, dockerfile),
		filepath.Join(spec.ContextDir, "environment.yml"),
	)
	if err != nil {
		return "", false, err
	}

	exists, err := m.engine.ImageExists(ctx, spec.Tag)
	if err != nil {
		return "", false, err
	}

	current := fingerprint == spec.KnownFingerprint || fingerprint == m.builtFingerprint
	if exists && current && !spec.NoCache {
		m.logger.Debug("image is current, skipping build", "image", spec.Tag)
		return fingerprint, false, nil
	}

	if h.State() == StateAbsent {
		if err := h.transition(StateBuilding); err != nil {
			return "", false, err
		}
	}

	m.logger.Info("building learning image", "image", spec.Tag)
	buildErr := m.engine.Build(ctx, BuildOptions{
		ContextDir: spec.ContextDir,
		Dockerfile: dockerfile,
		Tag:        spec.Tag,
		NoCache:    spec.NoCache,
		Stdout:     os.Stderr,
		Stderr:     os.Stderr,
	})
	if buildErr != nil {
		if exists {
			m.logger.Warn("image build failed, continuing with previous image",
				"image", spec.Tag, "error", buildErr)
			return spec.KnownFingerprint, false, nil
		}
		if h.State() == StateBuilding {
			_ = h.transition(StateAbsent)
		}
		return "", false, buildErr
	}

	m.builtFingerprint = fingerprint
	return fingerprint, true, nil
}

// Create creates the container described by the handle. In volume mode the
// workspace directory is bind-mounted at the container workdir; in copy mode
// no mount is attached and files travel by explicit copies.
//
// On failure the handle state is unchanged, so a mount-restricted volume
// attempt can be retried in copy mode against the same handle.
func (m *Manager) Create(ctx context.Context, h *Handle, workspaceDir string) error {
	opts := CreateOptions{
		Image:       h.Image(),
		Name:        h.Name(),
		WorkDir:     m.workDir,
		User:        m.userSpec(),
		Interactive: true,
		TTY:         true,
	}
	if h.Mode() == MountVolume {
		opts.Volumes = []string{workspaceDir + ":" + m.workDir}
	}

	id, err := m.engine.Create(ctx, opts)
	if err != nil {
		return err
	}

	h.setID(id)
	if err := h.transition(StateStopped); err != nil {
		return err
	}

	m.logger.Debug("container created", "name", h.Name(), "id", id, "mode", h.Mode())
	return nil
}

// Adopt reconciles the handle with a container that already exists from a
// previous run. Returns true if a container was found.
func (m *Manager) Adopt(ctx context.Context, h *Handle) (bool, error) {
	exists, err := m.engine.ContainerExists(ctx, h.Name())
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	h.setID(ContainerID(h.Name()))
	if err := h.transition(StateStopped); err != nil {
		return false, err
	}

	running, err := m.engine.ContainerRunning(ctx, h.Name())
	if err != nil {
		return false, err
	}
	if running {
		if err := h.transition(StateRunning); err != nil {
			return false, err
		}
	}

	return true, nil
}

// Start starts a stopped container.
func (m *Manager) Start(ctx context.Context, h *Handle) error {
	if h.State() != StateStopped {
		return &TransitionError{From: h.State(), To: StateRunning}
	}

	if err := m.engine.Start(ctx, h.ID()); err != nil {
		return err
	}

	return h.transition(StateRunning)
}

// Stop stops a running container. Stopping an already stopped container is a
// no-op, not an error. An unhealthy container is refused: Restart or Teardown
// are its only ways out, so it cannot re-enter the normal lifecycle stopped.
func (m *Manager) Stop(ctx context.Context, h *Handle) error {
	if h.State() == StateStopped {
		return nil
	}
	if h.State() != StateRunning {
		return &TransitionError{From: h.State(), To: StateStopped}
	}

	if err := m.engine.Stop(ctx, h.ID()); err != nil {
		return err
	}

	return h.transition(StateStopped)
}

// Remove force-removes the container and returns the handle to Absent.
func (m *Manager) Remove(ctx context.Context, h *Handle) error {
	if h.State() == StateAbsent {
		return nil
	}

	if err := m.engine.Remove(ctx, h.ID(), true); err != nil {
		return err
	}

	return h.transition(StateAbsent)
}

// Restart tears the container down and brings a fresh one up from the same
// image. This is the only path out of the Unhealthy state.
func (m *Manager) Restart(ctx context.Context, h *Handle, workspaceDir string) error {
	m.logger.Info("restarting container", "name", h.Name())

	if err := m.Remove(ctx, h); err != nil {
		return err
	}
	if err := m.Create(ctx, h, workspaceDir); err != nil {
		return err
	}
	return m.Start(ctx, h)
}

// Exec runs a shell command inside the running container, wrapped in the
// environment activation so the curriculum's interpreter and packages are on
// PATH. Sending a command to a container that is not running fails without
// touching the handle state.
func (m *Manager) Exec(ctx context.Context, h *Handle, command string, opts ExecOptions) (*ExecResult, error) {
	if h.State() != StateRunning {
		return nil, &ExecError{ContainerID: h.ID(), Cause: ErrNotRunning}
	}

	if opts.WorkDir == "" {
		opts.WorkDir = m.workDir
	}

	wrapped := m.activationCommand(command)
	return m.engine.Exec(ctx, h.ID(), wrapped, opts)
}

// activationCommand wraps a shell command with micromamba environment
// activation.
func (m *Manager) activationCommand(command string) []string {
	return []string{"micromamba", "run", "-n", m.envName, "bash", "-lc", command}
}

// ExecArgsFor exposes the full engine argument list for an exec, for callers
// that attach the process to a PTY instead of running it to completion.
func (m *Manager) ExecArgsFor(h *Handle, command string, opts ExecOptions) ([]string, error) {
	if h.State() != StateRunning {
		return nil, &ExecError{ContainerID: h.ID(), Cause: ErrNotRunning}
	}

	if opts.WorkDir == "" {
		opts.WorkDir = m.workDir
	}

	base, ok := engineBase(m.engine)
	if !ok {
		return nil, errors.New("engine does not expose CLI argument building")
	}
	return base.ExecArgs(h.ID(), m.activationCommand(command), opts), nil
}

// CommandPath returns the engine binary path for PTY attachment.
func (m *Manager) CommandPath() (string, error) {
	base, ok := engineBase(m.engine)
	if !ok {
		return "", errors.New("engine does not expose a CLI binary")
	}
	return base.BinaryPath(), nil
}

func engineBase(e Engine) (*BaseCLIEngine, bool) {
	type baser interface{ base() *BaseCLIEngine }
	switch v := e.(type) {
	case *DockerEngine:
		return v.BaseCLIEngine, true
	case *PodmanEngine:
		return v.BaseCLIEngine, true
	case baser:
		return v.base(), true
	default:
		return nil, false
	}
}

// HealthCheck verifies that a Running handle still has a live container. A
// dead container moves the handle to Unhealthy; recovery requires Restart.
func (m *Manager) HealthCheck(ctx context.Context, h *Handle) (State, error) {
	if h.State() != StateRunning {
		return h.State(), nil
	}

	running, err := m.engine.ContainerRunning(ctx, h.Name())
	if err != nil {
		return h.State(), err
	}
	if !running {
		m.logger.Warn("container no longer running", "name", h.Name())
		if err := h.transition(StateUnhealthy); err != nil {
			return h.State(), err
		}
	}

	return h.State(), nil
}

// Teardown removes the container and, optionally, the learning image.
func (m *Manager) Teardown(ctx context.Context, h *Handle, removeImage bool) error {
	if err := m.Remove(ctx, h); err != nil {
		return err
	}

	if removeImage {
		if err := m.engine.RemoveImage(ctx, h.Image(), true); err != nil {
			return err
		}
	}

	return nil
}
