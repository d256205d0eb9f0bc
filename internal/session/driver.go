// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"pylab/internal/backend"
	"pylab/internal/config"
	"pylab/internal/mamba"
	"pylab/internal/probe"
	"pylab/internal/shellexec"
)

type (
	// hostProber is the slice of the environment prober the driver needs.
	hostProber interface {
		Probe(ctx context.Context) probe.Report
	}

	// Options describes one run.
	Options struct {
		// Command is the shell command to execute in the chosen environment.
		Command string
		// Backend is the user's explicit backend choice; nil means decide.
		Backend *backend.Kind
		// Isolate forces the container backend without naming it.
		Isolate bool
		// CopyMode skips the bind-mount attempt and goes straight to copy
		// synchronization.
		CopyMode bool
		// Interactive attaches the command to the terminal (REPL sessions).
		Interactive bool
		// Rebuild forces environment or image reconstruction.
		Rebuild bool

		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// DriverOption configures a Driver.
	DriverOption func(*Driver)

	// Driver owns the run pipeline. One Driver serves one workspace; the
	// backend selection is resolved at most once per Driver.
	Driver struct {
		cfg          *config.Config
		workspaceDir string
		stateDir     string
		logger       *log.Logger

		prober    hostProber
		selection backend.Selection
		hostRun   *shellexec.Runner
		mambaMgr  *mamba.Manager
	}
)

// WithDriverLogger sets the driver's logger.
func WithDriverLogger(logger *log.Logger) DriverOption {
	return func(d *Driver) { d.logger = logger }
}

// WithProber overrides the host prober (for tests).
func WithProber(p hostProber) DriverOption {
	return func(d *Driver) { d.prober = p }
}

// WithMambaManager overrides the micromamba manager (for tests).
func WithMambaManager(m *mamba.Manager) DriverOption {
	return func(d *Driver) { d.mambaMgr = m }
}

// WithHostRunner overrides the host shell runner (for tests).
func WithHostRunner(r *shellexec.Runner) DriverOption {
	return func(d *Driver) { d.hostRun = r }
}

// NewDriver creates a session driver for one workspace.
func NewDriver(cfg *config.Config, workspaceDir, stateDir string, opts ...DriverOption) *Driver {
	d := &Driver{
		cfg:          cfg,
		workspaceDir: workspaceDir,
		stateDir:     stateDir,
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.prober == nil {
		d.prober = probe.New()
	}
	if d.hostRun == nil {
		d.hostRun = shellexec.NewRunner()
	}
	if d.mambaMgr == nil {
		d.mambaMgr = mamba.NewManager(workspaceDir, cfg.LocalEnv.EnvName,
			mamba.WithLogger(d.logger))
	}
	return d
}

// SelectBackend resolves the backend for this run. The decision is cached;
// repeated calls return the same answer.
func (d *Driver) SelectBackend(ctx context.Context, opts Options) backend.Kind {
	return d.selection.Resolve(func() backend.Kind {
		override := opts.Backend
		if override == nil && d.cfg.DefaultBackend != "" {
			if k, err := backend.ParseKind(d.cfg.DefaultBackend); err == nil {
				override = &k
			}
		}

		report := d.prober.Probe(ctx)
		selector := backend.NewSelector(d.mambaMgr.Installed)
		kind := selector.Select(backend.SelectInput{
			Report:   report,
			Override: override,
			Isolate:  opts.Isolate,
		})

		d.logger.Debug("backend selected",
			"backend", kind, "conflicts", len(report.Conflicts), "blocking", report.HasBlocking())
		return kind
	})
}

// Run executes one command in the selected backend and returns its exit
// code. Infrastructure failures are errors; the command's own non-zero exit
// is a result.
func (d *Driver) Run(ctx context.Context, opts Options) (int, error) {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	kind := d.SelectBackend(ctx, opts)

	var (
		code int
		err  error
		fp   string
	)
	switch kind {
	case backend.KindHost:
		code, err = d.runHost(ctx, opts)
	case backend.KindLocalEnv:
		code, err = d.runLocalEnv(ctx, opts)
	case backend.KindContainer:
		code, fp, err = d.runContainer(ctx, opts)
	default:
		return 1, &backend.InvalidKindError{Value: string(kind)}
	}
	if err != nil {
		return 1, err
	}

	d.saveMarker(kind, fp)
	return code, nil
}

// Setup prepares the selected backend without running a lesson: the host
// backend needs nothing, the local environment is installed and created, and
// the container image is built and the container established.
func (d *Driver) Setup(ctx context.Context, opts Options) error {
	switch kind := d.SelectBackend(ctx, opts); kind {
	case backend.KindHost:
		return nil
	case backend.KindLocalEnv:
		if err := d.mambaMgr.Install(ctx); err != nil {
			return err
		}
		return d.mambaMgr.CreateEnv(ctx, d.envFilePath(), opts.Rebuild)
	case backend.KindContainer:
		cs, err := d.prepareContainer(ctx, opts)
		if err != nil {
			return err
		}
		d.saveMarker(kind, cs.fingerprint)
		return nil
	default:
		return &backend.InvalidKindError{Value: string(kind)}
	}
}

// saveMarker records the backend that served this run. A marker failure is
// logged, never fatal: the next run simply re-decides.
func (d *Driver) saveMarker(kind backend.Kind, fingerprint string) {
	m := &backend.Marker{Backend: kind, ImageFingerprint: fingerprint}
	if fingerprint == "" {
		if prev, err := backend.LoadMarker(d.stateDir); err == nil && prev != nil {
			m.ImageFingerprint = prev.ImageFingerprint
		}
	}
	if err := backend.SaveMarker(d.stateDir, m); err != nil {
		d.logger.Warn("failed to persist backend marker", "error", err)
	}
}

// runHost executes the command directly on the host.
func (d *Driver) runHost(ctx context.Context, opts Options) (int, error) {
	d.logger.Debug("running on host", "command", opts.Command)

	res, err := d.hostRun.Run(ctx, opts.Command, d.workspaceDir, shellexec.IO{
		Stdin:  opts.Stdin,
		Stdout: opts.Stdout,
		Stderr: opts.Stderr,
	})
	if err != nil {
		return 1, err
	}
	return res.ExitCode, nil
}

// runLocalEnv executes the command in the workspace-local micromamba
// environment, installing and creating it on first use.
func (d *Driver) runLocalEnv(ctx context.Context, opts Options) (int, error) {
	if err := d.mambaMgr.Install(ctx); err != nil {
		return 1, err
	}

	if err := d.mambaMgr.CreateEnv(ctx, d.envFilePath(), opts.Rebuild); err != nil {
		return 1, err
	}

	if opts.Interactive {
		return d.attachLocalEnv(ctx, opts)
	}

	res, err := d.mambaMgr.Run(ctx, opts.Command, opts.Stdin, opts.Stdout, opts.Stderr)
	if err != nil {
		return 1, err
	}
	return res.ExitCode, nil
}

// attachLocalEnv runs an interactive command in the local environment on a
// pseudo-terminal.
func (d *Driver) attachLocalEnv(ctx context.Context, opts Options) (int, error) {
	args := d.mambaMgr.RunArgs(opts.Command)
	return attachPTY(ctx, args[0], args[1:], d.workspaceDir)
}

// envFilePath resolves the environment file location.
func (d *Driver) envFilePath() string {
	envFile := d.cfg.LocalEnv.EnvironmentFile
	if envFile == "" {
		envFile = "environment.yml"
	}
	if !filepath.IsAbs(envFile) {
		envFile = filepath.Join(d.workspaceDir, envFile)
	}
	return envFile
}
