// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"fmt"
	"time"

	"pylab/internal/backend"
	"pylab/internal/container"
	"pylab/internal/fallback"
	"pylab/internal/issue"
	filesync "pylab/internal/sync"
)

// containerSession is a prepared container backend: image ensured, container
// established and healthy, copy-mode workspace seeded.
type containerSession struct {
	manager     *container.Manager
	handle      *container.Handle
	syncer      *filesync.Syncer
	fingerprint string
	copyMode    bool
}

// runContainer executes the command in the learning container. Returns the
// exit code and the image fingerprint that served the run.
func (d *Driver) runContainer(ctx context.Context, opts Options) (int, string, error) {
	cs, err := d.prepareContainer(ctx, opts)
	if err != nil {
		return 1, "", err
	}

	code, err := d.execInContainer(ctx, cs, opts)
	if err != nil {
		return 1, "", err
	}
	return code, cs.fingerprint, nil
}

// prepareContainer brings the learning container to Running: it ensures the
// image, adopts or establishes the container (falling back to copy mode when
// mounts are restricted), and restarts once if the container died behind our
// back.
func (d *Driver) prepareContainer(ctx context.Context, opts Options) (*containerSession, error) {
	engine, err := container.NewEngine(container.EngineType(d.cfg.ContainerEngine))
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("starting the container backend").
			WithResource("container engine").
			WithSuggestion("install Docker or Podman and make sure the daemon is running").
			Wrap(err).
			Build()
	}

	manager := container.NewManager(engine,
		container.WithLogger(d.logger),
		container.WithEnvName(d.cfg.LocalEnv.EnvName),
		container.WithWorkDir(d.cfg.Container.Workdir),
	)

	mode := container.MountVolume
	if opts.CopyMode {
		mode = container.MountCopy
	}
	handle := container.NewHandle(d.cfg.Container.Name, container.ImageTag(d.cfg.Container.Image), mode)

	marker, _ := backend.LoadMarker(d.stateDir)
	known := ""
	if marker != nil {
		known = marker.ImageFingerprint
	}

	adopted, err := manager.Adopt(ctx, handle)
	if err != nil {
		return nil, err
	}
	if adopted && opts.Rebuild {
		if err := manager.Remove(ctx, handle); err != nil {
			return nil, err
		}
		adopted = false
	}

	fingerprint := known
	if !adopted {
		fp, _, err := manager.EnsureImage(ctx, handle, container.BuildSpec{
			ContextDir:       d.workspaceDir,
			Dockerfile:       d.cfg.Container.Dockerfile,
			Tag:              container.ImageTag(d.cfg.Container.Image),
			KnownFingerprint: known,
			NoCache:          opts.Rebuild,
		})
		if err != nil {
			return nil, err
		}
		fingerprint = fp
	}

	syncer, err := d.newSyncer(manager, handle)
	if err != nil {
		return nil, err
	}

	switch handle.State() {
	case container.StateStopped:
		if err := manager.Start(ctx, handle); err != nil {
			return nil, err
		}
	case container.StateRunning:
		// Adopted and already live.
	default:
		controller := fallback.NewController(manager,
			fallback.WithFallbackLogger(d.logger),
			fallback.WithInitialPush(func(ctx context.Context) error {
				_, err := syncer.Push(ctx)
				return err
			}),
		)
		if err := controller.Establish(ctx, handle, d.workspaceDir); err != nil {
			return nil, err
		}
	}

	// One automatic restart when the container died behind our back; a
	// second failure is surfaced, not retried.
	state, err := manager.HealthCheck(ctx, handle)
	if err != nil {
		return nil, err
	}
	if state == container.StateUnhealthy {
		if err := manager.Restart(ctx, handle, d.workspaceDir); err != nil {
			return nil, err
		}
		syncer.Invalidate()
	}

	copyMode := handle.Mode() == container.MountCopy
	if copyMode && adopted {
		if _, err := syncer.Push(ctx); err != nil {
			return nil, err
		}
	}

	return &containerSession{
		manager:     manager,
		handle:      handle,
		syncer:      syncer,
		fingerprint: fingerprint,
		copyMode:    copyMode,
	}, nil
}

// newSyncer builds the copy-mode file synchronizer from configuration.
func (d *Driver) newSyncer(manager *container.Manager, handle *container.Handle) (*filesync.Syncer, error) {
	matcher, err := filesync.NewMatcher(d.cfg.Sync.Include, d.cfg.Sync.Exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid sync configuration: %w", err)
	}

	endpoint := filesync.NewContainerEndpoint(manager, handle)
	return filesync.NewSyncer(d.workspaceDir, endpoint, matcher,
		filesync.WithSyncLogger(d.logger)), nil
}

// execInContainer runs the command, bracketing it with copy-mode
// synchronization. Interactive runs keep a background pull session alive so
// artifacts appear on the host while the learner works.
func (d *Driver) execInContainer(ctx context.Context, cs *containerSession, opts Options) (int, error) {
	if cs.copyMode {
		if _, err := cs.syncer.Push(ctx); err != nil {
			return 1, err
		}
	}

	if opts.Interactive {
		return d.attachContainer(ctx, cs, opts)
	}

	res, err := cs.manager.Exec(ctx, cs.handle, opts.Command, container.ExecOptions{
		Interactive: true,
		Stdin:       opts.Stdin,
		Stdout:      opts.Stdout,
		Stderr:      opts.Stderr,
	})
	if err != nil {
		return 1, err
	}

	if cs.copyMode {
		if _, err := cs.syncer.Pull(ctx); err != nil {
			d.logger.Warn("failed to pull results from container", "error", err)
		}
	}

	return res.ExitCode, nil
}

// attachContainer runs an interactive command on a PTY. In copy mode a
// background session pulls artifacts on the configured interval; it is
// stopped and joined before the final pull.
func (d *Driver) attachContainer(ctx context.Context, cs *containerSession, opts Options) (int, error) {
	var session *filesync.Session
	if cs.copyMode {
		interval := time.Duration(d.cfg.Sync.IntervalSeconds) * time.Second
		session = filesync.NewSession(interval, func(ctx context.Context) error {
			_, err := cs.syncer.Pull(ctx)
			return err
		}, filesync.WithSessionLogger(d.logger))
		session.Start(ctx)
		defer func() {
			session.Stop()
			if _, err := cs.syncer.Pull(ctx); err != nil {
				d.logger.Warn("final artifact pull failed", "error", err)
			}
		}()
	}

	args, err := cs.manager.ExecArgsFor(cs.handle, opts.Command, container.ExecOptions{
		Interactive: true,
		TTY:         true,
	})
	if err != nil {
		return 1, err
	}
	bin, err := cs.manager.CommandPath()
	if err != nil {
		return 1, err
	}

	return attachPTY(ctx, bin, args, d.workspaceDir)
}

// SyncPush pushes the workspace into the copy-mode container once.
func (d *Driver) SyncPush(ctx context.Context, opts Options) (filesync.Stats, error) {
	opts.CopyMode = true
	cs, err := d.prepareContainer(ctx, opts)
	if err != nil {
		return filesync.Stats{}, err
	}
	return cs.syncer.Push(ctx)
}

// SyncPull pulls lesson artifacts out of the copy-mode container once.
func (d *Driver) SyncPull(ctx context.Context, opts Options) (filesync.Stats, error) {
	opts.CopyMode = true
	cs, err := d.prepareContainer(ctx, opts)
	if err != nil {
		return filesync.Stats{}, err
	}
	return cs.syncer.Pull(ctx)
}

// LessonCommand resolves the argv that runs command in the selected backend,
// preparing the backend first when needed. Remote classroom sessions spawn
// this argv under their own pseudo-terminal.
func (d *Driver) LessonCommand(ctx context.Context, command string, opts Options) (string, []string, error) {
	switch kind := d.SelectBackend(ctx, opts); kind {
	case backend.KindHost:
		return d.hostRun.Argv(command)
	case backend.KindLocalEnv:
		if err := d.mambaMgr.Install(ctx); err != nil {
			return "", nil, err
		}
		if err := d.mambaMgr.CreateEnv(ctx, d.envFilePath(), opts.Rebuild); err != nil {
			return "", nil, err
		}
		args := d.mambaMgr.RunArgs(command)
		return args[0], args[1:], nil
	case backend.KindContainer:
		cs, err := d.prepareContainer(ctx, opts)
		if err != nil {
			return "", nil, err
		}
		if cs.copyMode {
			if _, err := cs.syncer.Push(ctx); err != nil {
				return "", nil, err
			}
		}
		args, err := cs.manager.ExecArgsFor(cs.handle, command, container.ExecOptions{
			Interactive: true,
			TTY:         true,
		})
		if err != nil {
			return "", nil, err
		}
		bin, err := cs.manager.CommandPath()
		if err != nil {
			return "", nil, err
		}
		return bin, args, nil
	default:
		return "", nil, &backend.InvalidKindError{Value: string(kind)}
	}
}
