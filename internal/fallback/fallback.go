// SPDX-License-Identifier: MPL-2.0

package fallback

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"pylab/internal/container"
	"pylab/internal/issue"
)

type (
	// lifecycle is the slice of the container manager the controller drives.
	lifecycle interface {
		Create(ctx context.Context, h *container.Handle, workspaceDir string) error
		Start(ctx context.Context, h *container.Handle) error
	}

	// ControllerOption configures a Controller.
	ControllerOption func(*Controller)

	// Controller decides how workspace files reach the container. It owns the
	// volume-to-copy fallback: one attempt per mode, guidance shown once.
	Controller struct {
		manager  lifecycle
		logger   *log.Logger
		guidance func()
		// initialPush seeds the copy-mode container with the workspace
		// before the first command runs. Nil when no syncer is wired.
		initialPush func(ctx context.Context) error

		guidanceShown bool
	}
)

// WithFallbackLogger sets the controller's logger.
func WithFallbackLogger(logger *log.Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

// WithGuidance overrides how mount-restriction guidance is presented.
func WithGuidance(fn func()) ControllerOption {
	return func(c *Controller) { c.guidance = fn }
}

// WithInitialPush sets the workspace seeding step run after a successful
// copy-mode creation.
func WithInitialPush(fn func(ctx context.Context) error) ControllerOption {
	return func(c *Controller) { c.initialPush = fn }
}

// NewController creates a fallback controller on top of the container
// lifecycle manager.
func NewController(manager lifecycle, opts ...ControllerOption) *Controller {
	c := &Controller{
		manager:  manager,
		logger:   log.Default(),
		guidance: printMountGuidance,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// printMountGuidance renders the mount-restricted issue to stderr.
func printMountGuidance() {
	i := issue.Get(issue.MountRestrictedId)
	if i == nil {
		return
	}
	rendered, err := i.Render("dark")
	if err != nil {
		fmt.Fprintln(os.Stderr, string(i.MarkdownMsg()))
		return
	}
	fmt.Fprintln(os.Stderr, rendered)
}

// Establish creates and starts the container described by the handle,
// falling back from volume to copy mode when the host restricts bind
// mounts. Whenever the start succeeds in copy mode, whether by preference or
// by fallback, the workspace is pushed in before returning, so the first
// command already sees the learner's files.
//
// A second mount restriction, or any non-restriction failure, is fatal.
func (c *Controller) Establish(ctx context.Context, h *container.Handle, workspaceDir string) error {
	if err := c.createAndStart(ctx, h, workspaceDir); err != nil {
		if !errors.Is(err, container.ErrMountRestricted) || h.Mode() != container.MountVolume {
			return err
		}

		c.logger.Warn("bind mounts restricted, retrying in copy mode", "container", h.Name())
		if !c.guidanceShown {
			c.guidanceShown = true
			c.guidance()
		}

		h.SetMode(container.MountCopy)
		if err := c.createAndStart(ctx, h, workspaceDir); err != nil {
			return fmt.Errorf("copy-mode fallback failed: %w", err)
		}
	}

	if h.Mode() == container.MountCopy && c.initialPush != nil {
		if err := c.initialPush(ctx); err != nil {
			return fmt.Errorf("failed to seed copy-mode workspace: %w", err)
		}
	}

	return nil
}

func (c *Controller) createAndStart(ctx context.Context, h *container.Handle, workspaceDir string) error {
	if err := c.manager.Create(ctx, h, workspaceDir); err != nil {
		return err
	}
	return c.manager.Start(ctx, h)
}
