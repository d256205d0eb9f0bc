// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"io"
)

// EngineType identifies the container engine type.
type EngineType string

const (
	EngineTypePodman EngineType = "podman"
	EngineTypeDocker EngineType = "docker"
)

type (
	// ImageTag is a container image tag (e.g., "pylab-learning:latest").
	ImageTag string

	// ContainerID identifies a container by ID or name.
	ContainerID string

	// BuildOptions contains options for building an image.
	BuildOptions struct {
		// ContextDir is the build context directory.
		ContextDir string
		// Dockerfile is the path to the Dockerfile (relative to ContextDir).
		Dockerfile string
		// Tag is the image tag.
		Tag ImageTag
		// BuildArgs are build-time variables.
		BuildArgs map[string]string
		// NoCache disables the build cache.
		NoCache bool
		// Stdout is where to write build output.
		Stdout io.Writer
		// Stderr is where to write build errors.
		Stderr io.Writer
	}

	// CreateOptions contains options for creating a container.
	CreateOptions struct {
		// Image is the image to create the container from.
		Image ImageTag
		// Name is the container name.
		Name string
		// WorkDir is the working directory inside the container.
		WorkDir string
		// Env contains environment variables.
		Env map[string]string
		// Volumes are bind mounts in "host:container" format. Empty in copy
		// mode.
		Volumes []string
		// User is the uid:gid mapping for the container process.
		User string
		// Interactive keeps stdin open (docker create -i).
		Interactive bool
		// TTY allocates a pseudo-TTY.
		TTY bool
	}

	// ExecOptions contains options for executing a command in a container.
	ExecOptions struct {
		// WorkDir is the working directory for the command.
		WorkDir string
		// Env contains extra environment variables.
		Env map[string]string
		// Interactive attaches stdin.
		Interactive bool
		// TTY allocates a pseudo-TTY.
		TTY bool
		// Stdin, Stdout, Stderr are the command's streams. Nil means discard
		// (or capture, for the Capture variants).
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// ExecResult contains the result of executing a command.
	ExecResult struct {
		// ExitCode is the command's exit code.
		ExitCode int
		// Stdout contains captured standard output (capture variants only).
		Stdout string
		// Stderr contains captured standard error (capture variants only).
		Stderr string
	}

	// Engine defines the operations pylab needs from a container runtime.
	// Any engine offering these primitives is substitutable.
	Engine interface {
		// Name returns the engine name (docker or podman).
		Name() string
		// Available checks if the engine is available on the system.
		Available() bool
		// Version returns the engine version.
		Version(ctx context.Context) (string, error)

		// Build builds an image from a Dockerfile.
		Build(ctx context.Context, opts BuildOptions) error
		// ImageExists checks if an image exists.
		ImageExists(ctx context.Context, image ImageTag) (bool, error)
		// RemoveImage removes an image.
		RemoveImage(ctx context.Context, image ImageTag, force bool) error

		// Create creates (but does not start) a container and returns its ID.
		Create(ctx context.Context, opts CreateOptions) (ContainerID, error)
		// Start starts a created container.
		Start(ctx context.Context, id ContainerID) error
		// Stop stops a running container.
		Stop(ctx context.Context, id ContainerID) error
		// Remove removes a container.
		Remove(ctx context.Context, id ContainerID, force bool) error
		// ContainerExists checks whether a container with the given name exists.
		ContainerExists(ctx context.Context, name string) (bool, error)
		// ContainerRunning checks whether a container with the given name is running.
		ContainerRunning(ctx context.Context, name string) (bool, error)

		// Exec runs a command in a running container.
		Exec(ctx context.Context, id ContainerID, command []string, opts ExecOptions) (*ExecResult, error)

		// CopyTo copies a host path into the container.
		CopyTo(ctx context.Context, hostPath string, id ContainerID, containerPath string) error
		// CopyFrom copies a container path to the host.
		CopyFrom(ctx context.Context, id ContainerID, containerPath, hostPath string) error
	}
)

// NewEngine creates a container engine based on preference, falling back to
// the other engine when the preferred one is not available.
func NewEngine(preferredType EngineType) (Engine, error) {
	switch preferredType {
	case EngineTypePodman:
		engine := NewPodmanEngine()
		if engine.Available() {
			return engine, nil
		}
		dockerEngine := NewDockerEngine()
		if dockerEngine.Available() {
			return dockerEngine, nil
		}
	case EngineTypeDocker, "":
		engine := NewDockerEngine()
		if engine.Available() {
			return engine, nil
		}
		podmanEngine := NewPodmanEngine()
		if podmanEngine.Available() {
			return podmanEngine, nil
		}
	default:
		return nil, fmt.Errorf("unknown container engine type: %q", preferredType)
	}

	return nil, &RuntimeUnavailableError{
		Engine: string(preferredType),
		Reason: "no container engine (docker or podman) responded",
	}
}
