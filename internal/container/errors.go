// SPDX-License-Identifier: MPL-2.0

package container

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotRunning is the sentinel error wrapped by ExecError when a
	// command is sent to a container that is not running.
	ErrNotRunning = errors.New("container is not running")

	// ErrMountRestricted is the sentinel error wrapped by MountRestrictedError.
	ErrMountRestricted = errors.New("bind mounts restricted on this host")

	// ErrRuntimeUnavailable is the sentinel error wrapped by RuntimeUnavailableError.
	ErrRuntimeUnavailable = errors.New("container engine unavailable")
)

type (
	// RuntimeUnavailableError means the container engine itself cannot be
	// reached. Fatal: surfaced to the user with remediation text, no retry.
	RuntimeUnavailableError struct {
		Engine string
		Reason string
	}

	// MountRestrictedError means the host disallows bind mounts. Expected
	// and recoverable: the fallback controller retries once in copy mode.
	MountRestrictedError struct {
		Engine string
		Detail string
	}

	// BuildError means building the learning image failed. Fatal unless a
	// previously built image exists, in which case the stale image is used
	// and reported.
	BuildError struct {
		Tag    ImageTag
		Detail string
		Cause  error
	}

	// CreateError wraps a container creation failure that is neither a
	// mount restriction nor an unreachable engine.
	CreateError struct {
		Name  string
		Cause error
	}

	// ExecError means a command inside the container failed to run. It is
	// propagated to the caller as a failed command result, never swallowed.
	ExecError struct {
		ContainerID ContainerID
		Cause       error
	}

	// TransitionError reports an illegal handle state transition.
	TransitionError struct {
		From State
		To   State
	}
)

func (e *RuntimeUnavailableError) Error() string {
	if e.Engine == "" {
		return fmt.Sprintf("container engine is not available: %s", e.Reason)
	}
	return fmt.Sprintf("container engine %q is not available: %s", e.Engine, e.Reason)
}

func (e *RuntimeUnavailableError) Unwrap() error { return ErrRuntimeUnavailable }

func (e *MountRestrictedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMountRestricted, e.Detail)
}

func (e *MountRestrictedError) Unwrap() error { return ErrMountRestricted }

func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to build image %q: %s", e.Tag, e.Detail)
}

func (e *BuildError) Unwrap() error { return e.Cause }

func (e *CreateError) Error() string {
	return fmt.Sprintf("failed to create container %q: %v", e.Name, e.Cause)
}

func (e *CreateError) Unwrap() error { return e.Cause }

func (e *ExecError) Error() string {
	return fmt.Sprintf("exec in container %q failed: %v", e.ContainerID, e.Cause)
}

func (e *ExecError) Unwrap() error { return e.Cause }

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal container state transition %s -> %s", e.From, e.To)
}

// mountRestrictionMarkers are stderr fragments that indicate the engine
// refused a bind mount rather than failing for some other reason. The list is
// deliberately conservative: a false negative costs one clear error message,
// a false positive would mask a real failure behind the copy-mode fallback.
var mountRestrictionMarkers = []string{
	"error while creating mount source path",
	"read-only file system",
	"operation not permitted",
	"bind mounts are not allowed",
	"mounts denied",
	"mount source path is not shared",
}

// engineUnreachableMarkers are stderr fragments that indicate the engine
// daemon/service itself could not be contacted.
var engineUnreachableMarkers = []string{
	"cannot connect to the docker daemon",
	"error validating server",
	"connection refused",
	"unable to connect to podman",
	"no such file or directory (os error 2)",
}

// classifyCreateFailure maps a raw create failure to the typed error the
// fallback controller dispatches on.
func classifyCreateFailure(engineName, containerName, stderr string, cause error) error {
	lowered := strings.ToLower(stderr)

	for _, marker := range engineUnreachableMarkers {
		if strings.Contains(lowered, marker) {
			return &RuntimeUnavailableError{Engine: engineName, Reason: strings.TrimSpace(stderr)}
		}
	}

	for _, marker := range mountRestrictionMarkers {
		if strings.Contains(lowered, marker) {
			return &MountRestrictedError{Engine: engineName, Detail: strings.TrimSpace(stderr)}
		}
	}

	return &CreateError{Name: containerName, Cause: cause}
}
