// SPDX-License-Identifier: MPL-2.0

package container

import "sync"

// State is the lifecycle state of the learning container.
type State string

const (
	// StateAbsent means no container (and possibly no image) exists yet.
	StateAbsent State = "absent"
	// StateBuilding means the learning image is being built.
	StateBuilding State = "building"
	// StateStopped means the container exists but is not running.
	StateStopped State = "stopped"
	// StateRunning means the container is running and accepting commands.
	StateRunning State = "running"
	// StateUnhealthy means the container exists but failed its health check.
	// The only way back to Running is a restart.
	StateUnhealthy State = "unhealthy"
)

// MountMode is how workspace files reach the container.
type MountMode string

const (
	// MountVolume bind-mounts the workspace directory into the container.
	MountVolume MountMode = "volume"
	// MountCopy runs without a bind mount; files are synchronized by
	// explicit copy operations.
	MountCopy MountMode = "copy"
)

// legalTransitions is the container lifecycle state machine. An unhealthy
// container only leaves through Absent: a restart removes and recreates,
// passing through Absent, Stopped, and Running in turn, so a stop/start pair
// can never resurrect it.
var legalTransitions = map[State][]State{
	StateAbsent:    {StateBuilding, StateStopped},
	StateBuilding:  {StateStopped, StateAbsent},
	StateStopped:   {StateRunning, StateAbsent},
	StateRunning:   {StateStopped, StateUnhealthy, StateAbsent},
	StateUnhealthy: {StateAbsent},
}

// Handle is the single source of truth for one managed container. Components
// hold it by reference; none of them rediscover containers by name. All state
// mutations go through the owning Manager.
type Handle struct {
	mu    sync.RWMutex
	id    ContainerID
	name  string
	image ImageTag
	mode  MountMode
	state State
}

// NewHandle creates a handle in the Absent state.
func NewHandle(name string, image ImageTag, mode MountMode) *Handle {
	return &Handle{
		name:  name,
		image: image,
		mode:  mode,
		state: StateAbsent,
	}
}

// ID returns the container ID, empty while Absent or Building.
func (h *Handle) ID() ContainerID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.id
}

// Name returns the container name.
func (h *Handle) Name() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.name
}

// Image returns the image tag the container was created from.
func (h *Handle) Image() ImageTag {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.image
}

// Mode returns the mount mode the container was created with.
func (h *Handle) Mode() MountMode {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.mode
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// transition moves the handle to a new state, enforcing the lifecycle graph.
func (h *Handle) transition(to State) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, allowed := range legalTransitions[h.state] {
		if allowed == to {
			h.state = to
			if to == StateAbsent {
				h.id = ""
			}
			return nil
		}
	}

	return &TransitionError{From: h.state, To: to}
}

// setID records the engine-assigned container ID after creation.
func (h *Handle) setID(id ContainerID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.id = id
}

// SetMode records a mount mode change. Only the fallback controller calls
// this, and only between a failed volume-mode creation and its copy-mode
// retry; the mode of a created container never changes.
func (h *Handle) SetMode(mode MountMode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mode = mode
}
