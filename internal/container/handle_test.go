// SPDX-License-Identifier: MPL-2.0

package container

import (
	"errors"
	"testing"
)

func TestHandle_LegalLifecyclePath(t *testing.T) {
	h := NewHandle("pylab-env", "pylab-learning", MountVolume)

	path := []State{StateBuilding, StateStopped, StateRunning, StateUnhealthy, StateAbsent}
	for _, s := range path {
		if err := h.transition(s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	if h.State() != StateAbsent {
		t.Errorf("state = %s", h.State())
	}
}

func TestHandle_IllegalTransitions(t *testing.T) {
	cases := []struct {
		name string
		path []State
		to   State
	}{
		{"absent to running", nil, StateRunning},
		{"absent to unhealthy", nil, StateUnhealthy},
		{"building to running", []State{StateBuilding}, StateRunning},
		{"unhealthy to running without restart", []State{StateBuilding, StateStopped, StateRunning, StateUnhealthy}, StateRunning},
		{"unhealthy to stopped", []State{StateBuilding, StateStopped, StateRunning, StateUnhealthy}, StateStopped},
		{"stopped to unhealthy", []State{StateBuilding, StateStopped}, StateUnhealthy},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandle("c", "img", MountVolume)
			for _, s := range tc.path {
				if err := h.transition(s); err != nil {
					t.Fatalf("setup transition to %s: %v", s, err)
				}
			}
			from := h.State()

			err := h.transition(tc.to)
			var te *TransitionError
			if !errors.As(err, &te) {
				t.Fatalf("expected TransitionError, got %v", err)
			}
			if h.State() != from {
				t.Errorf("state changed on illegal transition: %s -> %s", from, h.State())
			}
		})
	}
}

func TestHandle_AbsentClearsID(t *testing.T) {
	h := NewHandle("c", "img", MountCopy)
	h.setID("abc123")
	if err := h.transition(StateStopped); err != nil {
		t.Fatal(err)
	}
	if err := h.transition(StateAbsent); err != nil {
		t.Fatal(err)
	}
	if h.ID() != "" {
		t.Errorf("ID should be cleared on Absent, got %q", h.ID())
	}
}
