// SPDX-License-Identifier: MPL-2.0

// Package container provides the container side of pylab's orchestration
// core: an abstraction over CLI container engines (Docker/Podman) and a
// lifecycle manager that owns the learning container's handle and state
// machine.
//
// The Manager is the only component that creates, starts, stops, or removes
// the learning container. It hands out *Handle values that other components
// hold by reference; nothing rediscovers containers by name.
package container
