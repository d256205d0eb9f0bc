// SPDX-License-Identifier: MPL-2.0

// Package probe inspects the host for conditions that make direct Python
// execution unreliable: duplicated interpreter installations, broken native
// library stacks, restricted filesystems, and missing learning packages.
//
// Every signal is best-effort. A signal that cannot be read (no python in
// PATH, command failed to spawn, unreadable directory) is treated as "no
// conflict detected for that signal", never as an error; Probe cannot fail.
package probe
