// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities.
//
// It centralizes runtime.GOOS string constants and detects application
// sandboxes (Flatpak, Snap) whose filesystem restrictions affect which
// execution backend pylab can use.
package platform
