// SPDX-License-Identifier: MPL-2.0

// Package sync keeps the host workspace and the copy-mode container
// workspace in agreement. Pushes send changed workspace files into the
// container; pulls bring back files the curriculum code produced.
//
// Pattern matching uses doublestar globs. Exclusion patterns always win over
// inclusion patterns, so generated artifacts (.git, __pycache__, environment
// directories) never travel in either direction.
package sync
