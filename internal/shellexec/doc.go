// SPDX-License-Identifier: MPL-2.0

// Package shellexec runs commands for the host backend, where no isolation
// layer sits between the learner and the system interpreter. The system
// shell is preferred; when none can be found an embedded POSIX shell
// interpreter runs the command instead, so the host backend works even on
// minimal systems.
package shellexec
