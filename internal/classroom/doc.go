// SPDX-License-Identifier: MPL-2.0

// Package classroom serves lesson sessions to remote learners over SSH.
//
// The server is built on Wish and authenticates with single-purpose tokens
// handed out by the instructor; there is no public-key or account-based
// access. Each accepted session resolves its lesson command through the
// session driver and attaches it to a server-side pseudo-terminal, so the
// learner gets the same REPL they would get locally.
//
// A Server instance is single-use: once stopped or failed, create a new one.
package classroom
