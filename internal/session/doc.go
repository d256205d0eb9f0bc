// SPDX-License-Identifier: MPL-2.0

// Package session drives a single run: probe the host, pick a backend,
// bring the chosen environment up, execute the learner's command, and
// record the outcome in the state marker. The backend decision is made once
// per run and cached; nothing re-evaluates it mid-flight.
package session
