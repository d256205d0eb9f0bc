// SPDX-License-Identifier: MPL-2.0

// Package backend decides which execution path a run uses: the host
// interpreter, the micromamba-managed local environment, or the learning
// container. The choice is made once per run, cached in a run-scoped
// Selection, and optionally persisted to a state marker so the next run can
// skip redundant image work.
package backend
