// SPDX-License-Identifier: MPL-2.0

package backend

import (
	"pylab/internal/probe"
)

type (
	// SelectInput carries everything one selection decision depends on.
	SelectInput struct {
		// Report is the prober's verdict for this run.
		Report probe.Report
		// Override is the user's explicit backend choice (--backend flag).
		// When non-nil it wins unconditionally; explicit user intent is
		// never second-guessed.
		Override *Kind
		// Isolate is set when the user asked for isolation without naming a
		// backend (--isolate); it forces the container path.
		Isolate bool
	}

	// Selector chooses a backend from a probe report and user flags.
	Selector struct {
		localEnvAvailable func() bool
	}

	// SelectorOption configures a Selector.
	SelectorOption func(*Selector)
)

// WithLocalEnvCheck overrides the local managed environment availability
// check (for tests).
func WithLocalEnvCheck(f func() bool) SelectorOption {
	return func(s *Selector) { s.localEnvAvailable = f }
}

// NewSelector creates a Selector. localEnvAvailable reports whether a
// micromamba installation is usable on this host.
func NewSelector(localEnvAvailable func() bool, opts ...SelectorOption) *Selector {
	s := &Selector{localEnvAvailable: localEnvAvailable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select picks the backend for a run:
//
//  1. A user override wins unconditionally.
//  2. Container when any blocking conflict is present or isolation was
//     requested.
//  3. LocalEnv when a local managed interpreter is available.
//  4. HostDirect otherwise.
//
// Select is pure; callers cache the result in a Selection so the choice is
// never re-evaluated mid-run.
func (s *Selector) Select(in SelectInput) Kind {
	if in.Override != nil {
		return *in.Override
	}

	if in.Isolate || in.Report.HasBlocking() {
		return KindContainer
	}

	if s.localEnvAvailable != nil && s.localEnvAvailable() {
		return KindLocalEnv
	}

	return KindHost
}
