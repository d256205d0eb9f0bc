// SPDX-License-Identifier: MPL-2.0

package backend

import (
	"errors"
	"fmt"
	"sync"
)

// Backend kinds, in order of increasing isolation.
const (
	// KindHost runs lessons directly with the host interpreter.
	KindHost Kind = "host"
	// KindLocalEnv runs lessons inside the micromamba-managed environment.
	KindLocalEnv Kind = "localenv"
	// KindContainer runs lessons inside the learning container.
	KindContainer Kind = "container"
)

// ErrInvalidKind is the sentinel error wrapped by InvalidKindError.
var ErrInvalidKind = errors.New("invalid backend kind")

type (
	// Kind identifies an execution backend. Chosen once per run; every later
	// command uses the same path.
	Kind string

	// InvalidKindError is returned when a Kind value is not recognized.
	InvalidKindError struct {
		Value string
	}

	// Selection caches the backend choice for the lifetime of one run.
	// It replaces any process-wide "current backend" state: callers create
	// one Selection per run and thread it through explicitly.
	Selection struct {
		once sync.Once
		kind Kind
	}
)

func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("%s: %q (valid: host, localenv, container)", ErrInvalidKind, e.Value)
}

func (e *InvalidKindError) Unwrap() error {
	return ErrInvalidKind
}

// Validate checks a Kind value.
func (k Kind) Validate() error {
	switch k {
	case KindHost, KindLocalEnv, KindContainer:
		return nil
	default:
		return &InvalidKindError{Value: string(k)}
	}
}

// ParseKind converts a user-supplied string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// Resolve runs selectFn exactly once and returns the cached result on every
// call. Later calls ignore selectFn entirely, so a mid-session change in
// environment conditions cannot flip the backend.
func (s *Selection) Resolve(selectFn func() Kind) Kind {
	s.once.Do(func() { s.kind = selectFn() })
	return s.kind
}
