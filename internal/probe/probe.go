// SPDX-License-Identifier: MPL-2.0

package probe

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"pylab/pkg/platform"
)

// Conflict kinds reported by the prober.
const (
	// ConflictInterpreterDuplication means several python3 installations are
	// on PATH, making it unpredictable which one a lesson would use.
	ConflictInterpreterDuplication ConflictKind = "interpreter-duplication"
	// ConflictNativeLibMismatch means a core package imports but fails at
	// runtime due to incompatible native libraries (libstdc++/GLIBCXX).
	ConflictNativeLibMismatch ConflictKind = "native-lib-mismatch"
	// ConflictRestrictedFilesystem means the process runs inside an
	// application sandbox whose filesystem restrictions break bind mounts.
	ConflictRestrictedFilesystem ConflictKind = "restricted-filesystem"
	// ConflictMissingPackages means the learning packages (numpy, pandas)
	// are not importable with the host interpreter.
	ConflictMissingPackages ConflictKind = "missing-packages"
)

// Recommendation values for Report.Recommended. Kept as a local vocabulary to
// avoid coupling probe to the backend package; the selector maps these.
const (
	RecommendHost      Recommendation = "host"
	RecommendContainer Recommendation = "container"
)

// interpreterDuplicationThreshold is how many distinct python3 binaries on
// PATH count as a duplication conflict. A couple of entries (system python
// plus one env) is normal; more than that usually means layered installs
// shadowing each other.
const interpreterDuplicationThreshold = 3

// smokeTestTimeout bounds each interpreter smoke test so a wedged python
// cannot stall startup.
const smokeTestTimeout = 10 * time.Second

type (
	// ConflictKind classifies a detected host condition.
	ConflictKind string

	// Recommendation is the prober's backend hint.
	Recommendation string

	// Report is the immutable result of one Probe call, produced once per
	// run and consumed by the backend selector.
	Report struct {
		// Conflicts holds the detected conflict kinds, deduplicated.
		Conflicts []ConflictKind
		// Recommended is the prober's backend hint: container when any
		// blocking conflict is present, host otherwise.
		Recommended Recommendation
	}

	// ExecCommandFunc creates an exec.Cmd. Injection point for tests.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Prober inspects host signals. All lookups are injectable so tests can
	// simulate hosts without touching process-wide state.
	Prober struct {
		execCommand ExecCommandFunc
		lookPath    func(string) (string, error)
		getenv      func(string) string
		statFile    func(string) error
		inSandbox   func() bool
	}

	// ProberOption configures a Prober.
	ProberOption func(*Prober)
)

// Blocking reports whether a conflict kind rules out direct host execution.
// Missing packages alone can be solved by the local managed environment;
// the other kinds require container isolation.
func (k ConflictKind) Blocking() bool {
	switch k {
	case ConflictInterpreterDuplication, ConflictNativeLibMismatch, ConflictRestrictedFilesystem:
		return true
	default:
		return false
	}
}

// Has reports whether the report contains the given conflict kind.
func (r *Report) Has(kind ConflictKind) bool {
	return slices.Contains(r.Conflicts, kind)
}

// HasBlocking reports whether any detected conflict is blocking.
func (r *Report) HasBlocking() bool {
	for _, k := range r.Conflicts {
		if k.Blocking() {
			return true
		}
	}
	return false
}

// WithExecCommand overrides command creation (for tests).
func WithExecCommand(f ExecCommandFunc) ProberOption {
	return func(p *Prober) { p.execCommand = f }
}

// WithLookPath overrides executable lookup (for tests).
func WithLookPath(f func(string) (string, error)) ProberOption {
	return func(p *Prober) { p.lookPath = f }
}

// WithGetenv overrides environment lookup (for tests).
func WithGetenv(f func(string) string) ProberOption {
	return func(p *Prober) { p.getenv = f }
}

// WithStatFile overrides file stat (for tests).
func WithStatFile(f func(string) error) ProberOption {
	return func(p *Prober) { p.statFile = f }
}

// WithSandboxCheck overrides sandbox detection (for tests).
func WithSandboxCheck(f func() bool) ProberOption {
	return func(p *Prober) { p.inSandbox = f }
}

// New creates a Prober backed by real OS lookups.
func New(opts ...ProberOption) *Prober {
	p := &Prober{
		execCommand: exec.CommandContext,
		lookPath:    exec.LookPath,
		getenv:      os.Getenv,
		inSandbox:   platform.IsInSandbox,
		statFile: func(path string) error {
			_, err := os.Stat(path)
			return err
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe inspects the host and returns a conflict report. It never fails;
// unreadable signals contribute nothing to the report.
func (p *Prober) Probe(ctx context.Context) Report {
	var conflicts []ConflictKind

	if p.duplicatedInterpreters() {
		conflicts = append(conflicts, ConflictInterpreterDuplication)
	}

	nativeBroken, pkgsMissing := p.interpreterSmokeTest(ctx)
	if nativeBroken {
		conflicts = append(conflicts, ConflictNativeLibMismatch)
	}
	if pkgsMissing {
		conflicts = append(conflicts, ConflictMissingPackages)
	}

	if p.inSandbox() {
		conflicts = append(conflicts, ConflictRestrictedFilesystem)
	}

	report := Report{Conflicts: conflicts, Recommended: RecommendHost}
	if report.HasBlocking() {
		report.Recommended = RecommendContainer
	}
	return report
}

// duplicatedInterpreters counts distinct python3 executables across PATH
// entries. Symlinked duplicates are deduplicated by resolved target.
func (p *Prober) duplicatedInterpreters() bool {
	pathEnv := p.getenv("PATH")
	if pathEnv == "" {
		return false
	}

	seen := map[string]bool{}
	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, pythonExecutableName())
		if err := p.statFile(candidate); err != nil {
			continue
		}
		resolved, err := filepath.EvalSymlinks(candidate)
		if err != nil {
			resolved = candidate
		}
		seen[resolved] = true
	}

	return len(seen) > interpreterDuplicationThreshold
}

// interpreterSmokeTest imports the learning packages with the host python and
// classifies the failure mode, if any. Returns (nativeBroken, pkgsMissing).
func (p *Prober) interpreterSmokeTest(ctx context.Context) (bool, bool) {
	python, err := p.lookPath(pythonExecutableName())
	if err != nil {
		// No interpreter at all: nothing to conflict with.
		return false, false
	}

	ctx, cancel := context.WithTimeout(ctx, smokeTestTimeout)
	defer cancel()

	// numpy.array and DataFrame construction exercise the native extension
	// modules, which is where ABI mismatches actually surface.
	script := "import numpy; numpy.array([1, 2, 3]); " +
		"import pandas; pandas.DataFrame({'t': [1]})"

	cmd := p.execCommand(ctx, python, "-c", script)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if cmd.Run() == nil {
		return false, false
	}

	msg := stderr.String()
	switch {
	case strings.Contains(msg, "GLIBCXX"), strings.Contains(msg, "libstdc++"):
		return true, false
	case strings.Contains(msg, "ModuleNotFoundError"), strings.Contains(msg, "ImportError"):
		return false, true
	default:
		// Unclassified failure: the interpreter is present but the stack is
		// not healthy enough to trust for lessons.
		return true, false
	}
}

func pythonExecutableName() string {
	if runtime.GOOS == platform.Windows {
		return "python.exe"
	}
	return "python3"
}
