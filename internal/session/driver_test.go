// SPDX-License-Identifier: MPL-2.0

package session

import (
	"bytes"
	"context"
	"io"
	"runtime"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"pylab/internal/backend"
	"pylab/internal/config"
	"pylab/internal/probe"
	"pylab/internal/shellexec"
)

type fakeProber struct {
	report probe.Report
	calls  int
}

func (f *fakeProber) Probe(_ context.Context) probe.Report {
	f.calls++
	return f.report
}

func newTestDriver(t *testing.T, p *fakeProber) (*Driver, string) {
	t.Helper()
	stateDir := t.TempDir()
	d := NewDriver(config.DefaultConfig(), t.TempDir(), stateDir,
		WithDriverLogger(log.New(io.Discard)),
		WithProber(p),
		WithHostRunner(shellexec.NewRunner(shellexec.WithShell("/bin/sh"))),
	)
	return d, stateDir
}

func TestSelectBackend_CachedForRunLifetime(t *testing.T) {
	p := &fakeProber{report: probe.Report{Recommended: probe.RecommendHost}}
	d, _ := newTestDriver(t, p)
	ctx := context.Background()

	first := d.SelectBackend(ctx, Options{})
	second := d.SelectBackend(ctx, Options{})

	if first != second {
		t.Errorf("selection changed mid-run: %s then %s", first, second)
	}
	if p.calls != 1 {
		t.Errorf("prober called %d times, want 1", p.calls)
	}
}

func TestSelectBackend_OverrideWinsOverBlockingConflict(t *testing.T) {
	p := &fakeProber{report: probe.Report{
		Conflicts:   []probe.ConflictKind{probe.ConflictNativeLibMismatch},
		Recommended: probe.RecommendContainer,
	}}
	d, _ := newTestDriver(t, p)

	host := backend.KindHost
	got := d.SelectBackend(context.Background(), Options{Backend: &host})
	if got != backend.KindHost {
		t.Errorf("override ignored: got %s", got)
	}
}

func TestRun_HostBackendExecutesAndPersistsMarker(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on /bin/sh")
	}

	p := &fakeProber{report: probe.Report{Recommended: probe.RecommendHost}}
	d, stateDir := newTestDriver(t, p)

	var out bytes.Buffer
	code, err := d.Run(context.Background(), Options{
		Command: "echo host-run",
		Stdout:  &out,
		Stderr:  io.Discard,
		Stdin:   strings.NewReader(""),
	})
	if err != nil {
		t.Fatal(err)
	}
	if code != 0 {
		t.Errorf("exit code = %d", code)
	}
	if !strings.Contains(out.String(), "host-run") {
		t.Errorf("stdout = %q", out.String())
	}

	m, err := backend.LoadMarker(stateDir)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.Backend != backend.KindHost {
		t.Errorf("marker = %+v, want host backend", m)
	}
}

func TestRun_PropagatesCommandExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on /bin/sh")
	}

	p := &fakeProber{report: probe.Report{Recommended: probe.RecommendHost}}
	d, _ := newTestDriver(t, p)

	code, err := d.Run(context.Background(), Options{
		Command: "exit 4",
		Stdout:  io.Discard,
		Stderr:  io.Discard,
		Stdin:   strings.NewReader(""),
	})
	if err != nil {
		t.Fatalf("non-zero exit must not be an error: %v", err)
	}
	if code != 4 {
		t.Errorf("exit code = %d, want 4", code)
	}
}

func TestRun_ConfigDefaultBackendActsAsOverride(t *testing.T) {
	p := &fakeProber{report: probe.Report{
		Conflicts:   []probe.ConflictKind{probe.ConflictRestrictedFilesystem},
		Recommended: probe.RecommendContainer,
	}}

	cfg := config.DefaultConfig()
	cfg.DefaultBackend = "host"
	d := NewDriver(cfg, t.TempDir(), t.TempDir(),
		WithDriverLogger(log.New(io.Discard)),
		WithProber(p),
	)

	got := d.SelectBackend(context.Background(), Options{})
	if got != backend.KindHost {
		t.Errorf("configured default backend ignored: got %s", got)
	}
}
