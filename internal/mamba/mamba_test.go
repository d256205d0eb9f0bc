// SPDX-License-Identifier: MPL-2.0

package mamba

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestHelperProcess(_ *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	if stdout := os.Getenv("GO_HELPER_STDOUT"); stdout != "" {
		fmt.Fprint(os.Stdout, stdout)
	}
	exitCode := 0
	if code := os.Getenv("GO_HELPER_EXIT_CODE"); code != "" {
		fmt.Sscanf(code, "%d", &exitCode)
	}
	os.Exit(exitCode)
}

type fakeExec struct {
	invocations [][]string
	stdout      string
	exitCode    int
}

func (f *fakeExec) fn(t *testing.T) ExecCommandFunc {
	t.Helper()
	return func(_ context.Context, name string, args ...string) *exec.Cmd {
		f.invocations = append(f.invocations, append([]string{name}, args...))

		// Manager pins cmd.Env from os.Environ, so the helper-process
		// variables must live in the test process environment to survive.
		t.Setenv("GO_WANT_HELPER_PROCESS", "1")
		t.Setenv("GO_HELPER_STDOUT", f.stdout)
		t.Setenv("GO_HELPER_EXIT_CODE", fmt.Sprintf("%d", f.exitCode))

		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, args...)
		cmd := exec.Command(os.Args[0], cs...)
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("GO_HELPER_STDOUT=%s", f.stdout),
			fmt.Sprintf("GO_HELPER_EXIT_CODE=%d", f.exitCode),
		}
		return cmd
	}
}

func installBinary(t *testing.T, m *Manager) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(m.BinPath()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(m.BinPath(), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestInstalled(t *testing.T) {
	m := NewManager(t.TempDir(), "pylab-learning", WithLogger(log.New(io.Discard)))

	if m.Installed() {
		t.Error("fresh workspace must not report an installation")
	}
	installBinary(t, m)
	if !m.Installed() {
		t.Error("expected installation to be detected")
	}
}

func TestInstall_IsIdempotent(t *testing.T) {
	downloads := 0
	m := NewManager(t.TempDir(), "pylab-learning",
		WithLogger(log.New(io.Discard)),
		WithDownloader(func(_ context.Context, _, dest string) error {
			downloads++
			return os.WriteFile(dest, []byte("binary"), 0o755)
		}))

	if err := m.Install(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Install(context.Background()); err != nil {
		t.Fatal(err)
	}
	if downloads != 1 {
		t.Errorf("downloads = %d, want 1", downloads)
	}
}

func TestEnvExists_ParsesEnvList(t *testing.T) {
	fe := &fakeExec{stdout: "  base        /ws/.mamba\n  pylab-learning  /ws/.mamba/envs/pylab-learning\n"}
	m := NewManager(t.TempDir(), "pylab-learning",
		WithLogger(log.New(io.Discard)),
		WithExecCommand(fe.fn(t)))
	installBinary(t, m)

	if !m.EnvExists(context.Background()) {
		t.Error("expected environment to be found in env list output")
	}

	fe2 := &fakeExec{stdout: "  base  /ws/.mamba\n"}
	m2 := NewManager(t.TempDir(), "pylab-learning",
		WithLogger(log.New(io.Discard)),
		WithExecCommand(fe2.fn(t)))
	installBinary(t, m2)

	if m2.EnvExists(context.Background()) {
		t.Error("absent environment reported as existing")
	}
}

func TestCreateEnv_RequiresEnvironmentFile(t *testing.T) {
	m := NewManager(t.TempDir(), "pylab-learning", WithLogger(log.New(io.Discard)))
	installBinary(t, m)

	err := m.CreateEnv(context.Background(), filepath.Join(t.TempDir(), "missing.yml"), false)
	if err == nil {
		t.Error("expected error for missing environment file")
	}
}

func TestCreateEnv_SkipsWhenPresent(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "environment.yml")
	if err := os.WriteFile(envFile, []byte("name: pylab-learning\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fe := &fakeExec{stdout: "  pylab-learning  /ws/envs/pylab-learning\n"}
	m := NewManager(dir, "pylab-learning",
		WithLogger(log.New(io.Discard)),
		WithExecCommand(fe.fn(t)))
	installBinary(t, m)

	if err := m.CreateEnv(context.Background(), envFile, false); err != nil {
		t.Fatal(err)
	}

	for _, inv := range fe.invocations {
		if len(inv) > 1 && inv[1] == "create" {
			t.Errorf("create invoked for an existing environment: %v", inv)
		}
	}
}

func TestRunArgs_WrapsWithEnvironment(t *testing.T) {
	m := NewManager("/ws", "pylab-learning")

	args := m.RunArgs("python hello.py")
	joined := strings.Join(args, " ")
	for _, want := range []string{"run", "-n pylab-learning", "python hello.py"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
}

func TestRun_CapturesExitCode(t *testing.T) {
	fe := &fakeExec{exitCode: 3}
	m := NewManager(t.TempDir(), "pylab-learning",
		WithLogger(log.New(io.Discard)),
		WithExecCommand(fe.fn(t)))
	installBinary(t, m)

	res, err := m.Run(context.Background(), "python broken.py", nil, nil, nil)
	if err != nil {
		t.Fatalf("exit code must be captured, not returned: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
}

func TestExtractBinary_FindsBinaryInArchive(t *testing.T) {
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	files := map[string]string{
		"info/recipe.yaml": "noise",
		"bin/micromamba":   "fake-binary-payload",
	}
	for name, content := range files {
		if err := tw.WriteHeader(&tar.Header{
			Name: name, Mode: 0o755, Size: int64(len(content)), Typeflag: tar.TypeReg,
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(tw, content); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	// compress/bzip2 has no writer; compress with the real layout is covered
	// by integration use. Here the extraction logic is exercised through the
	// tar layer with a pre-decompressed stream.
	dest := filepath.Join(t.TempDir(), "micromamba")
	if err := extractFromTar(tar.NewReader(&tarBuf), dest); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "fake-binary-payload" {
		t.Errorf("extracted content = %q", data)
	}
}
