// SPDX-License-Identifier: MPL-2.0

package shellexec

import (
	"bytes"
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"testing"
)

func TestShellArgs(t *testing.T) {
	cases := []struct {
		shell string
		want  string
	}{
		{"/bin/bash", "-c"},
		{"/usr/bin/zsh", "-c"},
		{`C:\Windows\System32\cmd.exe`, "/C"},
		{"pwsh", "-Command"},
	}
	for _, tc := range cases {
		args := shellArgs(tc.shell, "echo hi")
		if args[0] != tc.want {
			t.Errorf("shellArgs(%q)[0] = %q, want %q", tc.shell, args[0], tc.want)
		}
		if args[1] != "echo hi" {
			t.Errorf("shellArgs(%q)[1] = %q", tc.shell, args[1])
		}
	}
}

func TestFindShell_PrefersSHELLEnv(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("SHELL discovery is unix only")
	}

	r := NewRunner(
		WithGetenv(func(k string) string {
			if k == "SHELL" {
				return "/custom/shell"
			}
			return ""
		}),
		WithLookPath(func(name string) (string, error) {
			if name == "/custom/shell" {
				return "/custom/shell", nil
			}
			return "", errors.New("not found")
		}),
	)

	if got := r.findShell(); got != "/custom/shell" {
		t.Errorf("findShell = %q", got)
	}
}

func TestFindShell_EmptyWhenNothingFound(t *testing.T) {
	r := NewRunner(
		WithGetenv(func(string) string { return "" }),
		WithLookPath(func(string) (string, error) { return "", errors.New("not found") }),
	)

	if got := r.findShell(); got != "" {
		t.Errorf("findShell = %q, want empty", got)
	}
}

func TestRunEmbedded_ExecutesCommand(t *testing.T) {
	r := NewRunner(
		WithGetenv(func(string) string { return "" }),
		WithLookPath(func(string) (string, error) { return "", errors.New("not found") }),
	)

	var out bytes.Buffer
	res, err := r.Run(context.Background(), "echo embedded", t.TempDir(), IO{Stdout: &out, Stderr: os.Stderr})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d", res.ExitCode)
	}
	if !strings.Contains(out.String(), "embedded") {
		t.Errorf("stdout = %q", out.String())
	}
}

func TestRunEmbedded_ReportsExitCode(t *testing.T) {
	r := NewRunner(
		WithGetenv(func(string) string { return "" }),
		WithLookPath(func(string) (string, error) { return "", errors.New("not found") }),
	)

	res, err := r.Run(context.Background(), "exit 7", t.TempDir(), IO{})
	if err != nil {
		t.Fatalf("non-zero exit must be a result, not an error: %v", err)
	}
	if res.ExitCode != 7 {
		t.Errorf("exit code = %d, want 7", res.ExitCode)
	}
}

func TestRunSystem_UsesPinnedShell(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on /bin/sh")
	}

	r := NewRunner(WithShell("/bin/sh"))

	var out bytes.Buffer
	res, err := r.Run(context.Background(), "echo from-system", t.TempDir(), IO{Stdout: &out})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 0 || !strings.Contains(out.String(), "from-system") {
		t.Errorf("res=%+v stdout=%q", res, out.String())
	}
}
