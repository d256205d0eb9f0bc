// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"testing"

	"pylab/internal/backend"
)

func TestExitError(t *testing.T) {
	e := &ExitError{Code: 3}
	if e.Error() != "exit status 3" {
		t.Errorf("Error() = %q", e.Error())
	}

	cause := errors.New("boom")
	wrapped := &ExitError{Code: 1, Err: cause}
	if wrapped.Error() != "boom" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
	if !errors.Is(wrapped, cause) {
		t.Error("ExitError should unwrap to its cause")
	}
}

func TestParseBackendFlag(t *testing.T) {
	cases := []struct {
		value   string
		want    backend.Kind
		wantNil bool
		wantErr bool
	}{
		{value: "", wantNil: true},
		{value: "host", want: backend.KindHost},
		{value: "localenv", want: backend.KindLocalEnv},
		{value: "container", want: backend.KindContainer},
		{value: "cloud", wantErr: true},
	}

	for _, tc := range cases {
		got, err := parseBackendFlag(tc.value)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseBackendFlag(%q) should fail", tc.value)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseBackendFlag(%q) failed: %v", tc.value, err)
			continue
		}
		if tc.wantNil {
			if got != nil {
				t.Errorf("parseBackendFlag(%q) = %v, want nil", tc.value, *got)
			}
			continue
		}
		if got == nil || *got != tc.want {
			t.Errorf("parseBackendFlag(%q) = %v, want %s", tc.value, got, tc.want)
		}
	}
}

func TestBuildRunOptions_DefaultsToREPL(t *testing.T) {
	opts, err := buildRunOptions(nil)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Command != "python" {
		t.Errorf("command = %q, want python", opts.Command)
	}
	if !opts.Interactive {
		t.Error("empty command should imply an interactive session")
	}
}

func TestBuildRunOptions_JoinsArgs(t *testing.T) {
	opts, err := buildRunOptions([]string{"python", "lesson.py", "--fast"})
	if err != nil {
		t.Fatal(err)
	}
	if opts.Command != "python lesson.py --fast" {
		t.Errorf("command = %q", opts.Command)
	}
	if opts.Interactive {
		t.Error("explicit commands should not be interactive by default")
	}
}

func TestGetVersionString(t *testing.T) {
	if got := getVersionString(); got != "dev (built from source)" {
		t.Errorf("dev version string = %q", got)
	}
}
