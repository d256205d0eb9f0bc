// SPDX-License-Identifier: MPL-2.0

package sync

import (
	"os"
	"path/filepath"
	"testing"
)

func defaultTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	m, err := NewMatcher(
		[]string{"**"},
		[]string{".git/**", "**/__pycache__/**", "**/*.pyc", ".mamba/**", ".venv/**"},
	)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestMatcher_ExclusionsWin(t *testing.T) {
	m := defaultTestMatcher(t)

	cases := []struct {
		path string
		want bool
	}{
		{"hello.py", true},
		{"lessons/01/intro.py", true},
		{"data/results.csv", true},
		{".git/config", false},
		{".git/objects/ab/cdef", false},
		{"lessons/__pycache__/intro.cpython-312.pyc", false},
		{"lessons/intro.pyc", false},
		{".mamba/envs/pylab/bin/python", false},
		{".venv/lib/site.py", false},
	}
	for _, tc := range cases {
		if got := m.Match(tc.path); got != tc.want {
			t.Errorf("Match(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestMatcher_NarrowIncludeStillLosesToExclude(t *testing.T) {
	m, err := NewMatcher([]string{"**/*.py"}, []string{".venv/**"})
	if err != nil {
		t.Fatal(err)
	}

	if m.Match("notes.md") {
		t.Error("notes.md should not match a *.py-only include")
	}
	if !m.Match("src/app.py") {
		t.Error("src/app.py should match")
	}
	if m.Match(".venv/lib/site.py") {
		t.Error("exclusion must win even for an included extension")
	}
}

func TestNewMatcher_RejectsInvalidPattern(t *testing.T) {
	if _, err := NewMatcher([]string{"[unclosed"}, nil); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestBuildManifest_PrunesExcludedDirs(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"hello.py":                "print('hi')",
		"lessons/intro.py":        "x = 1",
		".git/config":             "[core]",
		"lessons/__pycache__/i.c": "bin",
	}
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := BuildManifest(dir, defaultTestMatcher(t))
	if err != nil {
		t.Fatal(err)
	}

	got := make(map[string]bool)
	for _, e := range entries {
		got[e.RelPath] = true
	}
	if !got["hello.py"] || !got["lessons/intro.py"] {
		t.Errorf("expected workspace files in manifest, got %v", got)
	}
	if got[".git/config"] {
		t.Error(".git contents must never appear in the manifest")
	}
	if len(entries) != 2 {
		t.Errorf("manifest = %v, want 2 entries", entries)
	}
}
