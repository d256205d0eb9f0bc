// SPDX-License-Identifier: MPL-2.0

package sync

import (
	"context"
	"io"
	"os"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// fakeEndpoint is an in-memory remote workspace.
type fakeEndpoint struct {
	mu      gosync.Mutex
	files   map[string]RemoteFile
	content map[string][]byte
	dirs    map[string]bool
	copyIn  int
	copyOut int
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{
		files:   make(map[string]RemoteFile),
		content: make(map[string][]byte),
		dirs:    make(map[string]bool),
	}
}

func (f *fakeEndpoint) MkdirAll(_ context.Context, relDir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs[relDir] = true
	return nil
}

func (f *fakeEndpoint) CopyTo(_ context.Context, hostPath, relPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(hostPath)
	if err != nil {
		return err
	}
	f.content[relPath] = data
	f.files[relPath] = RemoteFile{RelPath: relPath, Size: int64(len(data)), ModTime: time.Now()}
	f.copyIn++
	return nil
}

func (f *fakeEndpoint) CopyFrom(_ context.Context, relPath, hostPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.content[relPath]
	if !ok {
		return os.ErrNotExist
	}
	f.copyOut++
	return os.WriteFile(hostPath, data, 0o644)
}

func (f *fakeEndpoint) List(_ context.Context) ([]RemoteFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []RemoteFile
	for _, rf := range f.files {
		out = append(out, rf)
	}
	return out, nil
}

// seed adds a remote-only file, as if curriculum code wrote it.
func (f *fakeEndpoint) seed(relPath string, data []byte, mod time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content[relPath] = data
	f.files[relPath] = RemoteFile{RelPath: relPath, Size: int64(len(data)), ModTime: mod}
}

func newTestSyncer(t *testing.T, dir string, ep Endpoint) *Syncer {
	t.Helper()
	return NewSyncer(dir, ep, defaultTestMatcher(t),
		WithSyncLogger(log.New(io.Discard)))
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPush_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hello.py", "print('hi')")
	writeFile(t, dir, "lessons/intro.py", "x = 1")

	ep := newFakeEndpoint()
	s := newTestSyncer(t, dir, ep)
	ctx := context.Background()

	first, err := s.Push(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Copied != 2 {
		t.Errorf("first push copied %d, want 2", first.Copied)
	}

	second, err := s.Push(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second.Copied != 0 {
		t.Errorf("unchanged push copied %d, want 0", second.Copied)
	}
	if second.Skipped != 2 {
		t.Errorf("unchanged push skipped %d, want 2", second.Skipped)
	}
}

func TestPush_SendsChangedFileAgain(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hello.py", "print('hi')")

	ep := newFakeEndpoint()
	s := newTestSyncer(t, dir, ep)
	ctx := context.Background()

	if _, err := s.Push(ctx); err != nil {
		t.Fatal(err)
	}

	// Size change guarantees detection regardless of mtime granularity.
	writeFile(t, dir, "hello.py", "print('hello, world')")

	stats, err := s.Push(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Copied != 1 {
		t.Errorf("changed push copied %d, want 1", stats.Copied)
	}
	if string(ep.content["hello.py"]) != "print('hello, world')" {
		t.Errorf("remote content = %q", ep.content["hello.py"])
	}
}

func TestPush_NeverSendsExcludedPaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hello.py", "print('hi')")
	writeFile(t, dir, ".git/config", "[core]")
	writeFile(t, dir, "pkg/__pycache__/m.pyc", "bin")

	ep := newFakeEndpoint()
	s := newTestSyncer(t, dir, ep)

	if _, err := s.Push(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, ok := ep.content[".git/config"]; ok {
		t.Error(".git/config must never be pushed")
	}
	if _, ok := ep.content["pkg/__pycache__/m.pyc"]; ok {
		t.Error("bytecode cache must never be pushed")
	}
	if ep.copyIn != 1 {
		t.Errorf("copied %d files, want 1", ep.copyIn)
	}
}

func TestPull_OnlyAllowListedTypes(t *testing.T) {
	dir := t.TempDir()
	ep := newFakeEndpoint()
	mod := time.Now()
	ep.seed("results.csv", []byte("a,b\n1,2\n"), mod)
	ep.seed("plot.png", []byte{0x89, 0x50}, mod)
	ep.seed("tool.sh", []byte("#!/bin/sh\n"), mod)
	ep.seed("lib.so", []byte{0x7f, 0x45}, mod)

	s := newTestSyncer(t, dir, ep)
	stats, err := s.Pull(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if stats.Copied != 2 {
		t.Errorf("pulled %d files, want 2", stats.Copied)
	}
	if _, err := os.Stat(filepath.Join(dir, "results.csv")); err != nil {
		t.Error("results.csv should have been pulled")
	}
	if _, err := os.Stat(filepath.Join(dir, "tool.sh")); err == nil {
		t.Error("shell scripts are not on the pull allow-list")
	}
}

func TestPull_ExclusionsApply(t *testing.T) {
	dir := t.TempDir()
	ep := newFakeEndpoint()
	ep.seed(".mamba/pkgs/readme.md", []byte("internal"), time.Now())
	ep.seed("notes.md", []byte("real"), time.Now())

	s := newTestSyncer(t, dir, ep)
	if _, err := s.Pull(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, ".mamba", "pkgs", "readme.md")); err == nil {
		t.Error("excluded remote paths must not be pulled")
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.md")); err != nil {
		t.Error("notes.md should have been pulled")
	}
}

func TestPull_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	ep := newFakeEndpoint()
	ep.seed("out.txt", []byte("result"), time.Now().Add(-time.Minute))

	s := newTestSyncer(t, dir, ep)
	ctx := context.Background()

	first, err := s.Pull(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Copied != 1 {
		t.Fatalf("first pull copied %d, want 1", first.Copied)
	}

	second, err := s.Pull(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second.Copied != 0 {
		t.Errorf("unchanged pull copied %d, want 0", second.Copied)
	}
}

func TestPull_DoesNotBounceBackOnNextPush(t *testing.T) {
	dir := t.TempDir()
	ep := newFakeEndpoint()
	ep.seed("out.txt", []byte("result"), time.Now().Add(-time.Minute))

	s := newTestSyncer(t, dir, ep)
	ctx := context.Background()

	if _, err := s.Pull(ctx); err != nil {
		t.Fatal(err)
	}

	stats, err := s.Push(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Copied != 0 {
		t.Errorf("pulled file was pushed straight back (%d copies)", stats.Copied)
	}
}

func TestInvalidate_ForcesFullResend(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hello.py", "print('hi')")

	ep := newFakeEndpoint()
	s := newTestSyncer(t, dir, ep)
	ctx := context.Background()

	if _, err := s.Push(ctx); err != nil {
		t.Fatal(err)
	}
	s.Invalidate()

	stats, err := s.Push(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Copied != 1 {
		t.Errorf("post-invalidate push copied %d, want 1", stats.Copied)
	}
}
