// SPDX-License-Identifier: MPL-2.0

package backend

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMarker_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	saved := &Marker{Backend: KindContainer, ImageFingerprint: "abc123"}
	if err := SaveMarker(dir, saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadMarker(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected marker, got nil")
	}
	if loaded.Backend != KindContainer {
		t.Errorf("backend = %q", loaded.Backend)
	}
	if loaded.ImageFingerprint != "abc123" {
		t.Errorf("fingerprint = %q", loaded.ImageFingerprint)
	}
	if loaded.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set on save")
	}
}

func TestLoadMarker_AbsentIsNotAnError(t *testing.T) {
	m, err := LoadMarker(t.TempDir())
	if err != nil {
		t.Fatalf("absent marker must not error: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil marker, got %+v", m)
	}
}

func TestLoadMarker_CorruptTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, markerFileName)
	if err := os.WriteFile(path, []byte("{{{not toml"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadMarker(dir)
	if err != nil {
		t.Fatalf("corrupt marker must not error: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil marker for corrupt file, got %+v", m)
	}
}

func TestLoadMarker_InvalidBackendTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, markerFileName)
	content := "backend = \"mainframe\"\nimage_fingerprint = \"x\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadMarker(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil marker for invalid backend, got %+v", m)
	}
}

func TestSaveMarker_RejectsInvalidKind(t *testing.T) {
	if err := SaveMarker(t.TempDir(), &Marker{Backend: "mainframe"}); err == nil {
		t.Error("expected error for invalid backend kind")
	}
}

func TestSaveMarker_CreatesStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	if err := SaveMarker(dir, &Marker{Backend: KindHost}); err != nil {
		t.Fatalf("save into missing dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, markerFileName)); err != nil {
		t.Errorf("marker file not created: %v", err)
	}
}
