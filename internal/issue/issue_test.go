// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestGet_KnownIds(t *testing.T) {
	ids := []Id{
		EngineUnavailableId,
		MountRestrictedId,
		ImageBuildFailedId,
		ContainerNotRunningId,
		MicromambaInstallFailedId,
		EnvironmentFileNotFoundId,
		ConfigLoadFailedId,
		ShellNotFoundId,
		SyncFailedId,
		InvalidBackendId,
	}

	for _, id := range ids {
		iss := Get(id)
		if iss == nil {
			t.Fatalf("Get(%d) returned nil", id)
		}
		if iss.Id() != id {
			t.Errorf("Get(%d).Id() = %d", id, iss.Id())
		}
		if strings.TrimSpace(string(iss.MarkdownMsg())) == "" {
			t.Errorf("issue %d has empty markdown message", id)
		}
	}
}

func TestGet_UnknownId(t *testing.T) {
	if iss := Get(Id(9999)); iss != nil {
		t.Errorf("expected nil for unknown id, got %v", iss.Id())
	}
}

func TestValues_MatchesCatalog(t *testing.T) {
	vals := Values()
	if len(vals) == 0 {
		t.Fatal("Values() returned empty catalog")
	}
	seen := map[Id]bool{}
	for _, iss := range vals {
		if seen[iss.Id()] {
			t.Errorf("duplicate issue id %d", iss.Id())
		}
		seen[iss.Id()] = true
	}
}

func TestRender_UsesRenderer(t *testing.T) {
	orig := render
	t.Cleanup(func() { render = orig })

	var gotIn string
	render = func(in string, stylePath string) (string, error) {
		gotIn = in
		return "rendered", nil
	}

	out, err := Get(MountRestrictedId).Render("dark")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out != "rendered" {
		t.Errorf("unexpected render output %q", out)
	}
	if !strings.Contains(gotIn, "copy mode") {
		t.Errorf("mount restricted guidance should mention copy mode, got %q", gotIn)
	}
}
