// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
)

// checkTestcontainersAvailable safely checks if testcontainers can be used.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

// TestEngine_Integration exercises the real engine CLI end to end. Requires
// Docker or Podman.
func TestEngine_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	engine, err := NewEngine(EngineTypeDocker)
	if err != nil {
		t.Skipf("skipping: no container engine available: %v", err)
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping: testcontainers provider not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	const image = ImageTag("docker.io/library/alpine:3.20")
	name := "pylab-it-" + time.Now().Format("150405")

	id, err := engine.Create(ctx, CreateOptions{
		Image:       image,
		Name:        name,
		Interactive: true,
		TTY:         true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() {
		_ = engine.Remove(context.Background(), id, true)
	})

	if err := engine.Start(ctx, id); err != nil {
		t.Fatalf("start: %v", err)
	}

	running, err := engine.ContainerRunning(ctx, name)
	if err != nil || !running {
		t.Fatalf("expected running container: running=%v err=%v", running, err)
	}

	res, err := engine.Exec(ctx, id, []string{"sh", "-c", "echo hello"}, ExecOptions{})
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if res.ExitCode != 0 || !strings.Contains(res.Stdout, "hello") {
		t.Errorf("exec result: code=%d stdout=%q", res.ExitCode, res.Stdout)
	}

	// Round-trip a file through the container.
	dir := t.TempDir()
	src := filepath.Join(dir, "in.txt")
	if err := os.WriteFile(src, []byte("payload\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := engine.CopyTo(ctx, src, id, "/tmp/in.txt"); err != nil {
		t.Fatalf("copy to: %v", err)
	}
	dst := filepath.Join(dir, "out.txt")
	if err := engine.CopyFrom(ctx, id, "/tmp/in.txt", dst); err != nil {
		t.Fatalf("copy from: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload\n" {
		t.Errorf("round trip: data=%q err=%v", data, err)
	}

	if err := engine.Stop(ctx, id); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
