// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func newTestEngine(t *testing.T, rec *MockCommandRecorder) *DockerEngine {
	t.Helper()
	return NewDockerEngine(
		WithBinaryPath("docker"),
		WithExecCommand(rec.ContextCommandFunc(t)),
	)
}

func TestBuildArgs(t *testing.T) {
	e := NewBaseCLIEngine("docker")

	args := e.BuildArgs(BuildOptions{
		ContextDir: "/proj",
		Dockerfile: "Dockerfile",
		Tag:        "pylab-learning",
		NoCache:    true,
	})

	want := []string{"build", "-f", "/proj/Dockerfile", "-t", "pylab-learning", "--no-cache", "/proj"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestCreateArgs_VolumeMode(t *testing.T) {
	e := NewBaseCLIEngine("docker")

	args := e.CreateArgs(CreateOptions{
		Image:   "pylab-learning",
		Name:    "pylab-env",
		WorkDir: "/workspace",
		Volumes: []string{"/home/user/proj:/workspace"},
		User:    "1000:1000",
	})

	joined := strings.Join(args, " ")
	for _, want := range []string{"create", "--name pylab-env", "--user 1000:1000", "-w /workspace", "-v /home/user/proj:/workspace", "pylab-learning"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
}

func TestCreateArgs_CopyModeHasNoVolumes(t *testing.T) {
	e := NewBaseCLIEngine("docker")

	args := e.CreateArgs(CreateOptions{Image: "pylab-learning", Name: "pylab-env"})
	for _, a := range args {
		if a == "-v" {
			t.Errorf("copy mode create must not carry volume flags: %v", args)
		}
	}
}

func TestCreate_ClassifiesMountRestriction(t *testing.T) {
	rec := NewMockCommandRecorder()
	rec.Respond("create", MockResponse{
		ExitCode: 125,
		Stderr:   "docker: Error response from daemon: error while creating mount source path '/host/proj': mkdir /host: read-only file system.",
	})
	e := newTestEngine(t, rec)

	_, err := e.Create(context.Background(), CreateOptions{
		Image:   "pylab-learning",
		Name:    "pylab-env",
		Volumes: []string{"/host/proj:/workspace"},
	})

	if !errors.Is(err, ErrMountRestricted) {
		t.Fatalf("expected ErrMountRestricted, got %v", err)
	}
	var mre *MountRestrictedError
	if !errors.As(err, &mre) {
		t.Fatalf("expected *MountRestrictedError, got %T", err)
	}
	if mre.Engine != "docker" {
		t.Errorf("engine = %q", mre.Engine)
	}
}

func TestCreate_ClassifiesEngineUnreachable(t *testing.T) {
	rec := NewMockCommandRecorder()
	rec.Respond("create", MockResponse{
		ExitCode: 1,
		Stderr:   "Cannot connect to the Docker daemon at unix:///var/run/docker.sock. Is the docker daemon running?",
	})
	e := newTestEngine(t, rec)

	_, err := e.Create(context.Background(), CreateOptions{Image: "img", Name: "c"})
	if !errors.Is(err, ErrRuntimeUnavailable) {
		t.Fatalf("expected ErrRuntimeUnavailable, got %v", err)
	}
}

func TestCreate_OtherFailureIsCreateError(t *testing.T) {
	rec := NewMockCommandRecorder()
	rec.Respond("create", MockResponse{ExitCode: 125, Stderr: "no such image: pylab-learning"})
	e := newTestEngine(t, rec)

	_, err := e.Create(context.Background(), CreateOptions{Image: "pylab-learning", Name: "c"})
	var ce *CreateError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CreateError, got %T (%v)", err, err)
	}
	if errors.Is(err, ErrMountRestricted) || errors.Is(err, ErrRuntimeUnavailable) {
		t.Error("plain create failure must not match restriction sentinels")
	}
}

func TestCreate_ReturnsTrimmedID(t *testing.T) {
	rec := NewMockCommandRecorder()
	rec.Respond("create", MockResponse{Stdout: "abc123def456\n"})
	e := newTestEngine(t, rec)

	id, err := e.Create(context.Background(), CreateOptions{Image: "img", Name: "c"})
	if err != nil {
		t.Fatal(err)
	}
	if id != "abc123def456" {
		t.Errorf("id = %q", id)
	}
}

func TestExec_NonZeroExitIsNotAnError(t *testing.T) {
	rec := NewMockCommandRecorder()
	rec.Respond("exec", MockResponse{ExitCode: 2, Stderr: "NameError: name 'x' is not defined"})
	e := newTestEngine(t, rec)

	res, err := e.Exec(context.Background(), "pylab-env", []string{"python", "bad.py"}, ExecOptions{})
	if err != nil {
		t.Fatalf("exit code must be captured, not returned: %v", err)
	}
	if res.ExitCode != 2 {
		t.Errorf("exit code = %d, want 2", res.ExitCode)
	}
}

func TestContainerRunning(t *testing.T) {
	rec := NewMockCommandRecorder()
	rec.Respond("ps", MockResponse{Stdout: "abc123\n"})
	e := newTestEngine(t, rec)

	running, err := e.ContainerRunning(context.Background(), "pylab-env")
	if err != nil {
		t.Fatal(err)
	}
	if !running {
		t.Error("expected running=true for non-empty ps output")
	}
	rec.AssertArgsContainAll(t, []string{"ps", "-q", "-f", "name=pylab-env"})
}

func TestCopyToFrom_ArgOrder(t *testing.T) {
	rec := NewMockCommandRecorder()
	e := newTestEngine(t, rec)

	if err := e.CopyTo(context.Background(), "/host/a.py", "pylab-env", "/workspace/a.py"); err != nil {
		t.Fatal(err)
	}
	rec.AssertArgsContainAll(t, []string{"cp", "/host/a.py", "pylab-env:/workspace/a.py"})

	if err := e.CopyFrom(context.Background(), "pylab-env", "/workspace/out.csv", "/host/out.csv"); err != nil {
		t.Fatal(err)
	}
	rec.AssertArgsContainAll(t, []string{"cp", "pylab-env:/workspace/out.csv", "/host/out.csv"})
}

func TestAddSELinuxLabel_PreservesExistingLabel(t *testing.T) {
	// Only meaningful when SELinux is off (no relabeling happens) or the
	// volume already carries a label; both paths must leave labeled specs
	// untouched.
	v := "/a:/b:z"
	if got := addSELinuxLabel(v); got != v && got != v+",z" {
		t.Errorf("labeled volume mangled: %q", got)
	}
}
