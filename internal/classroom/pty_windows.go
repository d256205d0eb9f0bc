// SPDX-License-Identifier: MPL-2.0

//go:build windows

package classroom

import (
	"errors"
	"os"
	"os/exec"
)

// startLessonPty has no PTY to offer on Windows; sessions fall back to the
// piped path.
func startLessonPty(*exec.Cmd) (*os.File, error) {
	return nil, errors.New("pseudo-terminals are not supported on windows")
}

// resizeLessonPty is a no-op on Windows.
func resizeLessonPty(*os.File, int, int) {}
