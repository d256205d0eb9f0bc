// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package classroom

import (
	"os"
	"os/exec"
	"syscall"
	"unsafe"

	"github.com/creack/pty"
)

// startLessonPty starts the lesson process on a fresh pseudo-terminal.
func startLessonPty(cmd *exec.Cmd) (*os.File, error) {
	return pty.Start(cmd)
}

// resizeLessonPty propagates the learner's window size to the PTY.
func resizeLessonPty(f *os.File, width, height int) {
	ws := struct {
		rows, cols, x, y uint16
	}{uint16(height), uint16(width), 0, 0}
	_, _, _ = syscall.Syscall(syscall.SYS_IOCTL, f.Fd(),
		uintptr(syscall.TIOCSWINSZ), uintptr(unsafe.Pointer(&ws)))
}
