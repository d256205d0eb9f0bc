// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import (
	"fmt"
	"syscall"
	"testing"
)

func TestIsFatalFsnotifyError(t *testing.T) {
	t.Parallel()

	fatal := []error{
		errnoTooManyOpenFiles,
		errnoInvalidHandle,
		errnoNotEnoughMemory,
		fmt.Errorf("fsnotify: %w", errnoInvalidHandle),
	}
	for _, err := range fatal {
		if !isFatalFsnotifyError(err) {
			t.Errorf("isFatalFsnotifyError(%v) = false, want true", err)
		}
	}

	transient := []error{
		syscall.Errno(5), // ERROR_ACCESS_DENIED
		syscall.Errno(2), // ERROR_FILE_NOT_FOUND
		fmt.Errorf("something went wrong"),
	}
	for _, err := range transient {
		if isFatalFsnotifyError(err) {
			t.Errorf("isFatalFsnotifyError(%v) = true, want false", err)
		}
	}
}
