// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// isFatalFsnotifyError reports whether an fsnotify error means the watcher
// cannot recover. On Linux these are the inotify exhaustion errnos: ENOSPC
// (fs.inotify.max_user_watches), EMFILE (process fd limit), and ENFILE
// (system fd limit). Everything else is transient.
func isFatalFsnotifyError(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
