// SPDX-License-Identifier: MPL-2.0

//go:build windows

package session

import (
	"context"
	"errors"
	"os"
	"os/exec"
)

// attachPTY on Windows runs the command with the console streams attached
// directly; the engine's own TTY handling does the rest.
func attachPTY(ctx context.Context, bin string, args []string, dir string) (int, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 1, err
	}
	return 0, nil
}
