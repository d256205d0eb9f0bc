// SPDX-License-Identifier: MPL-2.0

package sync

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"pylab/internal/container"
)

// containerEndpoint adapts the container lifecycle manager to the Endpoint
// interface. All traffic goes through the engine's cp and exec commands; the
// endpoint never talks to the engine behind the manager's back.
type containerEndpoint struct {
	manager   *container.Manager
	handle    *container.Handle
	remoteDir string
}

// NewContainerEndpoint builds an endpoint rooted at the container workdir.
func NewContainerEndpoint(manager *container.Manager, handle *container.Handle) Endpoint {
	return &containerEndpoint{
		manager:   manager,
		handle:    handle,
		remoteDir: manager.WorkDir(),
	}
}

func (c *containerEndpoint) remotePath(rel string) string {
	return path.Join(c.remoteDir, rel)
}

func (c *containerEndpoint) MkdirAll(ctx context.Context, relDir string) error {
	res, err := c.manager.Exec(ctx, c.handle,
		fmt.Sprintf("mkdir -p %s", shellQuote(c.remotePath(relDir))),
		container.ExecOptions{})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("mkdir %s failed: %s", relDir, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func (c *containerEndpoint) CopyTo(ctx context.Context, hostPath, relPath string) error {
	return c.manager.Engine().CopyTo(ctx, hostPath, c.handle.ID(), c.remotePath(relPath))
}

func (c *containerEndpoint) CopyFrom(ctx context.Context, relPath, hostPath string) error {
	return c.manager.Engine().CopyFrom(ctx, c.handle.ID(), c.remotePath(relPath), hostPath)
}

// List enumerates regular files under the remote workspace with their size
// and mtime. Uses find -printf, available in the Debian-based learning image.
func (c *containerEndpoint) List(ctx context.Context) ([]RemoteFile, error) {
	cmd := fmt.Sprintf(`find %s -type f -printf '%%s %%T@ %%P\n'`, shellQuote(c.remoteDir))
	res, err := c.manager.Exec(ctx, c.handle, cmd, container.ExecOptions{})
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("remote listing failed: %s", strings.TrimSpace(res.Stderr))
	}

	var files []RemoteFile
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		rf, ok := parseFindLine(line)
		if !ok {
			continue
		}
		files = append(files, rf)
	}
	return files, nil
}

// parseFindLine parses "SIZE EPOCH.FRAC RELPATH". Paths may contain spaces,
// so only the first two fields are split off.
func parseFindLine(line string) (RemoteFile, bool) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return RemoteFile{}, false
	}

	size, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return RemoteFile{}, false
	}
	epoch, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return RemoteFile{}, false
	}

	return RemoteFile{
		RelPath: parts[2],
		Size:    size,
		ModTime: time.Unix(int64(epoch), 0),
	}, true
}

// shellQuote single-quotes a path for embedding in a shell command.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
