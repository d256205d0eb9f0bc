// SPDX-License-Identifier: MPL-2.0

package sync

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	gosync "sync"
	"time"

	"github.com/charmbracelet/log"
)

type (
	// RemoteFile describes one file on the container side of the sync.
	RemoteFile struct {
		// RelPath is relative to the remote workspace, forward slashes.
		RelPath string
		Size    int64
		ModTime time.Time
	}

	// Endpoint is the remote side of a synchronization. The container-backed
	// implementation shells out to the engine's copy commands; tests use an
	// in-memory fake.
	Endpoint interface {
		// MkdirAll creates a directory tree under the remote workspace.
		MkdirAll(ctx context.Context, relDir string) error
		// CopyTo copies a host file to a workspace-relative remote path.
		CopyTo(ctx context.Context, hostPath, relPath string) error
		// CopyFrom copies a workspace-relative remote path to a host file.
		CopyFrom(ctx context.Context, relPath, hostPath string) error
		// List enumerates the files in the remote workspace.
		List(ctx context.Context) ([]RemoteFile, error)
	}

	// Stats summarizes one push or pull.
	Stats struct {
		Copied  int
		Skipped int
	}

	// SyncerOption configures a Syncer.
	SyncerOption func(*Syncer)

	// Syncer moves files between the host workspace and a remote endpoint.
	// Both directions are idempotent: running the same sync twice with no
	// intervening changes copies nothing the second time.
	Syncer struct {
		endpoint     Endpoint
		matcher      *Matcher
		workspaceDir string
		logger       *log.Logger

		mu         gosync.Mutex
		pushed     map[string]stamp
		remoteDirs map[string]bool
	}

	stamp struct {
		size    int64
		modTime time.Time
	}
)

// pullExtensions is the allow-list of file types that may travel from the
// container back to the host. Code the learner edits plus the artifact types
// curriculum scripts produce; nothing executable or environment-internal.
var pullExtensions = map[string]bool{
	".py":    true,
	".txt":   true,
	".md":    true,
	".json":  true,
	".csv":   true,
	".png":   true,
	".jpg":   true,
	".jpeg":  true,
	".gif":   true,
	".svg":   true,
	".html":  true,
	".pdf":   true,
	".ipynb": true,
}

// WithSyncLogger sets the syncer's logger.
func WithSyncLogger(logger *log.Logger) SyncerOption {
	return func(s *Syncer) { s.logger = logger }
}

// NewSyncer creates a syncer between a host workspace and a remote endpoint.
func NewSyncer(workspaceDir string, endpoint Endpoint, matcher *Matcher, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		endpoint:     endpoint,
		matcher:      matcher,
		workspaceDir: workspaceDir,
		logger:       log.Default(),
		pushed:       make(map[string]stamp),
		remoteDirs:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push copies changed workspace files to the endpoint. Files whose size and
// modification time are unchanged since the last push are skipped.
func (s *Syncer) Push(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := BuildManifest(s.workspaceDir, s.matcher)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, e := range entries {
		cur := stamp{size: e.Size, modTime: e.ModTime}
		if prev, ok := s.pushed[e.RelPath]; ok && prev == cur {
			stats.Skipped++
			continue
		}

		if dir := path.Dir(e.RelPath); dir != "." && !s.remoteDirs[dir] {
			if err := s.endpoint.MkdirAll(ctx, dir); err != nil {
				return stats, fmt.Errorf("failed to create remote dir %s: %w", dir, err)
			}
			s.remoteDirs[dir] = true
		}

		hostPath := filepath.Join(s.workspaceDir, filepath.FromSlash(e.RelPath))
		if err := s.endpoint.CopyTo(ctx, hostPath, e.RelPath); err != nil {
			return stats, fmt.Errorf("failed to push %s: %w", e.RelPath, err)
		}

		s.pushed[e.RelPath] = cur
		stats.Copied++
	}

	s.logger.Debug("push complete", "copied", stats.Copied, "skipped", stats.Skipped)
	return stats, nil
}

// Pull copies changed remote files back to the workspace. Only allow-listed
// file types travel; the matcher's exclusions apply in this direction too.
func (s *Syncer) Pull(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remote, err := s.endpoint.List(ctx)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, rf := range remote {
		if !pullExtensions[path.Ext(rf.RelPath)] {
			continue
		}
		if !s.matcher.Match(rf.RelPath) {
			continue
		}

		hostPath := filepath.Join(s.workspaceDir, filepath.FromSlash(rf.RelPath))
		if !s.needsPull(rf, hostPath) {
			stats.Skipped++
			continue
		}

		if dir := filepath.Dir(hostPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return stats, fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
		if err := s.endpoint.CopyFrom(ctx, rf.RelPath, hostPath); err != nil {
			return stats, fmt.Errorf("failed to pull %s: %w", rf.RelPath, err)
		}

		// The pushed stamp must follow the pulled content, otherwise the
		// next push would bounce the same file back.
		if info, err := os.Stat(hostPath); err == nil {
			s.pushed[rf.RelPath] = stamp{size: info.Size(), modTime: info.ModTime()}
		}
		stats.Copied++
	}

	s.logger.Debug("pull complete", "copied", stats.Copied, "skipped", stats.Skipped)
	return stats, nil
}

// needsPull decides whether a remote file is newer than its host copy.
func (s *Syncer) needsPull(rf RemoteFile, hostPath string) bool {
	info, err := os.Stat(hostPath)
	if err != nil {
		return true
	}
	if info.Size() != rf.Size {
		return true
	}
	return rf.ModTime.After(info.ModTime())
}

// Invalidate drops the push memory so the next Push re-sends everything.
// Used after the container is recreated.
func (s *Syncer) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushed = make(map[string]stamp)
	s.remoteDirs = make(map[string]bool)
}
