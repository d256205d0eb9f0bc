// SPDX-License-Identifier: MPL-2.0

package sync

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

type (
	// Matcher decides which workspace paths participate in synchronization.
	// Paths are workspace-relative with forward slashes.
	Matcher struct {
		include []string
		exclude []string
	}

	// Entry describes one file eligible for synchronization.
	Entry struct {
		// RelPath is the workspace-relative path, forward slashes.
		RelPath string
		// Size in bytes.
		Size int64
		// ModTime is the file modification time.
		ModTime time.Time
	}
)

// NewMatcher validates the patterns and builds a matcher. An empty include
// list matches everything.
func NewMatcher(include, exclude []string) (*Matcher, error) {
	if len(include) == 0 {
		include = []string{"**"}
	}
	for _, p := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid sync pattern %q", p)
		}
	}
	return &Matcher{include: include, exclude: exclude}, nil
}

// Match reports whether a file path participates in sync. Exclusions win
// over inclusions.
func (m *Matcher) Match(rel string) bool {
	rel = filepath.ToSlash(rel)

	for _, p := range m.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	for _, p := range m.include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// SkipDir reports whether a whole directory can be pruned from the walk
// because an exclusion covers everything under it.
func (m *Matcher) SkipDir(rel string) bool {
	rel = filepath.ToSlash(rel)

	for _, p := range m.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		// A pattern like ".git/**" excludes the directory ".git" itself
		// for pruning purposes.
		if trimmed, found := strings.CutSuffix(p, "/**"); found {
			if ok, _ := doublestar.Match(trimmed, rel); ok {
				return true
			}
		}
	}
	return false
}

// BuildManifest walks the workspace and returns all files the matcher
// admits, sorted by the walk order (lexical).
func BuildManifest(workspaceDir string, matcher *Matcher) ([]Entry, error) {
	var entries []Entry

	root := os.DirFS(workspaceDir)
	err := fs.WalkDir(root, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == "." {
			return nil
		}

		if d.IsDir() {
			if matcher.SkipDir(path) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !matcher.Match(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			RelPath: path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan workspace %s: %w", workspaceDir, err)
	}

	return entries, nil
}
