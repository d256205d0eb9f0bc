// SPDX-License-Identifier: MPL-2.0

package backend

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// markerFileName is the on-disk marker recording the last run's backend and
// image fingerprint inside the pylab state directory.
const markerFileName = "backend.toml"

// Marker records the outcome of the last successful run setup. It is read at
// startup to skip redundant image builds: when the stored fingerprint matches
// the current image spec, EnsureImage becomes a no-op.
type Marker struct {
	// Backend is the last successfully selected backend.
	Backend Kind `toml:"backend"`
	// ImageFingerprint is the content hash of the image spec that was last
	// built (empty for non-container backends).
	ImageFingerprint string `toml:"image_fingerprint"`
	// UpdatedAt is when the marker was written.
	UpdatedAt time.Time `toml:"updated_at"`
}

// LoadMarker reads the marker from stateDir. A missing marker is not an
// error; it returns (nil, nil) as a cue to rebuild. A corrupt marker is
// likewise treated as absent, since the worst case is one redundant build.
func LoadMarker(stateDir string) (*Marker, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, markerFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backend marker: %w", err)
	}

	var m Marker
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, nil
	}
	if err := m.Backend.Validate(); err != nil {
		return nil, nil
	}
	return &m, nil
}

// SaveMarker writes the marker to stateDir, creating the directory if needed.
func SaveMarker(stateDir string, m *Marker) error {
	if err := m.Backend.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	m.UpdatedAt = time.Now().UTC()
	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode backend marker: %w", err)
	}

	path := filepath.Join(stateDir, markerFileName)
	// Write-then-rename so a crash mid-write never leaves a torn marker.
	tmp, err := os.CreateTemp(stateDir, markerFileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp marker: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write backend marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close backend marker: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace backend marker: %w", err)
	}
	return nil
}
