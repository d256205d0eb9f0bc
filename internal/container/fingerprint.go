// SPDX-License-Identifier: MPL-2.0

package container

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
)

// BuildFingerprint hashes the build inputs (Dockerfile, environment file) so
// rebuilds can be skipped when nothing changed. Paths that do not exist are
// hashed as absent rather than failing; the fingerprint then changes when the
// file appears.
func BuildFingerprint(paths ...string) (string, error) {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	h := sha256.New()
	for _, p := range sorted {
		fmt.Fprintf(h, "%s\x00", p)
		if err := hashFileInto(h, p); err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFileInto(h io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			_, werr := io.WriteString(h, "absent\x00")
			return werr
		}
		return fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("failed to hash %s: %w", path, err)
	}
	_, err = io.WriteString(h, "\x00")
	return err
}
