// SPDX-License-Identifier: MPL-2.0

package mamba

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"
)

const downloadTimeout = 5 * time.Minute

// downloadRelease fetches a micromamba release archive and extracts the
// binary to dest. The release endpoint serves a bzip2 tar archive with the
// binary at bin/micromamba.
func (m *Manager) downloadRelease(ctx context.Context, url, dest string) error {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: HTTP %d", url, resp.StatusCode)
	}

	return extractBinary(resp.Body, dest)
}

// extractBinary pulls bin/micromamba (or micromamba.exe) out of the archive
// stream. Written to a temp file first so a truncated download never leaves
// a half-written binary behind.
func extractBinary(archive io.Reader, dest string) error {
	return extractFromTar(tar.NewReader(bzip2.NewReader(archive)), dest)
}

func extractFromTar(tr *tar.Reader, dest string) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("micromamba binary not found in release archive")
		}
		if err != nil {
			return fmt.Errorf("failed to read release archive: %w", err)
		}

		base := path.Base(hdr.Name)
		if hdr.Typeflag != tar.TypeReg || (base != "micromamba" && base != "micromamba.exe") {
			continue
		}

		tmp, err := os.CreateTemp(filepath.Dir(dest), ".micromamba-*")
		if err != nil {
			return err
		}
		if _, err := io.Copy(tmp, tr); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return fmt.Errorf("failed to extract micromamba: %w", err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return err
		}
		return os.Rename(tmp.Name(), dest)
	}
}
