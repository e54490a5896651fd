// SPDX-License-Identifier: MPL-2.0

package integrity

import (
	"archive/zip"
	"crypto/ed25519"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bootpack/bootpack/pkg/container"
	"github.com/bootpack/bootpack/pkg/layout"
)

// SignContainer writes a signed copy of the container at in to out. Every
// entry is copied raw, without recompression, a launcher prefix is kept, and
// any previous integrity record is replaced. in and out may be the same path.
func SignContainer(in, out string, key ed25519.PrivateKey) (rec *Record, err error) {
	src, err := container.Open(in)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	rec, sf, block, err := Sign(src, key)
	if err != nil {
		return nil, err
	}
	prefix, err := src.Prefix()
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), ".bootpack-sign-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName) // best-effort cleanup on failure
		}
	}()

	if _, err = tmp.Write(prefix); err != nil {
		return nil, fmt.Errorf("failed to write launcher prefix: %w", err)
	}
	zw := zip.NewWriter(tmp)
	zw.SetOffset(int64(len(prefix)))
	container.RegisterCompressors(zw)

	for _, f := range src.Files() {
		if layout.IsSignatureFile(f.Name) {
			continue
		}
		if err = zw.Copy(f); err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", f.Name, err)
		}
	}
	now := time.Now()
	for _, entry := range []struct {
		name string
		data []byte
	}{
		{layout.SignatureFilePath, sf},
		{layout.SignatureBlockPath, block},
	} {
		w, createErr := zw.CreateHeader(&zip.FileHeader{Name: entry.name, Method: zip.Deflate, Modified: now})
		if createErr != nil {
			err = createErr
			return nil, fmt.Errorf("failed to add %s: %w", entry.name, err)
		}
		if _, err = w.Write(entry.data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", entry.name, err)
		}
	}
	if err = zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize container: %w", err)
	}

	info, statErr := os.Stat(in)
	if statErr == nil {
		_ = tmp.Chmod(info.Mode().Perm())
	}
	if err = tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close output file: %w", err)
	}
	if err = os.Rename(tmpName, out); err != nil {
		return nil, fmt.Errorf("failed to move signed container into place: %w", err)
	}
	return rec, nil
}
