// SPDX-License-Identifier: MPL-2.0

package container

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/bootpack/bootpack/pkg/launcherr"
	"github.com/bootpack/bootpack/pkg/layout"
)

// MethodZstd is the zip compression method id for zstd (WinZip assignment).
const MethodZstd = zstd.ZipMethodWinZip

// Archive is a packaged container backed by a zip reader.
type Archive struct {
	location string
	ra       io.ReaderAt
	size     int64
	closer   io.Closer
	zr       *zip.Reader
	entries  []Entry
	files    map[string]*zip.File
	pos      map[string]int
}

var _ Source = (*Archive)(nil)

// Open opens the container file at path. The file may be a plain zip or a
// zip appended to an executable.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &launcherr.ResolutionError{Path: path, Reason: "cannot open container", Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, &launcherr.ResolutionError{Path: path, Reason: "cannot stat container", Err: err}
	}
	a, err := NewArchive(path, f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	a.closer = f
	return a, nil
}

// NewArchive reads the central directory of the zip in ra. The caller keeps
// ownership of ra.
func NewArchive(location string, ra io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		if errors.Is(err, zip.ErrFormat) {
			return nil, fmt.Errorf("%s: %w: %w", location, ErrNotContainer, err)
		}
		return nil, &launcherr.FormatError{Resource: location, Err: err}
	}
	zr.RegisterDecompressor(MethodZstd, zstd.ZipDecompressor())

	a := &Archive{
		location: location,
		ra:       ra,
		size:     size,
		zr:       zr,
		entries:  make([]Entry, 0, len(zr.File)),
		files:    make(map[string]*zip.File, len(zr.File)),
		pos:      make(map[string]int, len(zr.File)),
	}
	for _, f := range zr.File {
		if err := layout.ValidateEntryPath(f.Name); err != nil {
			return nil, &launcherr.FormatError{Resource: location, Reason: fmt.Sprintf("unsafe entry path %q", f.Name)}
		}
		if _, dup := a.files[f.Name]; dup {
			return nil, &launcherr.FormatError{Resource: location, Reason: fmt.Sprintf("duplicate entry %q", f.Name)}
		}
		a.files[f.Name] = f
		a.pos[f.Name] = len(a.entries)
		dir := strings.HasSuffix(f.Name, "/")
		a.entries = append(a.entries, Entry{
			Path:     f.Name,
			Dir:      dir,
			Size:     int64(f.UncompressedSize64),
			Mode:     f.Mode(),
			Modified: f.Modified,
			Method:   f.Method,
			Nested:   !dir && layout.IsNestedArchive(f.Name),
		})
	}
	return a, nil
}

// Location returns the container path.
func (a *Archive) Location() string { return a.location }

// Form returns FormPackaged.
func (a *Archive) Form() Form { return FormPackaged }

// Entries returns the entries in central-directory order.
func (a *Archive) Entries() []Entry { return a.entries }

// Stat returns the entry for name. Directory entries may be implicit in a
// zip; a name ending in "/" is reported as present when any entry lives
// below it.
func (a *Archive) Stat(name string) (Entry, bool) {
	if i, ok := a.pos[name]; ok {
		return a.entries[i], true
	}
	if strings.HasSuffix(name, "/") {
		for _, e := range a.entries {
			if strings.HasPrefix(e.Path, name) {
				return Entry{Path: name, Dir: true, Mode: 0o755 | os.ModeDir}, true
			}
		}
	}
	return Entry{}, false
}

// Open opens the decompressed payload of a file entry.
func (a *Archive) Open(name string) (io.ReadCloser, error) {
	f, ok := a.files[name]
	if !ok || strings.HasSuffix(name, "/") {
		return nil, launcherr.Missing(name, a.location)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, &launcherr.ResolutionError{Path: name, Container: a.location, Reason: "unreadable entry", Err: err}
	}
	return rc, nil
}

// File returns the raw zip file header for name, for callers that copy
// entries without recompressing them.
func (a *Archive) File(name string) (*zip.File, bool) {
	f, ok := a.files[name]
	return f, ok
}

// Files returns the raw zip entries in central-directory order.
func (a *Archive) Files() []*zip.File { return a.zr.File }

// OpenNested opens a nested archive entry in place. A stored entry is read
// through a section of the outer file; a compressed one is inflated into
// memory. Nothing is written to disk.
func (a *Archive) OpenNested(name string) (*Archive, error) {
	f, ok := a.files[name]
	if !ok {
		return nil, launcherr.Missing(name, a.location)
	}
	location := layout.NestedPath(a.location, name)

	if f.Method == zip.Store {
		off, err := f.DataOffset()
		if err != nil {
			return nil, &launcherr.ResolutionError{Path: name, Container: a.location, Reason: "cannot locate nested archive", Err: err}
		}
		section := io.NewSectionReader(a.ra, off, int64(f.CompressedSize64))
		return NewArchive(location, section, section.Size())
	}

	rc, err := f.Open()
	if err != nil {
		return nil, &launcherr.ResolutionError{Path: name, Container: a.location, Reason: "unreadable nested archive", Err: err}
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &launcherr.ResolutionError{Path: name, Container: a.location, Reason: "unreadable nested archive", Err: err}
	}
	return NewArchive(location, bytes.NewReader(data), int64(len(data)))
}

// Close releases the container file when Archive owns it.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}
