// SPDX-License-Identifier: MPL-2.0

// Package container gives read access to bootpack containers in both forms:
// a packaged zip archive (possibly appended to a launcher executable) and an
// exploded directory tree. Nested library archives are opened in place,
// without extraction to temporary storage.
package container

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/bootpack/bootpack/pkg/launcherr"
	"github.com/bootpack/bootpack/pkg/layout"
)

// Form tells how a container is materialized.
type Form int

const (
	// FormPackaged is a single container file.
	FormPackaged Form = iota + 1
	// FormExploded is a directory tree already materialized on disk.
	FormExploded
)

// String returns the form name used in logs and tool output.
func (f Form) String() string {
	switch f {
	case FormPackaged:
		return "packaged"
	case FormExploded:
		return "exploded"
	default:
		return "unknown"
	}
}

// ErrNotContainer is returned when a path is neither a directory nor a zip archive.
var ErrNotContainer = errors.New("not a container")

type (
	// Entry describes one path inside a container.
	Entry struct {
		// Path is the slash-separated entry path; directories end with "/".
		Path     string
		Dir      bool
		Size     int64
		Mode     fs.FileMode
		Modified time.Time
		// Method is the zip compression method (zero for exploded entries).
		Method uint16
		// Nested marks a nested library archive.
		Nested bool
	}

	// Source enumerates and opens the entries of a container, whatever its form.
	Source interface {
		// Location is the path of the container file or directory.
		Location() string
		// Form reports how the container is materialized.
		Form() Form
		// Entries returns every entry in container order.
		Entries() []Entry
		// Stat returns the entry for name.
		Stat(name string) (Entry, bool)
		// Open opens the payload of a non-directory entry.
		Open(name string) (io.ReadCloser, error)
		// OpenNested opens a nested archive entry as a container of its own.
		OpenNested(name string) (*Archive, error)
		// Close releases the underlying file handles.
		Close() error
	}
)

// ReadFile reads the whole payload of name from src.
func ReadFile(src Source, name string) ([]byte, error) {
	rc, err := src.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", layout.NestedPath(src.Location(), name), err)
	}
	return data, nil
}

// Names returns the entry paths of src in container order.
func Names(src Source) []string {
	entries := src.Entries()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Path
	}
	return names
}

// ReadManifest reads, parses and validates META-INF/MANIFEST.MF. A missing
// manifest is reported with ok=false and no error, so callers decide whether
// it is fatal.
func ReadManifest(src Source) (m *layout.Manifest, ok bool, err error) {
	if _, found := src.Stat(layout.ManifestPath); !found {
		return nil, false, nil
	}
	data, err := ReadFile(src, layout.ManifestPath)
	if err != nil {
		return nil, true, err
	}
	resource := layout.NestedPath(src.Location(), layout.ManifestPath)
	m, err = layout.ParseManifest(resource, data)
	if err != nil {
		return nil, true, err
	}
	if err := m.Validate(); err != nil {
		var fe *launcherr.FormatError
		if errors.As(err, &fe) {
			fe.Resource = resource
		}
		return nil, true, err
	}
	return m, true, nil
}

// CheckStrict applies layout.CheckStrict to src.
func CheckStrict(src Source) error {
	m, _, err := ReadManifest(src)
	if err != nil {
		return err
	}
	return layout.CheckStrict(src.Location(), Names(src), m)
}
