// SPDX-License-Identifier: MPL-2.0

package container

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/bootpack/bootpack/pkg/launcherr"
	"github.com/bootpack/bootpack/pkg/layout"
)

// Dir is an exploded container: the same layout materialized as a directory
// tree, for instance by a previous layer extraction.
type Dir struct {
	fs      afero.Fs
	root    string
	entries []Entry
	pos     map[string]int
	open    []io.Closer
}

var _ Source = (*Dir)(nil)

// OpenDir enumerates the exploded container rooted at root on fsys. A nil
// fsys means the OS filesystem.
func OpenDir(fsys afero.Fs, root string) (*Dir, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	info, err := fsys.Stat(root)
	if err != nil {
		return nil, &launcherr.ResolutionError{Path: root, Reason: "cannot open exploded container", Err: err}
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w: not a directory", root, ErrNotContainer)
	}

	d := &Dir{fs: fsys, root: root, pos: make(map[string]int)}
	walkErr := afero.Walk(fsys, root, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return fmt.Errorf("failed to get relative path: %w", relErr)
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(rel)
		if fi.IsDir() {
			name += "/"
		}
		d.pos[name] = len(d.entries)
		d.entries = append(d.entries, Entry{
			Path:     name,
			Dir:      fi.IsDir(),
			Size:     fi.Size(),
			Mode:     fi.Mode(),
			Modified: fi.ModTime(),
			Nested:   !fi.IsDir() && layout.IsNestedArchive(name),
		})
		return nil
	})
	if walkErr != nil {
		return nil, &launcherr.ResolutionError{Path: root, Reason: "cannot enumerate exploded container", Err: walkErr}
	}
	return d, nil
}

// Location returns the root directory.
func (d *Dir) Location() string { return d.root }

// Form returns FormExploded.
func (d *Dir) Form() Form { return FormExploded }

// Entries returns every entry in lexical walk order.
func (d *Dir) Entries() []Entry { return d.entries }

// Stat returns the entry for name.
func (d *Dir) Stat(name string) (Entry, bool) {
	i, ok := d.pos[name]
	if !ok {
		return Entry{}, false
	}
	return d.entries[i], true
}

// Fs returns the filesystem the directory lives on.
func (d *Dir) Fs() afero.Fs { return d.fs }

// Path converts an entry name into a path on the directory's filesystem.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(strings.TrimSuffix(name, "/")))
}

// List returns the names of the direct children of the directory entry
// dir (e.g. "BOOT-INF/lib/"), sorted lexically.
func (d *Dir) List(dir string) []string {
	var names []string
	for _, e := range d.entries {
		rest, ok := strings.CutPrefix(e.Path, dir)
		if !ok || rest == "" {
			continue
		}
		if i := strings.Index(rest, "/"); i >= 0 && i != len(rest)-1 {
			continue
		}
		names = append(names, e.Path)
	}
	sort.Strings(names)
	return names
}

// Open opens a file entry.
func (d *Dir) Open(name string) (io.ReadCloser, error) {
	e, ok := d.Stat(name)
	if !ok || e.Dir {
		return nil, launcherr.Missing(name, d.root)
	}
	f, err := d.fs.Open(d.Path(name))
	if err != nil {
		return nil, &launcherr.ResolutionError{Path: name, Container: d.root, Reason: "unreadable entry", Err: err}
	}
	return f, nil
}

// OpenNested opens a library file as a zip archive. The file handle stays
// open until Close.
func (d *Dir) OpenNested(name string) (*Archive, error) {
	e, ok := d.Stat(name)
	if !ok || e.Dir {
		return nil, launcherr.Missing(name, d.root)
	}
	f, err := d.fs.Open(d.Path(name))
	if err != nil {
		return nil, &launcherr.ResolutionError{Path: name, Container: d.root, Reason: "unreadable nested archive", Err: err}
	}
	a, err := NewArchive(d.Path(name), f, e.Size)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	d.open = append(d.open, f)
	return a, nil
}

// Close releases nested archive handles opened through OpenNested.
func (d *Dir) Close() error {
	var first error
	for _, c := range d.open {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	d.open = nil
	return first
}

// IsDir reports whether path is a directory on fsys.
func IsDir(fsys afero.Fs, path string) bool {
	info, err := fsys.Stat(path)
	return err == nil && info.IsDir()
}

// OpenSource opens path as a container of either form: a directory becomes
// an exploded Dir, anything else is opened as a packaged Archive.
func OpenSource(fsys afero.Fs, path string) (Source, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if IsDir(fsys, path) {
		d, err := OpenDir(fsys, path)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	a, err := OpenFile(fsys, path)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// OpenFile opens the zip file at path on fsys as a packaged container that
// owns its file handle.
func OpenFile(fsys afero.Fs, path string) (*Archive, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if _, ok := fsys.(*afero.OsFs); ok {
		return Open(path)
	}
	f, err := fsys.Open(path)
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
