// SPDX-License-Identifier: MPL-2.0

package classpath

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/bootpack/bootpack/pkg/container"
	"github.com/bootpack/bootpack/pkg/launcherr"
	"github.com/bootpack/bootpack/pkg/layout"
)

// Unit is one resolvable classpath element: a directory of resources or a
// nested archive. Units hand out resource bytes without ever extracting the
// archive that holds them.
type Unit interface {
	// Location is the full address of the unit, e.g.
	// "app.jar!/BOOT-INF/lib/util-1.0.jar" or an exploded directory path.
	Location() string
	Kind() Kind
	// List returns the resource names the unit provides, sorted.
	List() ([]string, error)
	// Open opens a resource by its name relative to the unit.
	Open(name string) (io.ReadCloser, error)
	// String returns the display path used by the classpath tool.
	String() string
}

// fsDirUnit is a directory on a filesystem, used for exploded containers.
type fsDirUnit struct {
	fs   afero.Fs
	root string
}

func (u *fsDirUnit) Location() string { return u.root }
func (u *fsDirUnit) Kind() Kind       { return KindDirectory }
func (u *fsDirUnit) String() string   { return u.root }

func (u *fsDirUnit) List() ([]string, error) {
	var names []string
	err := afero.Walk(u.fs, u.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(u.root, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, &launcherr.ResolutionError{Path: u.root, Reason: "cannot list directory unit", Err: err}
	}
	sort.Strings(names)
	return names, nil
}

func (u *fsDirUnit) Open(name string) (io.ReadCloser, error) {
	if layout.ValidateEntryPath(name) != nil {
		return nil, launcherr.Missing(name, u.root)
	}
	f, err := u.fs.Open(filepath.Join(u.root, filepath.FromSlash(name)))
	if err != nil {
		return nil, &launcherr.ResolutionError{Path: name, Container: u.root, Reason: "resource not found", Err: err}
	}
	return f, nil
}

// prefixUnit is a directory area inside a container, such as the classes
// area of a packaged archive.
type prefixUnit struct {
	src    container.Source
	prefix string
}

func (u *prefixUnit) Location() string { return layout.NestedPath(u.src.Location(), u.prefix) }
func (u *prefixUnit) Kind() Kind       { return KindDirectory }
func (u *prefixUnit) String() string   { return u.Location() }

func (u *prefixUnit) List() ([]string, error) {
	var names []string
	for _, e := range u.src.Entries() {
		if e.Dir {
			continue
		}
		if rest, ok := strings.CutPrefix(e.Path, u.prefix); ok && rest != "" {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (u *prefixUnit) Open(name string) (io.ReadCloser, error) {
	return u.src.Open(u.prefix + name)
}

// archiveUnit is a nested library archive opened lazily through the cache.
type archiveUnit struct {
	location string
	open     func() (*container.Archive, error)
	cache    *Cache
}

func (u *archiveUnit) Location() string { return u.location }
func (u *archiveUnit) Kind() Kind       { return KindArchive }
func (u *archiveUnit) String() string   { return u.location }

func (u *archiveUnit) List() ([]string, error) {
	a, release, err := u.cache.Get(u.location, u.open)
	if err != nil {
		return nil, err
	}
	defer release()
	var names []string
	for _, e := range a.Entries() {
		if !e.Dir {
			names = append(names, e.Path)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Open keeps the archive open until the returned reader is closed.
func (u *archiveUnit) Open(name string) (io.ReadCloser, error) {
	a, release, err := u.cache.Get(u.location, u.open)
	if err != nil {
		return nil, err
	}
	rc, err := a.Open(name)
	if err != nil {
		release()
		return nil, err
	}
	return &handleReader{ReadCloser: rc, release: release}, nil
}
