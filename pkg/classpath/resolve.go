// SPDX-License-Identifier: MPL-2.0

package classpath

import (
	"github.com/bootpack/bootpack/pkg/container"
	"github.com/bootpack/bootpack/pkg/launcherr"
	"github.com/bootpack/bootpack/pkg/layout"
)

// Resolve turns records into units over src, in record order. A record that
// names an entry absent from src is a ResolutionError; nested archives are
// not opened until a unit is first used.
func Resolve(records []Record, src container.Source, cache *Cache) ([]Unit, error) {
	if cache == nil {
		var err error
		if cache, err = NewCache(DefaultCacheSize); err != nil {
			return nil, err
		}
	}
	units := make([]Unit, 0, len(records))
	for _, r := range records {
		u, err := NewUnit(r, src, cache)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

// NewUnit resolves a single record against src.
func NewUnit(r Record, src container.Source, cache *Cache) (Unit, error) {
	e, ok := src.Stat(r.Path)
	if !ok {
		return nil, launcherr.Missing(r.Path, src.Location())
	}

	if r.Kind == KindDirectory {
		if !e.Dir {
			return nil, &launcherr.ResolutionError{Path: r.Path, Container: src.Location(), Reason: "not a directory"}
		}
		if d, isDir := src.(*container.Dir); isDir {
			return &fsDirUnit{fs: d.Fs(), root: d.Path(r.Path)}, nil
		}
		return &prefixUnit{src: src, prefix: r.Path}, nil
	}

	if e.Dir {
		return nil, &launcherr.ResolutionError{Path: r.Path, Container: src.Location(), Reason: "not an archive"}
	}
	u := &archiveUnit{cache: cache}
	if d, isDir := src.(*container.Dir); isDir {
		p := d.Path(r.Path)
		u.location = p
		u.open = func() (*container.Archive, error) { return container.OpenFile(d.Fs(), p) }
	} else {
		u.location = layout.NestedPath(src.Location(), r.Path)
		u.open = func() (*container.Archive, error) { return src.OpenNested(r.Path) }
	}
	if u.cache == nil {
		c, err := NewCache(DefaultCacheSize)
		if err != nil {
			return nil, err
		}
		u.cache = c
	}
	return u, nil
}
