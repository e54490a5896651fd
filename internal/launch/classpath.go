// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"path"

	"github.com/bootpack/bootpack/pkg/classpath"
	"github.com/bootpack/bootpack/pkg/container"
	"github.com/bootpack/bootpack/pkg/launcherr"
	"github.com/bootpack/bootpack/pkg/layout"
)

// PackagedRecords returns the classpath of a packaged container: the
// classes area first unless the index lists it, then the index records in
// order. The index is mandatory.
func PackagedRecords(src container.Source, m *layout.Manifest) ([]classpath.Record, error) {
	name := m.ClasspathIndex()
	if _, ok := src.Stat(name); !ok {
		return nil, &launcherr.FormatError{
			Resource: layout.NestedPath(src.Location(), name),
			Reason:   "classpath index missing",
		}
	}
	indexed, err := readIndex(src, name)
	if err != nil {
		return nil, err
	}

	classes := m.ClassesArea()
	var records []classpath.Record
	if !listed(indexed, classes) {
		if _, ok := src.Stat(classes); ok {
			records = append(records, classpath.NewRecord(classes))
		}
	}
	return append(records, indexed...), nil
}

// ExplodedRecords returns the classpath of an exploded container: the
// classes directory, then tool libraries, then the other libraries in index
// order when an index is present and lexical order otherwise. Libraries
// the index does not name follow the indexed ones lexically.
func ExplodedRecords(d *container.Dir, m *layout.Manifest) ([]classpath.Record, error) {
	var records []classpath.Record
	classes := m.ClassesArea()
	if e, ok := d.Stat(classes); ok && e.Dir {
		records = append(records, classpath.NewRecord(classes))
	}

	var tools, libs []string
	for _, p := range d.List(m.LibArea()) {
		switch {
		case !layout.IsNestedArchive(p):
		case layout.IsToolLibrary(p):
			tools = append(tools, p)
		default:
			libs = append(libs, p)
		}
	}
	for _, p := range tools {
		records = append(records, classpath.NewRecord(p))
	}

	if name := m.ClasspathIndex(); hasEntry(d, name) {
		hint, err := readIndex(d, name)
		if err != nil {
			return nil, err
		}
		libs = orderByHint(libs, hint)
	}
	for _, p := range libs {
		records = append(records, classpath.NewRecord(p))
	}
	return records, nil
}

func readIndex(src container.Source, name string) ([]classpath.Record, error) {
	data, err := container.ReadFile(src, name)
	if err != nil {
		return nil, &launcherr.FormatError{Resource: layout.NestedPath(src.Location(), name), Reason: "unreadable classpath index", Err: err}
	}
	return classpath.ParseIndex(layout.NestedPath(src.Location(), name), data)
}

func hasEntry(src container.Source, name string) bool {
	e, ok := src.Stat(name)
	return ok && !e.Dir
}

func listed(records []classpath.Record, p string) bool {
	for _, r := range records {
		if r.Path == p {
			return true
		}
	}
	return false
}

// orderByHint sorts libs (lexically sorted on input) so that those named by
// hint come first, in hint order.
func orderByHint(libs []string, hint []classpath.Record) []string {
	present := make(map[string]bool, len(libs))
	for _, p := range libs {
		present[p] = true
	}
	out := make([]string, 0, len(libs))
	for _, r := range hint {
		if present[r.Path] && !layout.IsToolLibrary(r.Path) {
			out = append(out, r.Path)
			delete(present, r.Path)
		}
	}
	for _, p := range libs {
		if present[p] {
			out = append(out, p)
		}
	}
	return out
}

// displayName is the short form of a unit location used in debug logs.
func displayName(location string) string {
	if _, inner, ok := layout.SplitNestedPath(location); ok {
		return path.Base(inner)
	}
	return path.Base(location)
}
