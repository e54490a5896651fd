// SPDX-License-Identifier: MPL-2.0

package classpath

import (
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/bootpack/bootpack/pkg/launcherr"
)

// artifactPattern splits a library base name into artifact and version,
// e.g. "jackson-core-2.17.1.jar" -> ("jackson-core", "2.17.1").
var artifactPattern = regexp.MustCompile(`^(.+?)-(\d[^-]*(?:-[A-Za-z0-9.]+)?)\.(?i:jar|zip)$`)

type (
	// Loader resolves resources across an ordered list of units. The first
	// unit that provides a name wins.
	// Loader is safe for concurrent use.
	Loader struct {
		units  []Unit
		logger *slog.Logger

		mu    sync.Mutex
		names []map[string]struct{}
	}

	// Shadow reports a resource provided by more than one unit. Units are in
	// classpath order; the first one is the provider that wins.
	Shadow struct {
		Name  string
		Units []string
	}

	// Conflict reports one artifact present on the classpath in more than one
	// version. Versions and Units are in classpath order.
	Conflict struct {
		Artifact string
		Versions []string
		Units    []string
	}
)

// NewLoader creates a loader over units. A nil logger means slog.Default().
func NewLoader(units []Unit, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		units:  units,
		names:  make([]map[string]struct{}, len(units)),
		logger: logger,
	}
}

// Units returns the units in resolution order.
func (l *Loader) Units() []Unit { return slices.Clone(l.units) }

// index returns the name set of unit i, listing the unit on first use.
// Cached sets are never mutated.
func (l *Loader) index(i int) (map[string]struct{}, error) {
	l.mu.Lock()
	set := l.names[i]
	l.mu.Unlock()
	if set != nil {
		return set, nil
	}

	list, err := l.units[i].List()
	if err != nil {
		return nil, err
	}
	set = make(map[string]struct{}, len(list))
	for _, n := range list {
		set[n] = struct{}{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.names[i] == nil {
		l.names[i] = set
	}
	return l.names[i], nil
}

// Find returns the first unit providing name.
func (l *Loader) Find(name string) (Unit, error) {
	for i, u := range l.units {
		set, err := l.index(i)
		if err != nil {
			return nil, err
		}
		if _, ok := set[name]; ok {
			return u, nil
		}
	}
	return nil, &launcherr.ResolutionError{Path: name, Reason: "resource not found on classpath"}
}

// Open opens name from the first unit providing it.
func (l *Loader) Open(name string) (io.ReadCloser, error) {
	u, err := l.Find(name)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("resource resolved", "name", name, "unit", u.String())
	return u.Open(name)
}

// ReadFile reads name from the first unit providing it.
func (l *Loader) ReadFile(name string) ([]byte, error) {
	rc, err := l.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read resource %s: %w", name, err)
	}
	return data, nil
}

// Shadowed lists every resource provided by more than one unit, sorted by
// name. It lists the content of every unit, so it is meant for diagnostics.
func (l *Loader) Shadowed() ([]Shadow, error) {
	providers := make(map[string][]string)
	for i, u := range l.units {
		set, err := l.index(i)
		if err != nil {
			return nil, err
		}
		for n := range set {
			providers[n] = append(providers[n], u.String())
		}
	}
	var out []Shadow
	names := maps.Keys(providers)
	slices.Sort(names)
	for _, n := range names {
		if units := providers[n]; len(units) > 1 {
			out = append(out, Shadow{Name: n, Units: units})
		}
	}
	return out, nil
}

// VersionConflicts reports artifacts indexed in more than one version. Only
// the library file names are inspected; no unit is opened.
func (l *Loader) VersionConflicts() []Conflict {
	byArtifact := make(map[string]*Conflict)
	var order []string
	for _, u := range l.units {
		if u.Kind() != KindArchive {
			continue
		}
		m := artifactPattern.FindStringSubmatch(path.Base(u.Location()))
		if m == nil {
			continue
		}
		c, ok := byArtifact[m[1]]
		if !ok {
			c = &Conflict{Artifact: m[1]}
			byArtifact[m[1]] = c
			order = append(order, m[1])
		}
		c.Versions = append(c.Versions, m[2])
		c.Units = append(c.Units, u.String())
	}
	var out []Conflict
	for _, a := range order {
		if c := byArtifact[a]; len(c.Versions) > 1 {
			out = append(out, *c)
		}
	}
	return out
}

// WarnConflicts logs every version conflict at warn level. The first
// version on the classpath stays in effect.
func (l *Loader) WarnConflicts() {
	for _, c := range l.VersionConflicts() {
		l.logger.Warn("artifact present in several versions, first one wins",
			"artifact", c.Artifact,
			"versions", c.Versions,
			"selected", c.Units[0],
		)
	}
}
