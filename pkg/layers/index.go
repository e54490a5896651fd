// SPDX-License-Identifier: MPL-2.0

// Package layers reads and writes the layer index of a container, assigns
// every entry to exactly one layer and extracts a container layer by layer.
package layers

import (
	"bytes"
	"fmt"
	"path"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bootpack/bootpack/pkg/launcherr"
	"github.com/bootpack/bootpack/pkg/layout"
)

const (
	// DefaultLayer receives every entry no declared pattern matches. It is
	// appended as the final layer when the index does not declare it.
	DefaultLayer = "application"

	// exactBonus ranks an exact pattern above any prefix or glob.
	exactBonus = 1 << 20
)

type (
	// Layer is a named, ordered set of entry patterns.
	Layer struct {
		Name     string
		Patterns []string
	}

	// Index is the ordered list of layers. Earlier layers change least often.
	Index struct {
		layers []Layer
	}
)

// New builds an index from layers in order. Layer names must be unique and
// patterns must be valid.
func New(layers ...Layer) (*Index, error) {
	seen := make(map[string]bool, len(layers))
	for _, l := range layers {
		if l.Name == "" {
			return nil, launcherr.Format(layout.LayersIndexPath, 0, "layer with empty name")
		}
		if seen[l.Name] {
			return nil, launcherr.Format(layout.LayersIndexPath, 0, "duplicate layer %q", l.Name)
		}
		seen[l.Name] = true
		for _, p := range l.Patterns {
			if err := checkPattern(p); err != nil {
				return nil, launcherr.Format(layout.LayersIndexPath, 0, "layer %q: %v", l.Name, err)
			}
		}
	}
	return &Index{layers: cloneLayers(layers)}, nil
}

// Default returns the index the packager writes when the descriptor does
// not declare layers.
func Default() *Index {
	return &Index{layers: []Layer{
		{Name: "dependencies", Patterns: []string{layout.LibArea}},
		{Name: "bootpack-loader", Patterns: []string{"org/bootpack/"}},
		{Name: "snapshot-dependencies", Patterns: []string{layout.LibArea + "*-SNAPSHOT.jar"}},
		{Name: DefaultLayer, Patterns: []string{
			layout.ClassesArea,
			layout.ClasspathIndexPath,
			layout.LayersIndexPath,
			layout.MetaArea,
		}},
	}}
}

// Parse decodes a layers.idx document: a YAML sequence of single-key maps
// from layer name to a (possibly empty) sequence of patterns.
func Parse(resource string, data []byte) (*Index, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &launcherr.FormatError{Resource: resource, Reason: "malformed layer index", Err: err}
	}
	if doc.Kind == 0 {
		return &Index{}, nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, launcherr.Format(resource, doc.Line, "expected a single document")
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return &Index{}, nil
	}
	if root.Kind != yaml.SequenceNode {
		return nil, launcherr.Format(resource, root.Line, "expected a sequence of layers")
	}

	var layers []Layer
	seen := make(map[string]int)
	for _, item := range root.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return nil, launcherr.Format(resource, item.Line, "each layer must be a single-key map")
		}
		key, value := item.Content[0], item.Content[1]
		if key.Kind != yaml.ScalarNode || key.Value == "" {
			return nil, launcherr.Format(resource, key.Line, "layer name must be a non-empty string")
		}
		if first, dup := seen[key.Value]; dup {
			return nil, launcherr.Format(resource, key.Line, "duplicate layer %q (first on line %d)", key.Value, first)
		}
		seen[key.Value] = key.Line

		l := Layer{Name: key.Value}
		switch {
		case value.Kind == yaml.ScalarNode && value.Tag == "!!null":
		case value.Kind == yaml.SequenceNode:
			for _, p := range value.Content {
				if p.Kind != yaml.ScalarNode {
					return nil, launcherr.Format(resource, p.Line, "pattern must be a string")
				}
				if err := checkPattern(p.Value); err != nil {
					return nil, launcherr.Format(resource, p.Line, "%v", err)
				}
				l.Patterns = append(l.Patterns, p.Value)
			}
		default:
			return nil, launcherr.Format(resource, value.Line, "layer %q must map to a sequence of patterns", key.Value)
		}
		layers = append(layers, l)
	}
	return &Index{layers: layers}, nil
}

func checkPattern(p string) error {
	if p == "" {
		return fmt.Errorf("empty pattern")
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, "..") {
		return fmt.Errorf("pattern %q must be a relative container path", p)
	}
	if _, err := path.Match(p, ""); err != nil {
		return fmt.Errorf("pattern %q: %w", p, err)
	}
	return nil
}

// Bytes writes the index in its canonical textual form.
func (ix *Index) Bytes() []byte {
	var b bytes.Buffer
	for _, l := range ix.layers {
		fmt.Fprintf(&b, "- %s:\n", strconv.Quote(l.Name))
		for _, p := range l.Patterns {
			fmt.Fprintf(&b, "  - %s\n", strconv.Quote(p))
		}
	}
	return b.Bytes()
}

// Layers returns the declared layers, plus the default layer when it is not
// declared.
func (ix *Index) Layers() []Layer {
	out := cloneLayers(ix.layers)
	if !ix.declares(DefaultLayer) {
		out = append(out, Layer{Name: DefaultLayer})
	}
	return out
}

// Names returns the layer names in order, default layer included.
func (ix *Index) Names() []string {
	ls := ix.Layers()
	names := make([]string, len(ls))
	for i, l := range ls {
		names[i] = l.Name
	}
	return names
}

// List returns the layer names of ix in order.
func List(ix *Index) []string { return ix.Names() }

// Has reports whether name is a layer of ix (the default layer always is).
func (ix *Index) Has(name string) bool {
	return name == DefaultLayer || ix.declares(name)
}

func (ix *Index) declares(name string) bool {
	for _, l := range ix.layers {
		if l.Name == name {
			return true
		}
	}
	return false
}

// Classify returns the layer of an entry path: the layer owning the most
// specific matching pattern, the earlier layer on a tie, the default layer
// when nothing matches.
func (ix *Index) Classify(entry string) string {
	best, bestScore := DefaultLayer, -1
	for _, l := range ix.layers {
		for _, p := range l.Patterns {
			if s := score(p, entry); s > bestScore {
				best, bestScore = l.Name, s
			}
		}
	}
	return best
}

// score ranks how specifically p matches entry; -1 means no match.
func score(p, entry string) int {
	switch {
	case strings.ContainsAny(p, "*?["):
		if ok, _ := path.Match(p, entry); ok {
			return len(p)
		}
		if ok, _ := path.Match(p, strings.TrimSuffix(entry, "/")); ok {
			return len(p)
		}
	case strings.HasSuffix(p, "/"):
		if strings.HasPrefix(entry, p) {
			return len(p)
		}
	case p == entry:
		return exactBonus + len(p)
	}
	return -1
}

func cloneLayers(in []Layer) []Layer {
	out := make([]Layer, len(in))
	for i, l := range in {
		out[i] = Layer{Name: l.Name, Patterns: append([]string(nil), l.Patterns...)}
	}
	return out
}
