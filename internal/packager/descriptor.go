// SPDX-License-Identifier: MPL-2.0

package packager

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bootpack/bootpack/pkg/cueutil"
	"github.com/bootpack/bootpack/pkg/layers"
)

// Compression values accepted by the descriptor.
const (
	CompressionDeflate = "deflate"
	CompressionZstd    = "zstd"
)

//go:embed descriptor_schema.cue
var descriptorSchema []byte

type (
	// Descriptor describes the container to build.
	Descriptor struct {
		StartClass  string    `json:"start_class"`
		Classes     string    `json:"classes,omitempty"`
		Libraries   []Library `json:"libraries,omitempty"`
		Layers      []Layer   `json:"layers,omitempty"`
		Compression string    `json:"compression"`
		Tools       bool      `json:"tools"`
		Stub        string    `json:"stub,omitempty"`
		Version     string    `json:"version,omitempty"`
	}

	// Library is one already-resolved dependency.
	Library struct {
		Path string `json:"path"`
		Name string `json:"name,omitempty"`
	}

	// Layer is a layer definition.
	Layer struct {
		Name     string   `json:"name"`
		Patterns []string `json:"patterns"`
	}
)

// ParseDescriptor validates data against #Descriptor. Relative paths are
// resolved against baseDir.
func ParseDescriptor(data []byte, filename, baseDir string) (*Descriptor, error) {
	res, err := cueutil.ParseAndDecode[Descriptor](descriptorSchema, data, "#Descriptor", cueutil.WithFilename(filename))
	if err != nil {
		return nil, err
	}
	d := res.Value
	d.Classes = resolve(baseDir, d.Classes)
	d.Stub = resolve(baseDir, d.Stub)
	for i := range d.Libraries {
		d.Libraries[i].Path = resolve(baseDir, d.Libraries[i].Path)
	}
	return d, nil
}

// LoadDescriptor reads and parses the descriptor file at path.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}
	return ParseDescriptor(data, path, filepath.Dir(path))
}

// LayerIndex returns the layer index the descriptor asks for.
func (d *Descriptor) LayerIndex() (*layers.Index, error) {
	if len(d.Layers) == 0 {
		return layers.Default(), nil
	}
	defs := make([]layers.Layer, len(d.Layers))
	for i, l := range d.Layers {
		defs[i] = layers.Layer{Name: l.Name, Patterns: l.Patterns}
	}
	return layers.New(defs...)
}

// EntryName returns the library's entry name under the lib area. Write
// rejects names without a .jar or .zip suffix.
func (l Library) EntryName() string {
	if l.Name != "" {
		return l.Name
	}
	return filepath.Base(l.Path)
}

func resolve(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}
