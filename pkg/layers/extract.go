// SPDX-License-Identifier: MPL-2.0

package layers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/bootpack/bootpack/pkg/container"
	"github.com/bootpack/bootpack/pkg/layout"
)

// DefaultConcurrency is the number of layers extracted at once when the
// options leave it unset.
const DefaultConcurrency = 4

type (
	// ExtractOptions controls where and how layers are written.
	ExtractOptions struct {
		// Fs is the target filesystem; nil means the OS filesystem.
		Fs afero.Fs
		// Destination is the parent of the default per-layer roots
		// (<Destination>/<layer>). Empty means the working directory.
		Destination string
		// Targets overrides the root directory of individual layers.
		Targets map[string]string
		// Layers restricts extraction to the named layers; empty means all.
		Layers []string
		// Concurrency bounds the number of layers written at once.
		Concurrency int
		Logger      *slog.Logger
	}

	// LayerResult summarizes one extracted layer.
	LayerResult struct {
		Layer string
		Root  string
		Files int
		Dirs  int
	}
)

// Extract writes every entry of src under the root of the layer it is
// classified into. The container is opened strictly. Layers are written
// concurrently, entries within a layer sequentially; each file goes to a
// temporary name first and is renamed into place with its modification
// time, so re-running over the same destination yields identical trees.
func Extract(ctx context.Context, src container.Source, ix *Index, opts ExtractOptions) ([]LayerResult, error) {
	if err := container.CheckStrict(src); err != nil {
		return nil, err
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}

	selected, err := selectLayers(ix, opts.Layers)
	if err != nil {
		return nil, err
	}
	roots, err := layerRoots(ix, opts)
	if err != nil {
		return nil, err
	}

	plan := make(map[string][]container.Entry, len(selected))
	for _, e := range src.Entries() {
		name := ix.Classify(e.Path)
		plan[name] = append(plan[name], e)
	}

	results := make([]LayerResult, len(selected))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, name := range selected {
		results[i] = LayerResult{Layer: name, Root: roots[name]}
		entries := plan[name]
		res := &results[i]
		g.Go(func() error {
			return extractLayer(ctx, src, opts, res, entries)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func selectLayers(ix *Index, only []string) ([]string, error) {
	if len(only) == 0 {
		return ix.Names(), nil
	}
	want := make(map[string]bool, len(only))
	for _, n := range only {
		if !ix.Has(n) {
			return nil, fmt.Errorf("unknown layer %q (known: %s)", n, strings.Join(ix.Names(), ", "))
		}
		want[n] = true
	}
	var out []string
	for _, n := range ix.Names() {
		if want[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

// layerRoots computes the root of every layer and rejects overlapping roots,
// which would let one layer write below another.
func layerRoots(ix *Index, opts ExtractOptions) (map[string]string, error) {
	roots := make(map[string]string)
	for name, dir := range opts.Targets {
		if !ix.Has(name) {
			return nil, fmt.Errorf("unknown layer %q in targets", name)
		}
		if dir == "" {
			return nil, fmt.Errorf("empty target directory for layer %q", name)
		}
		roots[name] = filepath.Clean(dir)
	}
	for _, name := range ix.Names() {
		if _, ok := roots[name]; !ok {
			roots[name] = filepath.Join(opts.Destination, name)
		}
	}
	names := ix.Names()
	for i, a := range names {
		for _, b := range names[i+1:] {
			if within(roots[a], roots[b]) || within(roots[b], roots[a]) {
				return nil, fmt.Errorf("layer roots overlap: %s (%s) and %s (%s)", a, roots[a], b, roots[b])
			}
		}
	}
	return roots, nil
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func extractLayer(ctx context.Context, src container.Source, opts ExtractOptions, res *LayerResult, entries []container.Entry) error {
	if err := opts.Fs.MkdirAll(res.Root, 0o755); err != nil {
		return fmt.Errorf("failed to create layer root %s: %w", res.Root, err)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := layout.ValidateEntryPath(e.Path); err != nil {
			return err
		}
		dest := filepath.Join(res.Root, filepath.FromSlash(strings.TrimSuffix(e.Path, "/")))
		if !within(res.Root, dest) {
			return fmt.Errorf("invalid path in container: %s", e.Path)
		}
		if e.Dir {
			if err := opts.Fs.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			res.Dirs++
			continue
		}
		if err := extractEntry(src, opts.Fs, e, dest); err != nil {
			return fmt.Errorf("failed to extract %s: %w", e.Path, err)
		}
		res.Files++
	}
	opts.Logger.Debug("layer extracted", "layer", res.Layer, "root", res.Root, "files", res.Files)
	return nil
}

func extractEntry(src container.Source, fsys afero.Fs, e container.Entry, dest string) (err error) {
	dir := filepath.Dir(dest)
	if err = fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	rc, err := src.Open(e.Path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	tmp, err := afero.TempFile(fsys, dir, ".bootpack-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = fsys.Remove(tmpName) // best-effort cleanup of the partial file
		}
	}()

	//nolint:gosec // G110: layer contents come from the container being extracted
	if _, err = io.Copy(tmp, rc); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}

	perm := e.Mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	if err = fsys.Chmod(tmpName, perm); err != nil {
		return err
	}
	if !e.Modified.IsZero() {
		if err = fsys.Chtimes(tmpName, e.Modified, e.Modified); err != nil {
			return err
		}
	}
	return fsys.Rename(tmpName, dest)
}

// ReadIndex reads and parses the layer index entry name from src. A missing
// index is reported with ok=false and no error.
func ReadIndex(src container.Source, name string) (ix *Index, ok bool, err error) {
	if _, found := src.Stat(name); !found {
		return nil, false, nil
	}
	data, err := container.ReadFile(src, name)
	if err != nil {
		return nil, true, err
	}
	ix, err = Parse(layout.NestedPath(src.Location(), name), data)
	if err != nil {
		return nil, true, err
	}
	return ix, true, nil
}
