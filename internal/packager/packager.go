// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"archive/zip"
	"bytes"
	"crypto/ed25519"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/bootpack/bootpack/pkg/classpath"
	"github.com/bootpack/bootpack/pkg/container"
	"github.com/bootpack/bootpack/pkg/integrity"
	"github.com/bootpack/bootpack/pkg/launcherr"
	"github.com/bootpack/bootpack/pkg/layout"
)

const (
	// DefaultVersion is written to Bootpack-Version and names the tool
	// library when the descriptor sets no version.
	DefaultVersion = "1.0.0"
	// CreatedBy is the Created-By manifest value.
	CreatedBy = "bootpack"
	// AttrTools lists the tools a tool library provides.
	AttrTools = "Bootpack-Tools"
)

type (
	// Options control how a container is written.
	Options struct {
		// Fs holds the descriptor inputs; nil means the OS filesystem.
		Fs afero.Fs
		// Modified stamps every entry; zero keeps the input modification
		// times and stamps generated entries with the current time.
		Modified time.Time
		// SigningKey, when set, makes Build sign the container.
		SigningKey ed25519.PrivateKey
		// Tools lists the tool names recorded in the tool library.
		Tools  []string
		Logger *slog.Logger
	}

	// Summary describes a written container.
	Summary struct {
		Path string
		// Classpath is the content of classpath.idx in order.
		Classpath []string
		Entries   int
		Layers    []string
		Stub      bool
		KeyID     string
	}

	writer struct {
		zw      *zip.Writer
		opts    Options
		method  uint16
		now     time.Time
		entries int
	}
)

// ToolLibraryName is the entry name of the tool library for version.
func ToolLibraryName(version string) string {
	return layout.ToolLibraryPrefix + "tools-" + version + ".jar"
}

// Build writes the container described by d to out, replacing it
// atomically, then signs it when a key is given.
func Build(d *Descriptor, out string, opts Options) (sum *Summary, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(out), ".bootpack-pack-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName) // best-effort cleanup on failure
		}
	}()

	sum, err = Write(tmp, d, opts)
	if err != nil {
		return nil, err
	}
	if err = tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close output file: %w", err)
	}
	if err = os.Rename(tmpName, out); err != nil {
		return nil, fmt.Errorf("failed to move output into place: %w", err)
	}
	sum.Path = out

	if opts.SigningKey != nil {
		if _, err := integrity.SignContainer(out, out, opts.SigningKey); err != nil {
			return nil, err
		}
		sum.KeyID = integrity.KeyID(opts.SigningKey.Public().(ed25519.PublicKey))
	}
	if sum.Stub {
		if err := os.Chmod(out, 0o755); err != nil {
			return nil, fmt.Errorf("failed to make %s executable: %w", out, err)
		}
	}
	return sum, nil
}

// Write streams the container described by d to w: the optional stub, then
// the manifest, the classes area, the libraries (stored, tool library
// last) and both indexes.
func Write(w io.Writer, d *Descriptor, opts Options) (*Summary, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if d.StartClass == "" {
		return nil, fmt.Errorf("descriptor declares no start_class")
	}
	version := d.Version
	if version == "" {
		version = DefaultVersion
	}
	ix, err := d.LayerIndex()
	if err != nil {
		return nil, err
	}

	sum := &Summary{Layers: ix.Names()}

	var offset int64
	if d.Stub != "" {
		stub, err := afero.ReadFile(opts.Fs, d.Stub)
		if err != nil {
			return nil, fmt.Errorf("failed to read stub: %w", err)
		}
		if _, err := w.Write(stub); err != nil {
			return nil, fmt.Errorf("failed to write stub: %w", err)
		}
		offset = int64(len(stub))
		sum.Stub = true
	}

	zw := zip.NewWriter(w)
	zw.SetOffset(offset)
	container.RegisterCompressors(zw)
	pw := &writer{zw: zw, opts: opts, method: zip.Deflate, now: opts.Modified}
	if pw.now.IsZero() {
		pw.now = time.Now()
	}
	if d.Compression == CompressionZstd {
		pw.method = container.MethodZstd
	}

	m := layout.NewManifest()
	m.Main.Set(layout.AttrCreatedBy, CreatedBy)
	m.Main.Set(layout.AttrMainClass, layout.LauncherJar)
	m.Main.Set(layout.AttrStartClass, d.StartClass)
	m.Main.Set(layout.AttrVersion, version)
	m.Main.Set(layout.AttrClasses, layout.ClassesArea)
	m.Main.Set(layout.AttrLib, layout.LibArea)
	m.Main.Set(layout.AttrClasspathIndex, layout.ClasspathIndexPath)
	m.Main.Set(layout.AttrLayersIndex, layout.LayersIndexPath)

	if err := pw.dir(layout.MetaArea); err != nil {
		return nil, err
	}
	if err := pw.file(layout.ManifestPath, pw.method, m.Bytes(), time.Time{}); err != nil {
		return nil, err
	}
	if err := pw.dir("BOOT-INF/"); err != nil {
		return nil, err
	}
	if err := pw.dir(layout.ClassesArea); err != nil {
		return nil, err
	}
	if d.Classes != "" {
		if err := pw.classes(d.Classes); err != nil {
			return nil, err
		}
	}

	if err := pw.dir(layout.LibArea); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var records []classpath.Record
	for _, lib := range d.Libraries {
		name := layout.LibArea + lib.EntryName()
		if !layout.IsNestedArchive(name) {
			return nil, launcherr.Format(lib.Path, 0, "library entry name %q needs a .jar or .zip suffix", lib.EntryName())
		}
		if seen[name] {
			return nil, fmt.Errorf("library %s listed twice", name)
		}
		seen[name] = true
		data, err := afero.ReadFile(opts.Fs, lib.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read library %s: %w", lib.Path, err)
		}
		if _, err := zip.NewReader(bytes.NewReader(data), int64(len(data))); err != nil {
			return nil, &launcherr.FormatError{Resource: lib.Path, Reason: "library is not a zip archive", Err: err}
		}
		info, err := opts.Fs.Stat(lib.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat library %s: %w", lib.Path, err)
		}
		if err := pw.file(name, zip.Store, data, info.ModTime()); err != nil {
			return nil, err
		}
		records = append(records, classpath.NewRecord(name))
	}
	if d.Tools {
		name := layout.LibArea + ToolLibraryName(version)
		if seen[name] {
			return nil, fmt.Errorf("library %s collides with the tool library", name)
		}
		data, err := toolLibrary(version, opts.Tools, pw.now)
		if err != nil {
			return nil, err
		}
		if err := pw.file(name, zip.Store, data, time.Time{}); err != nil {
			return nil, err
		}
		records = append(records, classpath.NewRecord(name))
	}

	if err := pw.file(layout.ClasspathIndexPath, pw.method, classpath.FormatIndex(records), time.Time{}); err != nil {
		return nil, err
	}
	if err := pw.file(layout.LayersIndexPath, pw.method, ix.Bytes(), time.Time{}); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}

	sum.Classpath = classpath.Paths(records)
	sum.Entries = pw.entries
	opts.Logger.Debug("container written", "entries", sum.Entries, "libraries", len(records), "stub", sum.Stub)
	return sum, nil
}

func (pw *writer) stamp(mod time.Time) time.Time {
	if !pw.opts.Modified.IsZero() || mod.IsZero() {
		return pw.now
	}
	return mod
}

func (pw *writer) dir(name string) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Store, Modified: pw.now}
	hdr.SetMode(os.ModeDir | 0o755)
	if _, err := pw.zw.CreateHeader(hdr); err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	pw.entries++
	return nil
}

func (pw *writer) file(name string, method uint16, data []byte, mod time.Time) error {
	hdr := &zip.FileHeader{Name: name, Method: method, Modified: pw.stamp(mod)}
	hdr.SetMode(0o644)
	fw, err := pw.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	pw.entries++
	return nil
}

// classes copies the directory tree at root into the classes area.
func (pw *writer) classes(root string) error {
	info, err := pw.opts.Fs.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to read classes directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("classes path %s is not a directory", root)
	}
	return afero.Walk(pw.opts.Fs, root, func(p string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}
		if rel == "." {
			return nil
		}
		name := layout.ClassesArea + filepath.ToSlash(rel)
		if err := layout.ValidateEntryPath(name); err != nil {
			return err
		}
		if fi.IsDir() {
			return pw.dir(name + "/")
		}
		if !fi.Mode().IsRegular() {
			pw.opts.Logger.Warn("skipping non-regular file", "path", p)
			return nil
		}
		data, err := afero.ReadFile(pw.opts.Fs, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		hdr := &zip.FileHeader{Name: name, Method: pw.method, Modified: pw.stamp(fi.ModTime())}
		hdr.SetMode(fi.Mode().Perm())
		fw, err := pw.zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		pw.entries++
		return nil
	})
}

// toolLibrary builds the nested archive that marks tool-mode support.
func toolLibrary(version string, tools []string, mod time.Time) ([]byte, error) {
	m := layout.NewManifest()
	m.Main.Set(layout.AttrCreatedBy, CreatedBy)
	m.Main.Set(layout.AttrVersion, version)
	if len(tools) > 0 {
		m.Main.Set(AttrTools, strings.Join(tools, ","))
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: path.Join("META-INF", "MANIFEST.MF"), Method: zip.Deflate, Modified: mod})
	if err != nil {
		return nil, fmt.Errorf("failed to build tool library: %w", err)
	}
	if _, err := fw.Write(m.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to build tool library: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build tool library: %w", err)
	}
	return buf.Bytes(), nil
}
