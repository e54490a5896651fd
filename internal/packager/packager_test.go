// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/bootpack/bootpack/pkg/classpath"
	"github.com/bootpack/bootpack/pkg/container"
	"github.com/bootpack/bootpack/pkg/integrity"
	"github.com/bootpack/bootpack/pkg/launcherr"
	"github.com/bootpack/bootpack/pkg/layers"
	"github.com/bootpack/bootpack/pkg/layout"
)

var stamp = time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

func libraryZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// inputs lays out a project with classes and two libraries on fsys.
func inputs(t *testing.T, fsys afero.Fs) *Descriptor {
	t.Helper()
	write := func(p string, data []byte) {
		p = filepath.FromSlash(p)
		if err := fsys.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := afero.WriteFile(fsys, p, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("/src/classes/demo/Main.sh", []byte("echo main\n"))
	write("/src/classes/application.properties", []byte("name=demo\n"))
	write("/src/libs/library-1.0-SNAPSHOT.jar", libraryZip(t, map[string]string{"lib.txt": "library"}))
	write("/src/libs/commons-3.14.0.jar", libraryZip(t, map[string]string{"commons.txt": "commons"}))
	return &Descriptor{
		StartClass: "demo.Main",
		Classes:    filepath.FromSlash("/src/classes"),
		Libraries: []Library{
			{Path: filepath.FromSlash("/src/libs/library-1.0-SNAPSHOT.jar")},
			{Path: filepath.FromSlash("/src/libs/commons-3.14.0.jar")},
		},
		Compression: CompressionDeflate,
		Tools:       true,
	}
}

func written(t *testing.T, data []byte) *container.Archive {
	t.Helper()
	a, err := container.NewArchive("app.jar", bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("NewArchive() error = %v", err)
	}
	return a
}

func TestWriteLayout(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	d := inputs(t, fsys)
	var buf bytes.Buffer
	sum, err := Write(&buf, d, Options{Fs: fsys, Modified: stamp})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	a := written(t, buf.Bytes())

	m, ok, err := container.ReadManifest(a)
	if err != nil || !ok {
		t.Fatalf("ReadManifest() = %v, %v", ok, err)
	}
	if m.StartClass() != "demo.Main" {
		t.Errorf("Start-Class = %q", m.StartClass())
	}
	if err := m.Validate(); err != nil {
		t.Errorf("manifest Validate() error = %v", err)
	}
	if err := container.CheckStrict(a); err != nil {
		t.Errorf("CheckStrict() error = %v", err)
	}

	idx, err := container.ReadFile(a, layout.ClasspathIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	records, err := classpath.ParseIndex(layout.ClasspathIndexPath, idx)
	if err != nil {
		t.Fatalf("ParseIndex() error = %v", err)
	}
	want := []string{
		"BOOT-INF/lib/library-1.0-SNAPSHOT.jar",
		"BOOT-INF/lib/commons-3.14.0.jar",
		"BOOT-INF/lib/" + ToolLibraryName(DefaultVersion),
	}
	got := classpath.Paths(records)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("classpath.idx = %v, want %v (tool library last)", got, want)
	}
	if strings.Join(sum.Classpath, ",") != strings.Join(want, ",") {
		t.Errorf("Summary.Classpath = %v", sum.Classpath)
	}

	for _, p := range want {
		e, ok := a.Stat(p)
		if !ok {
			t.Fatalf("missing %s", p)
		}
		if e.Method != zip.Store {
			t.Errorf("%s method = %d, libraries must be stored", p, e.Method)
		}
		if !e.Modified.Equal(stamp) {
			t.Errorf("%s modified = %v, want %v", p, e.Modified, stamp)
		}
		nested, err := a.OpenNested(p)
		if err != nil {
			t.Errorf("OpenNested(%s) error = %v", p, err)
			continue
		}
		_ = nested.Close()
	}

	data, err := container.ReadFile(a, "BOOT-INF/classes/demo/Main.sh")
	if err != nil || string(data) != "echo main\n" {
		t.Errorf("classes content = %q, %v", data, err)
	}

	lx, err := container.ReadFile(a, layout.LayersIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	ix, err := layers.Parse(layout.LayersIndexPath, lx)
	if err != nil {
		t.Fatalf("layers.Parse() error = %v", err)
	}
	if ix.Classify("BOOT-INF/lib/library-1.0-SNAPSHOT.jar") != "snapshot-dependencies" {
		t.Errorf("snapshot library classified into %q", ix.Classify("BOOT-INF/lib/library-1.0-SNAPSHOT.jar"))
	}
}

func TestWriteWithoutTools(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	d := inputs(t, fsys)
	d.Tools = false
	var buf bytes.Buffer
	sum, err := Write(&buf, d, Options{Fs: fsys})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	for _, p := range sum.Classpath {
		if layout.IsToolLibrary(p) {
			t.Errorf("tool library %s written with tools disabled", p)
		}
	}
}

func TestWriteZstd(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	d := inputs(t, fsys)
	d.Compression = CompressionZstd
	var buf bytes.Buffer
	if _, err := Write(&buf, d, Options{Fs: fsys}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	a := written(t, buf.Bytes())
	e, _ := a.Stat("BOOT-INF/classes/application.properties")
	if e.Method != container.MethodZstd {
		t.Errorf("method = %d, want zstd", e.Method)
	}
	data, err := container.ReadFile(a, "BOOT-INF/classes/application.properties")
	if err != nil || string(data) != "name=demo\n" {
		t.Errorf("zstd entry = %q, %v", data, err)
	}
}

func TestWriteWithStub(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	d := inputs(t, fsys)
	stub := []byte("#!/bin/sh\nexec bootlaunch \"$0\" \"$@\"\n")
	if err := afero.WriteFile(fsys, "/stub", stub, 0o755); err != nil {
		t.Fatal(err)
	}
	d.Stub = "/stub"

	var buf bytes.Buffer
	sum, err := Write(&buf, d, Options{Fs: fsys})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !sum.Stub {
		t.Error("Summary.Stub = false")
	}
	if !bytes.HasPrefix(buf.Bytes(), stub) {
		t.Fatal("output does not start with the stub")
	}
	a := written(t, buf.Bytes())
	n, err := a.PrefixLen()
	if err != nil {
		t.Fatalf("PrefixLen() error = %v", err)
	}
	if n != int64(len(stub)) {
		t.Errorf("PrefixLen() = %d, want %d", n, len(stub))
	}
}

func TestWriteErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(t *testing.T, fsys afero.Fs, d *Descriptor)
		check  func(err error) bool
	}{
		{
			name:   "no start class",
			mutate: func(_ *testing.T, _ afero.Fs, d *Descriptor) { d.StartClass = "" },
			check:  func(err error) bool { return err != nil },
		},
		{
			name: "duplicate library",
			mutate: func(_ *testing.T, _ afero.Fs, d *Descriptor) {
				d.Libraries = append(d.Libraries, d.Libraries[0])
			},
			check: func(err error) bool { return err != nil && strings.Contains(err.Error(), "listed twice") },
		},
		{
			name: "library is not an archive",
			mutate: func(t *testing.T, fsys afero.Fs, d *Descriptor) {
				if err := afero.WriteFile(fsys, "/src/libs/broken.jar", []byte("nope"), 0o644); err != nil {
					t.Fatal(err)
				}
				d.Libraries = append(d.Libraries, Library{Path: "/src/libs/broken.jar"})
			},
			check: func(err error) bool { return errors.Is(err, launcherr.ErrFormat) },
		},
		{
			name: "library without archive suffix",
			mutate: func(t *testing.T, fsys afero.Fs, d *Descriptor) {
				data, err := afero.ReadFile(fsys, d.Libraries[0].Path)
				if err != nil {
					t.Fatal(err)
				}
				if err := afero.WriteFile(fsys, filepath.FromSlash("/src/libs/util"), data, 0o644); err != nil {
					t.Fatal(err)
				}
				d.Libraries = append(d.Libraries, Library{Path: filepath.FromSlash("/src/libs/util")})
			},
			check: func(err error) bool { return errors.Is(err, launcherr.ErrFormat) },
		},
		{
			name: "library renamed without archive suffix",
			mutate: func(_ *testing.T, _ afero.Fs, d *Descriptor) {
				d.Libraries[0].Name = "util-1.0"
			},
			check: func(err error) bool { return errors.Is(err, launcherr.ErrFormat) },
		},
		{
			name: "missing library",
			mutate: func(_ *testing.T, _ afero.Fs, d *Descriptor) {
				d.Libraries = append(d.Libraries, Library{Path: "/src/libs/absent.jar"})
			},
			check: func(err error) bool { return err != nil },
		},
		{
			name: "duplicate layer",
			mutate: func(_ *testing.T, _ afero.Fs, d *Descriptor) {
				d.Layers = []Layer{{Name: "a"}, {Name: "a"}}
			},
			check: func(err error) bool { return errors.Is(err, launcherr.ErrFormat) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fsys := afero.NewMemMapFs()
			d := inputs(t, fsys)
			tt.mutate(t, fsys, d)
			_, err := Write(&bytes.Buffer{}, d, Options{Fs: fsys})
			if !tt.check(err) {
				t.Errorf("Write() error = %v", err)
			}
		})
	}
}

func TestBuildSigned(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := afero.NewOsFs()
	d := inputs(t, afero.NewBasePathFs(fsys, dir))
	d.Classes = filepath.Join(dir, "src", "classes")
	for i := range d.Libraries {
		d.Libraries[i].Path = filepath.Join(dir, "src", "libs", filepath.Base(d.Libraries[i].Path))
	}

	key, err := integrity.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "app.jar")
	sum, err := Build(d, out, Options{SigningKey: key})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if sum.Path != out || sum.KeyID == "" {
		t.Errorf("Summary = %+v", sum)
	}

	a, err := container.Open(out)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer a.Close()
	res, err := integrity.Verify(a, integrity.VerifyOptions{})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if res.Status != integrity.Valid {
		t.Errorf("Verify() status = %s, findings %+v", res.Status, res.Findings)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".bootpack-*"))
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output missing: %v", err)
	}
}

func TestParseDescriptor(t *testing.T) {
	t.Parallel()

	d, err := ParseDescriptor([]byte(`
start_class: "demo.Main"
classes:     "build/classes"
libraries: [
	{path: "libs/alpha-1.0.jar"},
	{path: "/abs/beta.jar", name: "beta-2.0.jar"},
]
`), "bootpack.cue", filepath.FromSlash("/project"))
	if err != nil {
		t.Fatalf("ParseDescriptor() error = %v", err)
	}
	if d.Compression != CompressionDeflate || !d.Tools {
		t.Errorf("defaults not applied: compression %q, tools %v", d.Compression, d.Tools)
	}
	if d.Classes != filepath.Join(filepath.FromSlash("/project"), "build", "classes") {
		t.Errorf("Classes = %q", d.Classes)
	}
	if d.Libraries[0].EntryName() != "alpha-1.0.jar" || d.Libraries[1].EntryName() != "beta-2.0.jar" {
		t.Errorf("entry names = %q, %q", d.Libraries[0].EntryName(), d.Libraries[1].EntryName())
	}

	bad := []string{
		`classes: "x"`,
		`start_class: "demo.Main", compression: "lz4"`,
		`start_class: "demo.Main", libraries: [{path: "a.jar", name: "dir/a.jar"}]`,
		`start_class: "demo.Main", unknown: 1`,
	}
	for _, src := range bad {
		if _, err := ParseDescriptor([]byte(src), "bad.cue", ""); err == nil {
			t.Errorf("ParseDescriptor(%s) expected error", src)
		}
	}
}
