// SPDX-License-Identifier: MPL-2.0

package container

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/bootpack/bootpack/pkg/launcherr"
	"github.com/bootpack/bootpack/pkg/layout"
)

type testEntry struct {
	name   string
	data   []byte
	method uint16
}

func buildZip(t *testing.T, entries ...testEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: e.method})
		if err != nil {
			t.Fatalf("CreateHeader(%s): %v", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			t.Fatalf("Write(%s): %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func sampleContainer(t *testing.T, libMethod uint16) []byte {
	t.Helper()
	lib := buildZip(t,
		testEntry{name: "META-INF/MANIFEST.MF", data: []byte("Manifest-Version: 1.0\n\n"), method: zip.Deflate},
		testEntry{name: "org/lib/util.txt", data: []byte("from library"), method: zip.Deflate},
	)
	return buildZip(t,
		testEntry{name: layout.ManifestPath, data: []byte("Manifest-Version: 1.0\nStart-Class: com.example.App\n\n"), method: zip.Deflate},
		testEntry{name: "BOOT-INF/classes/", method: zip.Store},
		testEntry{name: "BOOT-INF/classes/app.txt", data: []byte("hello"), method: zip.Deflate},
		testEntry{name: "BOOT-INF/lib/util-1.0.jar", data: lib, method: libMethod},
	)
}

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.jar")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenArchive(t *testing.T) {
	t.Parallel()

	a, err := Open(writeFile(t, sampleContainer(t, zip.Store)))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer a.Close()

	if a.Form() != FormPackaged {
		t.Errorf("Form() = %v, want packaged", a.Form())
	}
	e, ok := a.Stat("BOOT-INF/lib/util-1.0.jar")
	if !ok || !e.Nested {
		t.Errorf("nested library entry = %+v, %v", e, ok)
	}
	if _, ok := a.Stat("BOOT-INF/"); !ok {
		t.Error("implicit directory BOOT-INF/ should be reported")
	}
	data, err := ReadFile(a, "BOOT-INF/classes/app.txt")
	if err != nil || string(data) != "hello" {
		t.Errorf("ReadFile() = %q, %v", data, err)
	}
	m, ok, err := ReadManifest(a)
	if err != nil || !ok || m.StartClass() != "com.example.App" {
		t.Errorf("ReadManifest() = %+v, %v, %v", m, ok, err)
	}
}

func TestOpenNested(t *testing.T) {
	t.Parallel()

	for _, method := range []uint16{zip.Store, zip.Deflate} {
		data := sampleContainer(t, method)
		a, err := NewArchive("app.jar", bytes.NewReader(data), int64(len(data)))
		if err != nil {
			t.Fatalf("NewArchive() error = %v", err)
		}
		nested, err := a.OpenNested("BOOT-INF/lib/util-1.0.jar")
		if err != nil {
			t.Fatalf("OpenNested(method %d) error = %v", method, err)
		}
		if got := nested.Location(); got != "app.jar!/BOOT-INF/lib/util-1.0.jar" {
			t.Errorf("nested Location() = %q", got)
		}
		data, err = ReadFile(nested, "org/lib/util.txt")
		if err != nil || string(data) != "from library" {
			t.Errorf("method %d: nested ReadFile() = %q, %v", method, data, err)
		}
	}
}

func TestOpenMissingEntryIsResolutionError(t *testing.T) {
	t.Parallel()

	data := sampleContainer(t, zip.Store)
	a, err := NewArchive("app.jar", bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Open("BOOT-INF/lib/absent.jar"); !errors.Is(err, launcherr.ErrResolution) {
		t.Errorf("Open(absent) error = %v, want ResolutionError", err)
	}
	if _, err := a.OpenNested("BOOT-INF/lib/absent.jar"); !errors.Is(err, launcherr.ErrResolution) {
		t.Errorf("OpenNested(absent) error = %v, want ResolutionError", err)
	}
}

func TestReadManifestValidatesAttributes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		manifest string
		wantErr  bool
	}{
		{"defaults", "Manifest-Version: 1.0\n\n", false},
		{"explicit areas", "Manifest-Version: 1.0\nBootpack-Classes: app/classes/\nBootpack-Lib: app/lib/\n\n", false},
		{"classes without trailing slash", "Manifest-Version: 1.0\nBootpack-Classes: BOOT-INF/classes\n\n", true},
		{"lib without trailing slash", "Manifest-Version: 1.0\nBootpack-Lib: BOOT-INF/lib\n\n", true},
		{"missing version", "Start-Class: com.example.App\n\n", true},
		{"index escapes the container", "Manifest-Version: 1.0\nBootpack-Classpath-Index: ../classpath.idx\n\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data := buildZip(t, testEntry{name: layout.ManifestPath, data: []byte(tt.manifest)})
			a, err := NewArchive("app.jar", bytes.NewReader(data), int64(len(data)))
			if err != nil {
				t.Fatal(err)
			}
			m, ok, err := ReadManifest(a)
			if !ok {
				t.Fatal("ReadManifest() ok = false, want true")
			}
			if !tt.wantErr {
				if err != nil || m == nil {
					t.Errorf("ReadManifest() = %v, %v", m, err)
				}
				return
			}
			if !errors.Is(err, launcherr.ErrFormat) {
				t.Fatalf("ReadManifest() error = %v, want FormatError", err)
			}
			var fe *launcherr.FormatError
			if errors.As(err, &fe) && fe.Resource != layout.NestedPath("app.jar", layout.ManifestPath) {
				t.Errorf("FormatError.Resource = %q", fe.Resource)
			}
			if err := CheckStrict(a); !errors.Is(err, launcherr.ErrFormat) {
				t.Errorf("CheckStrict() error = %v, want FormatError", err)
			}
		})
	}
}

func TestArchiveAppendedToExecutable(t *testing.T) {
	t.Parallel()

	stub := bytes.Repeat([]byte{0x7f, 'E', 'L', 'F'}, 512)
	image := append(append([]byte{}, stub...), sampleContainer(t, zip.Store)...)

	a, err := Open(writeFile(t, image))
	if err != nil {
		t.Fatalf("Open(stub+zip) error = %v", err)
	}
	defer a.Close()

	nested, err := a.OpenNested("BOOT-INF/lib/util-1.0.jar")
	if err != nil {
		t.Fatalf("OpenNested() error = %v", err)
	}
	if data, err := ReadFile(nested, "org/lib/util.txt"); err != nil || string(data) != "from library" {
		t.Errorf("nested read through stub offset = %q, %v", data, err)
	}
}

func TestNewArchiveRejectsNonZip(t *testing.T) {
	t.Parallel()

	data := []byte("#!/bin/sh\necho not a container\n")
	_, err := NewArchive("script.sh", bytes.NewReader(data), int64(len(data)))
	if !errors.Is(err, ErrNotContainer) {
		t.Errorf("NewArchive(non-zip) error = %v, want ErrNotContainer", err)
	}
}

func TestNewArchiveRejectsDuplicateEntries(t *testing.T) {
	t.Parallel()

	data := buildZip(t,
		testEntry{name: "BOOT-INF/classes/a.txt", data: []byte("1")},
		testEntry{name: "BOOT-INF/classes/a.txt", data: []byte("2")},
	)
	_, err := NewArchive("dup.jar", bytes.NewReader(data), int64(len(data)))
	if !errors.Is(err, launcherr.ErrFormat) {
		t.Errorf("NewArchive(duplicates) error = %v, want FormatError", err)
	}
}

func TestNewArchiveRejectsEscapingEntries(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"../evil.sh", "/etc/cron.d/evil", "BOOT-INF/lib/../../evil"} {
		data := buildZip(t,
			testEntry{name: layout.ManifestPath, data: []byte("Manifest-Version: 1.0\n\n")},
			testEntry{name: name, data: []byte("x")},
		)
		_, err := NewArchive("evil.jar", bytes.NewReader(data), int64(len(data)))
		if !errors.Is(err, launcherr.ErrFormat) && !errors.Is(err, ErrNotContainer) {
			t.Errorf("NewArchive(%q) error = %v, want it rejected", name, err)
		}
	}
}

func TestZstdEntriesAreReadable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(MethodZstd, zstdCompressor())
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "BOOT-INF/classes/big.txt", Method: MethodZstd})
	if err != nil {
		t.Fatal(err)
	}
	payload := bytes.Repeat([]byte("bootpack "), 1000)
	if _, err := w.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	a, err := NewArchive("z.jar", bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	rc, err := a.Open("BOOT-INF/classes/big.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil || !bytes.Equal(got, payload) {
		t.Errorf("zstd payload mismatch (len %d), err %v", len(got), err)
	}
}

func TestOpenDir(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	root := "/srv/app"
	files := map[string][]byte{
		"META-INF/MANIFEST.MF":                    []byte("Manifest-Version: 1.0\n\n"),
		"BOOT-INF/classes/app.txt":                []byte("hello"),
		"BOOT-INF/lib/util-1.0.jar":               sampleLib(t),
		"BOOT-INF/lib/bootpack-jarmode-tools.jar": sampleLib(t),
	}
	for name, data := range files {
		if err := afero.WriteFile(fsys, filepath.Join(root, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	d, err := OpenDir(fsys, root)
	if err != nil {
		t.Fatalf("OpenDir() error = %v", err)
	}
	defer d.Close()

	if d.Form() != FormExploded {
		t.Errorf("Form() = %v, want exploded", d.Form())
	}
	libs := d.List(layout.LibArea)
	want := []string{"BOOT-INF/lib/bootpack-jarmode-tools.jar", "BOOT-INF/lib/util-1.0.jar"}
	if len(libs) != len(want) || libs[0] != want[0] || libs[1] != want[1] {
		t.Errorf("List(lib) = %v, want %v", libs, want)
	}
	nested, err := d.OpenNested("BOOT-INF/lib/util-1.0.jar")
	if err != nil {
		t.Fatalf("OpenNested() error = %v", err)
	}
	if data, err := ReadFile(nested, "org/lib/util.txt"); err != nil || string(data) != "from library" {
		t.Errorf("exploded nested read = %q, %v", data, err)
	}
	if err := CheckStrict(d); err != nil {
		t.Errorf("CheckStrict(exploded) error = %v", err)
	}
}

func TestOpenSourceDetectsForm(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "BOOT-INF", "classes"), 0o755); err != nil {
		t.Fatal(err)
	}
	src, err := OpenSource(nil, dir)
	if err != nil {
		t.Fatalf("OpenSource(dir) error = %v", err)
	}
	if src.Form() != FormExploded {
		t.Errorf("directory detected as %v", src.Form())
	}

	file := writeFile(t, sampleContainer(t, zip.Store))
	src, err = OpenSource(nil, file)
	if err != nil {
		t.Fatalf("OpenSource(file) error = %v", err)
	}
	defer src.Close()
	if src.Form() != FormPackaged {
		t.Errorf("file detected as %v", src.Form())
	}
}

func sampleLib(t *testing.T) []byte {
	t.Helper()
	return buildZip(t, testEntry{name: "org/lib/util.txt", data: []byte("from library"), method: zip.Deflate})
}

func TestPrefix(t *testing.T) {
	t.Parallel()

	plain := sampleContainer(t, zip.Store)
	a, err := NewArchive("plain.jar", bytes.NewReader(plain), int64(len(plain)))
	if err != nil {
		t.Fatal(err)
	}
	if n, err := a.PrefixLen(); err != nil || n != 0 {
		t.Errorf("PrefixLen(plain) = %d, %v; want 0", n, err)
	}

	stub := []byte("#!/bin/sh\nexec bootlaunch \"$0\" \"$@\"\n")
	image := append(append([]byte{}, stub...), plain...)
	b, err := NewArchive("stub.jar", bytes.NewReader(image), int64(len(image)))
	if err != nil {
		t.Fatal(err)
	}
	got, err := b.Prefix()
	if err != nil {
		t.Fatalf("Prefix() error = %v", err)
	}
	if !bytes.Equal(got, stub) {
		t.Errorf("Prefix() = %q, want %q", got, stub)
	}
}
