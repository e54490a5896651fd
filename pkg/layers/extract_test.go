// SPDX-License-Identifier: MPL-2.0

package layers

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/bootpack/bootpack/pkg/container"
	"github.com/bootpack/bootpack/pkg/launcherr"
)

var stamp = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testContainer(t *testing.T, files map[string]string) *container.Archive {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: n, Method: zip.Deflate, Modified: stamp})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(files[n])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	a, err := container.NewArchive("app.jar", bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func standardFiles() map[string]string {
	return map[string]string{
		"META-INF/MANIFEST.MF":                "Manifest-Version: 1.0\n\n",
		"BOOT-INF/classes/com/example/App.sh": "echo hi\n",
		"BOOT-INF/classpath.idx":              "- \"BOOT-INF/lib/alpha-1.0.jar\"\n",
		"BOOT-INF/layers.idx":                 sampleIndex,
		"BOOT-INF/lib/alpha-1.0.jar":          "alpha",
		"BOOT-INF/lib/beta-2.0-SNAPSHOT.jar":  "beta",
		"org/bootpack/loader/launcher.txt":    "loader",
	}
}

func snapshot(t *testing.T, fsys afero.Fs, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := afero.Walk(fsys, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		data, err := afero.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(p)] = string(data) + "@" + info.ModTime().UTC().Format(time.RFC3339)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestExtractClassifiesEveryEntryOnce(t *testing.T) {
	t.Parallel()

	ix, err := Parse("idx", []byte(sampleIndex))
	if err != nil {
		t.Fatal(err)
	}
	fsys := afero.NewMemMapFs()
	results, err := Extract(context.Background(), testContainer(t, standardFiles()), ix, ExtractOptions{
		Fs:          fsys,
		Destination: "/out",
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("Extract() results = %+v, want 4 layers", results)
	}

	got := snapshot(t, fsys, "/out")
	wantLayer := map[string]string{
		"BOOT-INF/lib/alpha-1.0.jar":          "dependencies",
		"BOOT-INF/lib/beta-2.0-SNAPSHOT.jar":  "snapshot-dependencies",
		"BOOT-INF/classes/com/example/App.sh": "application",
		"META-INF/MANIFEST.MF":                "application",
		"org/bootpack/loader/launcher.txt":    "application",
	}
	for entry, layer := range wantLayer {
		p := "/out/" + layer + "/" + entry
		if _, ok := got[p]; !ok {
			t.Errorf("%s not extracted to %s", entry, p)
		}
	}
	total := 0
	for p := range got {
		if strings.Contains(p, ".bootpack-") {
			t.Errorf("temporary file left behind: %s", p)
		}
		total++
	}
	if total != len(standardFiles()) {
		t.Errorf("extracted %d files, want %d (each entry exactly once)", total, len(standardFiles()))
	}
	if v := got["/out/dependencies/BOOT-INF/lib/alpha-1.0.jar"]; !strings.HasPrefix(v, "alpha@2024-03-01T12:00:00Z") {
		t.Errorf("extracted content/mtime = %q", v)
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	t.Parallel()

	ix, err := Parse("idx", []byte(sampleIndex))
	if err != nil {
		t.Fatal(err)
	}
	fsys := afero.NewMemMapFs()
	src := testContainer(t, standardFiles())
	opts := ExtractOptions{Fs: fsys, Destination: "/out", Concurrency: 2}

	if _, err := Extract(context.Background(), src, ix, opts); err != nil {
		t.Fatal(err)
	}
	first := snapshot(t, fsys, "/out")
	if _, err := Extract(context.Background(), src, ix, opts); err != nil {
		t.Fatal(err)
	}
	second := snapshot(t, fsys, "/out")

	if len(first) != len(second) {
		t.Fatalf("re-extraction changed file count: %d -> %d", len(first), len(second))
	}
	for p, v := range first {
		if second[p] != v {
			t.Errorf("%s changed on re-extraction: %q -> %q", p, v, second[p])
		}
	}
}

func TestExtractSelectedLayerWithTarget(t *testing.T) {
	t.Parallel()

	ix, err := Parse("idx", []byte(sampleIndex))
	if err != nil {
		t.Fatal(err)
	}
	fsys := afero.NewMemMapFs()
	results, err := Extract(context.Background(), testContainer(t, standardFiles()), ix, ExtractOptions{
		Fs:          fsys,
		Destination: "/out",
		Layers:      []string{"dependencies"},
		Targets:     map[string]string{"dependencies": "/cache/deps"},
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(results) != 1 || results[0].Root != "/cache/deps" || results[0].Files != 1 {
		t.Errorf("results = %+v", results)
	}
	if ok, _ := afero.Exists(fsys, "/cache/deps/BOOT-INF/lib/alpha-1.0.jar"); !ok {
		t.Error("dependency not extracted to target root")
	}
	if ok, _ := afero.DirExists(fsys, "/out/application"); ok {
		t.Error("unselected layer was extracted")
	}
}

func TestExtractRejectsBadOptions(t *testing.T) {
	t.Parallel()

	ix, err := Parse("idx", []byte(sampleIndex))
	if err != nil {
		t.Fatal(err)
	}
	src := testContainer(t, standardFiles())
	tests := []struct {
		name string
		opts ExtractOptions
	}{
		{"unknown layer", ExtractOptions{Layers: []string{"nope"}}},
		{"unknown target", ExtractOptions{Targets: map[string]string{"nope": "/x"}}},
		{"overlapping roots", ExtractOptions{Destination: "/out", Targets: map[string]string{"dependencies": "/out/application/deps"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.opts.Fs = afero.NewMemMapFs()
			if _, err := Extract(context.Background(), src, ix, tt.opts); err == nil {
				t.Error("Extract() error = nil, want error")
			}
		})
	}
}

func TestExtractRequiresStrictLayout(t *testing.T) {
	t.Parallel()

	src := testContainer(t, map[string]string{"BOOT-INF/lib/alpha-1.0.jar": "alpha"})
	_, err := Extract(context.Background(), src, Default(), ExtractOptions{Fs: afero.NewMemMapFs(), Destination: "/out"})
	if !errors.Is(err, launcherr.ErrFormat) {
		t.Errorf("Extract() error = %v, want FormatError", err)
	}
}

func TestReadIndex(t *testing.T) {
	t.Parallel()

	src := testContainer(t, standardFiles())
	ix, ok, err := ReadIndex(src, "BOOT-INF/layers.idx")
	if err != nil || !ok {
		t.Fatalf("ReadIndex() = %v, %v", ok, err)
	}
	if got := strings.Join(ix.Names(), ","); !strings.Contains(got, "dependencies") {
		t.Errorf("Names() = %s", got)
	}

	if _, ok, err := ReadIndex(src, "BOOT-INF/absent.idx"); ok || err != nil {
		t.Errorf("ReadIndex(absent) = %v, %v; want false, nil", ok, err)
	}

	files := standardFiles()
	files["BOOT-INF/layers.idx"] = "- \"dependencies\": 3\n"
	_, ok, err = ReadIndex(testContainer(t, files), "BOOT-INF/layers.idx")
	var fe *launcherr.FormatError
	if !ok || !errors.As(err, &fe) {
		t.Errorf("ReadIndex(corrupt) error = %v, want FormatError", err)
	}
}
