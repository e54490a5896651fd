// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"path"
	"strings"

	"github.com/bootpack/bootpack/pkg/launcherr"
)

const (
	// ClassesArea holds application classes and resources.
	ClassesArea = "BOOT-INF/classes/"
	// LibArea holds dependency libraries as nested archives.
	LibArea = "BOOT-INF/lib/"
	// MetaArea holds the manifest and the integrity record.
	MetaArea = "META-INF/"

	// ManifestPath is the location of the container manifest.
	ManifestPath = MetaArea + "MANIFEST.MF"
	// ClasspathIndexPath is the default location of the classpath index.
	ClasspathIndexPath = "BOOT-INF/classpath.idx"
	// LayersIndexPath is the default location of the layer index.
	LayersIndexPath = "BOOT-INF/layers.idx"
	// SignatureFilePath holds the per-entry digests.
	SignatureFilePath = MetaArea + "BOOT.SF"
	// SignatureBlockPath holds the detached signature over SignatureFilePath.
	SignatureBlockPath = MetaArea + "BOOT.SIG"

	// NestedSeparator separates a container path from an entry inside it.
	NestedSeparator = "!/"

	// ToolLibraryPrefix starts the base name of tool-mode libraries.
	ToolLibraryPrefix = "bootpack-jarmode-"

	// bootInf is the namespace every index record must live in.
	bootInf = "BOOT-INF/"
)

// Area identifies one of the disjoint top-level regions of a container.
type Area int

const (
	// AreaOther is anything outside the named areas (launcher stub files, indexes).
	AreaOther Area = iota
	// AreaClasses is the application-classes area.
	AreaClasses
	// AreaLib is the dependency-library area.
	AreaLib
	// AreaMeta is the metadata area.
	AreaMeta
)

// String returns the area name used in diagnostics.
func (a Area) String() string {
	switch a {
	case AreaClasses:
		return "classes"
	case AreaLib:
		return "lib"
	case AreaMeta:
		return "meta"
	default:
		return "other"
	}
}

// AreaOf returns the area an entry path belongs to.
func AreaOf(p string) Area {
	switch {
	case strings.HasPrefix(p, ClassesArea):
		return AreaClasses
	case strings.HasPrefix(p, LibArea):
		return AreaLib
	case strings.HasPrefix(p, MetaArea):
		return AreaMeta
	default:
		return AreaOther
	}
}

// IsNestedArchive reports whether p denotes a nested sub-archive: a file
// directly inside the lib area with a .jar or .zip suffix.
func IsNestedArchive(p string) bool {
	if !strings.HasPrefix(p, LibArea) || strings.HasSuffix(p, "/") {
		return false
	}
	rest := strings.TrimPrefix(p, LibArea)
	if rest == "" || strings.Contains(rest, "/") {
		return false
	}
	ext := strings.ToLower(path.Ext(rest))
	return ext == ".jar" || ext == ".zip"
}

// IsToolLibrary reports whether p is a nested archive carrying tool-mode
// support (e.g. "BOOT-INF/lib/bootpack-jarmode-tools-1.0.0.jar"). The
// directory part is ignored so that exploded paths qualify too.
func IsToolLibrary(p string) bool {
	base := path.Base(strings.TrimSuffix(p, "/"))
	ext := strings.ToLower(path.Ext(base))
	return strings.HasPrefix(base, ToolLibraryPrefix) && (ext == ".jar" || ext == ".zip")
}

// IsSignatureFile reports whether p is part of the integrity record.
func IsSignatureFile(p string) bool {
	return p == SignatureFilePath || p == SignatureBlockPath
}

// NestedPath joins a container location and an entry path.
func NestedPath(container, entry string) string {
	return container + NestedSeparator + entry
}

// SplitNestedPath splits "outer!/inner" into its parts. ok is false when s
// carries no separator.
func SplitNestedPath(s string) (outer, inner string, ok bool) {
	i := strings.Index(s, NestedSeparator)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(NestedSeparator):], true
}

// ValidateEntryPath checks that p is a clean, relative, slash-separated entry
// path that cannot escape the container root.
func ValidateEntryPath(p string) error {
	switch {
	case p == "":
		return launcherr.Format(p, 0, "empty entry path")
	case strings.ContainsRune(p, 0):
		return launcherr.Format(p, 0, "entry path contains NUL")
	case strings.Contains(p, `\`):
		return launcherr.Format(p, 0, "entry path must use forward slashes")
	case strings.HasPrefix(p, "/"):
		return launcherr.Format(p, 0, "entry path must be relative")
	}
	for _, seg := range strings.Split(strings.TrimSuffix(p, "/"), "/") {
		if seg == ".." || seg == "." || seg == "" {
			return launcherr.Format(p, 0, "entry path must not contain empty, '.' or '..' segments")
		}
	}
	return nil
}

// InNamespace reports whether an index record path lives inside the
// container's BOOT-INF namespace.
func InNamespace(p string) bool {
	return strings.HasPrefix(p, bootInf) && len(p) > len(bootInf)
}

// CheckStrict verifies that the required areas exist. Verification and layer
// extraction open containers strictly; ordinary launch does not.
func CheckStrict(container string, names []string, m *Manifest) error {
	classes := ClassesArea
	if m != nil {
		classes = m.ClassesArea()
	}
	var hasManifest, hasClasses bool
	for _, n := range names {
		if n == ManifestPath {
			hasManifest = true
		}
		if strings.HasPrefix(n, classes) {
			hasClasses = true
		}
	}
	if !hasManifest {
		return &launcherr.FormatError{Resource: container, Reason: "missing required entry " + ManifestPath}
	}
	if !hasClasses {
		return &launcherr.FormatError{Resource: container, Reason: "missing required area " + classes}
	}
	return nil
}
