// SPDX-License-Identifier: MPL-2.0

// Package classpath reads the classpath index of a container, turns its
// records into resolvable units and looks resources up across them in index
// order.
package classpath

import (
	"bufio"
	"bytes"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/bootpack/bootpack/pkg/launcherr"
	"github.com/bootpack/bootpack/pkg/layout"
)

// Kind tells whether a record names a directory or a nested archive.
type Kind int

const (
	// KindDirectory is a directory of resources (path ends with "/").
	KindDirectory Kind = iota + 1
	// KindArchive is a nested library archive.
	KindArchive
)

// String returns "directory" or "archive".
func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindArchive:
		return "archive"
	default:
		return "unknown"
	}
}

// Record is one line of the classpath index.
type Record struct {
	Path string
	Kind Kind
}

// NewRecord derives the record kind from the path shape.
func NewRecord(p string) Record {
	if strings.HasSuffix(p, "/") {
		return Record{Path: p, Kind: KindDirectory}
	}
	return Record{Path: p, Kind: KindArchive}
}

// Paths returns the record paths in order.
func Paths(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Path
	}
	return out
}

// ParseIndex parses a classpath index. Each non-blank line is either the
// written form `- "BOOT-INF/lib/x.jar"` or a bare path. Records outside the
// BOOT-INF namespace, unsafe paths, duplicates and broken quoting are
// reported as a FormatError naming resource and line.
func ParseIndex(resource string, data []byte) ([]Record, error) {
	var (
		records []Record
		seen    = make(map[string]int)
		lineNo  int
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		p, err := parseIndexLine(line)
		if err != nil {
			return nil, launcherr.Format(resource, lineNo, "%v", err)
		}
		if err := layout.ValidateEntryPath(p); err != nil {
			return nil, launcherr.Format(resource, lineNo, "invalid path %q", p)
		}
		if !layout.InNamespace(p) {
			return nil, launcherr.Format(resource, lineNo, "path %q is outside %s", p, "BOOT-INF/")
		}
		rec := NewRecord(p)
		if rec.Kind == KindArchive {
			if ext := strings.ToLower(path.Ext(p)); ext != ".jar" && ext != ".zip" {
				return nil, launcherr.Format(resource, lineNo, "path %q is neither a directory nor an archive", p)
			}
		}
		if first, dup := seen[p]; dup {
			return nil, launcherr.Format(resource, lineNo, "duplicate record %q (first on line %d)", p, first)
		}
		seen[p] = lineNo
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, &launcherr.FormatError{Resource: resource, Err: err}
	}
	return records, nil
}

func parseIndexLine(line string) (string, error) {
	if rest, ok := strings.CutPrefix(line, "-"); ok {
		line = strings.TrimSpace(rest)
		if line == "" {
			return "", fmt.Errorf("empty record")
		}
	}
	if !strings.HasPrefix(line, `"`) {
		if strings.ContainsAny(line, `"`) {
			return "", fmt.Errorf("unbalanced quote in %q", line)
		}
		return line, nil
	}
	p, err := strconv.Unquote(line)
	if err != nil {
		return "", fmt.Errorf("malformed quoted path %s", line)
	}
	return p, nil
}

// FormatIndex writes records in the canonical `- "path"` form.
func FormatIndex(records []Record) []byte {
	var b bytes.Buffer
	for _, r := range records {
		b.WriteString("- ")
		b.WriteString(strconv.Quote(r.Path))
		b.WriteByte('\n')
	}
	return b.Bytes()
}
