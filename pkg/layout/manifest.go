// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/bootpack/bootpack/pkg/launcherr"
)

// Main-section attribute names understood by the launcher.
const (
	AttrManifestVersion = "Manifest-Version"
	AttrCreatedBy       = "Created-By"
	AttrMainClass       = "Main-Class"
	AttrStartClass      = "Start-Class"
	AttrVersion         = "Bootpack-Version"
	AttrClasses         = "Bootpack-Classes"
	AttrLib             = "Bootpack-Lib"
	AttrClasspathIndex  = "Bootpack-Classpath-Index"
	AttrLayersIndex     = "Bootpack-Layers-Index"

	// LauncherJar is the Main-Class value of an executable container.
	LauncherJar = "JarLauncher"

	// maxLineBytes is the JAR manifest line limit, excluding the line break.
	maxLineBytes = 72
)

type (
	// Attribute is a single "Key: Value" pair.
	Attribute struct {
		Key   string
		Value string
	}

	// Attributes is an ordered attribute list with case-insensitive lookup.
	Attributes []Attribute

	// Section is a named per-entry section ("Name: path" followed by attributes).
	Section struct {
		Name  string
		Attrs Attributes
	}

	// Manifest is a parsed JAR-style manifest: a main section followed by
	// named sections. Attribute order is preserved so that a parsed manifest
	// writes back byte for byte.
	Manifest struct {
		Main     Attributes
		Sections []Section
	}

	// launchAttributes is the validated view of the main section.
	launchAttributes struct {
		ManifestVersion string `validate:"required"`
		Classes         string `validate:"required,endswith=/"`
		Lib             string `validate:"required,endswith=/"`
		ClasspathIndex  string `validate:"required,excludes=..,excludes=\\"`
		LayersIndex     string `validate:"required,excludes=..,excludes=\\"`
	}
)

var manifestValidator = validator.New(validator.WithRequiredStructEnabled())

// Get returns the value for key, matched case-insensitively.
func (a Attributes) Get(key string) (string, bool) {
	for _, attr := range a {
		if strings.EqualFold(attr.Key, key) {
			return attr.Value, true
		}
	}
	return "", false
}

// Set replaces the value for key or appends it.
func (a *Attributes) Set(key, value string) {
	for i := range *a {
		if strings.EqualFold((*a)[i].Key, key) {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Attribute{Key: key, Value: value})
}

// NewManifest returns a manifest with Manifest-Version set.
func NewManifest() *Manifest {
	m := &Manifest{}
	m.Main.Set(AttrManifestVersion, "1.0")
	return m
}

// Section returns the named section, if present.
func (m *Manifest) Section(name string) (*Section, bool) {
	for i := range m.Sections {
		if m.Sections[i].Name == name {
			return &m.Sections[i], true
		}
	}
	return nil, false
}

// AddSection appends a named section.
func (m *Manifest) AddSection(name string, attrs ...Attribute) {
	m.Sections = append(m.Sections, Section{Name: name, Attrs: attrs})
}

// StartClass returns the declared application entry point.
func (m *Manifest) StartClass() string {
	if m == nil {
		return ""
	}
	v, _ := m.Main.Get(AttrStartClass)
	return v
}

// ClassesArea returns the application-classes area, honoring overrides.
func (m *Manifest) ClassesArea() string { return m.attrOr(AttrClasses, ClassesArea) }

// LibArea returns the dependency-library area, honoring overrides.
func (m *Manifest) LibArea() string { return m.attrOr(AttrLib, LibArea) }

// ClasspathIndex returns the classpath index location.
func (m *Manifest) ClasspathIndex() string { return m.attrOr(AttrClasspathIndex, ClasspathIndexPath) }

// LayersIndex returns the layer index location.
func (m *Manifest) LayersIndex() string { return m.attrOr(AttrLayersIndex, LayersIndexPath) }

// attrOr tolerates a nil manifest so partial layouts fall back to defaults.
func (m *Manifest) attrOr(key, def string) string {
	if m == nil {
		return def
	}
	if v, ok := m.Main.Get(key); ok && v != "" {
		return v
	}
	return def
}

// Validate checks the launch-relevant attributes of the main section.
func (m *Manifest) Validate() error {
	version, _ := m.Main.Get(AttrManifestVersion)
	la := launchAttributes{
		ManifestVersion: version,
		Classes:         m.ClassesArea(),
		Lib:             m.LibArea(),
		ClasspathIndex:  m.ClasspathIndex(),
		LayersIndex:     m.LayersIndex(),
	}
	if err := manifestValidator.Struct(la); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
		} else {
			fields = append(fields, err.Error())
		}
		return launcherr.Format(ManifestPath, 0, "invalid attributes: %s", strings.Join(fields, ", "))
	}
	return nil
}

// ParseManifest parses JAR manifest syntax. resource names the entry in
// error messages.
func ParseManifest(resource string, data []byte) (*Manifest, error) {
	m := &Manifest{}
	var (
		cur     *Attributes
		section *Section
		lastKey = -1
		inMain  = true
		inName  bool
		lineNo  int
	)
	cur = &m.Main

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if line == "" {
			// Section break.
			if section != nil {
				m.Sections = append(m.Sections, *section)
				section = nil
			}
			inMain = false
			inName = false
			cur = nil
			lastKey = -1
			continue
		}

		if strings.HasPrefix(line, " ") {
			if inName {
				section.Name += line[1:]
				continue
			}
			if cur == nil || lastKey < 0 {
				return nil, launcherr.Format(resource, lineNo, "continuation line without attribute")
			}
			(*cur)[lastKey].Value += line[1:]
			continue
		}

		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			if k, found := strings.CutSuffix(line, ":"); found {
				key, value, ok = k, "", true
			}
		}
		if !ok || key == "" || strings.ContainsAny(key, " \t") {
			return nil, launcherr.Format(resource, lineNo, "expected \"Key: Value\", got %q", line)
		}

		if cur == nil {
			// First line of a named section must be Name.
			if inMain || !strings.EqualFold(key, "Name") {
				return nil, launcherr.Format(resource, lineNo, "section must start with a Name attribute")
			}
			section = &Section{Name: value}
			cur = &section.Attrs
			lastKey = -1
			inName = true
			continue
		}
		inName = false
		if _, dup := cur.Get(key); dup {
			return nil, launcherr.Format(resource, lineNo, "duplicate attribute %q", key)
		}
		*cur = append(*cur, Attribute{Key: key, Value: value})
		lastKey = len(*cur) - 1
	}
	if err := scanner.Err(); err != nil {
		return nil, &launcherr.FormatError{Resource: resource, Err: err}
	}
	if section != nil {
		m.Sections = append(m.Sections, *section)
	}
	return m, nil
}

// Bytes renders the manifest with CRLF-free line breaks and 72-byte wrapping.
func (m *Manifest) Bytes() []byte {
	var b bytes.Buffer
	for _, a := range m.Main {
		writeAttr(&b, a.Key, a.Value)
	}
	b.WriteString("\n")
	for _, s := range m.Sections {
		writeAttr(&b, "Name", s.Name)
		for _, a := range s.Attrs {
			writeAttr(&b, a.Key, a.Value)
		}
		b.WriteString("\n")
	}
	return b.Bytes()
}

func writeAttr(b *bytes.Buffer, key, value string) {
	line := key + ": " + value
	limit := maxLineBytes
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		b.WriteString(line[:cut])
		b.WriteString("\n ")
		line = line[cut:]
		limit = maxLineBytes - 1
	}
	b.WriteString(line)
	b.WriteString("\n")
}
