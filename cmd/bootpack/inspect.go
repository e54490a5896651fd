// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/bootpack/bootpack/internal/launch"
	"github.com/bootpack/bootpack/pkg/classpath"
	"github.com/bootpack/bootpack/pkg/container"
	"github.com/bootpack/bootpack/pkg/layers"
	"github.com/bootpack/bootpack/pkg/layout"
	"github.com/bootpack/bootpack/pkg/types"
)

// Output formats accepted by inspect --format.
const (
	formatText = "text"
	formatJSON = "json"
	formatTOML = "toml"
)

type (
	// inspectReport is the structured description printed by inspect.
	inspectReport struct {
		Location    string            `json:"location" toml:"location"`
		Form        string            `json:"form" toml:"form"`
		StartClass  string            `json:"start_class,omitempty" toml:"start_class,omitempty"`
		PrefixBytes int64             `json:"prefix_bytes" toml:"prefix_bytes"`
		Entries     int               `json:"entries" toml:"entries"`
		Signed      bool              `json:"signed" toml:"signed"`
		Manifest    map[string]string `json:"manifest" toml:"manifest"`
		Classpath   []string          `json:"classpath" toml:"classpath"`
		Layers      []layerReport     `json:"layers" toml:"layers"`
	}

	layerReport struct {
		Name    string `json:"name" toml:"name"`
		Entries int    `json:"entries" toml:"entries"`
		Bytes   int64  `json:"bytes" toml:"bytes"`
	}
)

func newInspectCommand(app *App) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "inspect CONTAINER",
		Short: "Describe a container's manifest, classpath and layers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case formatText, formatJSON, formatTOML:
			default:
				return &ExitError{
					Code: types.ExitUsage,
					Err:  fmt.Errorf("unknown format %q (valid: %s, %s, %s)", format, formatText, formatJSON, formatTOML),
				}
			}

			src, err := container.OpenSource(nil, args[0])
			if err != nil {
				return app.failure(cmd.ErrOrStderr(), err)
			}
			defer src.Close()

			report, err := inspectContainer(src)
			if err != nil {
				return app.failure(cmd.ErrOrStderr(), err)
			}
			return writeReport(cmd.OutOrStdout(), report, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json or toml")
	return cmd
}

func inspectContainer(src container.Source) (*inspectReport, error) {
	m, _, err := container.ReadManifest(src)
	if err != nil {
		return nil, err
	}
	report := &inspectReport{
		Location:   src.Location(),
		Form:       src.Form().String(),
		StartClass: m.StartClass(),
		Entries:    len(src.Entries()),
		Manifest:   make(map[string]string),
	}
	if m != nil {
		for _, attr := range m.Main {
			report.Manifest[attr.Key] = attr.Value
		}
	}
	_, report.Signed = src.Stat(layout.SignatureFilePath)
	if a, ok := src.(*container.Archive); ok {
		if report.PrefixBytes, err = a.PrefixLen(); err != nil {
			return nil, err
		}
	}

	var records []classpath.Record
	if d, ok := src.(*container.Dir); ok {
		records, err = launch.ExplodedRecords(d, m)
	} else {
		records, err = launch.PackagedRecords(src, m)
	}
	if err != nil {
		return nil, err
	}
	report.Classpath = classpath.Paths(records)

	ix, ok, err := layers.ReadIndex(src, m.LayersIndex())
	if err != nil {
		return nil, err
	}
	if !ok {
		ix = layers.Default()
	}
	byLayer := make(map[string]*layerReport)
	for _, name := range ix.Names() {
		report.Layers = append(report.Layers, layerReport{Name: name})
	}
	for i := range report.Layers {
		byLayer[report.Layers[i].Name] = &report.Layers[i]
	}
	for _, e := range src.Entries() {
		if lr := byLayer[ix.Classify(e.Path)]; lr != nil {
			lr.Entries++
			lr.Bytes += e.Size
		}
	}
	return report, nil
}

func writeReport(w io.Writer, r *inspectReport, format string) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatTOML:
		data, err := toml.Marshal(r)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	fmt.Fprintln(w, TitleStyle.Render(r.Location))
	fmt.Fprintf(w, "%s %s\n", KeyStyle.Render("form:"), r.Form)
	if r.StartClass != "" {
		fmt.Fprintf(w, "%s %s\n", KeyStyle.Render("start class:"), r.StartClass)
	}
	fmt.Fprintf(w, "%s %d\n", KeyStyle.Render("entries:"), r.Entries)
	if r.PrefixBytes > 0 {
		fmt.Fprintf(w, "%s %d bytes\n", KeyStyle.Render("launcher stub:"), r.PrefixBytes)
	}
	signed := SubtitleStyle.Render("no")
	if r.Signed {
		signed = SuccessStyle.Render("yes")
	}
	fmt.Fprintf(w, "%s %s\n", KeyStyle.Render("signed:"), signed)

	fmt.Fprintln(w, sectionStyle.Render("Classpath"))
	for i, p := range r.Classpath {
		fmt.Fprintf(w, "  %d. %s\n", i+1, p)
	}
	fmt.Fprintln(w, sectionStyle.Render("Layers"))
	for _, l := range r.Layers {
		fmt.Fprintf(w, "  %s %d entries, %d bytes\n", KeyStyle.Render(l.Name+":"), l.Entries, l.Bytes)
	}
	return nil
}
