// SPDX-License-Identifier: MPL-2.0

package jarmode

import (
	"context"
	"fmt"
	"io"

	"github.com/bootpack/bootpack/pkg/integrity"
	"github.com/bootpack/bootpack/pkg/types"
)

// verifyTool checks the integrity record of the image.
type verifyTool struct{}

func (verifyTool) Name() string         { return ModeVerify }
func (verifyTool) NeedsClasspath() bool { return false }

func (verifyTool) Run(_ context.Context, env *Env) (types.ExitCode, error) {
	res, err := integrity.Verify(env.Source, integrity.VerifyOptions{
		TrustedKey: env.TrustedKey,
		Logger:     env.logger(),
	})
	if err != nil {
		return types.ExitFailure, err
	}
	PrintResult(env.Stdout, env.Source.Location(), res)
	if res.Status == integrity.Tampered {
		return types.ExitIntegrity, res.Err()
	}
	return types.ExitSuccess, nil
}

// PrintResult writes a verification verdict followed by one line per finding.
func PrintResult(w io.Writer, location string, res *integrity.Result) {
	switch res.Status {
	case integrity.Valid:
		fmt.Fprintf(w, "%s: %s (%d entries, key %s)\n", location, res.Status, res.Entries, res.KeyID)
	case integrity.Unsigned:
		fmt.Fprintf(w, "%s: %s\n", location, res.Status)
	default:
		fmt.Fprintf(w, "%s: %s\n", location, res.Status)
		for _, f := range res.Findings {
			entry := f.Entry
			if entry == "" {
				entry = "(record)"
			}
			switch {
			case f.Expected != "" || f.Actual != "":
				fmt.Fprintf(w, "  %s: %s (expected %s, actual %s)\n", entry, f.Reason, orNone(f.Expected), orNone(f.Actual))
			default:
				fmt.Fprintf(w, "  %s: %s\n", entry, f.Reason)
			}
		}
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
