// SPDX-License-Identifier: MPL-2.0

package jarmode

import (
	"context"
	"fmt"

	"github.com/bootpack/bootpack/pkg/types"
)

// classpathTool prints the effective classpath, one "N. <unit>" line per
// unit in resolution order.
type classpathTool struct{}

func (classpathTool) Name() string         { return ModeClasspath }
func (classpathTool) NeedsClasspath() bool { return true }

func (classpathTool) Run(_ context.Context, env *Env) (types.ExitCode, error) {
	for i, u := range env.Units {
		if _, err := fmt.Fprintf(env.Stdout, "%d. %s\n", i+1, u.String()); err != nil {
			return types.ExitFailure, err
		}
	}
	return types.ExitSuccess, nil
}
