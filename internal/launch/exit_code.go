// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"errors"

	"github.com/bootpack/bootpack/internal/jarmode"
	"github.com/bootpack/bootpack/pkg/launcherr"
	"github.com/bootpack/bootpack/pkg/types"
)

// ExitCodeFor maps a launch error to its process exit code.
func ExitCodeFor(err error) types.ExitCode {
	switch {
	case err == nil:
		return types.ExitSuccess
	case errors.Is(err, jarmode.ErrUsage):
		return types.ExitUsage
	case errors.Is(err, launcherr.ErrFormat):
		return types.ExitFormat
	case errors.Is(err, launcherr.ErrActivation):
		return types.ExitActivation
	case errors.Is(err, launcherr.ErrResolution):
		return types.ExitResolution
	case errors.Is(err, launcherr.ErrIntegrity):
		return types.ExitIntegrity
	default:
		return types.ExitFailure
	}
}
