// SPDX-License-Identifier: MPL-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/bootpack/bootpack/internal/issue"
	"github.com/bootpack/bootpack/internal/jarmode"
	"github.com/bootpack/bootpack/internal/launch"
	"github.com/bootpack/bootpack/pkg/container"
	"github.com/bootpack/bootpack/pkg/integrity"
	"github.com/bootpack/bootpack/pkg/launcherr"
	"github.com/bootpack/bootpack/pkg/layout"
)

// ServiceError carries the rendering information the CLI prints for a
// failed operation. Always create via newServiceError.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
	// StyledMessage is the optional pre-rendered styled error text.
	StyledMessage string
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{
		Err:           err,
		IssueID:       issueID,
		StyledMessage: styledMessage,
	}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// renderServiceError prints the styled message, then the catalog entry when
// verbose output was requested.
func renderServiceError(stderr io.Writer, svcErr *ServiceError, verbose bool) {
	if svcErr == nil {
		return
	}

	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	}

	if !verbose || svcErr.IssueID == 0 {
		return
	}

	if catalogEntry := issue.Get(svcErr.IssueID); catalogEntry != nil {
		rendered, renderErr := catalogEntry.Render("dark")
		if renderErr != nil {
			slog.Warn("failed to render issue catalog entry", "issueID", svcErr.IssueID, "error", renderErr)
		} else {
			fmt.Fprint(stderr, rendered)
		}
	}
}

// classifyLaunchError maps a launch or tool failure to its issue catalog ID.
func classifyLaunchError(err error) issue.Id {
	var (
		ae     *issue.ActionableError
		fmtErr *launcherr.FormatError
		resErr *launcherr.ResolutionError
	)
	switch {
	case errors.As(err, &ae) && ae.Issue != 0:
		return ae.Issue
	case errors.Is(err, jarmode.ErrUsage):
		return 0
	case errors.Is(err, container.ErrNotContainer):
		return issue.NotAContainerId
	case errors.Is(err, fs.ErrNotExist):
		return issue.ContainerNotFoundId
	case errors.Is(err, fs.ErrPermission):
		return issue.PermissionDeniedId
	case errors.Is(err, launcherr.ErrActivation):
		return issue.UnknownModeId
	case errors.Is(err, launcherr.ErrIntegrity):
		return issue.IntegrityTamperedId
	case errors.Is(err, integrity.ErrMalformedKey):
		return issue.KeyInvalidId
	case errors.As(err, &fmtErr):
		if strings.HasSuffix(fmtErr.Resource, ".idx") {
			return issue.IndexCorruptId
		}
		return issue.LayoutInvalidId
	case errors.As(err, &resErr):
		if layout.InNamespace(resErr.Path) {
			return issue.UnitMissingId
		}
		return issue.EntryPointNotFoundId
	default:
		return 0
	}
}

// failure renders err on stderr and returns the ExitError carrying the
// exit code err maps to.
func (app *App) failure(stderr io.Writer, err error) error {
	svcErr := newServiceError(err, classifyLaunchError(err),
		fmt.Sprintf("%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, app.verbose)))
	renderServiceError(stderr, svcErr, app.verbose)
	return &ExitError{Code: launch.ExitCodeFor(err), Err: svcErr}
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// use their own Format; verbose mode shows the full chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
