// SPDX-License-Identifier: MPL-2.0

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/bootpack/bootpack/internal/issue"
	"github.com/bootpack/bootpack/internal/jarmode"
	"github.com/bootpack/bootpack/pkg/container"
	"github.com/bootpack/bootpack/pkg/integrity"
	"github.com/bootpack/bootpack/pkg/launcherr"
	"github.com/bootpack/bootpack/pkg/types"
)

func TestNewServiceError_PanicsOnNilErr(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on nil Err, got none")
		}
	}()

	newServiceError(nil, 0, "")
}

func TestServiceError_ErrorAndUnwrap(t *testing.T) {
	t.Parallel()

	underlying := errors.New("underlying error")
	svcErr := newServiceError(underlying, issue.UnitMissingId, "")

	if svcErr.Error() != "underlying error" {
		t.Errorf("Error() = %q, want %q", svcErr.Error(), "underlying error")
	}
	if !errors.Is(svcErr, underlying) {
		t.Error("errors.Is should find underlying error via Unwrap")
	}
}

func TestClassifyLaunchError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{"not a container", fmt.Errorf("x: %w", container.ErrNotContainer), issue.NotAContainerId},
		{"missing file", &launcherr.ResolutionError{Path: "app.jar", Err: os.ErrNotExist}, issue.ContainerNotFoundId},
		{"permission", &launcherr.ResolutionError{Path: "app.jar", Err: os.ErrPermission}, issue.PermissionDeniedId},
		{"unknown mode", &launcherr.ActivationError{Mode: "x"}, issue.UnknownModeId},
		{"tampered", &launcherr.IntegrityError{Entry: "a"}, issue.IntegrityTamperedId},
		{"bad key", fmt.Errorf("%w: nope", integrity.ErrMalformedKey), issue.KeyInvalidId},
		{"corrupt index", &launcherr.FormatError{Resource: "app.jar!/BOOT-INF/classpath.idx"}, issue.IndexCorruptId},
		{"bad layout", &launcherr.FormatError{Resource: "app.jar"}, issue.LayoutInvalidId},
		{"missing unit", launcherr.Missing("BOOT-INF/lib/a.jar", "app.jar"), issue.UnitMissingId},
		{"no entry point", &launcherr.ResolutionError{Path: "demo.Main"}, issue.EntryPointNotFoundId},
		{"usage", &jarmode.UsageError{Tool: "layertools", Err: errors.New("bad")}, 0},
		{"explicit issue", issue.NewErrorContext().WithOperation("x").WithIssue(issue.DescriptorInvalidId).BuildError(), issue.DescriptorInvalidId},
		{"other", errors.New("boom"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := classifyLaunchError(tt.err); got != tt.want {
				t.Errorf("classifyLaunchError() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRenderServiceError(t *testing.T) {
	t.Parallel()

	svcErr := newServiceError(errors.New("boom"), issue.UnitMissingId, "Error: boom\n")

	var quiet bytes.Buffer
	renderServiceError(&quiet, svcErr, false)
	if quiet.String() != "Error: boom\n" {
		t.Errorf("non-verbose output = %q", quiet.String())
	}

	var verbose bytes.Buffer
	renderServiceError(&verbose, svcErr, true)
	if !strings.HasPrefix(verbose.String(), "Error: boom\n") || verbose.Len() <= quiet.Len() {
		t.Errorf("verbose output lacks the catalog entry: %q", verbose.String())
	}
}

func TestFailureExitCode(t *testing.T) {
	t.Parallel()

	app := NewApp(Dependencies{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}})
	var stderr bytes.Buffer
	err := app.failure(&stderr, &launcherr.ActivationError{Mode: "bogus"})

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != types.ExitActivation {
		t.Fatalf("failure() = %v, want ExitError with code %d", err, types.ExitActivation)
	}
	if !strings.Contains(stderr.String(), `unknown mode "bogus"`) {
		t.Errorf("stderr = %q", stderr.String())
	}
}
