// SPDX-License-Identifier: MPL-2.0

package launcherr

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
)

func TestSentinels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{name: "format", err: Format("BOOT-INF/classpath.idx", 3, "bad quoting"), sentinel: ErrFormat},
		{name: "resolution", err: Missing("BOOT-INF/lib/a.jar", "app.jar"), sentinel: ErrResolution},
		{name: "activation", err: &ActivationError{Mode: "nope"}, sentinel: ErrActivation},
		{name: "integrity", err: &IntegrityError{Entry: "a", Expected: "x", Actual: "y"}, sentinel: ErrIntegrity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.sentinel)
			}
		})
	}
}

func TestFormatErrorMessageNamesResourceAndLine(t *testing.T) {
	t.Parallel()

	err := Format("BOOT-INF/classpath.idx", 7, "path %q escapes the container", "../x.jar")
	msg := err.Error()
	for _, want := range []string{"BOOT-INF/classpath.idx", "line 7", "../x.jar"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not contain %q", msg, want)
		}
	}
}

func TestResolutionErrorKeepsCause(t *testing.T) {
	t.Parallel()

	err := &ResolutionError{Path: "BOOT-INF/lib/a.jar", Container: "/srv/app", Err: fs.ErrNotExist}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("ResolutionError should unwrap to its cause")
	}
	if !errors.Is(err, ErrResolution) {
		t.Error("ResolutionError should unwrap to ErrResolution")
	}
	var re *ResolutionError
	if !errors.As(error(err), &re) || re.Path != "BOOT-INF/lib/a.jar" {
		t.Errorf("errors.As did not recover the ResolutionError: %+v", re)
	}
}

func TestActivationErrorListsKnownModes(t *testing.T) {
	t.Parallel()

	err := &ActivationError{Mode: "debug", Known: []string{"classpath", "layertools"}}
	if got := err.Error(); !strings.Contains(got, "classpath, layertools") {
		t.Errorf("Error() = %q, want list of known modes", got)
	}
}
