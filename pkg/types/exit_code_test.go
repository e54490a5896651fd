// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"testing"
)

func TestExitCodeValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		value     ExitCode
		wantValid bool
	}{
		{name: "zero is valid", value: 0, wantValid: true},
		{name: "format failure is valid", value: ExitFormat, wantValid: true},
		{name: "255 is valid", value: 255, wantValid: true},
		{name: "negative is invalid", value: -1, wantValid: false},
		{name: "256 is invalid", value: 256, wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.value.Validate()
			if (err == nil) != tt.wantValid {
				t.Fatalf("ExitCode(%d).Validate() error = %v, wantValid %v", tt.value, err, tt.wantValid)
			}
			if err != nil && !errors.Is(err, ErrInvalidExitCode) {
				t.Errorf("error should wrap ErrInvalidExitCode, got: %v", err)
			}
		})
	}
}

func TestExitCodesAreDistinct(t *testing.T) {
	t.Parallel()

	codes := []ExitCode{ExitSuccess, ExitFailure, ExitUsage, ExitFormat, ExitActivation, ExitResolution, ExitIntegrity}
	seen := make(map[ExitCode]bool)
	for _, c := range codes {
		if seen[c] {
			t.Errorf("duplicate exit code %d", c)
		}
		seen[c] = true
	}
}

func TestExitCodeIsLauncherFailure(t *testing.T) {
	t.Parallel()

	for _, c := range []ExitCode{ExitFormat, ExitActivation, ExitResolution, ExitIntegrity} {
		if !c.IsLauncherFailure() {
			t.Errorf("ExitCode(%d).IsLauncherFailure() = false, want true", c)
		}
	}
	for _, c := range []ExitCode{ExitSuccess, ExitFailure, ExitUsage, 42} {
		if c.IsLauncherFailure() {
			t.Errorf("ExitCode(%d).IsLauncherFailure() = true, want false", c)
		}
	}
}

func TestExitCodeClamp(t *testing.T) {
	t.Parallel()

	if got := ExitCode(300).Clamp(); got != ExitFailure {
		t.Errorf("ExitCode(300).Clamp() = %d, want %d", got, ExitFailure)
	}
	if got := ExitCode(17).Clamp(); got != 17 {
		t.Errorf("ExitCode(17).Clamp() = %d, want 17", got)
	}
}
