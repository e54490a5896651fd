// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level LogLevel
		want  bool
	}{
		{LogLevelDebug, true},
		{LogLevelInfo, true},
		{LogLevelWarn, true},
		{LogLevelError, true},
		{"", false},
		{"trace", false},
		{"INFO", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			t.Parallel()
			isValid, errs := tt.level.IsValid()
			if isValid != tt.want {
				t.Errorf("LogLevel(%q).IsValid() = %v, want %v", tt.level, isValid, tt.want)
			}
			if !tt.want {
				if len(errs) == 0 {
					t.Fatalf("LogLevel(%q).IsValid() returned no errors", tt.level)
				}
				if !errors.Is(errs[0], ErrInvalidLogLevel) {
					t.Errorf("error should wrap ErrInvalidLogLevel, got: %v", errs[0])
				}
			}
		})
	}
}

func TestLogFormat_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format LogFormat
		want   bool
	}{
		{LogFormatText, true},
		{LogFormatJSON, true},
		{LogFormatLogfmt, true},
		{"", false},
		{"xml", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			t.Parallel()
			isValid, errs := tt.format.IsValid()
			if isValid != tt.want {
				t.Errorf("LogFormat(%q).IsValid() = %v, want %v", tt.format, isValid, tt.want)
			}
			if !tt.want && !errors.Is(errs[0], ErrInvalidLogFormat) {
				t.Errorf("error should wrap ErrInvalidLogFormat, got: %v", errs[0])
			}
		})
	}
}

func TestConfig_IsValid(t *testing.T) {
	t.Parallel()

	if ok, errs := DefaultConfig().IsValid(); !ok {
		t.Fatalf("DefaultConfig().IsValid() = false: %v", errs)
	}

	cfg := DefaultConfig()
	cfg.Log.Level = "loud"
	cfg.Launch.CacheSize = 0
	cfg.Extract.Concurrency = -1

	ok, errs := cfg.IsValid()
	if ok {
		t.Fatal("IsValid() = true for a broken config")
	}
	if !errors.Is(errs[0], ErrInvalidConfig) {
		t.Fatalf("error should wrap ErrInvalidConfig, got %v", errs[0])
	}
	var cfgErr *InvalidConfigError
	if !errors.As(errs[0], &cfgErr) {
		t.Fatalf("error should be *InvalidConfigError, got %T", errs[0])
	}
	if len(cfgErr.FieldErrors) != 3 {
		t.Errorf("FieldErrors = %d, want 3: %v", len(cfgErr.FieldErrors), cfgErr.FieldErrors)
	}
}
