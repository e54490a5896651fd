// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	t.Parallel()

	if err := FormatError(nil, "bootpack.cue"); err != nil {
		t.Errorf("FormatError(nil) = %v, want nil", err)
	}

	cause := errors.New("some error")
	err := FormatError(cause, "bootpack.cue")
	if err == nil || !strings.Contains(err.Error(), "bootpack.cue") || !errors.Is(err, cause) {
		t.Errorf("FormatError(non-CUE) = %v", err)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     []string
		expected string
	}{
		{"empty path", nil, ""},
		{"single element", []string{"name"}, "name"},
		{"nested path", []string{"log", "level"}, "log.level"},
		{"array index", []string{"libraries", "0", "path"}, "libraries[0].path"},
		{"multiple indices", []string{"layers", "1", "patterns", "2"}, "layers[1].patterns[2]"},
		{"numeric root", []string{"0", "name"}, "0.name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := formatPath(tt.path); got != tt.expected {
				t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"within limit", 11, false},
		{"exact limit", 100, false},
		{"over limit", 101, true},
		{"empty", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := CheckFileSize(make([]byte, tt.size), 100, "test.cue")
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckFileSize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && (!strings.Contains(err.Error(), "test.cue") || !strings.Contains(err.Error(), "101")) {
				t.Errorf("error should name the file and the size, got: %v", err)
			}
		})
	}
}
