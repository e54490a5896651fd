// SPDX-License-Identifier: MPL-2.0

// Package launcherr defines the error taxonomy shared by the container
// format packages and the launch runtime.
//
// Every failure of the launcher is one of four kinds, each with a sentinel for
// errors.Is and a struct carrying the diagnostic context for errors.As:
//
//   - FormatError: malformed index, layer or manifest metadata
//   - ResolutionError: a referenced unit or entry point is missing or unreadable
//   - ActivationError: an unknown tool mode was requested
//   - IntegrityError: an entry digest does not match the integrity record
//
// All of them are terminal for the current launch; nothing is retried.
package launcherr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFormat is the sentinel wrapped by FormatError.
	ErrFormat = errors.New("format error")
	// ErrResolution is the sentinel wrapped by ResolutionError.
	ErrResolution = errors.New("resolution error")
	// ErrActivation is the sentinel wrapped by ActivationError.
	ErrActivation = errors.New("activation error")
	// ErrIntegrity is the sentinel wrapped by IntegrityError.
	ErrIntegrity = errors.New("integrity error")
)

type (
	// FormatError reports malformed metadata. Resource names the offending
	// entry (e.g. "BOOT-INF/classpath.idx"); Line is 1-based and zero when the
	// problem is not tied to a line.
	FormatError struct {
		Resource string
		Line     int
		Reason   string
		Err      error
	}

	// ResolutionError reports a resolvable unit, entry or entry point that
	// could not be found or read.
	ResolutionError struct {
		// Path is the unit or entry path that failed to resolve.
		Path string
		// Container is the container or directory it was looked up in.
		Container string
		Reason    string
		Err       error
	}

	// ActivationError reports a tool mode that is not registered.
	ActivationError struct {
		Mode  string
		Known []string
	}

	// IntegrityError reports a digest mismatch for a single entry.
	IntegrityError struct {
		Entry    string
		Expected string
		Actual   string
	}
)

// Error implements the error interface.
func (e *FormatError) Error() string {
	var b strings.Builder
	b.WriteString("malformed ")
	b.WriteString(e.Resource)
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns ErrFormat and the underlying cause, if any.
func (e *FormatError) Unwrap() []error { return withCause(ErrFormat, e.Err) }

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	var b strings.Builder
	b.WriteString("cannot resolve ")
	b.WriteString(e.Path)
	if e.Container != "" {
		b.WriteString(" in ")
		b.WriteString(e.Container)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns ErrResolution and the underlying cause, if any.
func (e *ResolutionError) Unwrap() []error { return withCause(ErrResolution, e.Err) }

// Error implements the error interface.
func (e *ActivationError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("unknown mode %q", e.Mode)
	}
	return fmt.Sprintf("unknown mode %q (available: %s)", e.Mode, strings.Join(e.Known, ", "))
}

// Unwrap returns ErrActivation for errors.Is() compatibility.
func (e *ActivationError) Unwrap() error { return ErrActivation }

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("digest mismatch for %s: expected %s, got %s", e.Entry, e.Expected, e.Actual)
}

// Unwrap returns ErrIntegrity for errors.Is() compatibility.
func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// Format builds a FormatError for resource with a formatted reason.
func Format(resource string, line int, format string, args ...any) *FormatError {
	return &FormatError{Resource: resource, Line: line, Reason: fmt.Sprintf(format, args...)}
}

// Missing builds a ResolutionError for a path absent from container.
func Missing(path, container string) *ResolutionError {
	return &ResolutionError{Path: path, Container: container, Reason: "not found"}
}

func withCause(sentinel, cause error) []error {
	if cause == nil {
		return []error{sentinel}
	}
	return []error{sentinel, cause}
}
