// SPDX-License-Identifier: MPL-2.0

// Package jarmode implements tool mode: when the activation signal names a
// tool, the launcher runs that tool against the container instead of the
// application entry point. The set of tools is closed and resolved by name
// in Lookup.
package jarmode
