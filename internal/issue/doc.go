// SPDX-License-Identifier: MPL-2.0

// Package issue holds the user-facing side of bootpack failures: the
// ActionableError carried up to the CLI and a catalog of Markdown entries,
// rendered with glamour, that explain each launcher failure class and how
// to recover from it.
package issue
