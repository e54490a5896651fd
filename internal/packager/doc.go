// SPDX-License-Identifier: MPL-2.0

// Package packager writes containers from a CUE pack descriptor. Libraries
// are taken as already-resolved files in declaration order; the packager
// does no dependency resolution.
package packager
