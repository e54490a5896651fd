// SPDX-License-Identifier: MPL-2.0

// Package entrypoint resolves and runs the application entry point named by
// a container's Start-Class: a Go function registered at build time, or a
// shell script shipped as a classpath resource and run in the embedded
// mvdan/sh interpreter.
package entrypoint
