// SPDX-License-Identifier: MPL-2.0

// Package launch boots a container. A launch walks the states
// Start, DetectForm, BuildClasspath, SelectEntryPoint and Execute, ending in
// Success or Failure. Nothing is retried: the first error ends the launch
// and maps to a stable exit code through ExitCodeFor.
package launch
