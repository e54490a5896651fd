// SPDX-License-Identifier: MPL-2.0

// Command bootpack builds, signs, verifies, inspects and launches bootpack
// containers.
package main

func main() {
	Execute()
}
