// SPDX-License-Identifier: MPL-2.0

// Package config handles bootpack configuration using Viper with CUE as the
// file format.
//
// Values come from, in increasing precedence: built-in defaults, a
// bootpack.cue file (the platform config directory, else the working
// directory, or an explicit path) validated against the embedded
// config_schema.cue, and BOOTPACK_* environment variables. The tool-mode
// activation signal BOOTPACK_MODE is read here as launch.mode.
package config
