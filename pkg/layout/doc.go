// SPDX-License-Identifier: MPL-2.0

// Package layout defines the naming convention inside a bootpack container.
//
// A container is a zip archive with three disjoint top-level areas:
//
//	BOOT-INF/classes/        application classes and resources
//	BOOT-INF/lib/            dependency libraries, one nested archive each
//	META-INF/                manifest, integrity record
//
// plus the two indexes written by the packager, BOOT-INF/classpath.idx and
// BOOT-INF/layers.idx. Nested archives are addressed with the "!/" separator,
// as in "app.jar!/BOOT-INF/lib/commons-lang3-3.14.0.jar".
//
// The manifest (META-INF/MANIFEST.MF) uses the JAR manifest syntax and names
// the application entry point (Start-Class) and, optionally, non-default area
// locations.
package layout
