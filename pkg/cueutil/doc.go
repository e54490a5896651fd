// SPDX-License-Identifier: MPL-2.0

// Package cueutil holds the CUE parsing flow shared by the configuration
// loader and the pack descriptor:
//
//  1. compile the embedded schema
//  2. compile the user document and unify it with a schema definition
//  3. validate, then decode into a Go value
//
// # Usage
//
//	//go:embed descriptor_schema.cue
//	var schema []byte
//
//	res, err := cueutil.ParseAndDecode[Descriptor](schema, data, "#Descriptor",
//	    cueutil.WithFilename("bootpack.pack.cue"))
//	if err != nil {
//	    return nil, err // carries file and CUE path of the offending field
//	}
//	return res.Value, nil
package cueutil
