// Package dex loads dex bytecode containers: a single raw container, or
// the multidex sequence classes.dex, classes2.dex, ... packed in a zip
// archive.
//
// Input format is classified from leading magic bytes. Archive segments
// are enumerated in ordinal order, stopping at the first absent ordinal;
// a missing classes.dex is an error. Each segment can be checked against
// its integrity checksum and structurally verified, and is returned as
// an immutable [File] with a stable location string.
//
// # Quick Start
//
// Open everything in a container:
//
//	loader := dex.New(dex.WithVerifyChecksum(true))
//	files, err := loader.OpenPath("app.apk")
//	if err != nil {
//	    return err
//	}
//	for _, f := range files {
//	    fmt.Println(f.Location(), f.Header().Version())
//	    defer f.Close()
//	}
//
// Read checksums without extracting anything:
//
//	sums, err := loader.MultiDexChecksums("app.apk")
//
// # Ownership
//
// Entry points differ only in who owns the underlying resource:
// [Loader.OpenPath] and [Loader.OpenOwnedFile] close the file on every
// exit path, [Loader.OpenFile] never closes it, [Loader.OpenBytes]
// retains the caller's buffer, and [Loader.OpenMapping] takes ownership
// of the mapping. Backing storage for each File is released by its
// Close; storage shared between Files is reference-counted.
package dex
