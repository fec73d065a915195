package dex

import (
	"sync/atomic"

	"github.com/opencontainers/go-digest"
)

// File is one loaded dex segment: the whole container for raw input, or
// one classes entry of an archive.
//
// A File is immutable after construction. Its backing storage is either
// an owned buffer or a shared read-only mapping; either way callers must
// not modify the bytes returned by Data. Close releases the File's
// reference to the backing storage and is idempotent.
type File struct {
	data     []byte
	location string
	checksum uint32
	ordinal  int
	header   Header
	release  func() error
}

// Data returns the container content. The returned slice is valid until
// Close and must not be modified.
func (f *File) Data() []byte {
	return f.data
}

// Size returns the content length in bytes.
func (f *File) Size() int {
	return len(f.data)
}

// Location returns the location string: the base location for the
// primary segment, base:classesN.dex for the N-th.
func (f *File) Location() string {
	return f.location
}

// Checksum returns the segment's integrity checksum: the header adler32
// for raw containers, the archive's stored CRC-32 for archive entries.
func (f *File) Checksum() uint32 {
	return f.checksum
}

// Ordinal returns the 1-based position within the multidex sequence.
// Raw containers are always ordinal 1.
func (f *File) Ordinal() int {
	return f.ordinal
}

// Header returns the parsed container header.
func (f *File) Header() Header {
	return f.header
}

// Digest returns the SHA-256 digest of the content, for matching against
// content-addressed tooling.
func (f *File) Digest() digest.Digest {
	return digest.FromBytes(f.data)
}

// Close releases the File's reference to its backing storage. Shared
// storage is released when the last sharing File closes.
func (f *File) Close() error {
	release := f.release
	f.release = nil
	f.data = nil
	if release == nil {
		return nil
	}
	return release()
}

// closeFiles closes every file in a partially built batch. Used on error
// paths where no partial result may escape.
func closeFiles(files []*File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// sharedCloser reference-counts a caller-supplied Mapping so several
// Files can share it. It starts with one reference held by the opener;
// retain adds one per sharing File.
type sharedCloser struct {
	refs  atomic.Int64
	close func() error
}

func newSharedCloser(close func() error) *sharedCloser {
	s := &sharedCloser{close: close}
	s.refs.Store(1)
	return s
}

func (s *sharedCloser) retain() {
	s.refs.Add(1)
}

func (s *sharedCloser) release() error {
	if s.refs.Add(-1) > 0 {
		return nil
	}
	return s.close()
}
