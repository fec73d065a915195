// Package archive provides access to the entries of a zip container.
//
// Entry metadata (names, CRC-32 checksums, compression method) comes from
// the central directory alone, so callers can inspect a container without
// decompressing anything. Extraction inflates through the registered
// decompressor and validates the stored CRC-32.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/flate"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when the archive has no entry with the
	// requested name.
	ErrNotFound = errors.New("archive: entry not found")

	// ErrDuplicate is returned when the requested name appears more than
	// once in the central directory.
	ErrDuplicate = errors.New("archive: duplicate entry name")
)

// Archive reads entries of a zip container through an io.ReaderAt.
type Archive struct {
	reader *zip.Reader
	byName map[string]*slot
}

type slot struct {
	file *zip.File
	dup  bool
}

// Entry is one file inside the archive.
type Entry struct {
	file *zip.File
}

// New opens the central directory of a zip container of the given size.
//
// The reader is retained by the returned Archive and must stay valid for
// its lifetime.
func New(r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	byName := make(map[string]*slot, len(zr.File))
	for _, f := range zr.File {
		if s, ok := byName[f.Name]; ok {
			s.dup = true
			continue
		}
		byName[f.Name] = &slot{file: f}
	}
	return &Archive{reader: zr, byName: byName}, nil
}

// Entry returns the entry with the given name.
//
// Returns ErrNotFound when the name is absent and ErrDuplicate when the
// central directory lists it more than once.
func (a *Archive) Entry(name string) (*Entry, error) {
	s, ok := a.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if s.dup {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	return &Entry{file: s.file}, nil
}

// Name returns the entry's name as stored in the central directory.
func (e *Entry) Name() string {
	return e.file.Name
}

// Checksum returns the entry's CRC-32 from the central directory.
func (e *Entry) Checksum() uint32 {
	return e.file.CRC32
}

// Compressed reports whether the entry is stored with a compression
// method rather than verbatim.
func (e *Entry) Compressed() bool {
	return e.file.Method != zip.Store
}

// Size returns the entry's uncompressed size.
func (e *Entry) Size() uint64 {
	return e.file.UncompressedSize64
}

// DataOffset returns the offset of the entry's data from the start of the
// archive. For uncompressed entries this is the offset of the content
// itself, suitable for mapping directly.
func (e *Entry) DataOffset() (int64, error) {
	return e.file.DataOffset()
}

// Bytes extracts the entry, decompressing if needed.
//
// The stored CRC-32 is validated as a side effect of draining the entry;
// corrupt data surfaces as an error rather than short content.
func (e *Entry) Bytes() ([]byte, error) {
	size := e.file.UncompressedSize64
	if size > math.MaxUint32 {
		return nil, fmt.Errorf("entry %s: declared size %d too large", e.file.Name, size)
	}
	rc, err := e.file.Open()
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.file.Name, err)
	}
	defer rc.Close()

	data := make([]byte, size)
	if _, err := io.ReadFull(rc, data); err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.file.Name, err)
	}
	// Drain to EOF so the reader verifies the stored CRC-32.
	switch n, err := io.Copy(io.Discard, rc); {
	case err != nil:
		return nil, fmt.Errorf("entry %s: %w", e.file.Name, err)
	case n > 0:
		return nil, fmt.Errorf("entry %s: %d bytes beyond declared size", e.file.Name, n)
	}
	return data, nil
}
