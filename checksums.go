package dex

import (
	"fmt"
	"io"
	"os"

	"github.com/halvard/dex/internal/archive"
)

// ChecksumEntry pairs one segment's location string with its checksum.
type ChecksumEntry struct {
	Location string
	Checksum uint32
}

// Checksums is the result of a multidex checksum query. Entries are in
// ascending ordinal order and there is one entry per located segment.
type Checksums struct {
	Entries []ChecksumEntry

	// AllUncompressed reports whether every located segment is stored
	// verbatim. Callers use it to decide whether the input can be
	// memory-mapped directly instead of decompressed. Always true for
	// raw containers.
	AllUncompressed bool
}

// MultiDexChecksums reads the checksum of every segment at path without
// opening any of them: the header checksum for a raw container, the
// archive directory's CRC-32 per classes entry for an archive. Nothing
// is decompressed. The file is opened and owned by this call.
func (l *Loader) MultiDexChecksums(path string) (*Checksums, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return l.MultiDexChecksumsFile(f, path)
}

// MultiDexChecksumsFile is MultiDexChecksums over a borrowed descriptor:
// f is never closed by this call and its offset is left untouched.
func (l *Loader) MultiDexChecksumsFile(f *os.File, location string) (*Checksums, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", location, err)
	}
	size := info.Size()

	prefix := make([]byte, 8)
	n, err := f.ReadAt(prefix, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	fm, err := classifyPrefix(prefix[:n])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}

	if fm == formatZip {
		ar, err := archive.New(f, size)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", location, ErrCorruptArchive, err)
		}
		return archiveChecksums(ar, location)
	}

	header := make([]byte, HeaderSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%s: %w: %d bytes, header needs %d", location, ErrTruncated, size, HeaderSize)
		}
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	h, err := ParseHeader(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	return &Checksums{
		Entries:         []ChecksumEntry{{Location: location, Checksum: h.Checksum}},
		AllUncompressed: true,
	}, nil
}

// archiveChecksums collects per-entry CRC-32 values from the central
// directory, driving the same ordinal walk as segment opening.
func archiveChecksums(ar *archive.Archive, base string) (*Checksums, error) {
	cs := &Checksums{AllUncompressed: true}
	err := forEachSegment(ar, base, func(ordinal int, entry *archive.Entry) error {
		if entry.Compressed() {
			cs.AllUncompressed = false
		}
		cs.Entries = append(cs.Entries, ChecksumEntry{
			Location: MultiDexLocation(ordinal, base),
			Checksum: entry.Checksum(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cs, nil
}
