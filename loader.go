package dex

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/halvard/dex/internal/archive"
	"github.com/halvard/dex/internal/mmap"
)

// Companion consults a pre-compiled companion artifact. When the
// companion reports a checksum for a location and it equals the
// segment's checksum, structural verification of that segment is
// skipped: the companion was produced from verified content.
type Companion interface {
	Checksum(location string) (uint32, bool)
}

// Mapping is a caller-built read-only view of container content, for
// example a memory mapping created outside this package. Bytes must stay
// valid and unmodified until Close.
type Mapping interface {
	Bytes() []byte
	Close() error
}

// Loader opens dex containers from paths, descriptors, buffers, and
// mappings. The zero value opens without verification; configure with
// New and options. A Loader holds no mutable state and is safe for
// concurrent use across independent inputs.
type Loader struct {
	verify         bool
	verifyChecksum bool
	verifier       Verifier
	companion      Companion
	logger         *slog.Logger
}

// New returns a Loader configured by opts.
func New(opts ...Option) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) log() *slog.Logger {
	if l.logger != nil {
		return l.logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// checksumAlgo selects the algorithm matching a segment's source:
// adler32 for raw containers, CRC-32 for archive entries.
type checksumAlgo int

const (
	adlerSum checksumAlgo = iota
	crcSum
)

// segment is one unit of content on its way to becoming a File.
type segment struct {
	data     []byte
	location string
	ordinal  int
	algo     checksumAlgo
	sum      uint32
	sumSet   bool
	release  func() error
}

// archiveSource describes where an archive's bytes live, so stored
// entries can be viewed zero-copy when possible.
type archiveSource struct {
	file   *os.File      // set for descriptor-backed archives
	size   int64         // archive size, for mapping the file
	buf    []byte        // set for in-memory archives
	shared *sharedCloser // refcount for a caller-owned mapping, may be nil
}

// OpenPath opens the container at path. The file is opened and owned by
// this call and closed on every exit path.
func (l *Loader) OpenPath(path string) ([]*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return l.OpenOwnedFile(f, path)
}

// OpenOwnedFile opens the container read from f, consuming the
// descriptor: f is closed on every exit path, including early failures.
// The descriptor must not be shared with a concurrent call.
func (l *Loader) OpenOwnedFile(f *os.File, location string) ([]*File, error) {
	defer f.Close()
	return l.openDescriptor(f, location)
}

// OpenFile opens the container read from f without taking ownership: the
// descriptor is never closed by this call and its offset is left
// untouched (all reads use ReadAt), so it remains fully usable after.
func (l *Loader) OpenFile(f *os.File, location string) ([]*File, error) {
	return l.openDescriptor(f, location)
}

func (l *Loader) openDescriptor(f *os.File, location string) ([]*File, error) {
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
	l.log().Debug("classified input", "location", location, "format", fm, "size", size)

	if fm == formatZip {
		ar, err := archive.New(f, size)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", location, ErrCorruptArchive, err)
		}
		return l.openArchive(ar, archiveSource{file: f, size: size}, location)
	}

	region, err := mmap.MapFile(f, size)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", location, err)
	}
	file, err := l.openOne(segment{
		data:     region.Bytes(),
		location: location,
		ordinal:  1,
		algo:     adlerSum,
		release:  region.Close,
	})
	if err != nil {
		_ = region.Close()
		return nil, err
	}
	return []*File{file}, nil
}

// OpenBytes opens the container held in data, which may be a raw dex
// container or a whole zip archive. The buffer remains owned by the
// caller but is retained by the returned Files; it must not be modified
// until they are closed. Stored archive entries share the buffer
// zero-copy; compressed entries are inflated into owned buffers.
func (l *Loader) OpenBytes(data []byte, location string, opts ...OpenOption) ([]*File, error) {
	cfg := newOpenConfig(opts)
	fm, err := classifyPrefix(headPrefix(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}

	if fm == formatZip {
		if cfg.sumSet {
			l.log().Debug("expected checksum ignored for archive input", "location", location)
		}
		ar, err := archive.New(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", location, ErrCorruptArchive, err)
		}
		return l.openArchive(ar, archiveSource{buf: data}, location)
	}

	file, err := l.openOne(segment{
		data:     data,
		location: location,
		ordinal:  1,
		algo:     adlerSum,
		sum:      cfg.sum,
		sumSet:   cfg.sumSet,
	})
	if err != nil {
		return nil, err
	}
	return []*File{file}, nil
}

// OpenMapping opens the container viewed by m. Ownership of the mapping
// transfers into this call: on failure it is closed before returning; on
// success the returned Files share it and it is closed after the last of
// them closes.
func (l *Loader) OpenMapping(m Mapping, location string, opts ...OpenOption) ([]*File, error) {
	cfg := newOpenConfig(opts)
	data := m.Bytes()
	fm, err := classifyPrefix(headPrefix(data))
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("%s: %w", location, err)
	}

	if fm == formatZip {
		if cfg.sumSet {
			l.log().Debug("expected checksum ignored for archive input", "location", location)
		}
		ar, err := archive.New(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("%s: %w: %v", location, ErrCorruptArchive, err)
		}
		shared := newSharedCloser(m.Close)
		files, err := l.openArchive(ar, archiveSource{buf: data, shared: shared}, location)
		// Drop the opener's reference; the Files hold theirs.
		if relErr := shared.release(); relErr != nil && err == nil {
			closeFiles(files)
			return nil, fmt.Errorf("%s: close mapping: %w", location, relErr)
		}
		return files, err
	}

	file, err := l.openOne(segment{
		data:     data,
		location: location,
		ordinal:  1,
		algo:     adlerSum,
		sum:      cfg.sum,
		sumSet:   cfg.sumSet,
		release:  m.Close,
	})
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	return []*File{file}, nil
}

// openArchive extracts and opens every multidex segment of an archive.
// Either all located segments open or the whole call fails; no partial
// batch escapes. Running out of ordinals is the normal terminator, not a
// failure.
func (l *Loader) openArchive(ar *archive.Archive, src archiveSource, base string) ([]*File, error) {
	var files []*File
	var region *mmap.Region

	err := forEachSegment(ar, base, func(ordinal int, entry *archive.Entry) error {
		location := MultiDexLocation(ordinal, base)
		seg, err := l.entrySegment(entry, src, &region, base, location)
		if err != nil {
			return err
		}
		seg.ordinal = ordinal
		file, err := l.openOne(seg)
		if err != nil {
			if seg.release != nil {
				_ = seg.release()
			}
			return err
		}
		files = append(files, file)
		return nil
	})

	if region != nil {
		// Drop the enumeration's reference; mapped Files hold theirs.
		_ = region.Close()
	}
	if err != nil {
		closeFiles(files)
		return nil, err
	}
	return files, nil
}

// entrySegment produces the content of one archive entry, zero-copy when
// the entry is stored and a backing view is available.
func (l *Loader) entrySegment(entry *archive.Entry, src archiveSource, region **mmap.Region, base, location string) (segment, error) {
	seg := segment{location: location, algo: crcSum, sum: entry.Checksum(), sumSet: true}

	size := entry.Size()
	if size == 0 {
		return seg, fmt.Errorf("%s: %w: zero length entry", location, ErrTruncated)
	}
	if size > math.MaxInt64 {
		return seg, fmt.Errorf("%s: %w: declared size %d", location, ErrCorruptArchive, size)
	}

	if !entry.Compressed() {
		off, err := entry.DataOffset()
		if err != nil {
			return seg, fmt.Errorf("%s: %w: %v", location, ErrCorruptArchive, err)
		}

		switch {
		case src.buf != nil:
			if off < 0 || off+int64(size) > int64(len(src.buf)) {
				return seg, fmt.Errorf("%s: %w: entry data [%d, %d) out of bounds", location, ErrCorruptArchive, off, off+int64(size))
			}
			seg.data = src.buf[off : off+int64(size)]
			if src.shared != nil {
				src.shared.retain()
				seg.release = src.shared.release
			}
			return seg, nil

		case off%4 == 0:
			if *region == nil {
				r, err := mmap.MapFile(src.file, src.size)
				if err != nil {
					return seg, fmt.Errorf("map %s: %w", base, err)
				}
				*region = r
			}
			if off+int64(size) > int64((*region).Len()) {
				return seg, fmt.Errorf("%s: %w: entry data [%d, %d) out of bounds", location, ErrCorruptArchive, off, off+int64(size))
			}
			seg.data = (*region).Bytes()[off : off+int64(size)]
			(*region).Retain()
			seg.release = (*region).Close
			return seg, nil

		default:
			l.log().Warn("stored entry is not 4-byte aligned, extracting instead of mapping",
				"location", location, "offset", off)
		}
	}

	data, err := entry.Bytes()
	if err != nil {
		return seg, fmt.Errorf("%s: %w: %v", location, ErrCorruptArchive, err)
	}
	seg.data = data
	return seg, nil
}

// openOne validates one segment and constructs its File.
func (l *Loader) openOne(seg segment) (*File, error) {
	h, err := ParseHeader(seg.data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", seg.location, err)
	}

	sum := h.Checksum
	if seg.sumSet {
		sum = seg.sum
	}

	if l.verifyChecksum {
		var actual uint32
		switch seg.algo {
		case crcSum:
			actual = crc32.ChecksumIEEE(seg.data)
		default:
			actual = ComputeChecksum(seg.data)
		}
		if actual != sum {
			return nil, fmt.Errorf("%s: %w: expected %08x, computed %08x", seg.location, ErrChecksumMismatch, sum, actual)
		}
	}

	if l.verify && !l.companionMatches(seg.location, sum) {
		verifier := l.verifier
		if verifier == nil {
			verifier = structuralVerifier{}
		}
		if err := verifier.Verify(seg.data, seg.location); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", seg.location, ErrVerificationFailed, err)
		}
	}

	return &File{
		data:     seg.data,
		location: seg.location,
		checksum: sum,
		ordinal:  seg.ordinal,
		header:   h,
		release:  seg.release,
	}, nil
}

// companionMatches reports whether a companion artifact vouches for the
// segment at location, allowing structural verification to be skipped.
func (l *Loader) companionMatches(location string, sum uint32) bool {
	if l.companion == nil {
		return false
	}
	want, ok := l.companion.Checksum(location)
	if !ok || want != sum {
		return false
	}
	l.log().Debug("companion checksum matches, skipping verification", "location", location)
	return true
}
