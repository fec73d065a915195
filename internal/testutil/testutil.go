// Package testutil builds synthetic dex containers and zip archives for
// tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"crypto/sha1" //nolint:gosec // dex signatures are defined as SHA-1
	"encoding/binary"
	"hash/adler32"
	"testing"
)

// Dex header layout constants.
const (
	HeaderSize   = 112
	checksumOff  = 8
	signatureOff = 12
	endianTag    = 0x12345678
)

// Map list item type codes.
const (
	typeHeaderItem     = 0x0000
	typeStringIDItem   = 0x0001
	typeMapList        = 0x1000
	typeStringDataItem = 0x2002
)

// DexConfig controls the synthetic container produced by BuildDex.
type DexConfig struct {
	// Version is the three-digit format version. Defaults to "035".
	Version string

	// Strings populates the string_ids table and string data section.
	Strings []string
}

// BuildDex assembles a minimal valid dex container: header, string table,
// string data, and a map list, with a correct SHA-1 signature and adler32
// checksum.
func BuildDex(t *testing.T, cfg DexConfig) []byte {
	t.Helper()

	version := cfg.Version
	if version == "" {
		version = "035"
	}
	if len(version) != 3 {
		t.Fatalf("dex version must be three digits, got %q", version)
	}

	numStrings := len(cfg.Strings)
	stringIDsOff := 0
	if numStrings > 0 {
		stringIDsOff = HeaderSize
	}

	// String data items follow the string_ids table.
	dataOff := HeaderSize + 4*numStrings
	var stringData bytes.Buffer
	stringOffsets := make([]uint32, numStrings)
	for i, s := range cfg.Strings {
		stringOffsets[i] = uint32(dataOff + stringData.Len())
		var uleb [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(uleb[:], uint64(len(s)))
		stringData.Write(uleb[:n])
		stringData.WriteString(s)
		stringData.WriteByte(0)
	}
	for stringData.Len()%4 != 0 {
		stringData.WriteByte(0)
	}

	mapOff := dataOff + stringData.Len()

	type mapItem struct {
		kind uint16
		size uint32
		off  uint32
	}
	items := []mapItem{{typeHeaderItem, 1, 0}}
	if numStrings > 0 {
		items = append(items,
			mapItem{typeStringIDItem, uint32(numStrings), uint32(stringIDsOff)},
			mapItem{typeStringDataItem, uint32(numStrings), stringOffsets[0]},
		)
	}
	items = append(items, mapItem{typeMapList, 1, uint32(mapOff)})

	fileSize := mapOff + 4 + 12*len(items)

	data := make([]byte, fileSize)
	copy(data, "dex\n")
	copy(data[4:], version)
	// data[7] stays NUL.

	le := binary.LittleEndian
	put := func(off int, v uint32) { le.PutUint32(data[off:], v) }
	put(32, uint32(fileSize))
	put(36, HeaderSize)
	put(40, endianTag)
	put(52, uint32(mapOff))
	put(56, uint32(numStrings))
	put(60, uint32(stringIDsOff))
	put(104, uint32(fileSize-dataOff))
	put(108, uint32(dataOff))

	for i, off := range stringOffsets {
		put(HeaderSize+4*i, off)
	}
	copy(data[dataOff:], stringData.Bytes())

	put(mapOff, uint32(len(items)))
	for i, it := range items {
		base := mapOff + 4 + 12*i
		le.PutUint16(data[base:], it.kind)
		put(base+4, it.size)
		put(base+8, it.off)
	}

	RecomputeChecksum(data)
	return data
}

// RecomputeChecksum refreshes the SHA-1 signature and adler32 checksum of a
// dex container in place, making data consistent after a mutation.
func RecomputeChecksum(data []byte) {
	sig := sha1.Sum(data[signatureOff+20:]) //nolint:gosec // dex signatures are defined as SHA-1
	copy(data[signatureOff:], sig[:])
	binary.LittleEndian.PutUint32(data[checksumOff:], adler32.Checksum(data[signatureOff:]))
}

// ZipEntry is one entry for BuildZip.
type ZipEntry struct {
	Name     string
	Data     []byte
	Compress bool
}

// BuildZip writes entries into an in-memory zip archive.
//
// Duplicate names are written as-is; the resulting archive lists them all.
func BuildZip(t *testing.T, entries []ZipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		method := zip.Store
		if e.Compress {
			method = zip.Deflate
		}
		fw, err := w.CreateHeader(&zip.FileHeader{Name: e.Name, Method: method})
		if err != nil {
			t.Fatalf("create %s: %v", e.Name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			t.Fatalf("write %s: %v", e.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// BuildAlignedZip writes stored (uncompressed) entries padded with zipalign
// style extra fields so that each entry's data begins on a 4-byte boundary.
func BuildAlignedZip(t *testing.T, entries []ZipEntry) []byte {
	t.Helper()

	const (
		localHeaderLen = 30
		descriptorLen  = 16
		dataAlignment  = 4
	)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	offset := 0
	for _, e := range entries {
		if e.Compress {
			t.Fatalf("entry %s: aligned archives must be stored", e.Name)
		}
		dataOff := offset + localHeaderLen + len(e.Name)
		pad := (dataAlignment - dataOff%dataAlignment) % dataAlignment
		fw, err := w.CreateHeader(&zip.FileHeader{
			Name:   e.Name,
			Method: zip.Store,
			Extra:  make([]byte, pad),
		})
		if err != nil {
			t.Fatalf("create %s: %v", e.Name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			t.Fatalf("write %s: %v", e.Name, err)
		}
		offset = dataOff + pad + len(e.Data) + descriptorLen
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}
