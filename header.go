package dex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/adler32"
)

// HeaderSize is the size of the fixed dex container header in bytes.
const HeaderSize = 112

// A dex container is always little-endian; the reversed tag marks
// byte-swapped content, which is not supported.
const (
	endianTag        = 0x12345678
	reverseEndianTag = 0x78563412
)

// Checksum coverage starts at the signature field; the magic and the
// checksum field itself are excluded.
const checksumStart = 12

var (
	dexMagic = []byte{'d', 'e', 'x', '\n'}
	zipMagic = []byte{'P', 'K', 0x03, 0x04}
)

// Header is the fixed-size header at the start of every dex container.
//
// Fields are exported so the struct can be filled directly from the
// little-endian wire layout.
type Header struct {
	Magic         [8]byte
	Checksum      uint32
	Signature     [20]byte
	FileSize      uint32
	HeaderSize    uint32
	EndianTag     uint32
	LinkSize      uint32
	LinkOff       uint32
	MapOff        uint32
	StringIDsSize uint32
	StringIDsOff  uint32
	TypeIDsSize   uint32
	TypeIDsOff    uint32
	ProtoIDsSize  uint32
	ProtoIDsOff   uint32
	FieldIDsSize  uint32
	FieldIDsOff   uint32
	MethodIDsSize uint32
	MethodIDsOff  uint32
	ClassDefsSize uint32
	ClassDefsOff  uint32
	DataSize      uint32
	DataOff       uint32
}

// Version returns the three-digit format version from the magic.
func (h Header) Version() string {
	return string(h.Magic[4:7])
}

// ParseHeader decodes the container header at the start of data.
//
// Returns ErrTruncated when data cannot hold a full header and
// ErrUnsupportedFormat when the magic or version is not a supported dex
// format.
func ParseHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncated, len(data), HeaderSize)
	}
	if !isDexMagic(data) {
		return h, fmt.Errorf("%w: bad magic %#x", ErrUnsupportedFormat, data[:4])
	}
	if v := string(data[4:7]); !supportedVersion(v) {
		return h, fmt.Errorf("%w: dex version %s", ErrUnsupportedFormat, v)
	}
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// ComputeChecksum returns the adler32 checksum of a container's content,
// covering everything after the magic and checksum fields. This is the
// value a valid container stores in its header.
func ComputeChecksum(data []byte) uint32 {
	if len(data) < checksumStart {
		return 0
	}
	return adler32.Checksum(data[checksumStart:])
}

// isDexMagic reports whether prefix begins with a dex magic: the format
// tag, three version digits, and a terminating NUL.
func isDexMagic(prefix []byte) bool {
	return len(prefix) >= 8 && bytes.Equal(prefix[:4], dexMagic) && prefix[7] == 0
}

// isZipMagic reports whether prefix begins with a zip local file header.
func isZipMagic(prefix []byte) bool {
	return len(prefix) >= 4 && bytes.Equal(prefix[:4], zipMagic)
}

// supportedVersion reports whether v is a released dex format version.
// 036 was withdrawn and is rejected.
func supportedVersion(v string) bool {
	switch v {
	case "035", "037", "038", "039", "040", "041":
		return true
	}
	return false
}
