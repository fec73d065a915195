package dex

import (
	"bytes"
	"fmt"
)

// format classifies the leading magic of an input.
type format int

const (
	formatUnknown format = iota
	formatDex
	formatZip
)

// classifyPrefix decides whether an input is a raw dex container or a
// zip archive from its first bytes. Only a fixed-size prefix is needed;
// the full magic and version are validated later by ParseHeader.
func classifyPrefix(prefix []byte) (format, error) {
	if len(prefix) < 4 {
		return formatUnknown, fmt.Errorf("%w: %d-byte input", ErrTruncated, len(prefix))
	}
	if isZipMagic(prefix) {
		return formatZip, nil
	}
	if bytes.Equal(prefix[:4], dexMagic) {
		return formatDex, nil
	}
	return formatUnknown, fmt.Errorf("%w: magic %#x", ErrUnsupportedFormat, prefix[:4])
}

func (f format) String() string {
	switch f {
	case formatDex:
		return "dex"
	case formatZip:
		return "zip"
	default:
		return "unknown"
	}
}

// headPrefix returns the classification prefix of in-memory content.
func headPrefix(data []byte) []byte {
	if len(data) > 8 {
		return data[:8]
	}
	return data
}
