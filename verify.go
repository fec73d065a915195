package dex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Verifier checks the structural integrity of a dex container beyond the
// header. Implementations receive the full container content and the
// location string for diagnostics.
type Verifier interface {
	Verify(data []byte, location string) error
}

// structuralVerifier is the built-in Verifier. It performs bounded
// structural checks: header consistency, section table bounds, map list
// ordering, and string data termination. It does not validate bytecode.
type structuralVerifier struct{}

var _ Verifier = structuralVerifier{}

func (structuralVerifier) Verify(data []byte, _ string) error {
	h, err := ParseHeader(data)
	if err != nil {
		return err
	}
	if int64(len(data)) > math.MaxUint32 {
		return fmt.Errorf("content size %d exceeds format limit", len(data))
	}
	size := uint32(len(data))
	if h.FileSize != size {
		return fmt.Errorf("header file size %d does not match content size %d", h.FileSize, size)
	}
	if h.HeaderSize != HeaderSize {
		return fmt.Errorf("bad header size %d", h.HeaderSize)
	}
	switch h.EndianTag {
	case endianTag:
	case reverseEndianTag:
		return errors.New("byte-swapped content is not supported")
	default:
		return fmt.Errorf("bad endian tag %#x", h.EndianTag)
	}
	if err := verifySections(h, size); err != nil {
		return err
	}
	if err := verifyMapList(data, h); err != nil {
		return err
	}
	return verifyStringData(data, h)
}

func verifySections(h Header, size uint32) error {
	sections := []struct {
		name     string
		count    uint32
		off      uint32
		itemSize uint32
	}{
		{"string_ids", h.StringIDsSize, h.StringIDsOff, 4},
		{"type_ids", h.TypeIDsSize, h.TypeIDsOff, 4},
		{"proto_ids", h.ProtoIDsSize, h.ProtoIDsOff, 12},
		{"field_ids", h.FieldIDsSize, h.FieldIDsOff, 8},
		{"method_ids", h.MethodIDsSize, h.MethodIDsOff, 8},
		{"class_defs", h.ClassDefsSize, h.ClassDefsOff, 32},
		{"data", h.DataSize, h.DataOff, 1},
	}
	for _, s := range sections {
		if s.count == 0 {
			continue
		}
		end := uint64(s.off) + uint64(s.count)*uint64(s.itemSize)
		if s.off < HeaderSize || end > uint64(size) {
			return fmt.Errorf("%s section [%d, %d) out of bounds for size %d", s.name, s.off, end, size)
		}
	}
	return nil
}

// verifyMapList checks that the map list is present, in bounds, and that
// item offsets are strictly ascending.
func verifyMapList(data []byte, h Header) error {
	size := uint64(len(data))
	if h.MapOff == 0 {
		return errors.New("missing map list")
	}
	off := uint64(h.MapOff)
	if off < HeaderSize || off+4 > size {
		return fmt.Errorf("map list offset %d out of bounds", h.MapOff)
	}
	count := uint64(binary.LittleEndian.Uint32(data[off:]))
	if count == 0 {
		return errors.New("empty map list")
	}
	const itemSize = 12
	if off+4+count*itemSize > size {
		return fmt.Errorf("map list with %d items out of bounds", count)
	}
	prev := int64(-1)
	for i := uint64(0); i < count; i++ {
		itemOff := int64(binary.LittleEndian.Uint32(data[off+4+i*itemSize+8:]))
		if itemOff <= prev {
			return fmt.Errorf("map list item %d offset %d not ascending", i, itemOff)
		}
		if uint64(itemOff) >= size {
			return fmt.Errorf("map list item %d offset %d out of bounds", i, itemOff)
		}
		prev = itemOff
	}
	return nil
}

// verifyStringData checks that every string id points at a valid string
// data item: an in-bounds ULEB128 length prefix followed by
// NUL-terminated content.
func verifyStringData(data []byte, h Header) error {
	size := uint32(len(data))
	for i := uint32(0); i < h.StringIDsSize; i++ {
		off := binary.LittleEndian.Uint32(data[h.StringIDsOff+4*i:])
		if off < HeaderSize || off >= size {
			return fmt.Errorf("string %d data offset %d out of bounds", i, off)
		}
		_, n := binary.Uvarint(data[off:])
		if n <= 0 {
			return fmt.Errorf("string %d has a malformed length prefix", i)
		}
		terminated := false
		for pos := off + uint32(n); pos < size; pos++ {
			if data[pos] == 0 {
				terminated = true
				break
			}
		}
		if !terminated {
			return fmt.Errorf("string %d data is unterminated", i)
		}
	}
	return nil
}
