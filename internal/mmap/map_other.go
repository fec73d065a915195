//go:build !unix

package mmap

import (
	"fmt"
	"os"
)

// MapFile reads the first length bytes of f into a heap-backed region.
//
// Platforms without mmap support get copy semantics with the same
// ownership contract as the mapped variant.
func MapFile(f *os.File, length int64) (*Region, error) {
	if length <= 0 {
		return nil, fmt.Errorf("mmap: non-positive length %d", length)
	}
	if length != int64(int(length)) {
		return nil, fmt.Errorf("mmap: length %d overflows address space", length)
	}
	data := make([]byte, length)
	if _, err := f.ReadAt(data, 0); err != nil {
		return nil, err
	}
	return newRegion(data, nil), nil
}
