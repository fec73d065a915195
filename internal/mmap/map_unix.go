//go:build unix

package mmap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MapFile maps the first length bytes of f read-only.
//
// The mapping stays valid after f is closed. length must be positive and
// no larger than the file.
func MapFile(f *os.File, length int64) (*Region, error) {
	if length <= 0 {
		return nil, fmt.Errorf("mmap: non-positive length %d", length)
	}
	if length != int64(int(length)) {
		return nil, fmt.Errorf("mmap: length %d overflows address space", length)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(length), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, &os.SyscallError{Syscall: "mmap", Err: err}
	}
	return newRegion(data, unix.Munmap), nil
}
