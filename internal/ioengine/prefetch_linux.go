//go:build linux

package ioengine

import (
	"os"

	"golang.org/x/sys/unix"
)

// fadvise issues posix_fadvise(WILLNEED) over [offset, offset+length)
// of f, hinting the kernel to read the range ahead of time.
func fadvise(f *os.File, offset, length int64) error {
	return unix.Fadvise(int(f.Fd()), offset, length, unix.FADV_WILLNEED)
}
