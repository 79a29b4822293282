//go:build linux

package filecache

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/prxssh/rabbitcore/internal/config"
)

// preallocate sizes f per mode. Full preallocation uses fallocate(2)
// to reserve backing blocks; sparse just truncates to the final
// length, leaving the filesystem to allocate blocks lazily.
func preallocate(f *os.File, length int64, mode config.PreallocationMode) error {
	switch mode {
	case config.PreallocationFull:
		if err := unix.Fallocate(int(f.Fd()), 0, 0, length); err != nil {
			return f.Truncate(length)
		}
		return nil
	case config.PreallocationSparse:
		return f.Truncate(length)
	default:
		return nil
	}
}
