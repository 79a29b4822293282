//go:build !linux

package filecache

import (
	"os"

	"github.com/prxssh/rabbitcore/internal/config"
)

// preallocate on non-Linux platforms only truncates; there is no
// portable block-reservation syscall this module reaches for.
func preallocate(f *os.File, length int64, mode config.PreallocationMode) error {
	if mode == config.PreallocationNone {
		return nil
	}
	return f.Truncate(length)
}
