//go:build !linux

package ioengine

import "os"

// fadvise is a no-op outside Linux; there is no portable read-ahead
// hint this module reaches for.
func fadvise(f *os.File, offset, length int64) error {
	return nil
}
