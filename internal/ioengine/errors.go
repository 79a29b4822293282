package ioengine

import "errors"

var (
	// ErrNotFound is returned when a read targets a file that does
	// not exist on disk (spec.md §7 "not-found").
	ErrNotFound = errors.New("ioengine: file not found")

	// ErrIO wraps an OS read/write failure (spec.md §7 "io").
	ErrIO = errors.New("ioengine: i/o error")

	// ErrInvalidRange is returned when a piece-range falls outside
	// the torrent's total size (spec.md §7 "invalid-range").
	ErrInvalidRange = errors.New("ioengine: invalid range")
)
