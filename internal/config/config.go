// Package config holds the core's own tunables. It deliberately does
// not parse YAML/TOML/flags — that belongs to the surrounding
// application; cmd/rabbitcore builds a Config by hand from flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// PreallocationMode controls how a torrent's on-disk files are sized
// before any data has been written to them.
type PreallocationMode uint8

const (
	// PreallocationNone leaves files at whatever size the filesystem
	// gives a freshly created, unwritten file (usually 0, or sparse).
	PreallocationNone PreallocationMode = iota
	// PreallocationSparse truncates files to their final length up
	// front without allocating backing blocks.
	PreallocationSparse
	// PreallocationFull allocates every block up front.
	PreallocationFull
)

func (m PreallocationMode) String() string {
	switch m {
	case PreallocationSparse:
		return "sparse"
	case PreallocationFull:
		return "full"
	default:
		return "none"
	}
}

// Config carries the Range I/O Engine and File Handle Cache's
// resource knobs.
type Config struct {
	// StateDir is where .torrent and .resume files are persisted.
	StateDir string

	// PreallocationMode governs how newly created torrent files are
	// sized (spec.md §4.C).
	PreallocationMode PreallocationMode

	// IncompleteFileNaming appends a ".part" suffix to files that have
	// not yet been fully downloaded (spec.md §4.C "partial-name"
	// variant).
	IncompleteFileNaming bool

	// FileCacheSize bounds the number of concurrently open file
	// handles the File Handle Cache keeps resident.
	FileCacheSize int

	// BlockSize is the policy block size metadata installation
	// divides piece length by (spec.md §4.E.3); it must evenly divide
	// every torrent's piece length or that torrent's metadata is
	// treated as unusable.
	BlockSize int32
}

// DefaultConfig returns the core's defaults: no file parsing, just
// computed values a caller can override field-by-field.
func DefaultConfig() *Config {
	return &Config{
		StateDir:             defaultStateDir(),
		PreallocationMode:    PreallocationSparse,
		IncompleteFileNaming: true,
		FileCacheSize:        64,
		BlockSize:            16384,
	}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		if cwd, err := os.Getwd(); err == nil {
			return filepath.Join(cwd, ".rabbitcore")
		}
		return ".rabbitcore"
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "rabbitcore")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "rabbitcore")
	default:
		return filepath.Join(home, ".local", "share", "rabbitcore")
	}
}
