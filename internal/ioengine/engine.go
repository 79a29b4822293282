// Package ioengine implements the Range I/O Engine (spec.md §4.C):
// splitting a piece-range across files, invoking read/write/prefetch
// against the File Handle Cache, and translating OS errors.
package ioengine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/prxssh/rabbitcore/internal/config"
	"github.com/prxssh/rabbitcore/internal/filecache"
	"github.com/prxssh/rabbitcore/internal/meta"
)

// Engine performs read/write/prefetch against one torrent's files.
type Engine struct {
	cache     filecache.Cache
	cfg       *config.Config
	root      string
	torrentID filecache.TorrentID

	mu          sync.Mutex
	localErrSet bool
	localErr    error
	onWriteErr  func(path string, err error)
}

// New builds an Engine rooted at root (the directory a torrent's
// files are laid out under), backed by cache.
func New(cache filecache.Cache, cfg *config.Config, root string, torrentID filecache.TorrentID) *Engine {
	return &Engine{cache: cache, cfg: cfg, root: root, torrentID: torrentID}
}

// OnWriteError registers a callback invoked the first time a write
// fails, naming the offending path (spec.md §4.C "marks the torrent
// with a local error", §7 "on write, also sets torrent-local error").
func (e *Engine) OnWriteError(fn func(path string, err error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onWriteErr = fn
}

// LocalError reports the torrent-local error set by a prior write
// failure, if any.
func (e *Engine) LocalError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.localErr
}

// ClearLocalError clears a previously set torrent-local error,
// re-enabling writes.
func (e *Engine) ClearLocalError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.localErrSet = false
	e.localErr = nil
}

func (e *Engine) setLocalError(path string, cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.localErrSet {
		return
	}
	e.localErrSet = true
	e.localErr = fmt.Errorf("ioengine: local error on %s: %w", path, cause)
	if e.onWriteErr != nil {
		e.onWriteErr(path, cause)
	}
}

func (e *Engine) filePath(f meta.File) string {
	final := filepath.Join(append([]string{e.root}, f.Path...)...)
	return filecache.PartialPath(final, e.cfg.IncompleteFileNaming)
}

// Read fills buf with the torrent's bytes at [piece*pieceLength+begin,
// +len(buf)), splitting the read across files as needed.
func (e *Engine) Read(files []meta.File, totalSize int64, piece int, pieceLength, begin int64, buf []byte) error {
	segs, err := splitRange(files, totalSize, int64(piece)*pieceLength+begin, int64(len(buf)))
	if err != nil {
		return err
	}
	return e.forEachSegment(segs, files, func(f meta.File, seg segment) error {
		handle, err := e.open(f, seg.fileIndex, false)
		if err != nil {
			return err
		}
		if _, err := handle.ReadAt(buf[seg.bufOffset:seg.bufOffset+seg.length], seg.fileOffset); err != nil {
			return fmt.Errorf("%w: read %s@%d: %v", ErrIO, e.filePath(f), seg.fileOffset, err)
		}
		return nil
	})
}

// Write stores buf's bytes at [piece*pieceLength+begin, +len(buf)),
// splitting the write across files as needed. On the first failing
// write, the torrent is marked with a local error naming the
// offending file. Once a local error is latched, Write refuses every
// subsequent call with that same error until ClearLocalError runs
// (spec.md §7: a torrent-local error disables further writes).
func (e *Engine) Write(files []meta.File, totalSize int64, piece int, pieceLength, begin int64, buf []byte) error {
	if err := e.LocalError(); err != nil {
		return err
	}

	segs, err := splitRange(files, totalSize, int64(piece)*pieceLength+begin, int64(len(buf)))
	if err != nil {
		return err
	}
	return e.forEachSegment(segs, files, func(f meta.File, seg segment) error {
		handle, err := e.open(f, seg.fileIndex, true)
		if err != nil {
			e.setLocalError(e.filePath(f), err)
			return err
		}
		if _, err := handle.WriteAt(buf[seg.bufOffset:seg.bufOffset+seg.length], seg.fileOffset); err != nil {
			wrapped := fmt.Errorf("%w: write %s@%d: %v", ErrIO, e.filePath(f), seg.fileOffset, err)
			e.setLocalError(e.filePath(f), wrapped)
			return wrapped
		}
		return nil
	})
}

// Prefetch hints that [piece*pieceLength+begin, +length) will soon be
// read. Best-effort: any failure is silently ignored (spec.md §4.C).
func (e *Engine) Prefetch(files []meta.File, totalSize int64, piece int, pieceLength, begin, length int64) {
	segs, err := splitRange(files, totalSize, int64(piece)*pieceLength+begin, length)
	if err != nil {
		return
	}
	_ = e.forEachSegment(segs, files, func(f meta.File, seg segment) error {
		handle, err := e.open(f, seg.fileIndex, false)
		if err != nil {
			return nil
		}
		_ = fadvise(handle, seg.fileOffset, seg.length)
		return nil
	})
}

func (e *Engine) open(f meta.File, fileIndex int, writable bool) (*os.File, error) {
	path := e.filePath(f)
	if !writable {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
			}
			return nil, fmt.Errorf("%w: stat %s: %v", ErrIO, path, err)
		}
	}

	handle, err := e.cache.Checkout(filecache.CheckoutCtx{
		TorrentID:   e.torrentID,
		FileIndex:   fileIndex,
		Path:        path,
		Writable:    writable,
		Preallocate: e.cfg.PreallocationMode,
		Length:      f.Length,
		DND:         f.DND,
	})
	if err != nil {
		if !writable && errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	return handle, nil
}

// forEachSegment runs fn over every segment, fanning out across an
// errgroup bounded by the number of distinct files the range touches
// (never more, per spec.md's Range I/O Engine algorithm).
func (e *Engine) forEachSegment(segs []segment, files []meta.File, fn func(meta.File, segment) error) error {
	if len(segs) == 0 {
		return nil
	}
	if len(segs) == 1 {
		return fn(files[segs[0].fileIndex], segs[0])
	}

	var g errgroup.Group
	for _, seg := range segs {
		seg := seg
		g.Go(func() error {
			return fn(files[seg.fileIndex], seg)
		})
	}
	return g.Wait()
}
