// Package blockcache is the named external collaborator from spec.md
// §6 ("block cache contract"): a write-back cache the Piece Verifier
// reads through so it observes not-yet-flushed writes. The Range I/O
// Engine is its backing store.
//
// The full write-back cache (background flush thread, eviction
// policy, cross-process durability) is out of scope for this core —
// spec.md §1 names it as an external collaborator, interface only.
// This package provides a minimal, correct default so the Piece
// Verifier and its tests have something real to run against.
package blockcache

import (
	"errors"
	"sync"

	"github.com/prxssh/rabbitcore/internal/filecache"
	"github.com/prxssh/rabbitcore/internal/ioengine"
	"github.com/prxssh/rabbitcore/internal/meta"
)

// TorrentID identifies the torrent a block belongs to.
type TorrentID = filecache.TorrentID

// Cache is the contract spec.md §6 requires: read_block must serve
// post-write values for not-yet-flushed writes on the same range.
type Cache interface {
	ReadBlock(id TorrentID, files []meta.File, totalSize int64, piece int, pieceLength, offset int64, out []byte) error
}

type pendingKey struct {
	id    TorrentID
	piece int
}

type pendingWrite struct {
	offset int64
	data   []byte
}

// WriteBackCache buffers writes in memory per (torrent, piece) until
// Flush commits them to the backing Range I/O Engine; ReadBlock
// overlays any still-pending bytes on top of whatever the engine
// currently has on disk.
type WriteBackCache struct {
	engine *ioengine.Engine

	mu      sync.Mutex
	pending map[pendingKey][]pendingWrite
}

func NewWriteBackCache(engine *ioengine.Engine) *WriteBackCache {
	return &WriteBackCache{engine: engine, pending: make(map[pendingKey][]pendingWrite)}
}

// Stage buffers data at the given piece offset without writing it to
// disk yet.
func (c *WriteBackCache) Stage(id TorrentID, piece int, offset int64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := append([]byte(nil), data...)
	key := pendingKey{id, piece}
	c.pending[key] = append(c.pending[key], pendingWrite{offset, buf})
}

// Flush writes every pending block of (id, piece) through to the
// engine and clears the overlay for that piece.
func (c *WriteBackCache) Flush(files []meta.File, totalSize int64, id TorrentID, piece int, pieceLength int64) error {
	key := pendingKey{id, piece}

	c.mu.Lock()
	writes := c.pending[key]
	delete(c.pending, key)
	c.mu.Unlock()

	for _, w := range writes {
		if err := c.engine.Write(files, totalSize, piece, pieceLength, w.offset, w.data); err != nil {
			return err
		}
	}
	return nil
}

// ReadBlock reads [offset, offset+len(out)) of piece from the engine,
// then overlays any pending (not yet flushed) bytes covering that
// range, so a verifier observes writes that have not hit disk yet.
func (c *WriteBackCache) ReadBlock(id TorrentID, files []meta.File, totalSize int64, piece int, pieceLength, offset int64, out []byte) error {
	if err := c.engine.Read(files, totalSize, piece, pieceLength, offset, out); err != nil {
		if !isNotFound(err) {
			return err
		}
		for i := range out {
			out[i] = 0
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := pendingKey{id, piece}
	for _, w := range c.pending[key] {
		start := max64(offset, w.offset)
		end := min64(offset+int64(len(out)), w.offset+int64(len(w.data)))
		if end <= start {
			continue
		}
		copy(out[start-offset:end-offset], w.data[start-w.offset:end-w.offset])
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ioengine.ErrNotFound)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
