// Package filecache implements the File Handle Cache (spec.md §6's
// "file handle cache contract"): a bounded, LRU-backed pool of open
// *os.File handles keyed by (torrent, file, mode), with on-miss
// open/create/preallocate.
package filecache

import (
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/prxssh/rabbitcore/internal/config"
)

// TorrentID identifies a torrent by its infohash, matching the
// File Handle Cache's (torrent-id, file-index) keying in spec.md §3
// and §5.
type TorrentID [sha1.Size]byte

type cacheKey struct {
	torrent   TorrentID
	fileIndex int
	writable  bool
}

// CheckoutCtx carries everything Checkout needs to open (and, on
// first open, create/preallocate) a file on a cache miss.
type CheckoutCtx struct {
	TorrentID   TorrentID
	FileIndex   int
	Path        string
	Writable    bool
	Preallocate config.PreallocationMode
	Length      int64
	DND         bool
}

// Cache is the File Handle Cache contract spec.md §6 names as an
// external collaborator.
type Cache interface {
	// GetCached returns a previously opened handle, if resident.
	GetCached(torrentID TorrentID, fileIndex int, writable bool) (*os.File, bool)

	// Checkout returns a cached handle or opens (and, for a fresh
	// writable file, preallocates) one.
	Checkout(ctx CheckoutCtx) (*os.File, error)

	// Close evicts and closes the handle for one (torrent, file).
	Close(torrentID TorrentID, fileIndex int) error

	// CloseAll evicts and closes every handle owned by a torrent.
	CloseAll(torrentID TorrentID) error
}

// LRUCache is the default Cache implementation: golang-lru bounds the
// number of resident handles, closing the evicted file on its way
// out.
type LRUCache struct {
	mu    sync.Mutex
	inner *lru.Cache[cacheKey, *os.File]
}

// NewLRUCache builds a Cache holding at most size open handles.
func NewLRUCache(size int) (*LRUCache, error) {
	c := &LRUCache{}
	inner, err := lru.NewWithEvict(size, func(_ cacheKey, f *os.File) {
		_ = f.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("filecache: %w", err)
	}
	c.inner = inner
	return c, nil
}

func (c *LRUCache) GetCached(torrentID TorrentID, fileIndex int, writable bool) (*os.File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Get(cacheKey{torrentID, fileIndex, writable})
}

func (c *LRUCache) Checkout(ctx CheckoutCtx) (*os.File, error) {
	key := cacheKey{ctx.TorrentID, ctx.FileIndex, ctx.Writable}

	c.mu.Lock()
	if f, ok := c.inner.Get(key); ok {
		c.mu.Unlock()
		return f, nil
	}
	c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(ctx.Path), 0o755); err != nil {
		return nil, fmt.Errorf("filecache: mkdir %s: %w", filepath.Dir(ctx.Path), err)
	}

	flags := os.O_RDONLY
	if ctx.Writable {
		flags = os.O_RDWR | os.O_CREATE
	}

	_, statErr := os.Stat(ctx.Path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(ctx.Path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filecache: open %s: %w", ctx.Path, err)
	}

	if ctx.Writable && isNew && !ctx.DND {
		if err := preallocate(f, ctx.Length, ctx.Preallocate); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("filecache: preallocate %s: %w", ctx.Path, err)
		}
	}

	c.mu.Lock()
	if evicted, ok := c.inner.Get(key); ok {
		// Lost the race to open this file; keep the winner, discard ours.
		c.mu.Unlock()
		_ = f.Close()
		return evicted, nil
	}
	c.inner.Add(key, f)
	c.mu.Unlock()

	return f, nil
}

func (c *LRUCache) Close(torrentID TorrentID, fileIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Remove(cacheKey{torrentID, fileIndex, true})
	c.inner.Remove(cacheKey{torrentID, fileIndex, false})
	return nil
}

func (c *LRUCache) CloseAll(torrentID TorrentID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.inner.Keys() {
		if key.torrent == torrentID {
			c.inner.Remove(key)
		}
	}
	return nil
}

// PartialPath appends the incomplete-file-naming suffix to name when
// enabled and the file does not yet exist at its final path (spec.md
// §4.C "partial-name variant").
func PartialPath(finalPath string, enabled bool) string {
	if !enabled {
		return finalPath
	}
	if _, err := os.Stat(finalPath); err == nil {
		return finalPath
	}
	return finalPath + ".part"
}
