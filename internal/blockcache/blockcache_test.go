package blockcache

import (
	"bytes"
	"testing"

	"github.com/prxssh/rabbitcore/internal/config"
	"github.com/prxssh/rabbitcore/internal/filecache"
	"github.com/prxssh/rabbitcore/internal/ioengine"
	"github.com/prxssh/rabbitcore/internal/meta"
)

func newTestCache(t *testing.T) (*WriteBackCache, []meta.File) {
	t.Helper()
	dir := t.TempDir()
	fc, err := filecache.NewLRUCache(8)
	if err != nil {
		t.Fatalf("NewLRUCache: %v", err)
	}
	cfg := config.DefaultConfig()
	engine := ioengine.New(fc, cfg, dir, filecache.TorrentID{9})
	files := []meta.File{{Path: []string{"f"}, Length: 1000, Offset: 0}}

	if err := engine.Write(files, 1000, 0, 1000, 0, bytes.Repeat([]byte{0x11}, 1000)); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	return NewWriteBackCache(engine), files
}

func TestReadBlock_SeesPendingWritesBeforeFlush(t *testing.T) {
	cache, files := newTestCache(t)
	id := filecache.TorrentID{9}

	cache.Stage(id, 0, 100, bytes.Repeat([]byte{0xAA}, 50))

	out := make([]byte, 200)
	if err := cache.ReadBlock(id, files, 1000, 0, 1000, 0, out); err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}

	if !bytes.Equal(out[:100], bytes.Repeat([]byte{0x11}, 100)) {
		t.Fatalf("bytes before pending write should read on-disk value")
	}
	if !bytes.Equal(out[100:150], bytes.Repeat([]byte{0xAA}, 50)) {
		t.Fatalf("bytes of pending write not observed")
	}
	if !bytes.Equal(out[150:200], bytes.Repeat([]byte{0x11}, 50)) {
		t.Fatalf("bytes after pending write should read on-disk value")
	}
}

func TestFlush_CommitsPendingAndClearsOverlay(t *testing.T) {
	cache, files := newTestCache(t)
	id := filecache.TorrentID{9}

	cache.Stage(id, 0, 0, bytes.Repeat([]byte{0xBB}, 1000))
	if err := cache.Flush(files, 1000, id, 0, 1000); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	out := make([]byte, 1000)
	if err := cache.ReadBlock(id, files, 1000, 0, 1000, 0, out); err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if !bytes.Equal(out, bytes.Repeat([]byte{0xBB}, 1000)) {
		t.Fatalf("flushed bytes not visible via plain on-disk read")
	}
}
