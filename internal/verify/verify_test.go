package verify

import (
	"crypto/rand"
	"crypto/sha1"
	"testing"

	"github.com/prxssh/rabbitcore/internal/blockcache"
	"github.com/prxssh/rabbitcore/internal/config"
	"github.com/prxssh/rabbitcore/internal/filecache"
	"github.com/prxssh/rabbitcore/internal/ioengine"
	"github.com/prxssh/rabbitcore/internal/meta"
)

func setup(t *testing.T, totalSize int64, pieceLength int32, blockSize int32) (*Verifier, *blockcache.WriteBackCache, *meta.Info, filecache.TorrentID) {
	t.Helper()
	dir := t.TempDir()
	fc, err := filecache.NewLRUCache(8)
	if err != nil {
		t.Fatalf("NewLRUCache: %v", err)
	}
	cfg := config.DefaultConfig()
	id := filecache.TorrentID{7}
	engine := ioengine.New(fc, cfg, dir, id)
	cache := blockcache.NewWriteBackCache(engine)

	pieceCount := int((totalSize + int64(pieceLength) - 1) / int64(pieceLength))
	info := &meta.Info{
		Name:        "t",
		PieceLength: pieceLength,
		Pieces:      make([][sha1.Size]byte, pieceCount),
		Files:       []meta.File{{Path: []string{"t"}, Length: totalSize, Offset: 0}},
		TotalSize:   totalSize,
		BlockSize:   blockSize,
	}

	v := New(id, cache, engine)
	return v, cache, info, id
}

func TestVerify_HashRoundTrip(t *testing.T) {
	const pieceLength = 1024
	const blockSize = 256
	const totalSize = pieceLength * 2

	v, cache, info, id := setup(t, totalSize, pieceLength, blockSize)

	data := make([]byte, pieceLength)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("rand: %v", err)
	}
	info.Pieces[0] = sha1.Sum(data)

	cache.Stage(id, 0, 0, data)
	if err := cache.Flush(info.Files, info.TotalSize, id, 0, int64(info.PieceLength)); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	ok, err := v.Verify(info, 0)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("Verify = false, want true for matching digest")
	}

	info.Pieces[0][0] ^= 0xFF
	ok, err = v.Verify(info, 0)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatalf("Verify = true, want false after corrupting digest")
	}
}

func TestVerify_ShortFinalPiece(t *testing.T) {
	const pieceLength = 1024
	const blockSize = 256
	const totalSize = pieceLength + 100

	v, cache, info, id := setup(t, totalSize, pieceLength, blockSize)

	last := make([]byte, 100)
	if _, err := rand.Read(last); err != nil {
		t.Fatalf("rand: %v", err)
	}
	info.Pieces[1] = sha1.Sum(last)

	cache.Stage(id, 1, 0, last)
	if err := cache.Flush(info.Files, info.TotalSize, id, 1, int64(info.PieceLength)); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	ok, err := v.Verify(info, 1)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("Verify(last piece) = false, want true")
	}
}

func TestVerify_PieceOutOfRange(t *testing.T) {
	v, _, info, _ := setup(t, 1024, 1024, 256)
	if _, err := v.Verify(info, 5); err == nil {
		t.Fatalf("Verify: expected error for out-of-range piece")
	}
}
