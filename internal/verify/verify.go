// Package verify implements the Piece Verifier (spec.md §4.D):
// streaming a piece's blocks through SHA-1, reading only through the
// Block Cache so not-yet-flushed writes are observed.
package verify

import (
	"bytes"
	"crypto/sha1"
	"fmt"

	"github.com/prxssh/rabbitcore/internal/blockcache"
	"github.com/prxssh/rabbitcore/internal/ioengine"
	"github.com/prxssh/rabbitcore/internal/meta"
)

// Verifier recomputes and checks a torrent's piece digests.
type Verifier struct {
	torrentID blockcache.TorrentID
	cache     blockcache.Cache
	engine    *ioengine.Engine
}

func New(torrentID blockcache.TorrentID, cache blockcache.Cache, engine *ioengine.Engine) *Verifier {
	return &Verifier{torrentID: torrentID, cache: cache, engine: engine}
}

// Verify streams piece through the block cache in BlockSize chunks,
// hashing as it goes, and reports whether the result matches the
// torrent's stored digest for that piece.
//
// A block read failure aborts verification and reports false without
// finalizing the hash or propagating the read error — spec.md §4.D
// treats an unreadable block the same as a failed verification, not
// as a caller-visible fault.
func (v *Verifier) Verify(info *meta.Info, piece int) (bool, error) {
	if piece < 0 || piece >= info.PieceCount() {
		return false, fmt.Errorf("verify: piece %d out of range [0, %d)", piece, info.PieceCount())
	}
	if info.BlockSize <= 0 {
		return false, fmt.Errorf("verify: block size not set")
	}

	pieceLen, err := info.PieceLengthAt(piece)
	if err != nil {
		return false, fmt.Errorf("verify: %w", err)
	}

	v.engine.Prefetch(info.Files, info.TotalSize, piece, int64(info.PieceLength), 0, pieceLen)

	h := sha1.New()
	scratch := make([]byte, info.BlockSize)

	for offset := int64(0); offset < pieceLen; offset += int64(info.BlockSize) {
		length := int64(info.BlockSize)
		if remaining := pieceLen - offset; remaining < length {
			length = remaining
		}

		block := scratch[:length]
		if err := v.cache.ReadBlock(v.torrentID, info.Files, info.TotalSize, piece, int64(info.PieceLength), offset, block); err != nil {
			return false, nil
		}
		h.Write(block)
	}

	return bytes.Equal(h.Sum(nil), info.Pieces[piece][:]), nil
}
