// Package meta holds a torrent's identity and static layout (spec.md
// §3 "Torrent identity and layout"): infohash, piece digests, file
// table, and the metainfo envelope those are parsed from and
// re-serialized to.
package meta

import (
	"crypto/sha1"
	"time"
)

// MetadataPieceSize is the fixed chunk size metadata pieces are
// exchanged in over the peer wire (spec.md §6), unrelated to the
// torrent's own content piece size.
const MetadataPieceSize = 16384

// File describes one file within a torrent's logical concatenation.
//
// Offset is the cumulative byte position of the file within that
// concatenation; files are kept in announce order (not sorted by
// path), matching BEP 3's "files" list semantics and matching the
// order spec.md §3's invariants are stated against.
type File struct {
	Path   []string
	Length int64
	Offset int64
	DND    bool // do-not-download; a session/user preference, not parsed from the metainfo
}

// Info is the content description: everything whose bencoding the
// infohash is computed over, plus BlockSize, which is derived from
// session policy rather than stored in the metainfo (spec.md §4.E.3).
type Info struct {
	Name        string
	PieceLength int32
	Pieces      [][sha1.Size]byte
	Private     bool
	Files       []File
	TotalSize   int64
	BlockSize   int32
}

// PieceCount returns the number of content pieces.
func (info *Info) PieceCount() int {
	return len(info.Pieces)
}

// PieceLengthAt returns the length of the given piece, accounting for a
// short final piece.
func (info *Info) PieceLengthAt(piece int) (int64, error) {
	if piece < 0 || piece >= len(info.Pieces) {
		return 0, ErrPieceOutOfRange
	}
	start := int64(piece) * int64(info.PieceLength)
	if piece == len(info.Pieces)-1 {
		return info.TotalSize - start, nil
	}
	return int64(info.PieceLength), nil
}

// Metainfo is a parsed `.torrent` file: the Info dictionary plus the
// surrounding announce/tracker/web-seed/comment envelope.
type Metainfo struct {
	Info         Info
	InfoHash     [sha1.Size]byte
	InfoDictLen  int // byte length of the bencoded info dict within the container
	Announce     string
	AnnounceList [][]string
	WebSeeds     []string
	CreationDate time.Time
	CreatedBy    string
	Comment      string
	Encoding     string
}

// HasMetadata reports whether m carries a usable Info dictionary.
func (m *Metainfo) HasMetadata() bool {
	return m != nil && len(m.Info.Pieces) > 0
}

// DeriveBlockSize computes the per-torrent block size from the
// session's configured policy size. It returns 0 (spec.md §4.E.3
// "unusable-metadata") when the piece length is not an integer
// multiple of the policy block size.
func DeriveBlockSize(policyBlockSize int32, pieceLength int32) int32 {
	if policyBlockSize <= 0 || pieceLength <= 0 {
		return 0
	}
	if pieceLength%policyBlockSize != 0 {
		return 0
	}
	return policyBlockSize
}
