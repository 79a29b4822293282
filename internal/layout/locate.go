// Package layout maps byte offsets within a torrent's logical
// concatenation of files to (file, file-offset) pairs.
package layout

import (
	"errors"
	"fmt"
	"sort"

	"github.com/prxssh/rabbitcore/internal/meta"
)

// ErrOffsetOutOfRange is returned when the requested global offset
// falls at or beyond the torrent's total size.
var ErrOffsetOutOfRange = errors.New("layout: offset out of range")

// Locate maps the global byte offset piece*pieceLength+pieceOffset to
// the file that contains it, binary-searching files by Offset.
//
// Files of zero length are skipped: the search lands on the last file
// whose Offset is <= g, then walks forward over any zero-length runs
// to find the first file that actually contains g.
func Locate(files []meta.File, totalSize int64, piece int, pieceLength int64, pieceOffset int64) (fileIndex int, fileOffset int64, err error) {
	g := int64(piece)*pieceLength + pieceOffset
	return LocateOffset(files, totalSize, g)
}

// LocateOffset is Locate without the piece/pieceLength decomposition,
// useful for callers that already have a global offset (e.g. the
// info-dict byte-range reader).
func LocateOffset(files []meta.File, totalSize int64, g int64) (fileIndex int, fileOffset int64, err error) {
	if g < 0 || g >= totalSize {
		return 0, 0, fmt.Errorf("%w: offset %d, total size %d", ErrOffsetOutOfRange, g, totalSize)
	}

	// Largest index i such that files[i].Offset <= g.
	i := sort.Search(len(files), func(i int) bool {
		return files[i].Offset > g
	}) - 1
	if i < 0 {
		return 0, 0, fmt.Errorf("%w: offset %d precedes first file", ErrOffsetOutOfRange, g)
	}

	for i < len(files) {
		f := files[i]
		if f.Length > 0 && g < f.Offset+f.Length {
			return i, g - f.Offset, nil
		}
		i++
	}

	return 0, 0, fmt.Errorf("%w: offset %d, total size %d", ErrOffsetOutOfRange, g, totalSize)
}
