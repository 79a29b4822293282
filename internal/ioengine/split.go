package ioengine

import (
	"fmt"

	"github.com/prxssh/rabbitcore/internal/layout"
	"github.com/prxssh/rabbitcore/internal/meta"
)

// segment is one file's share of a piece-range: bytes [bufOffset,
// bufOffset+length) of the caller's buffer correspond to bytes
// [fileOffset, fileOffset+length) of files[fileIndex].
type segment struct {
	fileIndex  int
	fileOffset int64
	bufOffset  int64
	length     int64
}

// splitRange decomposes the global byte range [g, g+length) into the
// ordered list of per-file segments it touches, skipping zero-length
// files. Grounded on the teacher's writeStreamAt/readStreamAt
// algorithm (locate the start, walk files forward, clip each file's
// overlap with the range).
func splitRange(files []meta.File, totalSize int64, g, length int64) ([]segment, error) {
	if length == 0 {
		return nil, nil
	}
	end := g + length
	if g < 0 || end > totalSize {
		return nil, fmt.Errorf("%w: [%d, %d) exceeds total size %d", ErrInvalidRange, g, end, totalSize)
	}

	startIdx, _, err := layout.LocateOffset(files, totalSize, g)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}

	var segs []segment
	bufOff := int64(0)
	cursor := g

	for i := startIdx; i < len(files) && cursor < end; i++ {
		f := files[i]
		if f.Length == 0 {
			continue
		}
		fileStart, fileEnd := f.Offset, f.Offset+f.Length
		if end <= fileStart {
			break
		}
		if cursor >= fileEnd {
			continue
		}

		segStart := max64(cursor, fileStart)
		segEnd := min64(end, fileEnd)
		n := segEnd - segStart
		if n <= 0 {
			continue
		}

		segs = append(segs, segment{
			fileIndex:  i,
			fileOffset: segStart - fileStart,
			bufOffset:  bufOff,
			length:     n,
		})
		bufOff += n
		cursor = segEnd
	}

	if cursor < end {
		return nil, fmt.Errorf("%w: range [%d, %d) not fully covered by files", ErrInvalidRange, g, end)
	}
	return segs, nil
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
