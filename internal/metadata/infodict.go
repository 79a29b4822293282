package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/prxssh/rabbitcore/internal/bencode"
	"github.com/prxssh/rabbitcore/internal/meta"
)

var errInfoDictContainerNotDict = errors.New("metadata: container top-level not a dict")

// InfoDictReader serves a torrent's own info dict back to peers in
// METADATA_PIECE_SIZE chunks (spec.md §4.E "Info-dict extraction"),
// the symmetrical path to IncompleteMetadata's acquisition side.
type InfoDictReader struct {
	session Session

	mu     sync.Mutex
	cached bool
	offset int64
	length int
}

func NewInfoDictReader(session Session) *InfoDictReader {
	return &InfoDictReader{session: session}
}

// GetPiece returns the bytes of the info dict's pieceIndex'th
// METADATA_PIECE_SIZE chunk (the last chunk may be shorter).
func (r *InfoDictReader) GetPiece(pieceIndex int) ([]byte, error) {
	if pieceIndex < 0 {
		return nil, fmt.Errorf("metadata: piece index %d negative", pieceIndex)
	}

	offset, length, err := r.ensureCache()
	if err != nil {
		return nil, err
	}

	pieceOffset := int64(pieceIndex) * meta.MetadataPieceSize
	if pieceOffset >= int64(length) {
		return nil, fmt.Errorf("metadata: piece index %d out of range for info dict of length %d", pieceIndex, length)
	}

	readLen := int64(meta.MetadataPieceSize)
	if remaining := int64(length) - pieceOffset; remaining < readLen {
		readLen = remaining
	}

	raw, err := r.session.LoadTorrentFile()
	if err != nil {
		return nil, fmt.Errorf("metadata: read container: %w", err)
	}

	start := offset + pieceOffset
	end := start + readLen
	if end > int64(len(raw)) {
		return nil, fmt.Errorf("metadata: container shrank since info dict was located")
	}
	return raw[start:end], nil
}

// ensureCache lazily locates the info dict's byte offset within the
// on-disk container by re-serializing just the info dict and finding
// its first occurrence as a substring of the original bytes, so later
// calls only re-read the container and slice it rather than re-parse.
func (r *InfoDictReader) ensureCache() (int64, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached {
		return r.offset, r.length, nil
	}

	raw, err := r.session.LoadTorrentFile()
	if err != nil {
		return 0, 0, fmt.Errorf("metadata: read container: %w", err)
	}

	rootVal, err := bencode.Unmarshal(raw)
	if err != nil {
		return 0, 0, fmt.Errorf("metadata: container not bencoded: %w", err)
	}
	root, err := rootVal.AsDict()
	if err != nil {
		return 0, 0, errInfoDictContainerNotDict
	}
	infoVal, ok := root.Get("info")
	if !ok {
		return 0, 0, meta.ErrInfoMissing
	}
	infoDict, err := infoVal.AsDict()
	if err != nil {
		return 0, 0, meta.ErrInfoNotDict
	}

	infoBytes, err := bencode.Marshal(bencode.NewDict(infoDict))
	if err != nil {
		return 0, 0, fmt.Errorf("metadata: re-encode info dict: %w", err)
	}

	idx := bytes.Index(raw, infoBytes)
	if idx < 0 {
		return 0, 0, fmt.Errorf("metadata: info dict not found as a substring of the container")
	}

	r.offset = int64(idx)
	r.length = len(infoBytes)
	r.cached = true
	return r.offset, r.length, nil
}
