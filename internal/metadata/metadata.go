// Package metadata implements the Metadata Exchange State Machine
// (spec.md §4.E): acquiring an info dict piece-by-piece over the peer
// wire for a magnet-sourced torrent, verifying it against the
// infohash, and installing it into the on-disk container.
package metadata

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/prxssh/rabbitcore/internal/bencode"
	"github.com/prxssh/rabbitcore/internal/meta"
)

var errContainerNotDict = errors.New("metadata: container top-level not a dict")

// MinRepeatIntervalSecs is the minimum gap between two requests for
// the same metadata piece (spec.md §4.E "Next request").
const MinRepeatIntervalSecs = 3

// NeededEntry tracks one outstanding metadata piece and when it was
// last requested, so NextRequest can round-robin fairly among the
// pieces still missing.
type NeededEntry struct {
	Piece           int
	LastRequestedAt int64
}

// IncompleteMetadata drives one torrent's info-dict acquisition. A
// zero value is not usable; construct with New.
type IncompleteMetadata struct {
	infoHash        [sha1.Size]byte
	policyBlockSize int32
	session         Session
	logger          *slog.Logger
	onInstalled     func(*meta.Metainfo)

	mu         sync.Mutex
	state      State
	size       int64
	buffer     []byte
	pieceCount int
	needed     []NeededEntry
}

// New builds a state machine for a torrent identified by infoHash.
// onInstalled, if non-nil, is called synchronously with the freshly
// parsed Metainfo once installation succeeds.
func New(infoHash [sha1.Size]byte, policyBlockSize int32, session Session, logger *slog.Logger, onInstalled func(*meta.Metainfo)) *IncompleteMetadata {
	if logger == nil {
		logger = slog.Default()
	}
	return &IncompleteMetadata{
		infoHash:        infoHash,
		policyBlockSize: policyBlockSize,
		session:         session,
		logger:          logger,
		onInstalled:     onInstalled,
		state:           NoMetadata,
	}
}

// State reports the current state.
func (m *IncompleteMetadata) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetSizeHint allocates the acquisition buffer from a peer-reported
// info size. It rejects the hint (returning false) once the torrent
// already has metadata or is already acquiring it, and on an
// out-of-range size.
func (m *IncompleteMetadata) SetSizeHint(size int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != NoMetadata {
		return false
	}
	if size <= 0 || size > math.MaxInt32 {
		return false
	}

	pieceCount := int((size + meta.MetadataPieceSize - 1) / meta.MetadataPieceSize)
	needed := make([]NeededEntry, pieceCount)
	for i := range needed {
		needed[i] = NeededEntry{Piece: i, LastRequestedAt: 0}
	}

	m.size = size
	m.pieceCount = pieceCount
	m.buffer = make([]byte, size)
	m.needed = needed
	m.state = Acquiring

	return true
}

// Deliver accepts one metadata piece payload from a peer. Any payload
// that doesn't match an outstanding, correctly-sized request is
// silently dropped, per spec.md §4.E ("Piece payload"). Once every
// piece has arrived, installation runs synchronously before Deliver
// returns.
func (m *IncompleteMetadata) Deliver(pieceIndex int, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Acquiring {
		return
	}
	if pieceIndex < 0 || pieceIndex >= m.pieceCount {
		return
	}

	expected := int64(meta.MetadataPieceSize)
	if pieceIndex == m.pieceCount-1 {
		expected = m.size - int64(pieceIndex)*meta.MetadataPieceSize
	}
	if int64(len(data)) != expected {
		return
	}

	idx := -1
	for i, e := range m.needed {
		if e.Piece == pieceIndex {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	offset := int64(pieceIndex) * meta.MetadataPieceSize
	copy(m.buffer[offset:offset+expected], data)
	m.needed = append(m.needed[:idx], m.needed[idx+1:]...)

	if len(m.needed) == 0 {
		m.state = Verifying
		m.install()
	}
}

// Needed returns the piece indices still outstanding, in the order
// they will next be offered by NextRequest.
func (m *IncompleteMetadata) Needed() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]int, len(m.needed))
	for i, e := range m.needed {
		out[i] = e.Piece
	}
	return out
}

// NextRequest returns the next metadata piece worth requesting from a
// peer, respecting MinRepeatIntervalSecs per piece, or (0, false) if
// nothing is outstanding or the least-recently-requested piece is
// still within its throttle window.
func (m *IncompleteMetadata) NextRequest(now int64) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.needed) == 0 {
		return 0, false
	}

	head := m.needed[0]
	if head.LastRequestedAt+MinRepeatIntervalSecs > now {
		return 0, false
	}

	m.needed = append(m.needed[1:], NeededEntry{Piece: head.Piece, LastRequestedAt: now})
	return head.Piece, true
}

// install runs the checksum/parse/merge sequence of spec.md §4.E
// ("Installation sequence"). Called with mu held; the state machine is
// strictly serial and this never re-enters IncompleteMetadata.
func (m *IncompleteMetadata) install() {
	sum := sha1.Sum(m.buffer)
	if sum != m.infoHash {
		m.logger.Warn("metadata checksum failed", "infohash", fmt.Sprintf("%x", m.infoHash))
		m.resetNeeded()
		return
	}

	info, infoDict, err := meta.ParseInfoDict(m.buffer)
	if err != nil {
		m.logger.Warn("metadata parse failed", "error", err)
		m.resetNeeded()
		return
	}

	blockSize := meta.DeriveBlockSize(m.policyBlockSize, info.PieceLength)
	if blockSize == 0 {
		m.session.MarkLocalError(fmt.Errorf("metadata: piece length %d not a multiple of block size %d", info.PieceLength, m.policyBlockSize))
		m.resetNeeded()
		return
	}

	raw, err := m.session.LoadTorrentFile()
	if err != nil {
		m.session.MarkLocalError(fmt.Errorf("metadata: load container: %w", err))
		m.resetNeeded()
		return
	}

	rootVal, err := bencode.Unmarshal(raw)
	if err != nil {
		m.session.MarkLocalError(fmt.Errorf("metadata: container not bencoded: %w", err))
		m.resetNeeded()
		return
	}
	root, err := rootVal.AsDict()
	if err != nil {
		m.session.MarkLocalError(errContainerNotDict)
		m.resetNeeded()
		return
	}

	root.Set("info", bencode.NewDict(infoDict))
	newBytes, err := bencode.Marshal(bencode.NewDict(root))
	if err != nil {
		m.session.MarkLocalError(fmt.Errorf("metadata: re-encode container: %w", err))
		m.resetNeeded()
		return
	}

	if err := m.session.RemoveResumeFile(); err != nil {
		m.logger.Warn("metadata install: remove resume file", "error", err)
	}
	if err := m.session.SaveTorrentFileAtomic(newBytes); err != nil {
		m.session.MarkLocalError(fmt.Errorf("metadata: save container: %w", err))
		m.resetNeeded()
		return
	}

	mi, err := meta.ParseMetainfo(newBytes)
	if err != nil {
		m.session.MarkLocalError(fmt.Errorf("metadata: re-parse installed container: %w", err))
		m.resetNeeded()
		return
	}
	mi.Info.BlockSize = blockSize

	m.buffer = nil
	m.state = Installed

	if m.onInstalled != nil {
		m.onInstalled(mi)
	}
}

// resetNeeded repopulates needed with every piece index and returns
// the state machine to ACQUIRING; the buffer is left in place to be
// overwritten by re-requests.
func (m *IncompleteMetadata) resetNeeded() {
	needed := make([]NeededEntry, m.pieceCount)
	for i := range needed {
		needed[i] = NeededEntry{Piece: i, LastRequestedAt: 0}
	}
	m.needed = needed
	m.state = Acquiring
}
