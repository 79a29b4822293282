package metadata

import (
	"bytes"
	"testing"

	"github.com/prxssh/rabbitcore/internal/bencode"
	"github.com/prxssh/rabbitcore/internal/meta"
)

func containerWithInfo(t *testing.T, infoDict *bencode.OrderedDict) []byte {
	t.Helper()
	root := bencode.NewOrderedDict()
	root.Set("announce", bencode.NewString("http://tracker.example/announce"))
	root.Set("info", bencode.NewDict(infoDict))
	raw, err := bencode.Marshal(bencode.NewDict(root))
	if err != nil {
		t.Fatalf("marshal container: %v", err)
	}
	return raw
}

func TestGetPiece_SingleChunkRoundTrips(t *testing.T) {
	id := bencode.NewOrderedDict()
	id.Set("length", bencode.NewInt(2000))
	id.Set("name", bencode.NewString("t"))
	id.Set("piece length", bencode.NewInt(1024))
	id.Set("pieces", bencode.NewBytes(make([]byte, 40)))

	container := containerWithInfo(t, id)
	session := newFakeSession(container)
	reader := NewInfoDictReader(session)

	infoBytes, err := bencode.Marshal(bencode.NewDict(id))
	if err != nil {
		t.Fatalf("marshal info dict: %v", err)
	}

	got, err := reader.GetPiece(0)
	if err != nil {
		t.Fatalf("GetPiece(0): %v", err)
	}
	if !bytes.Equal(got, infoBytes) {
		t.Fatalf("GetPiece(0) = %q, want %q", got, infoBytes)
	}
}

func TestGetPiece_MultiChunkAndOutOfRange(t *testing.T) {
	pieces := make([]byte, 900*20)
	id := bencode.NewOrderedDict()
	id.Set("length", bencode.NewInt(2_000_000))
	id.Set("name", bencode.NewString("t"))
	id.Set("piece length", bencode.NewInt(1024))
	id.Set("pieces", bencode.NewBytes(pieces))

	container := containerWithInfo(t, id)
	session := newFakeSession(container)
	reader := NewInfoDictReader(session)

	infoBytes, err := bencode.Marshal(bencode.NewDict(id))
	if err != nil {
		t.Fatalf("marshal info dict: %v", err)
	}
	if len(infoBytes) <= meta.MetadataPieceSize {
		t.Fatalf("fixture too small to exercise multiple chunks: %d bytes", len(infoBytes))
	}

	first, err := reader.GetPiece(0)
	if err != nil {
		t.Fatalf("GetPiece(0): %v", err)
	}
	second, err := reader.GetPiece(1)
	if err != nil {
		t.Fatalf("GetPiece(1): %v", err)
	}
	if !bytes.Equal(append(append([]byte(nil), first...), second...), infoBytes) {
		t.Fatalf("concatenated chunks don't reconstruct the info dict")
	}
	if len(second) >= meta.MetadataPieceSize {
		t.Fatalf("second chunk should be the short final chunk")
	}

	if _, err := reader.GetPiece(2); err == nil {
		t.Fatalf("GetPiece(2): expected out-of-range error")
	}
}

func TestGetPiece_CachesOffsetAcrossCalls(t *testing.T) {
	id := bencode.NewOrderedDict()
	id.Set("length", bencode.NewInt(2000))
	id.Set("name", bencode.NewString("t"))
	id.Set("piece length", bencode.NewInt(1024))
	id.Set("pieces", bencode.NewBytes(make([]byte, 40)))

	container := containerWithInfo(t, id)
	session := newFakeSession(container)
	reader := NewInfoDictReader(session)

	if _, err := reader.GetPiece(0); err != nil {
		t.Fatalf("GetPiece(0): %v", err)
	}
	if !reader.cached {
		t.Fatalf("offset should be cached after first GetPiece call")
	}

	offset, length := reader.offset, reader.length
	if _, err := reader.GetPiece(0); err != nil {
		t.Fatalf("second GetPiece(0): %v", err)
	}
	if reader.offset != offset || reader.length != length {
		t.Fatalf("cached offset/length changed across calls")
	}
}
