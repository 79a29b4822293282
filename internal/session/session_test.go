package session

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prxssh/rabbitcore/internal/config"
)

func newTestSession(t *testing.T) (*Session, [sha1.Size]byte) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.StateDir = t.TempDir()
	hash := sha1.Sum([]byte("example"))
	return New(cfg, nil, nil, hash), hash
}

func TestTorrentAndResumePaths(t *testing.T) {
	s, hash := newTestSession(t)
	want := filepath.Join(s.cfg.StateDir, hexOf(hash)+".torrent")
	if s.TorrentPath() != want {
		t.Fatalf("TorrentPath = %q, want %q", s.TorrentPath(), want)
	}
}

func hexOf(h [sha1.Size]byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(h)*2)
	for i, b := range h {
		out[i*2] = digits[b>>4]
		out[i*2+1] = digits[b&0x0F]
	}
	return string(out)
}

func TestSaveTorrentFileAtomic_WritesAndLoads(t *testing.T) {
	s, _ := newTestSession(t)
	payload := []byte("d8:announce13:http://t/a e")

	if err := s.SaveTorrentFileAtomic(payload); err != nil {
		t.Fatalf("SaveTorrentFileAtomic: %v", err)
	}

	got, err := s.LoadTorrentFile()
	if err != nil {
		t.Fatalf("LoadTorrentFile: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("LoadTorrentFile = %q, want %q", got, payload)
	}

	entries, err := os.ReadDir(filepath.Dir(s.TorrentPath()))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != filepath.Base(s.TorrentPath()) {
			t.Fatalf("stray file left behind: %s", e.Name())
		}
	}
}

func TestSaveTorrentFileAtomic_Overwrites(t *testing.T) {
	s, _ := newTestSession(t)
	if err := s.SaveTorrentFileAtomic([]byte("first")); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SaveTorrentFileAtomic([]byte("second, and longer")); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := s.LoadTorrentFile()
	if err != nil {
		t.Fatalf("LoadTorrentFile: %v", err)
	}
	if string(got) != "second, and longer" {
		t.Fatalf("LoadTorrentFile = %q, want overwritten content", got)
	}
}

func TestRemoveResumeFile_MissingIsNotAnError(t *testing.T) {
	s, _ := newTestSession(t)
	if err := s.RemoveResumeFile(); err != nil {
		t.Fatalf("RemoveResumeFile on missing file: %v", err)
	}
}

func TestRemoveResumeFile_RemovesExisting(t *testing.T) {
	s, _ := newTestSession(t)
	if err := os.MkdirAll(filepath.Dir(s.ResumePath()), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(s.ResumePath(), []byte("progress"), 0o644); err != nil {
		t.Fatalf("seed resume file: %v", err)
	}
	if err := s.RemoveResumeFile(); err != nil {
		t.Fatalf("RemoveResumeFile: %v", err)
	}
	if _, err := os.Stat(s.ResumePath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("resume file still present after removal")
	}
}

func TestMarkLocalError_FirstWriteWins(t *testing.T) {
	s, _ := newTestSession(t)
	first := errors.New("first failure")
	second := errors.New("second failure")

	s.MarkLocalError(first)
	s.MarkLocalError(second)

	if got := s.LocalError(); !errors.Is(got, first) {
		t.Fatalf("LocalError = %v, want %v (first write should win)", got, first)
	}

	s.ClearLocalError()
	if s.LocalError() != nil {
		t.Fatalf("LocalError after Clear = %v, want nil", s.LocalError())
	}

	s.MarkLocalError(second)
	if got := s.LocalError(); !errors.Is(got, second) {
		t.Fatalf("LocalError after clear+remark = %v, want %v", got, second)
	}
}
